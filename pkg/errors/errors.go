// Package errors はプロジェクト全体のエラーハンドリングを提供します。
// 学習時・推論時のエラーを構造化された型として表現し、cockroachdb/errors によるスタックトレースを付与します。
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	学習・推論時のドメインエラー
//
// ===========================================================================

// InsufficientDataError は学習時に必須フィールドの有効な値が一つも無い場合のエラーです。
// 起動処理を中断させる致命的エラーとして扱います。
type InsufficientDataError struct {
	Field  string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("diabrisk: insufficient data for field '%s': %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("diabrisk: insufficient data for field '%s': no usable values", e.Field)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InsufficientDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Str("reason", e.Reason).
		Str("type", "InsufficientDataError")
}

// NewInsufficientDataError は新しいInsufficientDataErrorを作成し、スタックトレースを付与します。
func NewInsufficientDataError(field, reason string) error {
	return errors.WithStack(&InsufficientDataError{Field: field, Reason: reason})
}

// UnknownCategoryError はカテゴリ値が学習時に観測された水準集合に含まれない場合のエラーです。
type UnknownCategoryError struct {
	Field  string
	Value  int
	Levels []int
}

func (e *UnknownCategoryError) Error() string {
	levels := make([]string, len(e.Levels))
	for i, l := range e.Levels {
		levels[i] = fmt.Sprintf("%d", l)
	}
	return fmt.Sprintf("diabrisk: unknown category %d for field '%s' (valid levels: %s)",
		e.Value, e.Field, strings.Join(levels, ", "))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnknownCategoryError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Int("value", e.Value).
		Ints("levels", e.Levels).
		Str("type", "UnknownCategoryError")
}

// NewUnknownCategoryError は新しいUnknownCategoryErrorを作成し、スタックトレースを付与します。
func NewUnknownCategoryError(field string, value int, levels []int) error {
	cp := append([]int(nil), levels...)
	return errors.WithStack(&UnknownCategoryError{Field: field, Value: value, Levels: cp})
}

// FeatureMissingError はエンコード済みレコードに木が必要とする特徴量が欠けている場合のエラーです。
// エンコーダとモデルの不整合を示すため、内部不変条件の違反として扱います。
type FeatureMissingError struct {
	Feature string
	Phase   string // "training", "inference"
}

func (e *FeatureMissingError) Error() string {
	return fmt.Sprintf("diabrisk: feature '%s' missing from encoded record during %s", e.Feature, e.Phase)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *FeatureMissingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("feature", e.Feature).
		Str("phase", e.Phase).
		Str("type", "FeatureMissingError")
}

// NewFeatureMissingError は新しいFeatureMissingErrorを作成し、スタックトレースを付与します。
func NewFeatureMissingError(feature, phase string) error {
	return errors.WithStack(&FeatureMissingError{Feature: feature, Phase: phase})
}

// MalformedInputError はリクエストパラメータを期待する型として解釈できない場合のエラーです。
type MalformedInputError struct {
	Param  string
	Value  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("diabrisk: malformed value %q for parameter '%s': %s", e.Value, e.Param, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *MalformedInputError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("value", e.Value).
		Str("reason", e.Reason).
		Str("type", "MalformedInputError")
}

// NewMalformedInputError は新しいMalformedInputErrorを作成し、スタックトレースを付与します。
func NewMalformedInputError(param, value, reason string) error {
	return errors.WithStack(&MalformedInputError{Param: param, Value: value, Reason: reason})
}

// ===========================================================================
//
//	推定器共通のエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("diabrisk: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("diabrisk: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("diabrisk: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("diabrisk: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diabrisk: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("diabrisk: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Stacktrace はエラーに記録されたスタックトレースを文字列として取り出します。
// 記録が無い場合は空文字列を返します。
func Stacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")
)
