package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError は学習処理やリクエスト処理中に recover したパニックを表すエラーです。
// サーバーはこれを 500 として扱い、メッセージは外部に出しません。
type PanicError struct {
	Op    string
	Value interface{}
	Stack string // パニック発生時の goroutine スタック
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("diabrisk: %s: recovered panic: %v", e.Op, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("op", e.Op).
		Str("panic", fmt.Sprint(e.Value)).
		Str("type", "PanicError")
}

// NewPanicError は recover した値から PanicError を作成し、スタックトレースを付与します。
func NewPanicError(op string, value interface{}) error {
	return errors.WithStack(&PanicError{Op: op, Value: value, Stack: string(debug.Stack())})
}

// Recover は名前付き戻り値 err へのポインタと共に defer で呼び出します。
// パニックは PanicError に変換されます。既に err が設定されていた場合は元のエラーを
// 主エラーとして残し、PanicError を副次エラーとして添付します。
//
//	func Train(...) (a *Artifact, err error) {
//	    defer errors.Recover(&err, "risk.Train")
//	    ...
//	}
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	panicErr := NewPanicError(op, r)
	if *err == nil {
		*err = panicErr
		return
	}
	*err = errors.WithSecondaryError(
		errors.Wrapf(*err, "%s: recovered panic: %v", op, r),
		panicErr,
	)
}

// SafeExecute は fn を実行し、fn 内のパニックを PanicError として返します。
// 描画ライブラリなど、入力によってはパニックし得る処理の呼び出しを囲みます。
func SafeExecute(op string, fn func() error) (err error) {
	defer Recover(&err, op)
	return fn()
}
