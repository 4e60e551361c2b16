// Package metrics は分類モデルの評価指標を提供する。
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// ConfusionMatrix は (正解ラベル, 予測ラベル) ごとの件数
type ConfusionMatrix struct {
	// Labels は行・列の並び順
	Labels []float64 `json:"labels"`
	// Counts[i][j] は正解が Labels[i] で予測が Labels[j] の件数
	Counts [][]int `json:"counts"`
}

// NewConfusionMatrix は正解と予測を突き合わせて混同行列を作る。
// labels が nil の場合は両方に現れる値を昇順に並べたものを使う。
func NewConfusionMatrix(yTrue, yPred *mat.VecDense, labels []float64) (*ConfusionMatrix, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return nil, errors.NewValueError("NewConfusionMatrix", "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return nil, errors.NewDimensionError("NewConfusionMatrix", n, yPred.Len(), 0)
	}

	if labels == nil {
		labels = uniqueLabels(yTrue, yPred)
	}
	index := make(map[float64]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := 0; i < n; i++ {
		t, ok := index[yTrue.AtVec(i)]
		if !ok {
			return nil, errors.NewValueError("NewConfusionMatrix", fmt.Sprintf("unknown true label %v", yTrue.AtVec(i)))
		}
		p, ok := index[yPred.AtVec(i)]
		if !ok {
			return nil, errors.NewValueError("NewConfusionMatrix", fmt.Sprintf("unknown predicted label %v", yPred.AtVec(i)))
		}
		counts[t][p]++
	}

	return &ConfusionMatrix{
		Labels: append([]float64(nil), labels...),
		Counts: counts,
	}, nil
}

func uniqueLabels(vs ...*mat.VecDense) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			seen[v.AtVec(i)] = struct{}{}
		}
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return labels
}

// Total は全セルの合計 (= サンプル数)
func (c *ConfusionMatrix) Total() int {
	total := 0
	for _, row := range c.Counts {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// Count は (正解, 予測) の件数を返す。未知のラベルは0
func (c *ConfusionMatrix) Count(trueLabel, predLabel float64) int {
	t, p := c.indexOf(trueLabel), c.indexOf(predLabel)
	if t < 0 || p < 0 {
		return 0
	}
	return c.Counts[t][p]
}

func (c *ConfusionMatrix) indexOf(label float64) int {
	for i, l := range c.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Accuracy は対角成分の割合
func (c *ConfusionMatrix) Accuracy() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	correct := 0
	for i := range c.Counts {
		correct += c.Counts[i][i]
	}
	return float64(correct) / float64(total)
}

// Precision は positive と予測したもののうち正解が positive の割合。予測が無ければ0
func (c *ConfusionMatrix) Precision(positive float64) float64 {
	p := c.indexOf(positive)
	if p < 0 {
		return 0
	}
	predicted := 0
	for i := range c.Counts {
		predicted += c.Counts[i][p]
	}
	if predicted == 0 {
		return 0
	}
	return float64(c.Counts[p][p]) / float64(predicted)
}

// Recall は正解が positive のもののうち positive と予測した割合。正解が無ければ0
func (c *ConfusionMatrix) Recall(positive float64) float64 {
	p := c.indexOf(positive)
	if p < 0 {
		return 0
	}
	actual := 0
	for _, v := range c.Counts[p] {
		actual += v
	}
	if actual == 0 {
		return 0
	}
	return float64(c.Counts[p][p]) / float64(actual)
}

// F1 は Precision と Recall の調和平均
func (c *ConfusionMatrix) F1(positive float64) float64 {
	prec, rec := c.Precision(positive), c.Recall(positive)
	if prec+rec == 0 {
		return 0
	}
	return 2 * prec * rec / (prec + rec)
}

// Dense は件数を行列として返す。行が正解、列が予測
func (c *ConfusionMatrix) Dense() *mat.Dense {
	k := len(c.Labels)
	d := mat.NewDense(k, k, nil)
	for i := range c.Counts {
		for j, v := range c.Counts[i] {
			d.Set(i, j, float64(v))
		}
	}
	return d
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		return 0, err
	}
	return cm.Accuracy(), nil
}
