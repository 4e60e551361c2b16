package tree

// Option はDecisionTreeClassifierの設定オプション
type Option func(*DecisionTreeClassifier)

// WithCriterion は不純度の指標を設定 ("gini" または "entropy")
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth は木の最大深さを設定 (-1 は無制限)
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit は分割を試みるノードの最小サンプル数を設定
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf は葉の最小サンプル数を設定
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMinImpurityDecrease は分割に必要な不純度減少量の下限を設定
func WithMinImpurityDecrease(v float64) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minImpurityDecrease = v
	}
}

// WithCCPAlpha はコスト複雑度枝刈りの閾値αを設定 (0 で枝刈りなし)
func WithCCPAlpha(alpha float64) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.ccpAlpha = alpha
	}
}

// WithFeatureKinds は各列の特徴量の種類を設定。省略時はすべて Continuous
func WithFeatureKinds(kinds ...FeatureKind) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.featureKinds = append([]FeatureKind(nil), kinds...)
	}
}

// WithFeatureNames はエラーメッセージに使う列名を設定
func WithFeatureNames(names ...string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.featureNames = append([]string(nil), names...)
	}
}
