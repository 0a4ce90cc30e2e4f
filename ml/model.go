// Package ml 提供远程材料分类服务的客户端
package ml

import (
	"context"

	"matclass/features"
)

// Predictor 预测接口，失败以Outcome形式返回而不是error
type Predictor interface {
	Predict(ctx context.Context, payload features.Payload) Outcome
}

// PredictorFunc 函数适配器
type PredictorFunc func(ctx context.Context, payload features.Payload) Outcome

// Predict 实现Predictor
func (f PredictorFunc) Predict(ctx context.Context, payload features.Payload) Outcome {
	return f(ctx, payload)
}
