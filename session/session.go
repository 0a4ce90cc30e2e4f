// Package session 管理每个用户的输入状态与预测结果
package session

import (
	"context"
	"sync/atomic"

	"matclass/features"
	"matclass/ml"
)

// Session 一个用户会话：特征存储加结果展示器
type Session struct {
	ID       string
	Features *features.Store
	Result   *Presenter

	ordered bool
	seq     atomic.Uint64
}

// New 创建会话。ordered为true时丢弃过期的响应。
func New(id string, ordered bool) *Session {
	return &Session{
		ID:       id,
		Features: features.NewStore(),
		Result:   NewPresenter(),
		ordered:  ordered,
	}
}

// Submit 编码当前输入并发起预测，结果写入展示器后返回。
// 载荷在请求前按值捕获，之后的输入修改不影响本次请求。
func (s *Session) Submit(ctx context.Context, p ml.Predictor) ml.Outcome {
	seq := s.seq.Add(1)
	payload := features.Encode(s.Features.Snapshot())

	outcome := p.Predict(ctx, payload)

	if s.ordered {
		s.Result.UpdateIfNewer(seq, outcome)
	} else {
		s.Result.Update(outcome)
	}
	return outcome
}
