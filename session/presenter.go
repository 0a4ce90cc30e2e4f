package session

import (
	"sync"

	"matclass/ml"
)

// Presenter 保存最近一次预测结果
type Presenter struct {
	// applyMu 串行化“写入+通知”，保证回调顺序与写入顺序一致
	applyMu  sync.Mutex
	mu       sync.RWMutex
	current  ml.Outcome
	lastSeq  uint64
	observer func(ml.Outcome)
}

// NewPresenter 创建初始为Empty的展示器
func NewPresenter() *Presenter {
	return &Presenter{current: ml.Empty()}
}

// OnUpdate 注册结果变更回调。回调在写入锁内执行，不得回调Update。
func (p *Presenter) OnUpdate(fn func(ml.Outcome)) {
	p.mu.Lock()
	p.observer = fn
	p.mu.Unlock()
}

// Update 无条件覆盖当前结果
func (p *Presenter) Update(outcome ml.Outcome) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.notify(p.apply(outcome))
}

// UpdateIfNewer 仅当seq不早于已应用的序号时覆盖，返回是否生效
func (p *Presenter) UpdateIfNewer(seq uint64, outcome ml.Outcome) bool {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if seq < p.lastSeq {
		p.mu.Unlock()
		return false
	}
	p.lastSeq = seq
	p.mu.Unlock()

	p.notify(p.apply(outcome))
	return true
}

func (p *Presenter) apply(outcome ml.Outcome) (ml.Outcome, func(ml.Outcome)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = outcome
	return outcome, p.observer
}

func (p *Presenter) notify(outcome ml.Outcome, fn func(ml.Outcome)) {
	if fn != nil {
		fn(outcome)
	}
}

// Current 返回当前结果
func (p *Presenter) Current() ml.Outcome {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}
