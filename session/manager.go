package session

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Manager 内存中的会话集合，超出容量时淘汰最久未使用的会话
type Manager struct {
	cache   *lru.Cache[string, *Session]
	ordered bool
	onNew   func(*Session)
	logger  *zap.Logger
}

// ManagerConfig 会话管理配置
type ManagerConfig struct {
	MaxSessions    int
	OrderedResults bool
	// OnNew 在新会话创建后调用
	OnNew  func(*Session)
	Logger *zap.Logger
}

// NewManager 创建会话管理器
func NewManager(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		ordered: cfg.OrderedResults,
		onNew:   cfg.OnNew,
		logger:  logger,
	}
	cache, err := lru.NewWithEvict[string, *Session](cfg.MaxSessions, func(id string, _ *Session) {
		m.logger.Debug("session evicted", zap.String("session", id))
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// Get 查找会话
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	return m.cache.Get(id)
}

// Create 创建新会话
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.ordered)
	if m.onNew != nil {
		m.onNew(s)
	}
	m.cache.Add(s.ID, s)
	m.logger.Debug("session created", zap.String("session", s.ID))
	return s
}

// GetOrCreate 查找会话，不存在时创建新会话
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	if s, ok := m.Get(id); ok {
		return s, false
	}
	return m.Create(), true
}

// Len 当前会话数
func (m *Manager) Len() int {
	return m.cache.Len()
}
