package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	xerrors "NetBank-Chain/internal/errors"
)

// 转账暂存状态的默认闲置过期时间。
const defaultScratchTTL = 15 * time.Minute

// MemoryStore 以内存方式保存会话状态，适用于单实例部署与测试。
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	scratchTTL time.Duration
	now        func() time.Time
}

// MemoryStoreOption 定义可选配置。
type MemoryStoreOption func(*MemoryStore)

// WithScratchTTL 设置转账暂存状态的闲置过期时间。
func WithScratchTTL(ttl time.Duration) MemoryStoreOption {
	return func(m *MemoryStore) {
		if ttl > 0 {
			m.scratchTTL = ttl
		}
	}
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	m := &MemoryStore{
		sessions:   make(map[string]*Session),
		scratchTTL: defaultScratchTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().Unix()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[sess.ID] = sess
	return cloneSession(sess), nil
}

// Get 返回会话快照。转账暂存状态超过闲置期时被丢弃，
// 会话本身不受影响。
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.expireScratch(sess)
	return cloneSession(sess), nil
}

// Put 写回会话状态。
func (m *MemoryStore) Put(_ context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "会话不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.ID]; !ok {
		return ErrSessionNotFound
	}
	stored := cloneSession(sess)
	stored.UpdatedAt = m.now().Unix()
	m.sessions[sess.ID] = stored
	return nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) expireScratch(sess *Session) {
	if sess.State.Transfer == nil || m.scratchTTL <= 0 {
		return
	}
	idle := m.now().Unix() - sess.State.Transfer.UpdatedAt
	if idle > int64(m.scratchTTL/time.Second) {
		sess.State.Transfer = nil
	}
}

// 编译期接口断言。
var _ Store = (*MemoryStore)(nil)
