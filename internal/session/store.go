package session

import (
	"context"

	xerrors "NetBank-Chain/internal/errors"
)

// Store 抽象了会话状态的持久化接口。同一会话内的轮次严格串行，
// 实现只需保证写后读一致，不要求跨会话共享。
type Store interface {
	// Create 创建一个空状态的新会话。
	Create(ctx context.Context) (*Session, error)
	// Get 返回会话的当前快照。
	Get(ctx context.Context, id string) (*Session, error)
	// Put 写回整个会话状态。
	Put(ctx context.Context, sess *Session) error
	Close() error
}

var (
	// ErrSessionNotFound 表示指定的会话不存在。
	ErrSessionNotFound = xerrors.New(CodeSessionNotFound, "会话不存在")
)

const (
	CodeSessionNotFound xerrors.Code = "SESSION_NOT_FOUND"
)

func init() {
	xerrors.Register(CodeSessionNotFound, xerrors.Attributes{
		Message:   "session not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}
