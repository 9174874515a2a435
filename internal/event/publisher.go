package event

import (
	"context"

	xerrors "NetBank-Chain/internal/errors"
)

// TransferEvent 是一笔已提交转账的对外通知载荷。
// 事件发布失败不回滚转账本身，只记录告警。
type TransferEvent struct {
	TransferID     string  `json:"transfer_id"`
	UserID         string  `json:"user_id"`
	AccountID      string  `json:"account_id"`
	PayeeID        string  `json:"payee_id"`
	PayeeName      string  `json:"payee_name"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	RunningBalance float64 `json:"running_balance"`
	CommittedAt    int64   `json:"committed_at"`
}

// Publisher 发布转账事件。
type Publisher interface {
	Publish(ctx context.Context, evt TransferEvent) error
	Close() error
}

// MemoryPublisher 把事件缓存在内存通道中，供测试与单机运行使用。
type MemoryPublisher struct {
	events chan TransferEvent
}

// NewMemoryPublisher 创建内存事件发布器。
func NewMemoryPublisher(buffer int) *MemoryPublisher {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryPublisher{events: make(chan TransferEvent, buffer)}
}

// Publish 实现 Publisher 接口。缓冲写满视为发布失败。
func (m *MemoryPublisher) Publish(_ context.Context, evt TransferEvent) error {
	select {
	case m.events <- evt:
		return nil
	default:
		return xerrors.New(xerrors.CodePublishFailure, "事件缓冲已满")
	}
}

// Events 暴露事件通道，供消费方或测试读取。
func (m *MemoryPublisher) Events() <-chan TransferEvent {
	return m.events
}

// Close 实现 Publisher 接口。
func (m *MemoryPublisher) Close() error {
	return nil
}

var _ Publisher = (*MemoryPublisher)(nil)
