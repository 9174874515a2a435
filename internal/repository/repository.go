package repository

import (
	"context"

	xerrors "NetBank-Chain/internal/errors"
)

// Repository 抽象了按用户维度组织的银行数据访问接口。
// 核心层只依赖该接口，不关心数据落在 JSON 文件还是 MySQL。
type Repository interface {
	// UserExists 判断用户目录（或用户记录）是否存在。
	UserExists(ctx context.Context, userID string) (bool, error)
	ListAccounts(ctx context.Context, userID string) ([]Account, error)
	GetAccount(ctx context.Context, userID, accountID string) (*Account, error)
	ListPayees(ctx context.Context, userID string) ([]Payee, error)
	ListTransactions(ctx context.Context, userID, accountID string) ([]TransactionRecord, error)
	AppendTransaction(ctx context.Context, userID, accountID string, record TransactionRecord) error
	UpdateAccount(ctx context.Context, userID string, account Account) error
	ListCards(ctx context.Context, userID string) ([]Card, error)
	ListHoldings(ctx context.Context, userID string) ([]Holding, error)
	Close() error
}

// CommitRequest 描述一次转账提交所需的全部输入。
type CommitRequest struct {
	TransferID string
	AccountID  string
	PayeeID    string
	PayeeName  string
	Amount     float64
	Currency   string
	Reference  string
}

// CommitResult 返回提交成功后的流水记录与更新后的账户。
type CommitResult struct {
	Record  TransactionRecord
	Account Account
}

// Ledger 是转账提交的唯一写入口。实现必须保证：
//   - 同一账户的提交串行执行；
//   - 校验在持有账户写锁的前提下基于最新数据完成；
//   - 流水写入与余额更新是一个逻辑提交，不允许只成功一半。
type Ledger interface {
	CommitTransfer(ctx context.Context, userID string, req CommitRequest) (*CommitResult, error)
}

var (
	// ErrUserNotFound 表示用户目录不存在。
	ErrUserNotFound = xerrors.New(CodeUserNotFound, "用户不存在")
	// ErrAccountsNotFound 表示用户缺少账户清单。
	ErrAccountsNotFound = xerrors.New(CodeAccountsNotFound, "账户清单不存在")
	// ErrAccountNotFound 表示指定账户不在用户名下。
	ErrAccountNotFound = xerrors.New(CodeAccountNotFound, "账户不存在")
	// ErrInvalidAmount 表示转账金额非法。
	ErrInvalidAmount = xerrors.New(CodeInvalidAmount, "转账金额必须大于零")
	// ErrCurrencyMismatch 表示请求币种与账户币种不一致。
	ErrCurrencyMismatch = xerrors.New(CodeCurrencyMismatch, "币种不匹配")
	// ErrInsufficientFunds 表示可用余额不足。
	ErrInsufficientFunds = xerrors.New(CodeInsufficientFunds, "可用余额不足")
)

const (
	CodeUserNotFound      xerrors.Code = "USER_NOT_FOUND"
	CodeAccountsNotFound  xerrors.Code = "ACCOUNTS_NOT_FOUND"
	CodeAccountNotFound   xerrors.Code = "ACCOUNT_NOT_FOUND"
	CodeInvalidAmount     xerrors.Code = "INVALID_AMOUNT"
	CodeCurrencyMismatch  xerrors.Code = "CURRENCY_MISMATCH"
	CodeInsufficientFunds xerrors.Code = "INSUFFICIENT_FUNDS"
)

func init() {
	xerrors.Register(CodeUserNotFound, xerrors.Attributes{
		Message:   "user not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAccountsNotFound, xerrors.Attributes{
		Message:   "accounts listing not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAccountNotFound, xerrors.Attributes{
		Message:   "account not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInvalidAmount, xerrors.Attributes{
		Message:   "transfer amount must be positive",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeCurrencyMismatch, xerrors.Attributes{
		Message:   "requested currency differs from account currency",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInsufficientFunds, xerrors.Attributes{
		Message:   "insufficient available balance",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}
