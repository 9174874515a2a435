package handler

import (
	"context"

	"NetBank-Chain/internal/repository"
)

// 每个业务域只拿到自己需要的只读数据视图，处理器无法越界读取。

// BankingReader 是银行域的只读数据视图。
type BankingReader interface {
	ListAccounts(ctx context.Context, userID string) ([]repository.Account, error)
	ListTransactions(ctx context.Context, userID, accountID string) ([]repository.TransactionRecord, error)
}

// CardsReader 是卡片域的只读数据视图。
type CardsReader interface {
	ListCards(ctx context.Context, userID string) ([]repository.Card, error)
}

// InvestmentsReader 是投资域的只读数据视图。
type InvestmentsReader interface {
	ListHoldings(ctx context.Context, userID string) ([]repository.Holding, error)
}
