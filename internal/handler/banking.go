package handler

import (
	"context"
	"fmt"
	"strings"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/router"
)

// 每个账户最多展示的近期流水条数。
const recentTransactionLimit = 5

// Banking 处理账户余额与流水类请求。
type Banking struct {
	reader BankingReader
}

// NewBanking 构造银行域处理器。
func NewBanking(reader BankingReader) *Banking {
	return &Banking{reader: reader}
}

// Handle 实现 router.Handler。
func (b *Banking) Handle(ctx context.Context, req router.Request) (router.Result, error) {
	accounts, err := b.reader.ListAccounts(ctx, req.UserID)
	if err != nil {
		return router.Result{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取账户失败")
	}

	var sb strings.Builder
	sb.WriteString("您名下的账户：\n")
	for _, acct := range accounts {
		label := acct.AccountID
		if acct.Nickname != "" {
			label = fmt.Sprintf("%s（%s）", acct.AccountID, acct.Nickname)
		}
		sb.WriteString(fmt.Sprintf("- %s [%s] 可用余额 %.2f %s\n",
			label, acct.Type, acct.Spendable(), acct.Currency))
	}

	if wantsTransactions(req.Query) {
		for _, acct := range accounts {
			records, err := b.reader.ListTransactions(ctx, req.UserID, acct.AccountID)
			if err != nil {
				return router.Result{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取流水失败")
			}
			if len(records) == 0 {
				continue
			}
			if len(records) > recentTransactionLimit {
				records = records[:recentTransactionLimit]
			}
			sb.WriteString(fmt.Sprintf("%s 最近交易：\n", acct.AccountID))
			for _, rec := range records {
				sb.WriteString(fmt.Sprintf("  %s %s %.2f %s（%s）\n",
					rec.Date, rec.Description, rec.Amount, rec.Currency, rec.Status))
			}
		}
	}

	return router.Result{
		Domain:  router.DomainBanking,
		Summary: strings.TrimRight(sb.String(), "\n"),
	}, nil
}

func wantsTransactions(query string) bool {
	q := strings.ToLower(query)
	for _, marker := range []string{"transaction", "statement", "history", "recent", "流水", "交易", "明细"} {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

var _ router.Handler = (*Banking)(nil)
