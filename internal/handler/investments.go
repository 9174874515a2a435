package handler

import (
	"context"
	"fmt"
	"strings"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/repository"
	"NetBank-Chain/internal/router"
)

// Investments 处理投资持仓类请求。
type Investments struct {
	reader InvestmentsReader
}

// NewInvestments 构造投资域处理器。
func NewInvestments(reader InvestmentsReader) *Investments {
	return &Investments{reader: reader}
}

// Handle 实现 router.Handler。
func (i *Investments) Handle(ctx context.Context, req router.Request) (router.Result, error) {
	holdings, err := i.reader.ListHoldings(ctx, req.UserID)
	if err != nil {
		return router.Result{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取持仓失败")
	}
	if len(holdings) == 0 {
		return router.Result{
			Domain:  router.DomainInvestments,
			Summary: "您名下暂无投资持仓。",
		}, nil
	}

	var stockTotal, fundTotal float64
	var sb strings.Builder
	sb.WriteString("您的投资持仓：\n")
	for _, h := range holdings {
		value := h.MarketValue()
		switch h.Kind {
		case repository.HoldingKindStock:
			stockTotal += value
		case repository.HoldingKindMutualFund:
			fundTotal += value
		}
		sb.WriteString(fmt.Sprintf("- %s（%s）%.2f 份，市值 %.2f %s\n",
			h.Name, h.Symbol, h.Units, value, h.Currency))
	}
	sb.WriteString(fmt.Sprintf("股票市值合计 %.2f，基金市值合计 %.2f", stockTotal, fundTotal))

	return router.Result{
		Domain:  router.DomainInvestments,
		Summary: strings.TrimRight(sb.String(), "\n"),
	}, nil
}

var _ router.Handler = (*Investments)(nil)
