package handler

import (
	"context"
	"strings"

	"NetBank-Chain/internal/router"
)

// Money 是跨域聚合处理器。它只组合其他业务域处理器的公开结果，
// 不直接接触任何数据视图，保证各域的读取边界不被绕过。
type Money struct {
	banking     router.Handler
	cards       router.Handler
	investments router.Handler
}

// NewMoney 构造跨域聚合处理器。
func NewMoney(banking, cards, investments router.Handler) *Money {
	return &Money{banking: banking, cards: cards, investments: investments}
}

// Handle 实现 router.Handler。
func (m *Money) Handle(ctx context.Context, req router.Request) (router.Result, error) {
	sections := make([]string, 0, 3)
	for _, sub := range []router.Handler{m.banking, m.cards, m.investments} {
		if sub == nil {
			continue
		}
		result, err := sub.Handle(ctx, req)
		if err != nil {
			return router.Result{}, err
		}
		if result.OutOfScope || strings.TrimSpace(result.Summary) == "" {
			continue
		}
		sections = append(sections, result.Summary)
	}

	return router.Result{
		Domain:  router.DomainMoney,
		Summary: "资金总览：\n" + strings.Join(sections, "\n"),
	}, nil
}

var _ router.Handler = (*Money)(nil)
