package handler

import (
	"context"
	"strings"

	"NetBank-Chain/internal/router"
)

// Advisor 基于此前步骤汇集的余额与持仓事实给出只读的建议性总结。
// 它不查询数据层，只消费计划上下文，也从不发起任何写操作。
type Advisor struct{}

// NewAdvisor 构造顾问域处理器。
func NewAdvisor() *Advisor {
	return &Advisor{}
}

// Handle 实现 router.Handler。
func (a *Advisor) Handle(_ context.Context, req router.Request) (router.Result, error) {
	if len(req.Context) == 0 {
		return router.Result{
			Domain:  router.DomainAdvisor,
			Summary: "暂无可用于分析的账户与持仓数据，请先查询余额或持仓。",
		}, nil
	}

	var sb strings.Builder
	sb.WriteString("基于以下情况：\n")
	for _, fact := range req.Context {
		sb.WriteString(fact)
		sb.WriteString("\n")
	}
	sb.WriteString("建议：保持至少三至六个月开销的应急资金在活期账户中；")
	sb.WriteString("结余部分可考虑分散配置。具体投资决策请咨询持牌理财顾问。")

	return router.Result{
		Domain:  router.DomainAdvisor,
		Summary: sb.String(),
	}, nil
}

var _ router.Handler = (*Advisor)(nil)
