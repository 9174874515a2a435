package intent

import (
	"context"

	"NetBank-Chain/internal/plan"
	"NetBank-Chain/internal/router"
	"NetBank-Chain/internal/session"
)

// Planner 把一次用户输入变成有序执行计划。生产环境注入外部实现。
type Planner interface {
	BuildPlan(ctx context.Context, state *session.State, input string) (*plan.Plan, error)
}

// RulePlanner 基于规则解析结果产出计划：
// 超范围输入产出空计划（明确拒绝），顾问类请求产出多步计划，其余单步。
type RulePlanner struct {
	resolver Resolver
}

// NewRulePlanner 构造规则规划器。
func NewRulePlanner(resolver Resolver) *RulePlanner {
	if resolver == nil {
		resolver = NewRuleResolver(nil)
	}
	return &RulePlanner{resolver: resolver}
}

// BuildPlan 实现 Planner 接口。
func (p *RulePlanner) BuildPlan(ctx context.Context, state *session.State, input string) (*plan.Plan, error) {
	resolution, err := p.resolver.Resolve(ctx, state, input)
	if err != nil {
		return nil, err
	}

	switch resolution.Domain {
	case router.DomainOutOfScope:
		// 空步骤列表是明确的拒绝信号。
		return &plan.Plan{UserQuery: input, Steps: []plan.Step{}}, nil
	case router.DomainAdvisor:
		// 顾问结论依赖余额与持仓两路事实，拆成先取数后综合的多步计划。
		return &plan.Plan{
			UserQuery: input,
			Steps: []plan.Step{
				{Step: 1, Description: "汇总账户余额", Query: input, Target: string(router.DomainBanking)},
				{Step: 2, Description: "汇总投资持仓", Query: input, Target: string(router.DomainInvestments)},
				{Step: 3, Description: "综合给出理财意见", Query: input, Target: string(router.DomainAdvisor)},
			},
		}, nil
	default:
		return &plan.Plan{
			UserQuery: input,
			Steps: []plan.Step{
				{Step: 1, Description: "处理用户请求", Query: input, Target: string(resolution.Domain)},
			},
		}, nil
	}
}

var _ Planner = (*RulePlanner)(nil)
