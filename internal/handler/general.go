package handler

import (
	"context"

	"NetBank-Chain/internal/router"
)

// General 处理问候与能力咨询类请求，不接触任何数据视图。
type General struct{}

// NewGeneral 构造通用域处理器。
func NewGeneral() *General {
	return &General{}
}

// Handle 实现 router.Handler。
func (g *General) Handle(_ context.Context, _ router.Request) (router.Result, error) {
	return router.Result{
		Domain: router.DomainGeneral,
		Summary: "您好，我是网银助手。可以为您查询账户余额与流水、信用卡账单、" +
			"投资持仓，汇总资金状况，提供理财参考，以及办理向已有收款人的转账。",
	}, nil
}

var _ router.Handler = (*General)(nil)
