package orchestrator

import (
	"NetBank-Chain/internal/handler"
	"NetBank-Chain/internal/repository"
	"NetBank-Chain/internal/router"
)

// NewDefaultRouter 注册全部内置业务域处理器并返回路由表。
// 各垂直域拿到的是仓库接口的收窄视图；money 域只组合其余处理器的公开结果。
func NewDefaultRouter(repo repository.Repository) (*router.Router, error) {
	banking := handler.NewBanking(repo)
	cards := handler.NewCards(repo)
	investments := handler.NewInvestments(repo)

	r := router.New()
	registrations := []struct {
		domain router.Domain
		h      router.Handler
	}{
		{router.DomainBanking, banking},
		{router.DomainCards, cards},
		{router.DomainInvestments, investments},
		{router.DomainMoney, handler.NewMoney(banking, cards, investments)},
		{router.DomainAdvisor, handler.NewAdvisor()},
		{router.DomainGeneral, handler.NewGeneral()},
	}
	for _, reg := range registrations {
		if err := r.Register(reg.domain, reg.h); err != nil {
			return nil, err
		}
	}
	return r, nil
}
