package handler

import (
	"context"
	"fmt"
	"strings"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/router"
)

// Cards 处理信用卡相关请求。
type Cards struct {
	reader CardsReader
}

// NewCards 构造卡片域处理器。
func NewCards(reader CardsReader) *Cards {
	return &Cards{reader: reader}
}

// Handle 实现 router.Handler。
func (c *Cards) Handle(ctx context.Context, req router.Request) (router.Result, error) {
	cards, err := c.reader.ListCards(ctx, req.UserID)
	if err != nil {
		return router.Result{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取卡片失败")
	}
	if len(cards) == 0 {
		return router.Result{
			Domain:  router.DomainCards,
			Summary: "您名下暂无信用卡。",
		}, nil
	}

	var sb strings.Builder
	sb.WriteString("您名下的信用卡：\n")
	for _, card := range cards {
		sb.WriteString(fmt.Sprintf("- %s 尾号 %s：已用 %.2f / 额度 %.2f",
			card.Network, card.Last4, card.Outstanding, card.CreditLimit))
		if card.DueDate != "" {
			sb.WriteString(fmt.Sprintf("，还款日 %s", card.DueDate))
		}
		sb.WriteString("\n")
	}
	return router.Result{
		Domain:  router.DomainCards,
		Summary: strings.TrimRight(sb.String(), "\n"),
	}, nil
}

var _ router.Handler = (*Cards)(nil)
