package identity

import (
	"context"
	stdErrors "errors"
	"regexp"
	"strings"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/repository"
)

// 用户标识：3-32 位，字母或数字开头，之后允许 . _ - 。
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{2,31}$`)

// Reason 标识一次身份校验被拒绝的具体原因。
type Reason string

const (
	ReasonMissing          Reason = "MISSING"
	ReasonInvalidFormat    Reason = "INVALID_FORMAT"
	ReasonUserNotFound     Reason = "USER_NOT_FOUND"
	ReasonAccountsNotFound Reason = "ACCOUNTS_NOT_FOUND"
)

// Outcome 是身份闸门对一次请求的裁决。
// Confirmed 为 true 时 UserID 为已验证的规范化标识；
// 否则 Reason 与 Prompt 说明下一步要向用户要什么。
type Outcome struct {
	Confirmed bool
	UserID    string
	Reason    Reason
	Prompt    string
}

// Gate 在任何领域动作之前验证用户身份。
// 验证分两层：标识格式合法，且在数据层真实存在并开有账户。
type Gate struct {
	repo repository.Repository
}

// NewGate 构造身份闸门。
func NewGate(repo repository.Repository) *Gate {
	return &Gate{repo: repo}
}

// Verify 校验 claimed 标识。空标识与非法格式直接拒绝，不触发数据层查询。
func (g *Gate) Verify(ctx context.Context, claimed string) (Outcome, error) {
	trimmed := strings.TrimSpace(claimed)
	if trimmed == "" {
		return Outcome{
			Reason: ReasonMissing,
			Prompt: "请先提供您的用户标识，再继续办理业务。",
		}, nil
	}
	if !userIDPattern.MatchString(trimmed) {
		return Outcome{
			Reason: ReasonInvalidFormat,
			Prompt: "用户标识格式不正确：需 3-32 位，以字母或数字开头，可包含 . _ - 。请重新输入。",
		}, nil
	}

	exists, err := g.repo.UserExists(ctx, trimmed)
	if err != nil {
		return Outcome{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "身份校验查询失败")
	}
	if !exists {
		return Outcome{
			Reason: ReasonUserNotFound,
			Prompt: "未找到该用户，请确认标识是否正确。",
		}, nil
	}

	accounts, err := g.repo.ListAccounts(ctx, trimmed)
	if err != nil {
		if stdErrors.Is(err, repository.ErrUserNotFound) {
			return Outcome{
				Reason: ReasonUserNotFound,
				Prompt: "未找到该用户，请确认标识是否正确。",
			}, nil
		}
		if stdErrors.Is(err, repository.ErrAccountsNotFound) {
			return Outcome{
				Reason: ReasonAccountsNotFound,
				Prompt: "该用户名下没有可用账户，无法继续办理业务。",
			}, nil
		}
		return Outcome{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "身份校验查询失败")
	}
	if len(accounts) == 0 {
		return Outcome{
			Reason: ReasonAccountsNotFound,
			Prompt: "该用户名下没有可用账户，无法继续办理业务。",
		}, nil
	}

	return Outcome{Confirmed: true, UserID: trimmed}, nil
}

// ValidFormat 仅做格式校验，不触发数据层。
func ValidFormat(claimed string) bool {
	return userIDPattern.MatchString(strings.TrimSpace(claimed))
}
