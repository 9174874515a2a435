package intent

import (
	"context"
	"strings"

	"NetBank-Chain/internal/router"
	"NetBank-Chain/internal/session"
)

// Resolution 是一次意图解析的结果。Confidence 在 [0,1] 区间；
// 低于规则集阈值的输入落到 out_of_scope。
type Resolution struct {
	Domain     router.Domain
	Parameters map[string]string
	Confidence float64
}

// Resolver 把用户输入解析为业务域。生产环境注入外部实现；
// 内置的规则实现保证核心流程可独立运行与测试。
type Resolver interface {
	Resolve(ctx context.Context, state *session.State, input string) (Resolution, error)
}

// RuleResolver 基于关键词规则打分的解析器。
type RuleResolver struct {
	set *RuleSet
}

// NewRuleResolver 构造规则解析器。set 为 nil 时使用内置规则。
func NewRuleResolver(set *RuleSet) *RuleResolver {
	if set == nil {
		set = DefaultRules()
	}
	return &RuleResolver{set: set}
}

// Resolve 实现 Resolver 接口。会话中有未完成的转账时直接落到转账域，
// 让状态机先把挂起的流程收尾。
func (r *RuleResolver) Resolve(_ context.Context, state *session.State, input string) (Resolution, error) {
	if state != nil && state.Transfer != nil {
		return Resolution{Domain: router.DomainTransfer, Confidence: 1, Parameters: map[string]string{}}, nil
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Resolution{Domain: router.DomainOutOfScope, Parameters: map[string]string{}}, nil
	}

	bestDomain := router.DomainOutOfScope
	bestScore := 0
	for _, rule := range r.set.Rules {
		score := 0
		for _, phrase := range rule.Phrases {
			if strings.Contains(normalized, strings.ToLower(phrase)) {
				score += 2 * rule.Weight
			}
		}
		for _, keyword := range rule.Keywords {
			if containsToken(normalized, strings.ToLower(keyword)) {
				score += rule.Weight
			}
		}
		if score > bestScore {
			bestScore = score
			bestDomain = router.Domain(rule.Domain)
		}
	}

	confidence := float64(bestScore) / float64(bestScore+2)
	if bestScore == 0 || confidence < r.set.ConfidenceFloor {
		return Resolution{Domain: router.DomainOutOfScope, Parameters: map[string]string{}}, nil
	}
	return Resolution{
		Domain:     bestDomain,
		Confidence: confidence,
		Parameters: map[string]string{},
	}, nil
}

// containsToken 对拉丁词做整词匹配，对 CJK 词做包含匹配。
func containsToken(haystack, token string) bool {
	if token == "" {
		return false
	}
	if token[0] >= 0x80 {
		return strings.Contains(haystack, token)
	}
	start := 0
	for {
		idx := strings.Index(haystack[start:], token)
		if idx < 0 {
			return false
		}
		abs := start + idx
		before := abs == 0 || !isWordByte(haystack[abs-1])
		afterIdx := abs + len(token)
		after := afterIdx >= len(haystack) || !isWordByte(haystack[afterIdx])
		if before && after {
			return true
		}
		start = abs + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

var _ Resolver = (*RuleResolver)(nil)
