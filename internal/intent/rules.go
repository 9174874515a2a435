package intent

import (
	"os"

	"gopkg.in/yaml.v3"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/router"
)

// Rule 把关键词与短语映射到一个业务域。短语命中的权重高于单个关键词。
type Rule struct {
	Domain   string   `yaml:"domain"`
	Keywords []string `yaml:"keywords"`
	Phrases  []string `yaml:"phrases"`
	Weight   int      `yaml:"weight"`
}

// RuleSet 是规则解析器的全部配置。
type RuleSet struct {
	ConfidenceFloor float64 `yaml:"confidence_floor"`
	Rules           []Rule  `yaml:"rules"`
}

// LoadRules 从 YAML 文件加载规则集。
func LoadRules(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "读取意图规则文件失败")
	}
	var set RuleSet
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "解析意图规则文件失败")
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	set.applyDefaults()
	return &set, nil
}

func (s *RuleSet) validate() error {
	if len(s.Rules) == 0 {
		return xerrors.New(xerrors.CodeInitializationFailure, "意图规则集为空")
	}
	for _, rule := range s.Rules {
		if rule.Domain == "" {
			return xerrors.New(xerrors.CodeInitializationFailure, "意图规则缺少 domain")
		}
		if len(rule.Keywords) == 0 && len(rule.Phrases) == 0 {
			return xerrors.New(xerrors.CodeInitializationFailure,
				"意图规则缺少关键词: "+rule.Domain)
		}
	}
	return nil
}

func (s *RuleSet) applyDefaults() {
	if s.ConfidenceFloor <= 0 {
		s.ConfidenceFloor = 0.2
	}
	for i := range s.Rules {
		if s.Rules[i].Weight <= 0 {
			s.Rules[i].Weight = 1
		}
	}
}

// DefaultRules 返回内置规则集，规则文件缺失时使用。
func DefaultRules() *RuleSet {
	set := &RuleSet{
		ConfidenceFloor: 0.2,
		Rules: []Rule{
			{
				Domain:   string(router.DomainTransfer),
				Keywords: []string{"transfer", "send", "pay", "neft", "转账", "汇款", "付款"},
				Phrases:  []string{"send money", "make a transfer", "pay my", "转一笔钱"},
				Weight:   2,
			},
			{
				Domain:   string(router.DomainBanking),
				Keywords: []string{"balance", "account", "accounts", "transactions", "statement", "deposit", "余额", "账户", "流水"},
				Phrases:  []string{"how much money", "recent transactions", "查下余额"},
			},
			{
				Domain:   string(router.DomainCards),
				Keywords: []string{"card", "cards", "credit", "debit", "信用卡", "卡片"},
				Phrases:  []string{"credit card bill", "card spend", "信用卡账单"},
			},
			{
				Domain:   string(router.DomainInvestments),
				Keywords: []string{"investment", "investments", "stocks", "shares", "mutual", "fund", "portfolio", "持仓", "基金", "股票"},
				Phrases:  []string{"mutual funds", "my portfolio", "我的持仓"},
			},
			{
				Domain:   string(router.DomainMoney),
				Keywords: []string{"spend", "spending", "networth", "开销", "净资产"},
				Phrases:  []string{"net worth", "where did my money go", "total money", "我的钱都去哪了"},
				Weight:   2,
			},
			{
				Domain:   string(router.DomainAdvisor),
				Keywords: []string{"advice", "advise", "advisor", "recommend", "建议", "理财"},
				Phrases:  []string{"should i invest", "financial advice", "理财建议"},
				Weight:   2,
			},
			{
				Domain:   string(router.DomainGeneral),
				Keywords: []string{"hello", "hi", "help", "thanks", "你好", "帮助"},
				Phrases:  []string{"what can you do", "你能做什么"},
			},
		},
	}
	set.applyDefaults()
	return set
}
