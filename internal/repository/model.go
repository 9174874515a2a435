package repository

import "strings"

// 账户类型常量。循环授信类账户只维护可用余额，不动账面余额。
const (
	AccountTypeSavings    = "SAVINGS"
	AccountTypeChecking   = "CHECKING"
	AccountTypeCreditCard = "CREDIT_CARD"
)

// Account 描述用户名下的一个账户，是转账流程中唯一可变的台账行。
type Account struct {
	AccountID        string   `json:"account_id"`
	Type             string   `json:"type"`
	Nickname         string   `json:"nickname,omitempty"`
	Currency         string   `json:"currency"`
	Balance          float64  `json:"balance"`
	AvailableBalance *float64 `json:"available_balance,omitempty"`
	LastUpdated      string   `json:"last_updated,omitempty"`
}

// Spendable 返回账户的可支配余额。available_balance 缺失时回退到账面余额。
func (a *Account) Spendable() float64 {
	if a == nil {
		return 0
	}
	if a.AvailableBalance != nil {
		return *a.AvailableBalance
	}
	return a.Balance
}

// IsRevolving 判断账户是否为循环授信类账户（例如信用卡）。
func (a *Account) IsRevolving() bool {
	return a != nil && a.Type == AccountTypeCreditCard
}

// Payee 描述一个收款人。对转账流程而言收款人是只读的查询对象。
type Payee struct {
	PayeeID string   `json:"payee_id"`
	Name    string   `json:"name"`
	Alias   []string `json:"alias,omitempty"`
}

// Matches 判断收款人的名称或别名是否包含给定关键字（大小写不敏感的子串匹配）。
func (p *Payee) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	if strings.Contains(strings.ToLower(p.Name), q) {
		return true
	}
	for _, alias := range p.Alias {
		if strings.Contains(strings.ToLower(alias), q) {
			return true
		}
	}
	return false
}

// 交易记录的固定字段取值。
const (
	TransactionStatusPosted = "POSTED"
	TransactionMethodNEFT   = "NEFT"
	TransactionCategoryXfer = "Transfer"
)

// TransactionRecord 描述一条账户流水。按约定流水列表以最新记录在前的顺序保存，
// 金额带符号，负数表示借记；running_balance 等于该记录生效后的可用余额。
type TransactionRecord struct {
	ID             string  `json:"id"`
	Date           string  `json:"date"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Method         string  `json:"method"`
	Status         string  `json:"status"`
	RunningBalance float64 `json:"running_balance"`
	Counterparty   string  `json:"counterparty"`
}

// Card 描述一张与用户关联的信用卡，仅供卡片域处理器读取。
type Card struct {
	CardID      string  `json:"card_id"`
	Network     string  `json:"network"`
	Last4       string  `json:"last4"`
	CreditLimit float64 `json:"credit_limit"`
	Outstanding float64 `json:"outstanding"`
	DueDate     string  `json:"due_date,omitempty"`
}

// 持仓类型常量。
const (
	HoldingKindStock      = "STOCK"
	HoldingKindMutualFund = "MUTUAL_FUND"
)

// Holding 描述一条投资持仓（股票或基金），仅供投资域处理器读取。
type Holding struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Units     float64 `json:"units"`
	AvgCost   float64 `json:"avg_cost"`
	LastPrice float64 `json:"last_price"`
	Currency  string  `json:"currency"`
}

// MarketValue 返回该持仓按最新价格计算的市值。
func (h *Holding) MarketValue() float64 {
	if h == nil {
		return 0
	}
	return h.Units * h.LastPrice
}
