package session

import (
	"time"

	"NetBank-Chain/internal/plan"
)

// State 是一次会话的全部可变状态。早期实现使用自由键值字典，
// 这里收敛为带显式字段的结构体；布尔确认项使用指针以区分
// “未设置”与“明确为否”。
type State struct {
	// UserID 是用户声明的身份标识，未提供时为空串。
	UserID string `json:"user_id,omitempty"`
	// IdentityConfirmed 表示身份门控是否已放行该会话。
	IdentityConfirmed bool `json:"is_identity_confirmed"`
	// ActivePlan 是规划阶段写入、执行阶段消费的当前计划。
	// nil 表示尚无计划；空步骤列表表示明确的拒绝。
	ActivePlan *plan.Plan `json:"active_plan,omitempty"`
	// Transfer 保存转账流程的中间状态，流程结束或超时后清空。
	Transfer *TransferScratch `json:"transfer,omitempty"`
	// Preferences 保存自由格式的用户偏好。
	Preferences map[string]string `json:"preferences,omitempty"`
}

// TransferScratch 是转账流程跨轮次暂存的全部字段。
type TransferScratch struct {
	Stage            string   `json:"stage"`
	PayeeQuery       string   `json:"payee_query,omitempty"`
	PayeeID          string   `json:"payee_id,omitempty"`
	PayeeName        string   `json:"payee_name,omitempty"`
	PayeeConfirmed   *bool    `json:"payee_confirmed,omitempty"`
	AccountID        string   `json:"account_id,omitempty"`
	AccountConfirmed *bool    `json:"account_confirmed,omitempty"`
	Amount           float64  `json:"amount,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	Reference        string   `json:"reference,omitempty"`
	Confirmed        *bool    `json:"confirmed,omitempty"`
	UpdatedAt        int64    `json:"updated_at"`
}

// Touch 更新暂存状态的活跃时间。
func (t *TransferScratch) Touch() {
	if t != nil {
		t.UpdatedAt = time.Now().Unix()
	}
}

// Session 将状态与会话标识、生命周期时间戳绑定在一起。
type Session struct {
	ID        string `json:"id"`
	State     State  `json:"state"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// SetPreference 写入一项用户偏好。
func (s *State) SetPreference(key, value string) {
	if s.Preferences == nil {
		s.Preferences = make(map[string]string)
	}
	s.Preferences[key] = value
}

// Preference 读取一项用户偏好，第二个返回值表示键是否存在。
func (s *State) Preference(key string) (string, bool) {
	value, ok := s.Preferences[key]
	return value, ok
}

// HasPreference 判断偏好键是否存在。
func (s *State) HasPreference(key string) bool {
	_, ok := s.Preferences[key]
	return ok
}

// ClearTransfer 丢弃转账暂存状态。只影响 transfer 命名空间，
// 其余会话状态保持不变。
func (s *State) ClearTransfer() {
	s.Transfer = nil
}

// clone 返回状态的深拷贝，避免调用方拿到内部引用。
func (s *State) clone() State {
	cloned := *s
	if s.ActivePlan != nil {
		cloned.ActivePlan = s.ActivePlan.Clone()
	}
	if s.Transfer != nil {
		scratch := *s.Transfer
		scratch.PayeeConfirmed = cloneBool(s.Transfer.PayeeConfirmed)
		scratch.AccountConfirmed = cloneBool(s.Transfer.AccountConfirmed)
		scratch.Confirmed = cloneBool(s.Transfer.Confirmed)
		cloned.Transfer = &scratch
	}
	if s.Preferences != nil {
		prefs := make(map[string]string, len(s.Preferences))
		for k, v := range s.Preferences {
			prefs[k] = v
		}
		cloned.Preferences = prefs
	}
	return cloned
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneSession(sess *Session) *Session {
	clone := *sess
	clone.State = sess.State.clone()
	return &clone
}
