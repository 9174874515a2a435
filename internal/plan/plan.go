package plan

import (
	"strings"

	xerrors "NetBank-Chain/internal/errors"
)

// Step 是计划中的一个执行步骤。step 序号从 1 开始、严格递增且不允许跳号。
type Step struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
	Query       string `json:"query"`
	Target      string `json:"target,omitempty"`
}

// Plan 是规划阶段针对一次用户请求产出的有序步骤列表。
// 计划创建后不再修改；新的请求总是产出新计划并替换旧计划。
// 空步骤列表是合法的，表示对超出范围请求的明确拒绝。
type Plan struct {
	UserQuery string `json:"user_query"`
	Steps     []Step `json:"steps"`
}

// IsRefusal 判断计划是否为明确的拒绝信号。
// 注意与 “尚无计划”（nil）区分。
func (p *Plan) IsRefusal() bool {
	return p != nil && len(p.Steps) == 0
}

// Validate 校验步骤序号：从 1 开始、严格递增、无跳号。
func (p *Plan) Validate() error {
	if p == nil {
		return ErrNoPlanFound
	}
	for i, step := range p.Steps {
		if step.Step != i+1 {
			return xerrors.New(CodePlanInvalid, "计划步骤序号必须从 1 开始连续递增",
				xerrors.WithMetadata("step", step.Description))
		}
		if strings.TrimSpace(step.Query) == "" {
			return xerrors.New(CodePlanInvalid, "计划步骤缺少查询内容")
		}
	}
	return nil
}

// Clone 返回计划的深拷贝。
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cloned := &Plan{UserQuery: p.UserQuery}
	if p.Steps != nil {
		cloned.Steps = make([]Step, len(p.Steps))
		copy(cloned.Steps, p.Steps)
	}
	return cloned
}

var (
	// ErrNoPlanFound 表示执行阶段找不到已存储的计划。
	ErrNoPlanFound = xerrors.New(CodeNoPlanFound, "未找到计划")
	// ErrPlanInvalid 表示计划结构不合法。
	ErrPlanInvalid = xerrors.New(CodePlanInvalid, "计划不合法")
)

const (
	CodeNoPlanFound xerrors.Code = "NO_PLAN_FOUND"
	CodePlanInvalid xerrors.Code = "PLAN_INVALID"
	CodePlanStep    xerrors.Code = "PLAN_STEP_FAILED"
)

func init() {
	xerrors.Register(CodeNoPlanFound, xerrors.Attributes{
		Message:   "no stored plan for executor",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodePlanInvalid, xerrors.Attributes{
		Message:   "plan failed validation",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodePlanStep, xerrors.Attributes{
		Message:   "plan step execution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}
