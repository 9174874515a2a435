package plan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/pkg/logger"
)

// StepRunner 执行单个计划步骤。priorOutputs 按步骤顺序携带此前各步的输出，
// 供存在数据依赖的后续步骤使用。
type StepRunner interface {
	RunStep(ctx context.Context, userID string, step Step, priorOutputs []StepOutput) (string, error)
}

// StepOutput 记录一个步骤的执行结果。
type StepOutput struct {
	Step    int    `json:"step"`
	Target  string `json:"target,omitempty"`
	Summary string `json:"summary"`
}

// Execution 汇总一次计划执行的全部输出。
type Execution struct {
	UserQuery string       `json:"user_query"`
	Refused   bool         `json:"refused"`
	Outputs   []StepOutput `json:"outputs,omitempty"`
	Summary   string       `json:"summary"`
}

// Executor 按步骤顺序消费已存储的计划。
// 规划到执行的交接每个请求只发生一次；计划执行完毕即视为已消费。
type Executor struct {
	runner StepRunner
	logger *slog.Logger
}

// NewExecutor 构造 Executor。
func NewExecutor(runner StepRunner) *Executor {
	return &Executor{runner: runner, logger: logger.Named("plan")}
}

// Execute 执行给定计划。active 为 nil 是错误条件（NO_PLAN_FOUND），
// 必须如实上报而不是猜测一个计划。
func (e *Executor) Execute(ctx context.Context, userID string, active *Plan) (*Execution, error) {
	if e.runner == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置步骤执行器")
	}
	if active == nil {
		return nil, ErrNoPlanFound
	}
	if err := active.Validate(); err != nil {
		return nil, err
	}

	if active.IsRefusal() {
		// 空计划是规划阶段的明确拒绝：不执行任何领域动作。
		return &Execution{
			UserQuery: active.UserQuery,
			Refused:   true,
			Summary:   "请求超出服务范围，未执行任何操作。",
		}, nil
	}

	outputs := make([]StepOutput, 0, len(active.Steps))
	for _, step := range active.Steps {
		summary, err := e.runner.RunStep(ctx, userID, step, outputs)
		if err != nil {
			e.logger.Warn("计划步骤执行失败",
				slog.Int("step", step.Step),
				slog.String("target", step.Target),
				slog.String("error", err.Error()),
			)
			return nil, xerrors.Wrap(CodePlanStep, err,
				fmt.Sprintf("第 %d 步执行失败", step.Step),
				xerrors.WithMetadata("target", step.Target))
		}
		outputs = append(outputs, StepOutput{Step: step.Step, Target: step.Target, Summary: summary})
	}

	return &Execution{
		UserQuery: active.UserQuery,
		Outputs:   outputs,
		Summary:   synthesize(outputs),
	}, nil
}

// synthesize 将各步骤输出合成为一条聚合响应。
func synthesize(outputs []StepOutput) string {
	parts := make([]string, 0, len(outputs))
	for _, out := range outputs {
		if strings.TrimSpace(out.Summary) == "" {
			continue
		}
		parts = append(parts, out.Summary)
	}
	return strings.Join(parts, "\n")
}
