package orchestrator

import (
	"context"
	"log/slog"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/identity"
	"NetBank-Chain/internal/intent"
	"NetBank-Chain/internal/plan"
	"NetBank-Chain/internal/router"
	"NetBank-Chain/internal/session"
	"NetBank-Chain/internal/transfer"
	"NetBank-Chain/pkg/logger"
)

// TurnResult 是一轮对话的完整输出。
type TurnResult struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	// IdentityPending 表示本轮被身份闸门拦截，Reply 是索要身份的提示。
	IdentityPending bool `json:"identity_pending,omitempty"`
	// Refused 表示请求超出服务范围，已明确拒绝。
	Refused bool `json:"refused,omitempty"`
	// TransferID 在转账提交成功的那一轮携带流水号。
	TransferID string `json:"transfer_id,omitempty"`
}

// Deps 汇集编排器的全部依赖，均由调用方注入。
type Deps struct {
	Sessions session.Store
	Gate     *identity.Gate
	Resolver intent.Resolver
	Planner  intent.Planner
	Router   *router.Router
	Saga     *transfer.Saga
}

// Orchestrator 驱动一轮对话的完整管线：
// 加载会话 → 身份闸门 → 规划 → 执行 → 持久化。
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
}

// New 构造编排器。
func New(deps Deps) (*Orchestrator, error) {
	if deps.Sessions == nil || deps.Gate == nil || deps.Planner == nil ||
		deps.Router == nil || deps.Saga == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "编排器依赖不完整")
	}
	if deps.Resolver == nil {
		deps.Resolver = intent.NewRuleResolver(nil)
	}
	return &Orchestrator{deps: deps, logger: logger.Named("orchestrator")}, nil
}

// NewSession 创建一个空会话并返回其标识。
func (o *Orchestrator) NewSession(ctx context.Context) (string, error) {
	sess, err := o.deps.Sessions.Create(ctx)
	if err != nil {
		return "", err
	}
	logger.Audit().Info("会话创建", slog.String("session_id", sess.ID))
	return sess.ID, nil
}

// HandleTurn 处理一轮用户输入。同一会话内的轮次由调用方保证串行。
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, input string) (*TurnResult, error) {
	sess, err := o.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := &sess.State

	result, err := o.runTurn(ctx, state, input)
	if err != nil {
		return nil, err
	}
	result.SessionID = sess.ID

	if err := o.deps.Sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	logger.Audit().Info("对话轮次",
		slog.String("session_id", sess.ID),
		slog.String("user_id", state.UserID),
		slog.Bool("identity_pending", result.IdentityPending),
		slog.Bool("refused", result.Refused),
		slog.String("transfer_id", result.TransferID),
	)
	return result, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, state *session.State, input string) (*TurnResult, error) {
	// 身份闸门是每轮的第一道关卡：未放行前不执行任何领域动作。
	if !state.IdentityConfirmed {
		outcome, err := o.deps.Gate.Verify(ctx, input)
		if err != nil {
			return nil, err
		}
		if !outcome.Confirmed {
			return &TurnResult{Reply: outcome.Prompt, IdentityPending: true}, nil
		}
		state.UserID = outcome.UserID
		state.IdentityConfirmed = true
		return &TurnResult{Reply: "身份已确认，欢迎使用网银助手。请问需要办理什么业务？"}, nil
	}

	// 规划阶段：产出计划并写入会话。该阶段不产生任何领域副作用。
	active, err := o.deps.Planner.BuildPlan(ctx, state, input)
	if err != nil {
		return nil, err
	}
	state.ActivePlan = active

	// 执行阶段：消费计划。执行完成后计划即被清空，下一轮重新规划。
	runner := &turnRunner{orchestrator: o, state: state}
	executor := plan.NewExecutor(runner)
	execution, err := executor.Execute(ctx, state.UserID, state.ActivePlan)
	state.ActivePlan = nil
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Reply:      execution.Summary,
		Refused:    execution.Refused,
		TransferID: runner.transferID,
	}, nil
}

// turnRunner 把计划步骤落到具体执行动作上。转账步骤直接推进状态机
// （状态机需要访问会话暂存），其余步骤经由路由分发。
type turnRunner struct {
	orchestrator *Orchestrator
	state        *session.State

	transferID string
}

// RunStep 实现 plan.StepRunner。
func (r *turnRunner) RunStep(ctx context.Context, userID string, step plan.Step, prior []plan.StepOutput) (string, error) {
	if router.Domain(step.Target) == router.DomainTransfer {
		outcome, err := r.orchestrator.deps.Saga.Advance(ctx, r.state, step.Query)
		if err != nil {
			return "", err
		}
		if outcome.Done {
			r.transferID = outcome.TransferID
		}
		return outcome.Prompt, nil
	}

	facts := make([]string, 0, len(prior))
	for _, out := range prior {
		facts = append(facts, out.Summary)
	}
	result, err := r.orchestrator.deps.Router.Dispatch(ctx, router.Request{
		UserID:  userID,
		Domain:  router.Domain(step.Target),
		Query:   step.Query,
		Context: facts,
	})
	if err != nil {
		return "", err
	}
	return result.Summary, nil
}
