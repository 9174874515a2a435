package transfer

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/event"
	"NetBank-Chain/internal/observability/metrics"
	"NetBank-Chain/internal/repository"
	"NetBank-Chain/internal/session"
	"NetBank-Chain/pkg/logger"
)

// Stage 是转账状态机的一个状态。暂存状态里的 Stage 表示当前正等待
// 用户输入的状态；校验与提交类状态在一轮之内完成，不对外暂停。
type Stage string

const (
	StageIdentifyUser    Stage = "IDENTIFY_USER"
	StageCapturePayee    Stage = "CAPTURE_PAYEE"
	StageResolvePayee    Stage = "RESOLVE_PAYEE"
	StageCaptureAccount  Stage = "CAPTURE_SOURCE_ACCOUNT"
	StageValidateAccount Stage = "VALIDATE_SOURCE_ACCOUNT"
	StageCaptureAmount   Stage = "CAPTURE_AMOUNT"
	StageCheckBalance    Stage = "CHECK_BALANCE"
	StageConfirm         Stage = "CONFIRM_TRANSFER"
	StageCommit          Stage = "COMMIT_TRANSFER"
	StageReport          Stage = "REPORT_RESULT"
)

const (
	// CodeIdentityRequired 表示身份闸门尚未放行就进入了转账流程。
	CodeIdentityRequired xerrors.Code = "IDENTITY_REQUIRED"
	// CodeTransferDeclined 表示用户在确认环节明确拒绝。
	CodeTransferDeclined xerrors.Code = "TRANSFER_DECLINED"
)

func init() {
	xerrors.Register(CodeIdentityRequired, xerrors.Attributes{
		Message:   "identity must be confirmed before a transfer",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTransferDeclined, xerrors.Attributes{
		Message:   "caller declined at a confirmation stage",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// Outcome 是状态机对一轮输入的响应。
//   - Aborted 为 true 表示本次转账尝试终止，Reason 给出具体原因；
//   - Done 为 true 表示转账已提交，TransferID 为流水号；
//   - 其余情况状态机暂停在 Stage，Prompt 告诉用户下一步要提供什么。
type Outcome struct {
	Stage      Stage
	Prompt     string
	Done       bool
	Aborted    bool
	Reason     xerrors.Code
	TransferID string
}

// Saga 实现多轮的转账状态机。所有中间状态保存在会话的
// TransferScratch 里，提交前不产生任何持久化写入。
type Saga struct {
	repo   repository.Repository
	ledger repository.Ledger
	events event.Publisher
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

// NewSaga 构造转账状态机。events 允许为 nil（不发布事件）。
func NewSaga(repo repository.Repository, ledger repository.Ledger, events event.Publisher) *Saga {
	return &Saga{
		repo:   repo,
		ledger: ledger,
		events: events,
		logger: logger.Named("transfer"),
		newID:  func() string { return "T-FT-" + uuid.NewString() },
		now:    time.Now,
	}
}

// Advance 用一轮用户输入推进状态机。返回 error 仅表示基础设施故障；
// 业务上的失败一律表达为 Aborted 的 Outcome。
func (s *Saga) Advance(ctx context.Context, state *session.State, input string) (Outcome, error) {
	if state == nil {
		return Outcome{}, xerrors.New(xerrors.CodeInvalidArgument, "会话状态不能为空")
	}
	if !state.IdentityConfirmed || state.UserID == "" {
		return s.abort(state, StageIdentifyUser, CodeIdentityRequired,
			"转账前需要先完成身份确认，请提供您的用户标识。"), nil
	}

	scratch := state.Transfer
	if scratch == nil {
		state.Transfer = &session.TransferScratch{Stage: string(StageCapturePayee)}
		state.Transfer.Touch()
		return Outcome{Stage: StageCapturePayee, Prompt: "请问要向哪位收款人转账？"}, nil
	}

	switch Stage(scratch.Stage) {
	case StageCapturePayee:
		return s.capturePayee(ctx, state, input)
	case StageResolvePayee:
		return s.confirmPayee(ctx, state, input)
	case StageCaptureAccount:
		return s.captureAccount(ctx, state, input)
	case StageValidateAccount:
		return s.confirmAccount(state, input)
	case StageCaptureAmount:
		return s.captureAmount(ctx, state, input)
	case StageConfirm:
		return s.confirmTransfer(ctx, state, input)
	default:
		// 未知状态说明暂存数据已不可信，丢弃后从头开始。
		s.logger.Warn("转账暂存状态不可识别，已重置", slog.String("stage", scratch.Stage))
		state.ClearTransfer()
		state.Transfer = &session.TransferScratch{Stage: string(StageCapturePayee)}
		state.Transfer.Touch()
		return Outcome{Stage: StageCapturePayee, Prompt: "请问要向哪位收款人转账？"}, nil
	}
}

func (s *Saga) capturePayee(ctx context.Context, state *session.State, input string) (Outcome, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return Outcome{Stage: StageCapturePayee, Prompt: "请提供收款人名称或别名。"}, nil
	}
	scratch := state.Transfer
	scratch.PayeeQuery = query
	scratch.Touch()

	payees, err := s.repo.ListPayees(ctx, state.UserID)
	if err != nil {
		return Outcome{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取收款人失败")
	}

	matches := make([]repository.Payee, 0, len(payees))
	for _, payee := range payees {
		if payee.Matches(query) {
			matches = append(matches, payee)
		}
	}

	if len(matches) == 0 {
		// 零匹配：展示完整收款人列表并终止本次尝试，不做静默重试。
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("未找到与 %q 匹配的收款人。您的收款人列表：\n", query))
		for _, payee := range payees {
			sb.WriteString("- " + payee.Name)
			if len(payee.Alias) > 0 {
				sb.WriteString("（" + strings.Join(payee.Alias, "、") + "）")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("如需转账请重新发起。")
		return s.abort(state, StageResolvePayee, xerrors.CodeNotFound, sb.String()), nil
	}

	chosen := matches[0]
	scratch.PayeeID = chosen.PayeeID
	scratch.PayeeName = chosen.Name
	scratch.Stage = string(StageResolvePayee)
	scratch.Touch()

	prompt := fmt.Sprintf("匹配到收款人 %s，确认向其转账吗？(yes/no)", chosen.Name)
	if len(matches) > 1 {
		prompt = fmt.Sprintf("共有 %d 位收款人匹配，已选择 %s。确认向其转账吗？(yes/no)",
			len(matches), chosen.Name)
	}
	return Outcome{Stage: StageResolvePayee, Prompt: prompt}, nil
}

func (s *Saga) confirmPayee(ctx context.Context, state *session.State, input string) (Outcome, error) {
	confirmed, ok := parseConfirmation(input)
	if !ok {
		return Outcome{
			Stage:  StageResolvePayee,
			Prompt: fmt.Sprintf("请回复 yes 或 no：确认向 %s 转账吗？", state.Transfer.PayeeName),
		}, nil
	}
	state.Transfer.PayeeConfirmed = &confirmed
	state.Transfer.Touch()
	if !confirmed {
		return s.abort(state, StageResolvePayee, CodeTransferDeclined, "已取消本次转账。"), nil
	}

	accounts, err := s.repo.ListAccounts(ctx, state.UserID)
	if err != nil {
		return Outcome{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取账户失败")
	}
	var sb strings.Builder
	sb.WriteString("请输入付款账户ID：\n")
	for _, acct := range accounts {
		sb.WriteString(fmt.Sprintf("- %s [%s] 可用余额 %.2f %s\n",
			acct.AccountID, acct.Type, acct.Spendable(), acct.Currency))
	}
	state.Transfer.Stage = string(StageCaptureAccount)
	state.Transfer.Touch()
	return Outcome{Stage: StageCaptureAccount, Prompt: strings.TrimRight(sb.String(), "\n")}, nil
}

func (s *Saga) captureAccount(ctx context.Context, state *session.State, input string) (Outcome, error) {
	accountID := strings.TrimSpace(input)
	if accountID == "" {
		return Outcome{Stage: StageCaptureAccount, Prompt: "请提供付款账户ID。"}, nil
	}
	scratch := state.Transfer
	scratch.AccountID = accountID
	scratch.Touch()

	account, err := s.repo.GetAccount(ctx, state.UserID, accountID)
	if err != nil {
		if stdErrors.Is(err, repository.ErrAccountNotFound) {
			return s.abort(state, StageValidateAccount, repository.CodeAccountNotFound,
				fmt.Sprintf("账户 %s 不在您的名下，转账已取消。", accountID)), nil
		}
		return Outcome{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取账户失败")
	}

	scratch.Currency = account.Currency
	scratch.Stage = string(StageValidateAccount)
	scratch.Touch()
	return Outcome{
		Stage: StageValidateAccount,
		Prompt: fmt.Sprintf("使用账户 %s（可用余额 %.2f %s）付款，确认吗？(yes/no)",
			account.AccountID, account.Spendable(), account.Currency),
	}, nil
}

func (s *Saga) confirmAccount(state *session.State, input string) (Outcome, error) {
	confirmed, ok := parseConfirmation(input)
	if !ok {
		return Outcome{
			Stage:  StageValidateAccount,
			Prompt: fmt.Sprintf("请回复 yes 或 no：确认使用账户 %s 付款吗？", state.Transfer.AccountID),
		}, nil
	}
	state.Transfer.AccountConfirmed = &confirmed
	state.Transfer.Touch()
	if !confirmed {
		return s.abort(state, StageValidateAccount, CodeTransferDeclined, "已取消本次转账。"), nil
	}
	state.Transfer.Stage = string(StageCaptureAmount)
	state.Transfer.Touch()
	return Outcome{
		Stage:  StageCaptureAmount,
		Prompt: fmt.Sprintf("请输入转账金额（如 1000 或 1000 %s）。", state.Transfer.Currency),
	}, nil
}

func (s *Saga) captureAmount(ctx context.Context, state *session.State, input string) (Outcome, error) {
	amount, currency, ok := parseAmount(input)
	if !ok {
		return Outcome{Stage: StageCaptureAmount, Prompt: "金额格式无法识别，请输入数字金额，例如 1000。"}, nil
	}
	if amount <= 0 {
		return s.abort(state, StageCaptureAmount, repository.CodeInvalidAmount,
			"转账金额必须大于零，转账已取消。"), nil
	}

	scratch := state.Transfer
	scratch.Amount = amount
	if currency != "" {
		scratch.Currency = currency
	}
	scratch.Touch()

	account, err := s.repo.GetAccount(ctx, state.UserID, scratch.AccountID)
	if err != nil {
		if stdErrors.Is(err, repository.ErrAccountNotFound) {
			return s.abort(state, StageCheckBalance, repository.CodeAccountNotFound,
				"付款账户已不可用，转账已取消。"), nil
		}
		return Outcome{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取账户失败")
	}
	if amount > account.Spendable() {
		return s.abort(state, StageCheckBalance, repository.CodeInsufficientFunds,
			fmt.Sprintf("可用余额不足：当前可用 %.2f %s，转账已取消。",
				account.Spendable(), account.Currency)), nil
	}

	scratch.Stage = string(StageConfirm)
	scratch.Touch()
	return Outcome{
		Stage: StageConfirm,
		Prompt: fmt.Sprintf("确认转账：向 %s 转 %.2f %s，付款账户 %s。确认执行吗？(yes/no)",
			scratch.PayeeName, scratch.Amount, scratch.Currency, scratch.AccountID),
	}, nil
}

func (s *Saga) confirmTransfer(ctx context.Context, state *session.State, input string) (Outcome, error) {
	confirmed, ok := parseConfirmation(input)
	if !ok {
		return Outcome{Stage: StageConfirm, Prompt: "请回复 yes 或 no 以确认是否执行转账。"}, nil
	}
	scratch := state.Transfer
	scratch.Confirmed = &confirmed
	scratch.Touch()
	if !confirmed {
		return s.abort(state, StageConfirm, CodeTransferDeclined, "已取消本次转账，未发生任何扣款。"), nil
	}

	transferID := s.newID()
	result, err := s.ledger.CommitTransfer(ctx, state.UserID, repository.CommitRequest{
		TransferID: transferID,
		AccountID:  scratch.AccountID,
		PayeeID:    scratch.PayeeID,
		PayeeName:  scratch.PayeeName,
		Amount:     scratch.Amount,
		Currency:   scratch.Currency,
		Reference:  scratch.Reference,
	})
	if err != nil {
		if reason, ok := validationReason(err); ok {
			return s.abort(state, StageCommit, reason, abortMessage(reason)), nil
		}
		// 持久化失败是对本次提交的硬失败，与校验失败严格区分上报。
		state.ClearTransfer()
		metrics.ObserveTransferCommit("failed")
		return Outcome{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "转账提交失败")
	}

	metrics.ObserveTransferCommit("committed")
	s.publish(ctx, state.UserID, transferID, scratch, result)
	state.ClearTransfer()

	return Outcome{
		Stage:      StageReport,
		Done:       true,
		TransferID: transferID,
		Prompt: fmt.Sprintf("转账成功，流水号 %s。账户 %s 当前可用余额 %.2f %s。",
			transferID, result.Account.AccountID, result.Account.Spendable(), result.Account.Currency),
	}, nil
}

// publish 发布转账事件。发布失败只告警，不影响已完成的提交。
func (s *Saga) publish(ctx context.Context, userID, transferID string, scratch *session.TransferScratch, result *repository.CommitResult) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, event.TransferEvent{
		TransferID:     transferID,
		UserID:         userID,
		AccountID:      scratch.AccountID,
		PayeeID:        scratch.PayeeID,
		PayeeName:      scratch.PayeeName,
		Amount:         scratch.Amount,
		Currency:       scratch.Currency,
		RunningBalance: result.Record.RunningBalance,
		CommittedAt:    s.now().Unix(),
	})
	if err != nil {
		s.logger.Warn("转账事件发布失败",
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Saga) abort(state *session.State, stage Stage, reason xerrors.Code, prompt string) Outcome {
	state.ClearTransfer()
	metrics.ObserveTransferCommit("aborted")
	s.logger.Info("转账终止",
		slog.String("stage", string(stage)),
		slog.String("reason", string(reason)),
	)
	return Outcome{Stage: stage, Aborted: true, Reason: reason, Prompt: prompt}
}

// validationReason 把提交错误归类到校验失败的原因码。
func validationReason(err error) (xerrors.Code, bool) {
	code := xerrors.CodeOf(err)
	switch code {
	case repository.CodeInvalidAmount,
		repository.CodeAccountNotFound,
		repository.CodeCurrencyMismatch,
		repository.CodeInsufficientFunds,
		repository.CodeUserNotFound,
		repository.CodeAccountsNotFound:
		return code, true
	}
	return "", false
}

func abortMessage(reason xerrors.Code) string {
	switch reason {
	case repository.CodeInvalidAmount:
		return "转账金额必须大于零，转账已取消。"
	case repository.CodeAccountNotFound:
		return "付款账户不存在，转账已取消。"
	case repository.CodeCurrencyMismatch:
		return "转账币种与账户币种不一致，转账已取消。"
	case repository.CodeInsufficientFunds:
		return "可用余额不足，转账已取消。"
	default:
		return "转账校验未通过，已取消。"
	}
}
