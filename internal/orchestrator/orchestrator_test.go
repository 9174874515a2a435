package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"NetBank-Chain/internal/event"
	"NetBank-Chain/internal/identity"
	"NetBank-Chain/internal/intent"
	"NetBank-Chain/internal/repository"
	"NetBank-Chain/internal/session"
	"NetBank-Chain/internal/transfer"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *repository.FileRepository) {
	t.Helper()
	dir := t.TempDir()
	userDir := filepath.Join(dir, "users", "alice01")
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	available := 1000.0
	seed := map[string]any{
		"accounts.json": []repository.Account{{
			AccountID:        "CHK-1",
			Type:             repository.AccountTypeChecking,
			Currency:         "INR",
			Balance:          1000,
			AvailableBalance: &available,
		}},
		"payees.json": []repository.Payee{{PayeeID: "P-1", Name: "Bob"}},
		"holdings.json": []repository.Holding{{
			Symbol: "TCS", Name: "Tata Consultancy", Kind: repository.HoldingKindStock,
			Units: 5, LastPrice: 4000, Currency: "INR",
		}},
	}
	for name, v := range seed {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(userDir, name), raw, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	repo, err := repository.NewFileRepository(dir)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	domainRouter, err := NewDefaultRouter(repo)
	if err != nil {
		t.Fatalf("NewDefaultRouter: %v", err)
	}
	resolver := intent.NewRuleResolver(nil)
	o, err := New(Deps{
		Sessions: session.NewMemoryStore(),
		Gate:     identity.NewGate(repo),
		Resolver: resolver,
		Planner:  intent.NewRulePlanner(resolver),
		Router:   domainRouter,
		Saga:     transfer.NewSaga(repo, repo, event.NewMemoryPublisher(4)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, repo
}

func turn(t *testing.T, o *Orchestrator, sessionID, input string) *TurnResult {
	t.Helper()
	result, err := o.HandleTurn(context.Background(), sessionID, input)
	if err != nil {
		t.Fatalf("HandleTurn(%q) error = %v", input, err)
	}
	return result
}

func TestIdentityGateBlocksUntilConfirmed(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	sessionID, err := o.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// 身份放行前任何请求都只会得到索要身份的回复。
	result := turn(t, o, sessionID, "show my balance")
	if !result.IdentityPending {
		t.Fatalf("first turn must be blocked by the gate: %+v", result)
	}
	result = turn(t, o, sessionID, "nobody42")
	if !result.IdentityPending {
		t.Fatalf("unknown user must stay blocked: %+v", result)
	}
	result = turn(t, o, sessionID, "alice01")
	if result.IdentityPending {
		t.Fatalf("valid user must pass the gate: %+v", result)
	}

	// 放行后不再重复盘问身份。
	result = turn(t, o, sessionID, "what is my account balance")
	if result.IdentityPending {
		t.Fatalf("gate must not re-ask once confirmed: %+v", result)
	}
	if !strings.Contains(result.Reply, "CHK-1") {
		t.Fatalf("balance reply missing account: %q", result.Reply)
	}
}

func TestOutOfScopeRefusal(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	sessionID, _ := o.NewSession(context.Background())
	turn(t, o, sessionID, "alice01")

	result := turn(t, o, sessionID, "write me a poem about clouds")
	if !result.Refused {
		t.Fatalf("out-of-scope input must be refused: %+v", result)
	}
}

func TestAdvisorMultiStepThreadsContext(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	sessionID, _ := o.NewSession(context.Background())
	turn(t, o, sessionID, "alice01")

	result := turn(t, o, sessionID, "give me financial advice")
	// 建议必须建立在前两步取回的事实之上。
	if !strings.Contains(result.Reply, "CHK-1") || !strings.Contains(result.Reply, "TCS") {
		t.Fatalf("advisor reply missing gathered facts: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "建议") {
		t.Fatalf("advisor reply missing synthesis: %q", result.Reply)
	}
}

func TestTransferConversationEndToEnd(t *testing.T) {
	o, repo := newTestOrchestrator(t)
	sessionID, _ := o.NewSession(context.Background())
	turn(t, o, sessionID, "alice01")

	turn(t, o, sessionID, "i want to transfer money")
	turn(t, o, sessionID, "bob")
	turn(t, o, sessionID, "yes")
	turn(t, o, sessionID, "CHK-1")
	turn(t, o, sessionID, "yes")
	turn(t, o, sessionID, "400 INR")
	result := turn(t, o, sessionID, "yes")

	if result.TransferID == "" || !strings.HasPrefix(result.TransferID, "T-FT-") {
		t.Fatalf("commit turn must carry the transfer id: %+v", result)
	}
	account, err := repo.GetAccount(context.Background(), "alice01", "CHK-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Spendable() != 600 {
		t.Fatalf("available = %v, want 600", account.Spendable())
	}

	// 转账结束后会话可以继续办理其他业务。
	followUp := turn(t, o, sessionID, "what is my account balance")
	if !strings.Contains(followUp.Reply, "600.00") {
		t.Fatalf("follow-up balance reply: %q", followUp.Reply)
	}
}

func TestTransferContinuationAcrossUnrelatedWording(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	sessionID, _ := o.NewSession(context.Background())
	turn(t, o, sessionID, "alice01")
	turn(t, o, sessionID, "transfer money please")

	// 挂起的转账流程优先于关键词解析：这一轮输入是收款人名，不是新意图。
	result := turn(t, o, sessionID, "bob")
	if !strings.Contains(result.Reply, "Bob") || !strings.Contains(result.Reply, "确认") {
		t.Fatalf("pending saga must consume the turn: %q", result.Reply)
	}
}

func TestUnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if _, err := o.HandleTurn(context.Background(), "missing-session", "hello"); err == nil {
		t.Fatalf("unknown session must error")
	}
}
