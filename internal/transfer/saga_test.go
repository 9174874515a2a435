package transfer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/event"
	"NetBank-Chain/internal/repository"
	"NetBank-Chain/internal/session"
)

func seedRepo(t *testing.T, available float64) *repository.FileRepository {
	t.Helper()
	dir := t.TempDir()
	userDir := filepath.Join(dir, "users", "alice01")
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	accounts := []repository.Account{{
		AccountID:        "CHK-1",
		Type:             repository.AccountTypeChecking,
		Currency:         "INR",
		Balance:          available,
		AvailableBalance: &available,
	}}
	payees := []repository.Payee{
		{PayeeID: "P-1", Name: "Bob", Alias: []string{"bobby"}},
		{PayeeID: "P-2", Name: "Charlie"},
	}
	writeJSON(t, filepath.Join(userDir, "accounts.json"), accounts)
	writeJSON(t, filepath.Join(userDir, "payees.json"), payees)

	repo, err := repository.NewFileRepository(dir)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	return repo
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func confirmedState() *session.State {
	return &session.State{UserID: "alice01", IdentityConfirmed: true}
}

func advance(t *testing.T, saga *Saga, state *session.State, input string) Outcome {
	t.Helper()
	out, err := saga.Advance(context.Background(), state, input)
	if err != nil {
		t.Fatalf("Advance(%q) error = %v", input, err)
	}
	return out
}

func TestSagaHappyPath(t *testing.T) {
	repo := seedRepo(t, 1000)
	events := event.NewMemoryPublisher(4)
	saga := NewSaga(repo, repo, events)
	state := confirmedState()

	out := advance(t, saga, state, "i want to transfer money")
	if out.Stage != StageCapturePayee {
		t.Fatalf("stage = %v, want CAPTURE_PAYEE", out.Stage)
	}
	out = advance(t, saga, state, "bob")
	if out.Stage != StageResolvePayee || out.Aborted {
		t.Fatalf("payee resolution: %+v", out)
	}
	out = advance(t, saga, state, "yes")
	if out.Stage != StageCaptureAccount {
		t.Fatalf("stage = %v, want CAPTURE_SOURCE_ACCOUNT", out.Stage)
	}
	if !strings.Contains(out.Prompt, "CHK-1") {
		t.Fatalf("account prompt should list accounts: %q", out.Prompt)
	}
	out = advance(t, saga, state, "CHK-1")
	if out.Stage != StageValidateAccount || out.Aborted {
		t.Fatalf("account validation: %+v", out)
	}
	out = advance(t, saga, state, "yes")
	if out.Stage != StageCaptureAmount {
		t.Fatalf("stage = %v, want CAPTURE_AMOUNT", out.Stage)
	}
	out = advance(t, saga, state, "400 INR")
	if out.Stage != StageConfirm || out.Aborted {
		t.Fatalf("balance check: %+v", out)
	}
	out = advance(t, saga, state, "yes")
	if !out.Done || out.Aborted {
		t.Fatalf("commit: %+v", out)
	}
	if !strings.HasPrefix(out.TransferID, "T-FT-") {
		t.Fatalf("transfer id = %q", out.TransferID)
	}
	if state.Transfer != nil {
		t.Fatalf("scratch must be cleared after commit")
	}

	account, err := repo.GetAccount(context.Background(), "alice01", "CHK-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Spendable() != 600 {
		t.Fatalf("available = %v, want 600", account.Spendable())
	}
	records, err := repo.ListTransactions(context.Background(), "alice01", "CHK-1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	head := records[0]
	if head.Amount != -400 || head.Counterparty != "Bob" || head.RunningBalance != 600 {
		t.Fatalf("record = %+v", head)
	}
	if head.Method != repository.TransactionMethodNEFT || head.Status != repository.TransactionStatusPosted {
		t.Fatalf("record constants = %+v", head)
	}

	select {
	case evt := <-events.Events():
		if evt.TransferID != out.TransferID || evt.Amount != 400 {
			t.Fatalf("event = %+v", evt)
		}
	default:
		t.Fatalf("commit must publish a transfer event")
	}
}

func TestSagaInsufficientFunds(t *testing.T) {
	repo := seedRepo(t, 1000)
	saga := NewSaga(repo, repo, nil)
	state := confirmedState()

	advance(t, saga, state, "transfer")
	advance(t, saga, state, "bob")
	advance(t, saga, state, "yes")
	advance(t, saga, state, "CHK-1")
	advance(t, saga, state, "yes")
	out := advance(t, saga, state, "1500")
	if !out.Aborted || out.Reason != repository.CodeInsufficientFunds {
		t.Fatalf("outcome = %+v, want INSUFFICIENT_FUNDS abort", out)
	}
	if state.Transfer != nil {
		t.Fatalf("abort must clear scratch")
	}

	account, _ := repo.GetAccount(context.Background(), "alice01", "CHK-1")
	if account.Spendable() != 1000 {
		t.Fatalf("balance changed on abort: %v", account.Spendable())
	}
	records, _ := repo.ListTransactions(context.Background(), "alice01", "CHK-1")
	if len(records) != 0 {
		t.Fatalf("no transaction may be appended on abort, got %d", len(records))
	}
}

func TestSagaZeroMatchListsPayeesAndAborts(t *testing.T) {
	repo := seedRepo(t, 1000)
	saga := NewSaga(repo, repo, nil)
	state := confirmedState()

	advance(t, saga, state, "transfer")
	out := advance(t, saga, state, "xyz")
	if !out.Aborted || out.Reason != xerrors.CodeNotFound {
		t.Fatalf("outcome = %+v, want NOT_FOUND abort", out)
	}
	// 终止时必须展示完整收款人列表。
	if !strings.Contains(out.Prompt, "Bob") || !strings.Contains(out.Prompt, "Charlie") {
		t.Fatalf("prompt must list all payees: %q", out.Prompt)
	}
	if state.Transfer != nil {
		t.Fatalf("abort must clear scratch")
	}
}

func TestSagaDeclineAtFinalConfirmation(t *testing.T) {
	repo := seedRepo(t, 1000)
	saga := NewSaga(repo, repo, nil)
	state := confirmedState()

	advance(t, saga, state, "transfer")
	advance(t, saga, state, "bobby")
	advance(t, saga, state, "yes")
	advance(t, saga, state, "CHK-1")
	advance(t, saga, state, "yes")
	advance(t, saga, state, "400")
	out := advance(t, saga, state, "no")
	if !out.Aborted || out.Reason != CodeTransferDeclined {
		t.Fatalf("outcome = %+v, want TRANSFER_DECLINED abort", out)
	}
	records, _ := repo.ListTransactions(context.Background(), "alice01", "CHK-1")
	if len(records) != 0 {
		t.Fatalf("declined transfer must not write, got %d records", len(records))
	}
}

func TestSagaCurrencyMismatch(t *testing.T) {
	repo := seedRepo(t, 1000)
	saga := NewSaga(repo, repo, nil)
	state := confirmedState()

	advance(t, saga, state, "transfer")
	advance(t, saga, state, "bob")
	advance(t, saga, state, "yes")
	advance(t, saga, state, "CHK-1")
	advance(t, saga, state, "yes")
	advance(t, saga, state, "100 USD")
	out := advance(t, saga, state, "yes")
	if !out.Aborted || out.Reason != repository.CodeCurrencyMismatch {
		t.Fatalf("outcome = %+v, want CURRENCY_MISMATCH abort", out)
	}
	account, _ := repo.GetAccount(context.Background(), "alice01", "CHK-1")
	if account.Spendable() != 1000 {
		t.Fatalf("balance changed on currency mismatch: %v", account.Spendable())
	}
}

func TestSagaRequiresConfirmedIdentity(t *testing.T) {
	repo := seedRepo(t, 1000)
	saga := NewSaga(repo, repo, nil)
	state := &session.State{UserID: "alice01"}

	out := advance(t, saga, state, "transfer")
	if !out.Aborted || out.Reason != CodeIdentityRequired {
		t.Fatalf("outcome = %+v, want IDENTITY_REQUIRED abort", out)
	}
}

func TestSagaUnparsableInputHoldsStage(t *testing.T) {
	repo := seedRepo(t, 1000)
	saga := NewSaga(repo, repo, nil)
	state := confirmedState()

	advance(t, saga, state, "transfer")
	advance(t, saga, state, "bob")
	out := advance(t, saga, state, "maybe tomorrow")
	if out.Aborted || out.Stage != StageResolvePayee {
		t.Fatalf("unrecognized confirmation must hold the stage: %+v", out)
	}
	advance(t, saga, state, "yes")
	advance(t, saga, state, "CHK-1")
	advance(t, saga, state, "yes")
	out = advance(t, saga, state, "four hundred")
	if out.Aborted || out.Stage != StageCaptureAmount {
		t.Fatalf("unparsable amount must hold the stage: %+v", out)
	}
}

func TestConcurrentCommitsSerialize(t *testing.T) {
	repo := seedRepo(t, 500)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CommitTransfer(ctx, "alice01", repository.CommitRequest{
				TransferID: "T-FT-concurrent-" + string(rune('a'+i)),
				AccountID:  "CHK-1",
				PayeeID:    "P-1",
				PayeeName:  "Bob",
				Amount:     300,
				Currency:   "INR",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if xerrors.CodeOf(err) != repository.CodeInsufficientFunds {
			t.Fatalf("loser must fail with INSUFFICIENT_FUNDS, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one of two concurrent commits must succeed, got %d", succeeded)
	}

	account, err := repo.GetAccount(ctx, "alice01", "CHK-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Spendable() != 200 {
		t.Fatalf("available = %v, want 200", account.Spendable())
	}
	records, _ := repo.ListTransactions(ctx, "alice01", "CHK-1")
	if len(records) != 1 {
		t.Fatalf("exactly one record expected, got %d", len(records))
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		input    string
		amount   float64
		currency string
		ok       bool
	}{
		{"1000", 1000, "", true},
		{"1000 INR", 1000, "INR", true},
		{"inr 250.50", 250.50, "INR", true},
		{"1,500 INR", 1500, "INR", true},
		{"nothing here", 0, "", false},
		{"", 0, "", false},
	}
	for _, tc := range cases {
		amount, currency, ok := parseAmount(tc.input)
		if amount != tc.amount || currency != tc.currency || ok != tc.ok {
			t.Fatalf("parseAmount(%q) = %v %q %v, want %v %q %v",
				tc.input, amount, currency, ok, tc.amount, tc.currency, tc.ok)
		}
	}
}
