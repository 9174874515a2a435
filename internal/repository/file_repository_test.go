package repository

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"os"
	"path/filepath"
	"testing"
)

func newSeededRepo(t *testing.T) *FileRepository {
	t.Helper()
	dir := t.TempDir()
	userDir := filepath.Join(dir, "users", "alice01")
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	checking := 1000.0
	credit := 5000.0
	seedJSON(t, filepath.Join(userDir, "accounts.json"), []Account{
		{AccountID: "CHK-1", Type: AccountTypeChecking, Currency: "INR", Balance: 1000, AvailableBalance: &checking},
		{AccountID: "CC-1", Type: AccountTypeCreditCard, Currency: "INR", Balance: 0, AvailableBalance: &credit},
	})
	seedJSON(t, filepath.Join(userDir, "payees.json"), []Payee{
		{PayeeID: "P-1", Name: "Bob", Alias: []string{"bobby"}},
	})

	// ghost99 有用户目录但没有账户清单。
	if err := os.MkdirAll(filepath.Join(dir, "users", "ghost99"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	repo, err := NewFileRepository(dir)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	return repo
}

func seedJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestListAccountsDistinguishesMissingUserFromMissingListing(t *testing.T) {
	repo := newSeededRepo(t)
	ctx := context.Background()

	if _, err := repo.ListAccounts(ctx, "nobody"); !stdErrors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.ListAccounts(ctx, "ghost99"); !stdErrors.Is(err, ErrAccountsNotFound) {
		t.Fatalf("missing listing error = %v, want ErrAccountsNotFound", err)
	}
	accounts, err := repo.ListAccounts(ctx, "alice01")
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(accounts))
	}
}

func TestGetAccount(t *testing.T) {
	repo := newSeededRepo(t)
	ctx := context.Background()

	account, err := repo.GetAccount(ctx, "alice01", "CHK-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Spendable() != 1000 {
		t.Fatalf("spendable = %v", account.Spendable())
	}
	if _, err := repo.GetAccount(ctx, "alice01", "XXX"); !stdErrors.Is(err, ErrAccountNotFound) {
		t.Fatalf("unknown account error = %v, want ErrAccountNotFound", err)
	}
}

func TestMissingAuxFilesAreEmptyLists(t *testing.T) {
	repo := newSeededRepo(t)
	ctx := context.Background()

	payees, err := repo.ListPayees(ctx, "ghost99")
	if err != nil || len(payees) != 0 {
		t.Fatalf("ListPayees = %v, %v", payees, err)
	}
	cards, err := repo.ListCards(ctx, "alice01")
	if err != nil || len(cards) != 0 {
		t.Fatalf("ListCards = %v, %v", cards, err)
	}
	records, err := repo.ListTransactions(ctx, "alice01", "CHK-1")
	if err != nil || len(records) != 0 {
		t.Fatalf("ListTransactions = %v, %v", records, err)
	}
}

func TestCommitTransferInvariants(t *testing.T) {
	repo := newSeededRepo(t)
	ctx := context.Background()

	result, err := repo.CommitTransfer(ctx, "alice01", CommitRequest{
		TransferID: "T-FT-1",
		AccountID:  "CHK-1",
		PayeeID:    "P-1",
		PayeeName:  "Bob",
		Amount:     400,
		Currency:   "INR",
	})
	if err != nil {
		t.Fatalf("CommitTransfer: %v", err)
	}
	if result.Record.Amount != -400 || result.Record.RunningBalance != 600 {
		t.Fatalf("record = %+v", result.Record)
	}
	if result.Record.Counterparty != "Bob" || result.Record.Description != "Transfer to Bob" {
		t.Fatalf("record = %+v", result.Record)
	}
	if result.Record.Category != TransactionCategoryXfer ||
		result.Record.Method != TransactionMethodNEFT ||
		result.Record.Status != TransactionStatusPosted {
		t.Fatalf("record constants = %+v", result.Record)
	}
	// 活期账户：可用余额与账面余额同时扣减。
	if result.Account.Spendable() != 600 || result.Account.Balance != 600 {
		t.Fatalf("account = %+v", result.Account)
	}

	// 第二笔在前：流水保持最新在前。
	if _, err := repo.CommitTransfer(ctx, "alice01", CommitRequest{
		TransferID: "T-FT-2", AccountID: "CHK-1", PayeeID: "P-1", PayeeName: "Bob",
		Amount: 100, Currency: "INR",
	}); err != nil {
		t.Fatalf("second CommitTransfer: %v", err)
	}
	records, _ := repo.ListTransactions(ctx, "alice01", "CHK-1")
	if len(records) != 2 || records[0].ID != "T-FT-2" || records[1].ID != "T-FT-1" {
		t.Fatalf("newest-first ordering broken: %+v", records)
	}
}

func TestCommitTransferRevolvingCreditKeepsLedgerBalance(t *testing.T) {
	repo := newSeededRepo(t)

	result, err := repo.CommitTransfer(context.Background(), "alice01", CommitRequest{
		TransferID: "T-FT-3", AccountID: "CC-1", PayeeID: "P-1", PayeeName: "Bob",
		Amount: 500, Currency: "INR",
	})
	if err != nil {
		t.Fatalf("CommitTransfer: %v", err)
	}
	// 循环授信类账户只扣可用余额，账面余额不动。
	if result.Account.Spendable() != 4500 || result.Account.Balance != 0 {
		t.Fatalf("credit account = %+v", result.Account)
	}
}

func TestCommitTransferValidationOrder(t *testing.T) {
	repo := newSeededRepo(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CommitRequest
		want error
	}{
		{"zero amount", CommitRequest{TransferID: "T", AccountID: "CHK-1", Amount: 0, Currency: "INR"}, ErrInvalidAmount},
		{"negative amount", CommitRequest{TransferID: "T", AccountID: "CHK-1", Amount: -5, Currency: "INR"}, ErrInvalidAmount},
		{"unknown account", CommitRequest{TransferID: "T", AccountID: "XXX", Amount: 10, Currency: "INR"}, ErrAccountNotFound},
		{"currency mismatch", CommitRequest{TransferID: "T", AccountID: "CHK-1", Amount: 10, Currency: "USD"}, ErrCurrencyMismatch},
		{"insufficient funds", CommitRequest{TransferID: "T", AccountID: "CHK-1", Amount: 1500, Currency: "INR"}, ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := repo.CommitTransfer(ctx, "alice01", tc.req); !stdErrors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}

	// 全部被拒的提交不得留下任何写入。
	account, _ := repo.GetAccount(ctx, "alice01", "CHK-1")
	if account.Spendable() != 1000 {
		t.Fatalf("rejected commits must not move the balance: %v", account.Spendable())
	}
	records, _ := repo.ListTransactions(ctx, "alice01", "CHK-1")
	if len(records) != 0 {
		t.Fatalf("rejected commits must not append records: %d", len(records))
	}
}

func TestPayeeMatching(t *testing.T) {
	payee := Payee{PayeeID: "P-1", Name: "Bob", Alias: []string{"Bobby K"}}
	if !payee.Matches("bob") || !payee.Matches("BOBBY") || !payee.Matches("by k") {
		t.Fatalf("substring alias matching broken")
	}
	if payee.Matches("xyz") || payee.Matches("") || payee.Matches("   ") {
		t.Fatalf("non-matches must be rejected")
	}
}
