package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	xerrors "NetBank-Chain/internal/errors"
)

// FileRepository 基于每用户 JSON 文件实现 Repository 与 Ledger。
// 目录布局沿用线上数据格式：
//
//	<dataDir>/users/<user_id>/accounts.json
//	<dataDir>/users/<user_id>/payees.json
//	<dataDir>/users/<user_id>/cards.json
//	<dataDir>/users/<user_id>/holdings.json
//	<dataDir>/users/<user_id>/transactions/<account_id>.json
type FileRepository struct {
	dataDir string

	lockMu       sync.Mutex
	accountLocks map[string]*sync.Mutex

	now func() time.Time
}

// NewFileRepository 创建文件仓库。dataDir 不存在时自动创建。
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "数据目录不能为空")
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "users"), 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建数据目录失败")
	}
	return &FileRepository{
		dataDir:      dataDir,
		accountLocks: make(map[string]*sync.Mutex),
		now:          time.Now,
	}, nil
}

func (r *FileRepository) userDir(userID string) string {
	return filepath.Join(r.dataDir, "users", userID)
}

func (r *FileRepository) accountsPath(userID string) string {
	return filepath.Join(r.userDir(userID), "accounts.json")
}

func (r *FileRepository) transactionsPath(userID, accountID string) string {
	return filepath.Join(r.userDir(userID), "transactions", accountID+".json")
}

// accountLock 返回指定账户的互斥锁。同一账户的写操作必须串行。
func (r *FileRepository) accountLock(userID, accountID string) *sync.Mutex {
	key := userID + "/" + accountID
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lock, ok := r.accountLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.accountLocks[key] = lock
	}
	return lock
}

// UserExists 实现 Repository 接口。
func (r *FileRepository) UserExists(_ context.Context, userID string) (bool, error) {
	info, err := os.Stat(r.userDir(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "检查用户目录失败")
	}
	return info.IsDir(), nil
}

// ListAccounts 返回用户的账户清单。用户不存在与清单缺失是不同的错误。
func (r *FileRepository) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	exists, err := r.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	var accounts []Account
	found, err := readJSONFile(r.accountsPath(userID), &accounts)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAccountsNotFound
	}
	return accounts, nil
}

// GetAccount 返回指定账户。
func (r *FileRepository) GetAccount(ctx context.Context, userID, accountID string) (*Account, error) {
	accounts, err := r.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].AccountID == accountID {
			acct := accounts[i]
			return &acct, nil
		}
	}
	return nil, ErrAccountNotFound
}

// ListPayees 返回用户保存的收款人，文件缺失时视为空列表。
func (r *FileRepository) ListPayees(_ context.Context, userID string) ([]Payee, error) {
	var payees []Payee
	if _, err := readJSONFile(filepath.Join(r.userDir(userID), "payees.json"), &payees); err != nil {
		return nil, err
	}
	return payees, nil
}

// ListTransactions 返回账户流水，最新记录在前。
func (r *FileRepository) ListTransactions(_ context.Context, userID, accountID string) ([]TransactionRecord, error) {
	var records []TransactionRecord
	if _, err := readJSONFile(r.transactionsPath(userID, accountID), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// AppendTransaction 将流水插入到账户流水列表头部。
func (r *FileRepository) AppendTransaction(_ context.Context, userID, accountID string, record TransactionRecord) error {
	lock := r.accountLock(userID, accountID)
	lock.Lock()
	defer lock.Unlock()
	return r.prependTransaction(userID, accountID, record)
}

func (r *FileRepository) prependTransaction(userID, accountID string, record TransactionRecord) error {
	path := r.transactionsPath(userID, accountID)
	var records []TransactionRecord
	if _, err := readJSONFile(path, &records); err != nil {
		return err
	}
	updated := append([]TransactionRecord{record}, records...)
	return writeJSONFile(path, updated)
}

// UpdateAccount 写回单个账户记录。
func (r *FileRepository) UpdateAccount(_ context.Context, userID string, account Account) error {
	lock := r.accountLock(userID, account.AccountID)
	lock.Lock()
	defer lock.Unlock()
	return r.replaceAccount(userID, account)
}

func (r *FileRepository) replaceAccount(userID string, account Account) error {
	var accounts []Account
	found, err := readJSONFile(r.accountsPath(userID), &accounts)
	if err != nil {
		return err
	}
	if !found {
		return ErrAccountsNotFound
	}
	for i := range accounts {
		if accounts[i].AccountID == account.AccountID {
			accounts[i] = account
			return writeJSONFile(r.accountsPath(userID), accounts)
		}
	}
	return ErrAccountNotFound
}

// ListCards 返回用户名下的信用卡，文件缺失时视为空列表。
func (r *FileRepository) ListCards(_ context.Context, userID string) ([]Card, error) {
	var cards []Card
	if _, err := readJSONFile(filepath.Join(r.userDir(userID), "cards.json"), &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// ListHoldings 返回用户的投资持仓，文件缺失时视为空列表。
func (r *FileRepository) ListHoldings(_ context.Context, userID string) ([]Holding, error) {
	var holdings []Holding
	if _, err := readJSONFile(filepath.Join(r.userDir(userID), "holdings.json"), &holdings); err != nil {
		return nil, err
	}
	return holdings, nil
}

// Close 对文件仓库无需操作。
func (r *FileRepository) Close() error {
	return nil
}

// CommitTransfer 实现 Ledger 接口。校验与两次写入都在账户锁内完成：
// 先写流水文件，再写账户文件；账户写入失败时回滚流水文件，
// 保证不会出现只成功一半的提交。
func (r *FileRepository) CommitTransfer(ctx context.Context, userID string, req CommitRequest) (*CommitResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(req.TransferID) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "转账标识不能为空")
	}

	lock := r.accountLock(userID, req.AccountID)
	lock.Lock()
	defer lock.Unlock()

	// 锁内重新读取账户，防止并发提交基于过期余额判断。
	var accounts []Account
	found, err := readJSONFile(r.accountsPath(userID), &accounts)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAccountsNotFound
	}
	idx := -1
	for i := range accounts {
		if accounts[i].AccountID == req.AccountID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrAccountNotFound
	}
	account := accounts[idx]

	if req.Currency != "" && account.Currency != "" && req.Currency != account.Currency {
		return nil, ErrCurrencyMismatch
	}
	available := account.Spendable()
	if req.Amount > available {
		return nil, ErrInsufficientFunds
	}

	now := r.now().UTC()
	running := round2(available - req.Amount)
	description := req.Reference
	if description == "" {
		description = fmt.Sprintf("Transfer to %s", req.PayeeName)
	}
	record := TransactionRecord{
		ID:             req.TransferID,
		Date:           now.Format("2006-01-02"),
		Description:    description,
		Category:       TransactionCategoryXfer,
		Amount:         -req.Amount,
		Currency:       account.Currency,
		Method:         TransactionMethodNEFT,
		Status:         TransactionStatusPosted,
		RunningBalance: running,
		Counterparty:   req.PayeeName,
	}

	// 第一笔写入：流水文件。保留旧内容以便回滚。
	txnPath := r.transactionsPath(userID, req.AccountID)
	oldTxns, txnExisted, err := readRawFile(txnPath)
	if err != nil {
		return nil, err
	}
	if err := r.prependTransaction(userID, req.AccountID, record); err != nil {
		return nil, err
	}

	// 第二笔写入：账户文件。可用余额始终扣减，循环授信类账户不动账面余额。
	account.AvailableBalance = &running
	if !account.IsRevolving() {
		account.Balance = round2(account.Balance - req.Amount)
	}
	account.LastUpdated = now.Format("2006-01-02T15:04:05Z")
	accounts[idx] = account
	if err := writeJSONFile(r.accountsPath(userID), accounts); err != nil {
		if rollbackErr := restoreRawFile(txnPath, oldTxns, txnExisted); rollbackErr != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err,
				"账户写入失败且流水回滚失败", xerrors.WithMetadata("rollback_error", rollbackErr.Error()))
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "账户写入失败，流水已回滚")
	}

	return &CommitResult{Record: record, Account: account}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// readJSONFile 读取 JSON 文件。文件不存在时返回 found=false 而非错误。
func readJSONFile(path string, v any) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("读取 %s 失败", path))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("解析 %s 失败", path))
	}
	return true, nil
}

// writeJSONFile 以临时文件加重命名的方式原子写入。
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建数据子目录失败")
	}
	raw, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "编码 JSON 失败")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("写入 %s 失败", tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("替换 %s 失败", path))
	}
	return nil
}

func readRawFile(path string) ([]byte, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("读取 %s 失败", path))
	}
	return raw, true, nil
}

func restoreRawFile(path string, raw []byte, existed bool) error {
	if !existed {
		return os.Remove(path)
	}
	return os.WriteFile(path, raw, 0o644)
}

// 编译期接口断言。
var (
	_ Repository = (*FileRepository)(nil)
	_ Ledger     = (*FileRepository)(nil)
)
