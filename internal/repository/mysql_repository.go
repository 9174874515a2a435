package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	xerrors "NetBank-Chain/internal/errors"
	"github.com/go-sql-driver/mysql"
)

// MySQLConfig 描述 MySQL 仓库的连接参数。
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLRepository 使用 MySQL 保存用户银行数据，并以数据库事务实现转账提交。
type MySQLRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewMySQLRepository 创建 MySQL 仓库并初始化表结构。
func NewMySQLRepository(ctx context.Context, cfg MySQLConfig) (*MySQLRepository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	repo := &MySQLRepository{db: db, now: time.Now}
	if err := repo.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *MySQLRepository) initSchema(ctx context.Context) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS bank_accounts (
        user_id VARCHAR(64) NOT NULL,
        account_id VARCHAR(64) NOT NULL,
        type VARCHAR(32) NOT NULL,
        nickname VARCHAR(128) DEFAULT '',
        currency VARCHAR(8) NOT NULL,
        balance DECIMAL(18,2) NOT NULL DEFAULT 0,
        available_balance DECIMAL(18,2),
        last_updated VARCHAR(32) DEFAULT '',
        PRIMARY KEY (user_id, account_id)
)`,
		`CREATE TABLE IF NOT EXISTS bank_payees (
        user_id VARCHAR(64) NOT NULL,
        payee_id VARCHAR(64) NOT NULL,
        name VARCHAR(128) NOT NULL,
        aliases TEXT,
        PRIMARY KEY (user_id, payee_id)
)`,
		`CREATE TABLE IF NOT EXISTS bank_transactions (
        user_id VARCHAR(64) NOT NULL,
        account_id VARCHAR(64) NOT NULL,
        txn_id VARCHAR(64) NOT NULL,
        txn_date VARCHAR(16) NOT NULL,
        description TEXT,
        category VARCHAR(64) DEFAULT '',
        amount DECIMAL(18,2) NOT NULL,
        currency VARCHAR(8) NOT NULL,
        method VARCHAR(32) DEFAULT '',
        status VARCHAR(32) DEFAULT '',
        running_balance DECIMAL(18,2) NOT NULL,
        counterparty VARCHAR(128) DEFAULT '',
        seq BIGINT NOT NULL AUTO_INCREMENT,
        PRIMARY KEY (seq),
        UNIQUE KEY uniq_txn (user_id, account_id, txn_id),
        INDEX idx_txn_account (user_id, account_id)
)`,
		`CREATE TABLE IF NOT EXISTS bank_cards (
        user_id VARCHAR(64) NOT NULL,
        card_id VARCHAR(64) NOT NULL,
        network VARCHAR(32) DEFAULT '',
        last4 VARCHAR(8) DEFAULT '',
        credit_limit DECIMAL(18,2) NOT NULL DEFAULT 0,
        outstanding DECIMAL(18,2) NOT NULL DEFAULT 0,
        due_date VARCHAR(16) DEFAULT '',
        PRIMARY KEY (user_id, card_id)
)`,
		`CREATE TABLE IF NOT EXISTS bank_holdings (
        user_id VARCHAR(64) NOT NULL,
        symbol VARCHAR(32) NOT NULL,
        name VARCHAR(128) DEFAULT '',
        kind VARCHAR(32) NOT NULL,
        units DECIMAL(18,4) NOT NULL DEFAULT 0,
        avg_cost DECIMAL(18,2) NOT NULL DEFAULT 0,
        last_price DECIMAL(18,2) NOT NULL DEFAULT 0,
        currency VARCHAR(8) DEFAULT '',
        PRIMARY KEY (user_id, symbol, kind)
)`,
	}
	for _, schema := range schemas {
		if _, err := r.db.ExecContext(ctx, schema); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化表结构失败")
		}
	}
	return nil
}

// UserExists 以是否存在任一账户记录判断用户是否存在。
func (r *MySQLRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM bank_accounts WHERE user_id = ? LIMIT 1`, userID).Scan(&one)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询用户失败")
	}
	return true, nil
}

// ListAccounts 返回用户账户清单。
func (r *MySQLRepository) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, type, nickname, currency, balance, available_balance, last_updated
         FROM bank_accounts WHERE user_id = ? ORDER BY account_id`, userID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询账户失败")
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var acct Account
		var available sql.NullFloat64
		if err := rows.Scan(&acct.AccountID, &acct.Type, &acct.Nickname, &acct.Currency,
			&acct.Balance, &available, &acct.LastUpdated); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析账户记录失败")
		}
		if available.Valid {
			v := available.Float64
			acct.AvailableBalance = &v
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历账户记录失败")
	}
	if len(accounts) == 0 {
		return nil, ErrUserNotFound
	}
	return accounts, nil
}

// GetAccount 返回指定账户。
func (r *MySQLRepository) GetAccount(ctx context.Context, userID, accountID string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT account_id, type, nickname, currency, balance, available_balance, last_updated
         FROM bank_accounts WHERE user_id = ? AND account_id = ?`, userID, accountID)
	acct, err := scanAccount(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询账户失败")
	}
	return acct, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var acct Account
	var available sql.NullFloat64
	if err := row.Scan(&acct.AccountID, &acct.Type, &acct.Nickname, &acct.Currency,
		&acct.Balance, &available, &acct.LastUpdated); err != nil {
		return nil, err
	}
	if available.Valid {
		v := available.Float64
		acct.AvailableBalance = &v
	}
	return &acct, nil
}

// ListPayees 返回用户保存的收款人。
func (r *MySQLRepository) ListPayees(ctx context.Context, userID string) ([]Payee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payee_id, name, aliases FROM bank_payees WHERE user_id = ? ORDER BY payee_id`, userID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询收款人失败")
	}
	defer rows.Close()

	var payees []Payee
	for rows.Next() {
		var payee Payee
		var aliases sql.NullString
		if err := rows.Scan(&payee.PayeeID, &payee.Name, &aliases); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析收款人记录失败")
		}
		if aliases.Valid && aliases.String != "" {
			if err := json.Unmarshal([]byte(aliases.String), &payee.Alias); err != nil {
				return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析收款人别名失败")
			}
		}
		payees = append(payees, payee)
	}
	return payees, rows.Err()
}

// ListTransactions 返回账户流水，最新记录在前。
func (r *MySQLRepository) ListTransactions(ctx context.Context, userID, accountID string) ([]TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT txn_id, txn_date, description, category, amount, currency, method, status, running_balance, counterparty
         FROM bank_transactions WHERE user_id = ? AND account_id = ? ORDER BY seq DESC`, userID, accountID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询流水失败")
	}
	defer rows.Close()

	var records []TransactionRecord
	for rows.Next() {
		var rec TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Description, &rec.Category, &rec.Amount,
			&rec.Currency, &rec.Method, &rec.Status, &rec.RunningBalance, &rec.Counterparty); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析流水记录失败")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AppendTransaction 插入一条流水记录。
func (r *MySQLRepository) AppendTransaction(ctx context.Context, userID, accountID string, record TransactionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bank_transactions
         (user_id, account_id, txn_id, txn_date, description, category, amount, currency, method, status, running_balance, counterparty)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, accountID, record.ID, record.Date, record.Description, record.Category,
		record.Amount, record.Currency, record.Method, record.Status, record.RunningBalance, record.Counterparty)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return xerrors.Wrap(xerrors.CodeConflict, err, "流水标识重复")
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入流水失败")
	}
	return nil
}

// UpdateAccount 写回账户记录。
func (r *MySQLRepository) UpdateAccount(ctx context.Context, userID string, account Account) error {
	var available any
	if account.AvailableBalance != nil {
		available = *account.AvailableBalance
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank_accounts SET type = ?, nickname = ?, currency = ?, balance = ?, available_balance = ?, last_updated = ?
         WHERE user_id = ? AND account_id = ?`,
		account.Type, account.Nickname, account.Currency, account.Balance, available, account.LastUpdated,
		userID, account.AccountID)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新账户失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		if _, getErr := r.GetAccount(ctx, userID, account.AccountID); getErr != nil {
			return getErr
		}
	}
	return nil
}

// ListCards 返回用户名下的信用卡。
func (r *MySQLRepository) ListCards(ctx context.Context, userID string) ([]Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT card_id, network, last4, credit_limit, outstanding, due_date
         FROM bank_cards WHERE user_id = ? ORDER BY card_id`, userID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询信用卡失败")
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var card Card
		if err := rows.Scan(&card.CardID, &card.Network, &card.Last4, &card.CreditLimit,
			&card.Outstanding, &card.DueDate); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析信用卡记录失败")
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// ListHoldings 返回用户的投资持仓。
func (r *MySQLRepository) ListHoldings(ctx context.Context, userID string) ([]Holding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT symbol, name, kind, units, avg_cost, last_price, currency
         FROM bank_holdings WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询持仓失败")
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.Symbol, &h.Name, &h.Kind, &h.Units, &h.AvgCost, &h.LastPrice, &h.Currency); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析持仓记录失败")
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// Close 关闭数据库连接。
func (r *MySQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CommitTransfer 实现 Ledger 接口。整个提交在单个数据库事务内完成，
// SELECT ... FOR UPDATE 对账户行加锁，实现同账户提交的串行化。
func (r *MySQLRepository) CommitTransfer(ctx context.Context, userID string, req CommitRequest) (*CommitResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(req.TransferID) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "转账标识不能为空")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启事务失败")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT account_id, type, nickname, currency, balance, available_balance, last_updated
         FROM bank_accounts WHERE user_id = ? AND account_id = ? FOR UPDATE`, userID, req.AccountID)
	account, err := scanAccount(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "锁定账户行失败")
	}

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

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bank_transactions
         (user_id, account_id, txn_id, txn_date, description, category, amount, currency, method, status, running_balance, counterparty)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, req.AccountID, record.ID, record.Date, record.Description, record.Category,
		record.Amount, record.Currency, record.Method, record.Status, record.RunningBalance, record.Counterparty); err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, xerrors.Wrap(xerrors.CodeConflict, err, "转账标识重复")
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入流水失败")
	}

	account.AvailableBalance = &running
	if !account.IsRevolving() {
		account.Balance = round2(account.Balance - req.Amount)
	}
	account.LastUpdated = now.Format("2006-01-02T15:04:05Z")
	if _, err := tx.ExecContext(ctx,
		`UPDATE bank_accounts SET balance = ?, available_balance = ?, last_updated = ?
         WHERE user_id = ? AND account_id = ?`,
		account.Balance, running, account.LastUpdated, userID, req.AccountID); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新账户余额失败")
	}

	if err := tx.Commit(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交事务失败")
	}
	result := &CommitResult{Record: record, Account: *account}
	return result, nil
}

// 编译期接口断言。
var (
	_ Repository = (*MySQLRepository)(nil)
	_ Ledger     = (*MySQLRepository)(nil)
)
