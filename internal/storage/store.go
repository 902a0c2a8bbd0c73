// Package storage persists account state and transaction history in the
// engine's storage directory.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const SettingNodeURL = "node_url"

type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open wallet sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS accounts (
			account_index INTEGER PRIMARY KEY,
			alias TEXT NOT NULL UNIQUE,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			account_index INTEGER NOT NULL,
			tx_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (account_index, tx_id)
		);`,
		"CREATE INDEX IF NOT EXISTS idx_transactions_account_created ON transactions(account_index, created_at DESC);",
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init wallet schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) withLock(fn func() error) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock wallet store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock wallet store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) SaveAccount(account model.AccountState) error {
	return s.withLock(func() error { return s.saveAccount(s.db, account) })
}

func (s *Store) saveAccount(db execer, account model.AccountState) error {
	payload, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO accounts (account_index, alias, updated_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_index) DO UPDATE SET
			alias=excluded.alias,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, account.Index, account.Alias, s.now().UTC().Unix(), payload)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// LoadAccounts returns every account ordered by index.
func (s *Store) LoadAccounts() ([]model.AccountState, error) {
	rows, err := s.db.Query("SELECT payload FROM accounts ORDER BY account_index ASC")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]model.AccountState, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		var account model.AccountState
		if err := json.Unmarshal(payload, &account); err != nil {
			return nil, fmt.Errorf("decode account row: %w", err)
		}
		if account.Unspent == nil {
			account.Unspent = map[model.OutputID]model.OutputRecord{}
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}

func (s *Store) SaveTransaction(tx model.Transaction) error {
	return s.withLock(func() error { return s.saveTransaction(s.db, tx) })
}

func (s *Store) saveTransaction(db execer, tx model.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	createdUnix := tx.CreatedAt.UTC().Unix()
	updatedUnix := tx.UpdatedAt.UTC().Unix()
	if tx.CreatedAt.IsZero() {
		createdUnix = s.now().UTC().Unix()
	}
	if tx.UpdatedAt.IsZero() {
		updatedUnix = s.now().UTC().Unix()
	}
	_, err = db.Exec(`
		INSERT INTO transactions (account_index, tx_id, status, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_index, tx_id) DO UPDATE SET
			status=excluded.status,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, tx.AccountIndex, tx.ID.String(), string(tx.Status), createdUnix, updatedUnix, payload)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(accountIndex uint32, id model.TransactionID) (model.Transaction, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM transactions WHERE account_index = ? AND tx_id = ?", accountIndex, id.String()).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Transaction{}, clierr.Newf(clierr.CodeNotFound, "transaction not found: %s", id)
		}
		return model.Transaction{}, fmt.Errorf("read transaction: %w", err)
	}
	var tx model.Transaction
	if err := json.Unmarshal(payload, &tx); err != nil {
		return model.Transaction{}, fmt.Errorf("decode transaction payload: %w", err)
	}
	return tx, nil
}

// ListTransactions returns the newest transactions first. An empty status lists all.
func (s *Store) ListTransactions(accountIndex uint32, status model.TransactionStatus, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 1000
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.db.Query("SELECT payload FROM transactions WHERE account_index = ? ORDER BY created_at DESC, tx_id ASC LIMIT ?", accountIndex, limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM transactions WHERE account_index = ? AND status = ? ORDER BY created_at DESC, tx_id ASC LIMIT ?", accountIndex, string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]model.Transaction, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		var tx model.Transaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			return nil, fmt.Errorf("decode transaction row: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txs, nil
}

func (s *Store) Setting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read setting: %w", err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(key, value string) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value
		`, key, value)
		if err != nil {
			return fmt.Errorf("save setting: %w", err)
		}
		return nil
	})
}

// ReplaceAll swaps every account and transaction for the given snapshot in
// one database transaction. Settings are kept.
func (s *Store) ReplaceAll(accounts []model.AccountState, txs []model.Transaction) error {
	return s.withLock(func() error {
		dbtx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin restore: %w", err)
		}
		defer func() { _ = dbtx.Rollback() }()

		for _, q := range []string{"DELETE FROM accounts", "DELETE FROM transactions"} {
			if _, err := dbtx.Exec(q); err != nil {
				return fmt.Errorf("clear wallet store: %w", err)
			}
		}
		for _, account := range accounts {
			if err := s.saveAccount(dbtx, account); err != nil {
				return err
			}
		}
		for _, tx := range txs {
			if err := s.saveTransaction(dbtx, tx); err != nil {
				return err
			}
		}
		if err := dbtx.Commit(); err != nil {
			return fmt.Errorf("commit restore: %w", err)
		}
		return nil
	})
}

// AllTransactions lists every stored transaction, used for backups.
func (s *Store) AllTransactions() ([]model.Transaction, error) {
	accounts, err := s.LoadAccounts()
	if err != nil {
		return nil, err
	}
	all := make([]model.Transaction, 0)
	for _, account := range accounts {
		txs, err := s.ListTransactions(account.Index, "", -1)
		if err != nil {
			return nil, err
		}
		all = append(all, txs...)
	}
	return all, nil
}
