package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or is inactive.
var ErrNotFound = errors.New("not found")

// TransactionIncome and TransactionExpense are the only transaction types.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

type Settings struct {
	PasswordHash       string `json:"-"`
	Theme              string `json:"theme"`
	BaseCurrency       string `json:"baseCurrency"`
	MandatoryPercent   int    `json:"mandatoryPercent"`
	VariablePercent    int    `json:"variablePercent"`
	SavingsPercent     int    `json:"savingsPercent"`
	InvestmentsPercent int    `json:"investmentsPercent"`
}

type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Currency     string    `json:"currency"`
	BalanceCents int64     `json:"balanceCents"`
	Color        string    `json:"color,omitempty"`
	Icon         string    `json:"icon,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amountCents"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	OccurredOn  string    `json:"occurredOn"` // YYYY-MM-DD
	Exported    bool      `json:"exported"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	Year      int
	Month     int
	AccountID string
}

// SQLiteRepository owns the database handle and every query kopilka runs.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ensureSettings creates the singleton settings row if it does not exist.
func (r *SQLiteRepository) ensureSettings(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("ensure settings row: %w", err)
	}
	return nil
}

// GetCredential implements auth.CredentialStore. An absent row or NULL hash
// both report "", the signal for first-run setup.
func (r *SQLiteRepository) GetCredential(ctx context.Context) (string, error) {
	var hash sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM settings WHERE id = 1`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return hash.String, nil
}

// SetCredential implements auth.CredentialStore. The hash is written in a
// single statement; there is no partial-write state.
func (r *SQLiteRepository) SetCredential(ctx context.Context, hash string) error {
	if err := r.ensureSettings(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE settings SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`, hash)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSettings(ctx context.Context) (Settings, error) {
	if err := r.ensureSettings(ctx); err != nil {
		return Settings{}, err
	}

	var s Settings
	var hash sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT password_hash, theme, base_currency,
		       mandatory_percent, variable_percent, savings_percent, investments_percent
		FROM settings WHERE id = 1`).
		Scan(&hash, &s.Theme, &s.BaseCurrency,
			&s.MandatoryPercent, &s.VariablePercent, &s.SavingsPercent, &s.InvestmentsPercent)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s.PasswordHash = hash.String
	return s, nil
}

// UpdateSettings overwrites the tunable settings fields. The credential hash
// is not touched here; only SetCredential writes it.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, s Settings) error {
	if err := r.ensureSettings(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE settings
		SET theme = ?, base_currency = ?,
		    mandatory_percent = ?, variable_percent = ?, savings_percent = ?, investments_percent = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`,
		s.Theme, s.BaseCurrency,
		s.MandatoryPercent, s.VariablePercent, s.SavingsPercent, s.InvestmentsPercent)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Type == "" {
		a.Type = "savings"
	}
	if a.Currency == "" {
		a.Currency = "RUB"
	}
	a.IsActive = true
	a.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, type, currency, balance_cents, color, icon, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		a.ID, a.Name, a.Type, a.Currency, a.BalanceCents, nullable(a.Color), nullable(a.Icon), a.CreatedAt)
	if err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "id", a.ID, "name", a.Name, "type", a.Type)
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `
		SELECT id, name, type, currency, balance_cents, color, icon, is_active, created_at
		FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("read account: %w", err)
	}
	return a, nil
}

// ListAccounts returns active accounts ordered by type then name.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, currency, balance_cents, color, icon, is_active, created_at
		FROM accounts WHERE is_active = 1
		ORDER BY type ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a Account) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET name = ?, type = ?, currency = ?, color = ?, icon = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_active = 1`,
		a.Name, a.Type, a.Currency, nullable(a.Color), nullable(a.Icon), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireRow(res)
}

// DeactivateAccount soft deletes: history stays queryable for export.
func (r *SQLiteRepository) DeactivateAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	return requireRow(res)
}

// CreateTransaction inserts the row and adjusts the account balance in one
// SQL transaction, so the ledger and the balance can never disagree.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT is_active FROM accounts WHERE id = ?`, t.AccountID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("read account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, type, amount_cents, category, description, occurred_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Type, t.AmountCents, t.Category, t.Description, t.OccurredOn, t.CreatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.balanceDelta(), t.AccountID); err != nil {
		return Transaction{}, fmt.Errorf("adjust balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Transaction{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", t.ID, "account_id", t.AccountID, "type", t.Type, "amount_cents", t.AmountCents)
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `
		SELECT id, account_id, type, amount_cents, category, description, occurred_on, exported, created_at
		FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("read transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	query := `
		SELECT id, account_id, type, amount_cents, category, description, occurred_on, exported, created_at
		FROM transactions WHERE 1 = 1`
	var args []any

	if f.Year != 0 && f.Month != 0 {
		query += ` AND occurred_on >= ? AND occurred_on < ?`
		start := fmt.Sprintf("%04d-%02d-01", f.Year, f.Month)
		endYear, endMonth := f.Year, f.Month+1
		if endMonth == 13 {
			endYear, endMonth = f.Year+1, 1
		}
		args = append(args, start, fmt.Sprintf("%04d-%02d-01", endYear, endMonth))
	}
	if f.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, f.AccountID)
	}
	query += ` ORDER BY occurred_on DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// UpdateTransaction rewrites a transaction and moves its balance effect:
// the old delta is reverted on the old account and the new delta applied to
// the new one, all in a single SQL transaction. CreatedAt and the exported
// flag are preserved.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	old, err := scanTransaction(tx.QueryRowContext(ctx, `
		SELECT id, account_id, type, amount_cents, category, description, occurred_on, exported, created_at
		FROM transactions WHERE id = ?`, t.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("read transaction: %w", err)
	}

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT is_active FROM accounts WHERE id = ?`, t.AccountID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("read account: %w", err)
	}

	t.Exported = old.Exported
	t.CreatedAt = old.CreatedAt

	_, err = tx.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, type = ?, amount_cents = ?, category = ?, description = ?, occurred_on = ?
		WHERE id = ?`,
		t.AccountID, t.Type, t.AmountCents, t.Category, t.Description, t.OccurredOn, t.ID)
	if err != nil {
		return Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		old.balanceDelta(), old.AccountID); err != nil {
		return Transaction{}, fmt.Errorf("revert balance: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.balanceDelta(), t.AccountID); err != nil {
		return Transaction{}, fmt.Errorf("adjust balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Transaction{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// DeleteTransaction removes the row and reverts its balance effect.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := scanTransaction(tx.QueryRowContext(ctx, `
		SELECT id, account_id, type, amount_cents, category, description, occurred_on, exported, created_at
		FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.balanceDelta(), t.AccountID); err != nil {
		return fmt.Errorf("revert balance: %w", err)
	}

	return tx.Commit()
}

// MarkTransactionExported is called by the export worker after it has
// processed the event for this row.
func (r *SQLiteRepository) MarkTransactionExported(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET exported = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction exported: %w", err)
	}
	return requireRow(res)
}

func (t Transaction) balanceDelta() int64 {
	if t.Type == TransactionExpense {
		return -t.AmountCents
	}
	return t.AmountCents
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	var color, icon sql.NullString
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Currency, &a.BalanceCents, &color, &icon, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	a.Color = color.String
	a.Icon = icon.String
	return a, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.AmountCents, &t.Category, &t.Description,
		&t.OccurredOn, &t.Exported, &t.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
