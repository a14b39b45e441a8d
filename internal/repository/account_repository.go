package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/creditshare/creditshare/internal/database"
	"github.com/creditshare/creditshare/internal/model"
)

// ErrInsufficientCredits is returned when an adjustment would make a balance negative
var ErrInsufficientCredits = errors.New("insufficient credits")

const accountColumns = `id, name, email, password_hash, role, credits, referral_code, is_active, created_at`

// AccountRepository handles account persistence
type AccountRepository struct {
	db *database.Postgres
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *database.Postgres) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts an account. When the account starts with a non-zero
// balance, a credit transaction of txType is written in the same
// transaction.
func (r *AccountRepository) Create(ctx context.Context, account *model.Account, txType string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (`+accountColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			account.ID,
			account.Name,
			account.Email,
			account.PasswordHash,
			account.Role,
			account.Credits,
			account.ReferralCode,
			account.IsActive,
			account.CreatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to create account: %w", err)
		}

		if account.Credits == 0 {
			return nil
		}
		return insertCreditTransaction(ctx, tx, &model.CreditTransaction{
			ID:              NewID("ctx"),
			AccountID:       account.ID,
			Amount:          account.Credits,
			TransactionType: txType,
			Description:     "Initial balance",
			CreatedAt:       account.CreatedAt,
		})
	})
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an account by its normalized email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

// List returns accounts ordered by creation time, newest first
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*model.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// UpdatePasswordHash replaces the stored password hash
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustCredits adds amount (which may be negative) to the account's
// balance and records a credit transaction, atomically. It returns the
// updated account.
func (r *AccountRepository) AdjustCredits(ctx context.Context, id string, amount int, txType, description string) (*model.Account, error) {
	var account *model.Account

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE accounts SET credits = credits + $1
			WHERE id = $2
			RETURNING `+accountColumns,
			amount, id,
		)
		var err error
		account, err = scanAccount(row)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23514" {
				return ErrInsufficientCredits
			}
			return err
		}

		return insertCreditTransaction(ctx, tx, &model.CreditTransaction{
			ID:              NewID("ctx"),
			AccountID:       id,
			Amount:          amount,
			TransactionType: txType,
			Description:     description,
			CreatedAt:       time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func insertCreditTransaction(ctx context.Context, tx *sql.Tx, t *model.CreditTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, account_id, amount, transaction_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.AccountID, t.Amount, t.TransactionType, t.Description, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.Credits,
		&a.ReferralCode,
		&a.IsActive,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}
