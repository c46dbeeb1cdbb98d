// Package postgres implements store interfaces on top of gorm/PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/asemenov/finledger/internal/domain"
	"github.com/asemenov/finledger/internal/store"
)

// Store implements store.Store backed by a single gorm connection pool.
type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL and returns a ready Store.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing gorm handle (used by tests running against a
// temporary database).
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the schema.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&accountRecord{}, &transactionRecord{}, &preferencesRecord{})
}

func (s *Store) Accounts() store.AccountRepository         { return s }
func (s *Store) Transactions() store.TransactionRepository { return s }
func (s *Store) Preferences() store.PreferencesRepository  { return s }

type accountRecord struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index:idx_accounts_user_currency"`
	Currency  string `gorm:"index:idx_accounts_user_currency"`
	Name      string
	Balance   decimal.Decimal `gorm:"type:numeric(18,2)"`
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (accountRecord) TableName() string { return "accounts" }

type transactionRecord struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	AccountID string `gorm:"index"`

	Amount decimal.Decimal `gorm:"type:numeric(18,2)"`
	Type   string
	Date   time.Time

	Description  string `gorm:"size:255"`
	Counterparty string `gorm:"size:120"`
	Category     string `gorm:"size:50"`

	IsRecurring       bool
	RecurringInterval string
	NextRecurringDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (transactionRecord) TableName() string { return "transactions" }

type preferencesRecord struct {
	UserID                string `gorm:"primaryKey"`
	DefaultCurrency       string
	OnUnsupportedCurrency string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (preferencesRecord) TableName() string { return "user_preferences" }

func (s *Store) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	var rec accountRecord
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", accountID, userID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return accountFromRecord(&rec), nil
}

func (s *Store) FindAccountByCurrency(ctx context.Context, userID, currency string) (*domain.Account, error) {
	var rec accountRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		Order("created_at").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindAccountByCurrency: %w", err)
	}
	return accountFromRecord(&rec), nil
}

func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	rec := recordFromAccount(acc)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	acc.CreatedAt = rec.CreatedAt
	acc.UpdatedAt = rec.UpdatedAt
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error) {
	var recs []accountRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	accounts := make([]*domain.Account, 0, len(recs))
	for i := range recs {
		accounts = append(accounts, accountFromRecord(&recs[i]))
	}
	return accounts, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, txID string) (*domain.Transaction, error) {
	var rec transactionRecord
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", txID, userID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return transactionFromRecord(&rec), nil
}

// CreateWithBalanceDelta commits the row and the balance increment in one
// database transaction. The increment is expressed as SQL arithmetic so
// concurrent batches never lose updates.
func (s *Store) CreateWithBalanceDelta(ctx context.Context, t *domain.Transaction, delta decimal.Decimal) error {
	rec := recordFromTransaction(t)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return applyBalanceDelta(tx, t.UserID, t.AccountID, delta)
	})
	if err != nil {
		return fmt.Errorf("CreateWithBalanceDelta: %w", err)
	}
	t.CreatedAt = rec.CreatedAt
	t.UpdatedAt = rec.UpdatedAt
	return nil
}

func (s *Store) UpdateWithBalanceDelta(ctx context.Context, t *domain.Transaction, delta decimal.Decimal) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&transactionRecord{}).
			Where("id = ? AND user_id = ?", t.ID, t.UserID).
			Updates(map[string]any{
				"amount":              t.Amount,
				"type":                string(t.Type),
				"date":                t.Date,
				"description":         t.Description,
				"counterparty":        t.Counterparty,
				"category":            t.Category,
				"is_recurring":        t.IsRecurring,
				"recurring_interval":  string(t.RecurringInterval),
				"next_recurring_date": t.NextRecurringDate,
			})
		if res.Error != nil {
			return fmt.Errorf("update transaction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrTransactionNotFound
		}
		return applyBalanceDelta(tx, t.UserID, t.AccountID, delta)
	})
	if err != nil {
		return fmt.Errorf("UpdateWithBalanceDelta: %w", err)
	}
	return nil
}

func applyBalanceDelta(tx *gorm.DB, userID, accountID string, delta decimal.Decimal) error {
	res := tx.Model(&accountRecord{}).
		Where("id = ? AND user_id = ?", accountID, userID).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("apply balance delta: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	var rec preferencesRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetPreferences: %w", err)
	}
	return &domain.Preferences{
		UserID:                rec.UserID,
		DefaultCurrency:       rec.DefaultCurrency,
		OnUnsupportedCurrency: domain.CurrencyPolicy(rec.OnUnsupportedCurrency),
	}, nil
}

func (s *Store) PutPreferences(ctx context.Context, prefs *domain.Preferences) error {
	rec := &preferencesRecord{
		UserID:                prefs.UserID,
		DefaultCurrency:       prefs.DefaultCurrency,
		OnUnsupportedCurrency: string(prefs.OnUnsupportedCurrency),
	}
	err := s.db.WithContext(ctx).Save(rec).Error
	if err != nil {
		return fmt.Errorf("PutPreferences: %w", err)
	}
	return nil
}

func accountFromRecord(rec *accountRecord) *domain.Account {
	return &domain.Account{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Name:      rec.Name,
		Currency:  rec.Currency,
		Balance:   rec.Balance,
		IsDefault: rec.IsDefault,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func recordFromAccount(acc *domain.Account) *accountRecord {
	return &accountRecord{
		ID:        acc.ID,
		UserID:    acc.UserID,
		Currency:  acc.Currency,
		Name:      acc.Name,
		Balance:   acc.Balance,
		IsDefault: acc.IsDefault,
	}
}

func transactionFromRecord(rec *transactionRecord) *domain.Transaction {
	return &domain.Transaction{
		ID:                rec.ID,
		UserID:            rec.UserID,
		AccountID:         rec.AccountID,
		Amount:            rec.Amount,
		Type:              domain.TxType(rec.Type),
		Date:              rec.Date,
		Description:       rec.Description,
		Counterparty:      rec.Counterparty,
		Category:          rec.Category,
		IsRecurring:       rec.IsRecurring,
		RecurringInterval: domain.RecurringInterval(rec.RecurringInterval),
		NextRecurringDate: rec.NextRecurringDate,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func recordFromTransaction(t *domain.Transaction) *transactionRecord {
	return &transactionRecord{
		ID:                t.ID,
		UserID:            t.UserID,
		AccountID:         t.AccountID,
		Amount:            t.Amount,
		Type:              string(t.Type),
		Date:              t.Date,
		Description:       t.Description,
		Counterparty:      t.Counterparty,
		Category:          t.Category,
		IsRecurring:       t.IsRecurring,
		RecurringInterval: string(t.RecurringInterval),
		NextRecurringDate: t.NextRecurringDate,
	}
}
