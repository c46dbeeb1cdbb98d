// Package inmemory implements the store interfaces with mutex-guarded maps.
// It backs tests and the CLI dry-run mode. Failure hooks let tests simulate
// a store that loses half of the atomic unit.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/asemenov/finledger/internal/domain"
	"github.com/asemenov/finledger/internal/store"
)

// Store is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	prefs        map[string]*domain.Preferences

	// FailTransactionWrite, when set, aborts the atomic unit before the row
	// is written.
	FailTransactionWrite func(t *domain.Transaction) error

	// FailBalanceUpdate, when set, aborts the atomic unit after the row write
	// would have happened; the whole unit must roll back.
	FailBalanceUpdate func(accountID string) error
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		prefs:        make(map[string]*domain.Preferences),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Accounts() store.AccountRepository         { return s }
func (s *Store) Transactions() store.TransactionRepository { return s }
func (s *Store) Preferences() store.PreferencesRepository  { return s }

func (s *Store) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[accountID]
	if !ok || acc.UserID != userID {
		return nil, domain.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *Store) FindAccountByCurrency(ctx context.Context, userID, currency string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *domain.Account
	for _, acc := range s.accounts {
		if acc.UserID != userID || acc.Currency != currency {
			continue
		}
		if match == nil || acc.CreatedAt.Before(match.CreatedAt) {
			match = acc
		}
	}
	if match == nil {
		return nil, domain.ErrAccountNotFound
	}
	cp := *match
	return &cp, nil
}

func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	cp := *acc
	s.accounts[acc.ID] = &cp
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Account
	for _, acc := range s.accounts {
		if acc.UserID != userID {
			continue
		}
		cp := *acc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, txID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[txID]
	if !ok || t.UserID != userID {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

// CreateWithBalanceDelta holds the lock for the whole unit, so the row write
// and the balance increment are observed together or not at all.
func (s *Store) CreateWithBalanceDelta(ctx context.Context, t *domain.Transaction, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[t.AccountID]
	if !ok || acc.UserID != t.UserID {
		return domain.ErrAccountNotFound
	}

	if s.FailTransactionWrite != nil {
		if err := s.FailTransactionWrite(t); err != nil {
			return err
		}
	}
	if s.FailBalanceUpdate != nil {
		if err := s.FailBalanceUpdate(t.AccountID); err != nil {
			// The unit aborts before any state changed; no orphan row.
			return err
		}
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	s.transactions[t.ID] = &cp
	acc.Balance = acc.Balance.Add(delta)
	return nil
}

func (s *Store) UpdateWithBalanceDelta(ctx context.Context, t *domain.Transaction, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[t.ID]
	if !ok || existing.UserID != t.UserID {
		return domain.ErrTransactionNotFound
	}
	acc, ok := s.accounts[t.AccountID]
	if !ok || acc.UserID != t.UserID {
		return domain.ErrAccountNotFound
	}

	if s.FailBalanceUpdate != nil {
		if err := s.FailBalanceUpdate(t.AccountID); err != nil {
			return err
		}
	}

	t.UpdatedAt = time.Now()
	cp := *t
	cp.CreatedAt = existing.CreatedAt
	s.transactions[t.ID] = &cp
	acc.Balance = acc.Balance.Add(delta)
	return nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prefs[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrPreferencesNotFound
}

func (s *Store) PutPreferences(ctx context.Context, prefs *domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *prefs
	s.prefs[prefs.UserID] = &cp
	return nil
}

// AllTransactions returns a snapshot of every stored transaction, for tests
// asserting on orphan rows.
func (s *Store) AllTransactions() []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		cp := *t
		out = append(out, &cp)
	}
	return out
}
