package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
)

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.Description) == "" || !expense.Amount.IsPositive() {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[expense.StoreID]; !ok {
		return nil, store.ErrNotFound
	}
	expense.ID = s.nextID("expenses")
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, storeID int64, from *time.Time, to *time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, 0)
	for _, e := range s.expenses {
		if e.StoreID != storeID {
			continue
		}
		if from != nil && e.ExpenseDate.Before(*from) {
			continue
		}
		if to != nil && e.ExpenseDate.After(*to) {
			continue
		}
		result = append(result, e)
	}
	slices.SortFunc(result, func(a, b domain.Expense) int {
		if !a.ExpenseDate.Equal(b.ExpenseDate) {
			if a.ExpenseDate.After(b.ExpenseDate) {
				return -1
			}
			return 1
		}
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID("audit_logs")
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID int64, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		if s.auditLogs[i].StoreID == storeID {
			result = append(result, s.auditLogs[i])
		}
	}
	return result, nil
}
