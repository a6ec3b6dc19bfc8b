package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
)

const expenseColumns = `id, store_id, description, amount, category, expense_date, manager_id, cashier_id, created_at`

type expenseRow struct {
	domain.Expense
	ManagerID uuid.NullUUID `db:"manager_id"`
	CashierID sql.NullInt64 `db:"cashier_id"`
}

func (r expenseRow) toDomain() domain.Expense {
	expense := r.Expense
	if actor, ok := actorFromColumns(r.ManagerID, r.CashierID); ok {
		expense.RecordedBy = &actor
	}
	return expense
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.Description) == "" || !expense.Amount.IsPositive() {
		return nil, store.ErrInvalid
	}
	managerID, cashierID := actorColumns(expense.RecordedBy)

	var row expenseRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO expenses (store_id, description, amount, category, expense_date, manager_id, cashier_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+expenseColumns,
		expense.StoreID, expense.Description, expense.Amount, expense.Category, expense.ExpenseDate, managerID, cashierID)
	if err != nil {
		return nil, err
	}
	created := row.toDomain()
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, storeID int64, from *time.Time, to *time.Time) ([]domain.Expense, error) {
	args := []any{storeID}
	clauses := []string{"store_id = $1"}
	if from != nil {
		args = append(args, *from)
		clauses = append(clauses, fmt.Sprintf("expense_date >= $%d::date", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		clauses = append(clauses, fmt.Sprintf("expense_date <= $%d::date", len(args)))
	}

	rows := make([]expenseRow, 0, 32)
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE `+strings.Join(clauses, " AND ")+`
		ORDER BY expense_date DESC, created_at DESC, id DESC
	`, args...); err != nil {
		return nil, err
	}

	expenses := make([]domain.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, row.toDomain())
	}
	return expenses, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (store_id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`, entry.StoreID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, nullTime(zeroAsNil(entry.CreatedAt)))
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID int64, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, limit)
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, store_id, actor, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
