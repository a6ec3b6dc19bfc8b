package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
)

const dateLayout = "2006-01-02"

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (*domain.Expense, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, apperr.New(apperr.CodeValidation, "Description is required")
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.New(apperr.CodeValidation, "Amount must be greater than 0")
	}
	expenseDate, err := time.Parse(dateLayout, strings.TrimSpace(req.ExpenseDate))
	if err != nil {
		return nil, apperr.New(apperr.CodeValidation, "expense_date must be YYYY-MM-DD")
	}

	actor := p.ID
	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		StoreID:     p.StoreID,
		Description: description,
		Amount:      req.Amount.Round(2),
		Category:    strings.TrimSpace(req.Category),
		ExpenseDate: expenseDate,
		RecordedBy:  &actor,
	})
	if err != nil {
		return nil, translate(err, "expense")
	}
	created.RecordedByName = p.Name

	s.logAudit(ctx, p.StoreID, "expense_create", "expense", strconv.FormatInt(created.ID, 10),
		fmt.Sprintf("amount=%s,category=%s,date=%s", created.Amount.StringFixed(2), created.Category, expenseDate.Format(dateLayout)))
	s.invalidateStats(ctx, p.StoreID)
	return created, nil
}

func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	expenses, err := s.repo.ListExpenses(ctx, p.StoreID, nil, nil)
	if err != nil {
		return nil, translate(err, "expenses")
	}
	s.enrichExpenses(ctx, expenses)
	return expenses, nil
}

func (s *Service) enrichExpenses(ctx context.Context, expenses []domain.Expense) {
	seen := make(map[domain.ActorID]struct{})
	actors := make([]domain.ActorID, 0, len(expenses))
	for _, e := range expenses {
		if e.RecordedBy == nil || !e.RecordedBy.Valid() {
			continue
		}
		if _, ok := seen[*e.RecordedBy]; ok {
			continue
		}
		seen[*e.RecordedBy] = struct{}{}
		actors = append(actors, *e.RecordedBy)
	}

	names := s.resolveNames(ctx, actors)
	for i := range expenses {
		if expenses[i].RecordedBy == nil {
			expenses[i].RecordedByName = "Unknown"
			continue
		}
		expenses[i].RecordedByName = nameOrUnknown(names, *expenses[i].RecordedBy)
	}
}
