package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
)

func (s *Store) CreateStoreWithManager(_ context.Context, st domain.Store, manager domain.Manager) (*domain.Store, *domain.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.stores {
		if strings.EqualFold(existing.StoreCode, st.StoreCode) {
			return nil, nil, store.ErrStoreCodeTaken
		}
	}
	if s.managerContactTaken(manager.Email, manager.PhoneNumber) {
		return nil, nil, store.ErrDuplicate
	}

	now := time.Now().UTC()
	if manager.ID == uuid.Nil {
		manager.ID = uuid.New()
	}
	if manager.CreatedAt.IsZero() {
		manager.CreatedAt = now
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.ID = s.nextID("stores")
	st.CreatedBy = manager.ID
	manager.StoreID = int64Ptr(st.ID)
	manager.StoreName = st.StoreName

	s.stores[st.ID] = st
	s.managers[manager.ID] = manager
	createdStore, createdManager := st, manager
	return &createdStore, &createdManager, nil
}

func (s *Store) CreateManagerWithJoinRequest(_ context.Context, manager domain.Manager, storeID int64, at time.Time) (*domain.Manager, *domain.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[storeID]; !ok {
		return nil, nil, store.ErrNotFound
	}
	if s.managerContactTaken(manager.Email, manager.PhoneNumber) {
		return nil, nil, store.ErrDuplicate
	}

	if manager.ID == uuid.Nil {
		manager.ID = uuid.New()
	}
	if manager.CreatedAt.IsZero() {
		manager.CreatedAt = at
	}
	manager.StoreID = nil
	manager.StoreName = ""
	s.managers[manager.ID] = manager

	jr := domain.JoinRequest{
		ID:          s.nextID("join_requests"),
		StoreID:     storeID,
		UserKind:    domain.ActorManager,
		UserID:      manager.ID.String(),
		UserName:    manager.FullName,
		UserPhone:   manager.PhoneNumber,
		UserEmail:   manager.Email,
		Status:      domain.JoinPending,
		RequestedAt: at,
	}
	s.joinRequests[jr.ID] = jr
	createdManager := manager
	return &createdManager, &jr, nil
}

func (s *Store) CreateCashierWithJoinRequest(_ context.Context, cashier domain.CashierAccount, storeID int64, at time.Time) (*domain.CashierAccount, *domain.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[storeID]; !ok {
		return nil, nil, store.ErrNotFound
	}
	for _, existing := range s.cashiers {
		if existing.PhoneNumber == cashier.PhoneNumber {
			return nil, nil, store.ErrDuplicate
		}
	}

	cashier.ID = s.nextID("cashiers")
	cashier.StoreID = nil
	cashier.IsActive = false
	if cashier.CreatedAt.IsZero() {
		cashier.CreatedAt = at
	}
	s.cashiers[cashier.ID] = cashier

	jr := domain.JoinRequest{
		ID:          s.nextID("join_requests"),
		StoreID:     storeID,
		UserKind:    domain.ActorCashier,
		UserID:      domain.CashierActor(cashier.ID).Key(),
		UserName:    cashier.FullName,
		UserPhone:   cashier.PhoneNumber,
		Status:      domain.JoinPending,
		RequestedAt: at,
	}
	s.joinRequests[jr.ID] = jr
	createdCashier := cashier
	return &createdCashier, &jr, nil
}

func (s *Store) managerContactTaken(email string, phone string) bool {
	for _, existing := range s.managers {
		if strings.EqualFold(existing.Email, email) || existing.PhoneNumber == phone {
			return true
		}
	}
	return false
}

func (s *Store) GetStoreByID(_ context.Context, storeID int64) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[storeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) GetStoreByCode(_ context.Context, code string) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.stores {
		if strings.EqualFold(st.StoreCode, code) {
			found := st
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetManagerByID(_ context.Context, id uuid.UUID) (*domain.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	manager, ok := s.managers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &manager, nil
}

func (s *Store) GetManagerByEmail(_ context.Context, email string) (*domain.Manager, error) {
	return s.findManager(func(m domain.Manager) bool {
		return strings.EqualFold(m.Email, email)
	})
}

func (s *Store) GetManagerByPhone(_ context.Context, phone string) (*domain.Manager, error) {
	return s.findManager(func(m domain.Manager) bool {
		return m.PhoneNumber == phone
	})
}

func (s *Store) FindManagerByNameOrPhone(_ context.Context, identifier string) (*domain.Manager, error) {
	return s.findManager(func(m domain.Manager) bool {
		return strings.EqualFold(m.FullName, identifier) || m.PhoneNumber == identifier
	})
}

// findManager returns the oldest manager matching match.
func (s *Store) findManager(match func(domain.Manager) bool) (*domain.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Manager
	for _, m := range s.managers {
		if !match(m) {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) {
			candidate := m
			found = &candidate
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) GetCashierByID(_ context.Context, id int64) (*domain.CashierAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cashier, ok := s.cashiers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cashier, nil
}

func (s *Store) GetCashierByPhone(_ context.Context, phone string) (*domain.CashierAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cashier := range s.cashiers {
		if cashier.PhoneNumber == phone {
			found := cashier
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListJoinRequests(_ context.Context, storeID int64, status string) ([]domain.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.JoinRequest, 0)
	for _, jr := range s.joinRequests {
		if jr.StoreID != storeID {
			continue
		}
		if status != "" && jr.Status != status {
			continue
		}
		result = append(result, jr)
	}
	slices.SortFunc(result, func(a, b domain.JoinRequest) int {
		return newestFirst(a.RequestedAt, a.ID, b.RequestedAt, b.ID)
	})
	return result, nil
}

func (s *Store) ReviewJoinRequest(_ context.Context, storeID int64, requestID int64, status string, reviewer uuid.UUID, at time.Time) (*domain.JoinRequest, error) {
	if status != domain.JoinApproved && status != domain.JoinRejected {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jr, ok := s.joinRequests[requestID]
	if !ok || jr.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	if jr.Status != domain.JoinPending {
		return nil, store.ErrConflict
	}
	st, ok := s.stores[storeID]
	if !ok {
		return nil, store.ErrNotFound
	}

	actor, err := domain.ParseActor(jr.UserKind, jr.UserID)
	if err != nil {
		return nil, store.ErrInvalid
	}
	if status == domain.JoinApproved {
		switch actor.Kind {
		case domain.ActorManager:
			manager, ok := s.managers[actor.ManagerID]
			if !ok {
				return nil, store.ErrNotFound
			}
			manager.StoreID = int64Ptr(storeID)
			manager.StoreName = st.StoreName
			s.managers[manager.ID] = manager
		case domain.ActorCashier:
			cashier, ok := s.cashiers[actor.CashierID]
			if !ok {
				return nil, store.ErrNotFound
			}
			cashier.StoreID = int64Ptr(storeID)
			cashier.IsActive = true
			s.cashiers[cashier.ID] = cashier
		}
	}

	reviewedAt := at
	reviewedBy := reviewer
	jr.Status = status
	jr.ReviewedAt = &reviewedAt
	jr.ReviewedBy = &reviewedBy
	s.joinRequests[jr.ID] = jr
	return &jr, nil
}

func (s *Store) ListStoreUsers(_ context.Context, storeID int64) ([]domain.StoreUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.StoreUser, 0)
	for _, m := range s.managers {
		if m.StoreID == nil || *m.StoreID != storeID {
			continue
		}
		users = append(users, domain.StoreUser{
			Actor:       domain.ManagerActor(m.ID),
			FullName:    m.FullName,
			PhoneNumber: m.PhoneNumber,
			Email:       m.Email,
			Role:        string(domain.ActorManager),
		})
	}
	for _, c := range s.cashiers {
		if c.StoreID == nil || *c.StoreID != storeID || !c.IsActive {
			continue
		}
		users = append(users, domain.StoreUser{
			Actor:       domain.CashierActor(c.ID),
			FullName:    c.FullName,
			PhoneNumber: c.PhoneNumber,
			Role:        string(domain.ActorCashier),
		})
	}
	slices.SortFunc(users, func(a, b domain.StoreUser) int {
		if byName := cmp.Compare(strings.ToLower(a.FullName), strings.ToLower(b.FullName)); byName != 0 {
			return byName
		}
		return cmp.Compare(a.Actor.String(), b.Actor.String())
	})
	return users, nil
}

func (s *Store) ResolveActorNames(_ context.Context, actors []domain.ActorID) (map[domain.ActorID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resolveActorNamesLocked(actors), nil
}

func (s *Store) resolveActorNamesLocked(actors []domain.ActorID) map[domain.ActorID]string {
	names := make(map[domain.ActorID]string, len(actors))
	for _, actor := range actors {
		switch actor.Kind {
		case domain.ActorManager:
			if m, ok := s.managers[actor.ManagerID]; ok {
				names[actor] = m.FullName
			}
		case domain.ActorCashier:
			if c, ok := s.cashiers[actor.CashierID]; ok {
				names[actor] = c.FullName
			}
		}
	}
	return names
}
