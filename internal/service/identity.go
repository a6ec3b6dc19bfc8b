package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
	"storepos/backend/internal/xid"
)

const (
	minPasswordLength  = 6
	storeCodeAttempts  = 8
	errInvalidLogin    = "Invalid credentials"
	errInactiveAccount = "Your account is waiting for store approval"
)

var weakPasswords = map[string]struct{}{
	"123456":   {},
	"1234567":  {},
	"12345678": {},
	"password": {},
	"qwerty":   {},
	"abc123":   {},
	"111111":   {},
	"123123":   {},
	"admin123": {},
	"letmein":  {},
}

// ValidatePassword rejects short, repetitive and commonly used passwords.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Newf(apperr.CodeValidation, "Password must be at least %d characters", minPasswordLength)
	}
	if strings.Count(password, password[:1]) == len(password) {
		return apperr.New(apperr.CodeValidation, "Password cannot be a single repeated character")
	}
	if _, weak := weakPasswords[strings.ToLower(password)]; weak {
		return apperr.New(apperr.CodeValidation, "Password is too common")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

func (s *Service) SignupManager(ctx context.Context, req domain.ManagerSignupRequest) (*domain.ManagerSignupResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.New(apperr.CodeValidation, "A valid email is required")
	}
	fullName := strings.TrimSpace(req.FullName)
	phone := normalizePhone(req.PhoneNumber)
	if fullName == "" || phone == "" {
		return nil, apperr.New(apperr.CodeValidation, "Full name and phone number are required")
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetManagerByEmail(ctx, email); err == nil {
		return nil, apperr.New(apperr.CodeConflict, "Email is already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, translate(err, "manager")
	}
	if _, err := s.repo.GetManagerByPhone(ctx, phone); err == nil {
		return nil, apperr.New(apperr.CodeConflict, "Phone number is already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, translate(err, "manager")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to hash password")
	}
	manager := domain.Manager{
		ID:           uuid.New(),
		Email:        email,
		FullName:     fullName,
		PhoneNumber:  phone,
		PasswordHash: hash,
	}

	switch req.Action {
	case "create":
		storeName := strings.TrimSpace(req.StoreName)
		if storeName == "" {
			return nil, apperr.New(apperr.CodeValidation, "Store name is required")
		}
		for attempt := 0; attempt < storeCodeAttempts; attempt++ {
			st, created, err := s.repo.CreateStoreWithManager(ctx, domain.Store{
				StoreCode: xid.StoreCode(),
				StoreName: storeName,
			}, manager)
			if errors.Is(err, store.ErrStoreCodeTaken) {
				continue
			}
			if err != nil {
				return nil, s.signupError(err)
			}
			ctx = WithActor(ctx, domain.Principal{ID: domain.ManagerActor(created.ID), Name: created.FullName, StoreID: st.ID})
			s.logAudit(ctx, st.ID, "store_create", "store", st.StoreCode, fmt.Sprintf("name=%s", st.StoreName))
			return &domain.ManagerSignupResponse{Manager: *created, StoreCode: st.StoreCode}, nil
		}
		return nil, apperr.New(apperr.CodeInternal, "could not allocate a unique store code")

	case "join":
		st, err := s.repo.GetStoreByCode(ctx, strings.ToUpper(strings.TrimSpace(req.StoreCode)))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.New(apperr.CodeNotFound, "Invalid store code")
			}
			return nil, translate(err, "store")
		}
		created, jr, err := s.repo.CreateManagerWithJoinRequest(ctx, manager, st.ID, s.now().UTC())
		if err != nil {
			return nil, s.signupError(err)
		}
		s.logAudit(ctx, st.ID, "join_request_create", "join_request", fmt.Sprint(jr.ID), "kind=manager")
		return &domain.ManagerSignupResponse{Manager: *created, StoreCode: st.StoreCode, Pending: true}, nil

	default:
		return nil, apperr.Newf(apperr.CodeValidation, "unknown signup action %q", req.Action)
	}
}

func (s *Service) SignupCashier(ctx context.Context, req domain.CashierSignupRequest) (*domain.CashierAccount, error) {
	fullName := strings.TrimSpace(req.FullName)
	phone := normalizePhone(req.PhoneNumber)
	if fullName == "" || phone == "" {
		return nil, apperr.New(apperr.CodeValidation, "Full name and phone number are required")
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	st, err := s.repo.GetStoreByCode(ctx, strings.ToUpper(strings.TrimSpace(req.StoreCode)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "Invalid store code")
		}
		return nil, translate(err, "store")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to hash password")
	}
	created, jr, err := s.repo.CreateCashierWithJoinRequest(ctx, domain.CashierAccount{
		FullName:     fullName,
		PhoneNumber:  phone,
		PasswordHash: hash,
	}, st.ID, s.now().UTC())
	if err != nil {
		return nil, s.signupError(err)
	}
	s.logAudit(ctx, st.ID, "join_request_create", "join_request", fmt.Sprint(jr.ID), "kind=cashier")
	return created, nil
}

func (s *Service) signupError(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperr.New(apperr.CodeConflict, "An account with these details already exists")
	}
	return translate(err, "account")
}

// Authenticate checks credentials and returns the principal to issue a token
// for. Managers sign in with their email, cashiers with their phone number.
func (s *Service) Authenticate(ctx context.Context, req domain.LoginRequest) (domain.Principal, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, errInvalidLogin)
	}

	switch req.Kind {
	case domain.ActorManager:
		manager, err := s.repo.GetManagerByEmail(ctx, strings.ToLower(identifier))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, errInvalidLogin)
			}
			return domain.Principal{}, translate(err, "manager")
		}
		if !verifyPassword(manager.PasswordHash, req.Password) {
			return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, errInvalidLogin)
		}
		return s.principalForManager(ctx, manager)

	case domain.ActorCashier:
		cashier, err := s.repo.GetCashierByPhone(ctx, normalizePhone(identifier))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, errInvalidLogin)
			}
			return domain.Principal{}, translate(err, "cashier")
		}
		if !verifyPassword(cashier.PasswordHash, req.Password) {
			return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, errInvalidLogin)
		}
		if !cashier.IsActive {
			return domain.Principal{}, apperr.New(apperr.CodeForbidden, errInactiveAccount)
		}
		return s.principalForCashier(ctx, cashier)

	default:
		return domain.Principal{}, apperr.Newf(apperr.CodeValidation, "unknown account kind %q", req.Kind)
	}
}

// ResolvePrincipal loads the current state of the account a token was issued
// for. Deleted accounts and deactivated cashiers are refused.
func (s *Service) ResolvePrincipal(ctx context.Context, actor domain.ActorID) (domain.Principal, error) {
	switch actor.Kind {
	case domain.ActorManager:
		manager, err := s.repo.GetManagerByID(ctx, actor.ManagerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, "account no longer exists")
			}
			return domain.Principal{}, translate(err, "manager")
		}
		return s.principalForManager(ctx, manager)
	case domain.ActorCashier:
		cashier, err := s.repo.GetCashierByID(ctx, actor.CashierID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, "account no longer exists")
			}
			return domain.Principal{}, translate(err, "cashier")
		}
		if !cashier.IsActive {
			return domain.Principal{}, apperr.New(apperr.CodeForbidden, errInactiveAccount)
		}
		return s.principalForCashier(ctx, cashier)
	default:
		return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, "invalid account kind")
	}
}

func (s *Service) principalForManager(ctx context.Context, m *domain.Manager) (domain.Principal, error) {
	p := domain.Principal{ID: domain.ManagerActor(m.ID), Name: m.FullName, StoreName: m.StoreName}
	if m.StoreID != nil {
		p.StoreID = *m.StoreID
	}
	if p.HasStore() && p.StoreName == "" {
		if st, err := s.repo.GetStoreByID(ctx, p.StoreID); err == nil {
			p.StoreName = st.StoreName
		}
	}
	return p, nil
}

func (s *Service) principalForCashier(ctx context.Context, c *domain.CashierAccount) (domain.Principal, error) {
	p := domain.Principal{ID: domain.CashierActor(c.ID), Name: c.FullName}
	if c.StoreID != nil {
		p.StoreID = *c.StoreID
		st, err := s.repo.GetStoreByID(ctx, p.StoreID)
		if err != nil {
			return domain.Principal{}, translate(err, "store")
		}
		p.StoreName = st.StoreName
	}
	return p, nil
}

func (s *Service) Session(ctx context.Context) (domain.SessionResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	resp := domain.SessionResponse{Actor: p.ID, Name: p.Name, StoreName: p.StoreName}
	if p.HasStore() {
		storeID := p.StoreID
		resp.StoreID = &storeID
	}
	return resp, nil
}

// LookupManager returns the sign-in email of the manager whose full name or
// phone number matches identifier.
func (s *Service) LookupManager(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", apperr.New(apperr.CodeValidation, "Identifier is required")
	}
	manager, err := s.repo.FindManagerByNameOrPhone(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.New(apperr.CodeNotFound, "No manager found with that name or phone")
		}
		return "", translate(err, "manager")
	}
	return manager.Email, nil
}

func (s *Service) ListJoinRequests(ctx context.Context) ([]domain.JoinRequest, error) {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := s.repo.ListJoinRequests(ctx, p.StoreID, domain.JoinPending)
	if err != nil {
		return nil, translate(err, "join requests")
	}
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})
	return requests, nil
}

func (s *Service) ReviewJoinRequest(ctx context.Context, requestID int64, review domain.JoinRequestReview) (*domain.JoinRequest, error) {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	var status string
	switch review.Action {
	case "approve":
		status = domain.JoinApproved
	case "reject":
		status = domain.JoinRejected
	default:
		return nil, apperr.Newf(apperr.CodeValidation, "unknown review action %q", review.Action)
	}

	jr, err := s.repo.ReviewJoinRequest(ctx, p.StoreID, requestID, status, p.ID.ManagerID, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.New(apperr.CodeConflict, "Join request has already been reviewed")
		}
		return nil, translate(err, "join request")
	}

	s.logAudit(ctx, p.StoreID, "join_request_"+review.Action, "join_request", fmt.Sprint(jr.ID),
		fmt.Sprintf("kind=%s,user=%s", jr.UserKind, jr.UserID))
	return jr, nil
}

func (s *Service) ListStoreUsers(ctx context.Context) ([]domain.StoreUser, error) {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.ListStoreUsers(ctx, p.StoreID)
	if err != nil {
		return nil, translate(err, "users")
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].FullName) < strings.ToLower(users[j].FullName)
	})
	return users, nil
}
