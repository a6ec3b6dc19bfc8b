package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
)

const testPassword = "s3cure-pass"

// approvedCashier signs a cashier up against the fixture store and approves
// the resulting join request.
func approvedCashier(t *testing.T, f *fixture, name string, phone string) *domain.CashierAccount {
	t.Helper()
	created, err := f.svc.SignupCashier(context.Background(), domain.CashierSignupRequest{
		FullName:    name,
		PhoneNumber: phone,
		Password:    testPassword,
		StoreCode:   f.store.StoreCode,
	})
	require.NoError(t, err)

	requests, err := f.svc.ListJoinRequests(f.ctx)
	require.NoError(t, err)
	for _, jr := range requests {
		if jr.UserKind == domain.ActorCashier && jr.UserID == domain.CashierActor(created.ID).Key() {
			_, err := f.svc.ReviewJoinRequest(f.ctx, jr.ID, domain.JoinRequestReview{Action: "approve"})
			require.NoError(t, err)
			return created
		}
	}
	t.Fatalf("no join request for cashier %d", created.ID)
	return nil
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		"abc":         false,
		"aaaaaaaa":    false,
		"password":    false,
		"Password":    false,
		"123456":      false,
		"tea-and-jam": true,
		testPassword:  true,
	}
	for password, ok := range cases {
		err := ValidatePassword(password)
		if ok {
			assert.NoError(t, err, password)
			continue
		}
		if assert.Error(t, err, password) {
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		}
	}
}

func TestSignupManagerCreatesStoreAndCanLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.SignupManager(ctx, domain.ManagerSignupRequest{
		Email:       "  Maya@Example.com ",
		Password:    testPassword,
		FullName:    "Maya Merchant",
		PhoneNumber: "0300 555 1234",
		Action:      "create",
		StoreName:   "Maya Mart",
	})
	require.NoError(t, err)
	assert.False(t, resp.Pending)
	assert.Len(t, resp.StoreCode, 6)
	assert.Equal(t, "maya@example.com", resp.Manager.Email)
	assert.Equal(t, "03005551234", resp.Manager.PhoneNumber)

	p, err := f.svc.Authenticate(ctx, domain.LoginRequest{Kind: domain.ActorManager, Identifier: "MAYA@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.True(t, p.ID.IsManager())
	assert.Equal(t, "Maya Mart", p.StoreName)
	assert.True(t, p.HasStore())

	_, err = f.svc.Authenticate(ctx, domain.LoginRequest{Kind: domain.ActorManager, Identifier: "maya@example.com", Password: "wrong-pass"})
	requireCode(t, err, apperr.CodeUnauthorized)

	_, err = f.svc.SignupManager(ctx, domain.ManagerSignupRequest{
		Email: "maya@example.com", Password: testPassword, FullName: "Again", PhoneNumber: "0399", Action: "create", StoreName: "X",
	})
	requireCode(t, err, apperr.CodeConflict)
}

func TestSignupManagerJoinIsPendingUntilApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignupManager(ctx, domain.ManagerSignupRequest{
		Email: "deputy@example.com", Password: testPassword, FullName: "Dee Deputy",
		PhoneNumber: "03007770000", Action: "join", StoreCode: "NOPE00",
	})
	requireCode(t, err, apperr.CodeNotFound)

	resp, err := f.svc.SignupManager(ctx, domain.ManagerSignupRequest{
		Email: "deputy@example.com", Password: testPassword, FullName: "Dee Deputy",
		PhoneNumber: "03007770000", Action: "join", StoreCode: "crn001",
	})
	require.NoError(t, err)
	assert.True(t, resp.Pending)

	p, err := f.svc.Authenticate(ctx, domain.LoginRequest{Kind: domain.ActorManager, Identifier: "deputy@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.False(t, p.HasStore())
	_, err = f.svc.ListProducts(WithActor(ctx, p), domain.ProductFilter{})
	requireCode(t, err, apperr.CodeForbidden)

	requests, err := f.svc.ListJoinRequests(f.ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, domain.ActorManager, requests[0].UserKind)

	_, err = f.svc.ReviewJoinRequest(f.ctx, requests[0].ID, domain.JoinRequestReview{Action: "approve"})
	require.NoError(t, err)
	_, err = f.svc.ReviewJoinRequest(f.ctx, requests[0].ID, domain.JoinRequestReview{Action: "reject"})
	requireCode(t, err, apperr.CodeConflict)

	p, err = f.svc.ResolvePrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, f.store.ID, p.StoreID)
	assert.Equal(t, "Corner Shop", p.StoreName)
}

func TestCashierLoginRequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.SignupCashier(ctx, domain.CashierSignupRequest{
		FullName: "Pat Pending", PhoneNumber: "0312 000 1111", Password: testPassword, StoreCode: "CRN001",
	})
	require.NoError(t, err)
	assert.False(t, created.IsActive)

	_, err = f.svc.Authenticate(ctx, domain.LoginRequest{Kind: domain.ActorCashier, Identifier: "03120001111", Password: testPassword})
	requireCode(t, err, apperr.CodeForbidden)
	_, err = f.svc.ResolvePrincipal(ctx, domain.CashierActor(created.ID))
	requireCode(t, err, apperr.CodeForbidden)

	cashier := approvedCashier(t, f, "Casey Cashier", "03125550000")
	p, err := f.svc.Authenticate(ctx, domain.LoginRequest{Kind: domain.ActorCashier, Identifier: "0312 555 0000", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, domain.CashierActor(cashier.ID), p.ID)
	assert.Equal(t, f.store.ID, p.StoreID)

	users, err := f.svc.ListStoreUsers(f.ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Casey Cashier", users[0].FullName)
	assert.Equal(t, "Olivia Owner", users[1].FullName)
}

func TestRejectedJoinRequestLeavesCashierInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.SignupCashier(ctx, domain.CashierSignupRequest{
		FullName: "Rory Rejected", PhoneNumber: "03130000000", Password: testPassword, StoreCode: "CRN001",
	})
	require.NoError(t, err)

	requests, err := f.svc.ListJoinRequests(f.ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	_, err = f.svc.ReviewJoinRequest(f.ctx, requests[0].ID, domain.JoinRequestReview{Action: "reject"})
	require.NoError(t, err)

	_, err = f.svc.ResolvePrincipal(ctx, domain.CashierActor(created.ID))
	requireCode(t, err, apperr.CodeForbidden)

	pending, err := f.svc.ListJoinRequests(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLookupManagerAndSession(t *testing.T) {
	f := newFixture(t)

	email, err := f.svc.LookupManager(context.Background(), "Olivia Owner")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)

	_, err = f.svc.LookupManager(context.Background(), "nobody")
	requireCode(t, err, apperr.CodeNotFound)

	session, err := f.svc.Session(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "Olivia Owner", session.Name)
	require.NotNil(t, session.StoreID)
	assert.Equal(t, f.store.ID, *session.StoreID)
}
