package httpapi

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/backend/internal/domain"
)

func TestAuthManagerTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)

	managerID := uuid.New()
	resp, err := auth.Issue(domain.Principal{
		ID:        domain.ManagerActor(managerID),
		Name:      "Olivia Owner",
		StoreID:   7,
		StoreName: "Corner Shop",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.StoreID)
	assert.EqualValues(t, 7, *resp.StoreID)
	assert.Equal(t, "Olivia Owner", resp.Name)

	actor, err := auth.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.ManagerActor(managerID), actor)

	cashierResp, err := auth.Issue(domain.Principal{ID: domain.CashierActor(42), Name: "Casey", StoreID: 7})
	require.NoError(t, err)
	actor, err = auth.ParseToken(cashierResp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.CashierActor(42), actor)
}

func TestAuthManagerManagerWithoutStore(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)
	resp, err := auth.Issue(domain.Principal{ID: domain.ManagerActor(uuid.New()), Name: "Pending"})
	require.NoError(t, err)
	assert.Nil(t, resp.StoreID)
}

func TestAuthManagerRejectsExpiredToken(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Minute)
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issuedAt }

	resp, err := auth.Issue(domain.Principal{ID: domain.CashierActor(1), StoreID: 1})
	require.NoError(t, err)

	auth.now = func() time.Time { return issuedAt.Add(30 * time.Second) }
	_, err = auth.ParseToken(resp.AccessToken)
	require.NoError(t, err)

	auth.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = auth.ParseToken(resp.AccessToken)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestAuthManagerRejectsForeignSignatures(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)
	other := NewAuthManager("ffffffffffffffffffffffffffffffff", time.Hour)

	resp, err := other.Issue(domain.Principal{ID: domain.CashierActor(1), StoreID: 1})
	require.NoError(t, err)
	_, err = auth.ParseToken(resp.AccessToken)
	assert.ErrorIs(t, err, errInvalidToken)

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "1",
			Issuer:    tokenIssuer,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Kind: domain.ActorCashier,
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.ParseToken(raw)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestAuthManagerRejectsWrongIssuerAndSubject(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)

	sign := func(claims posCustomClaims) string {
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return raw
	}
	exp := jwtlib.NewNumericDate(time.Now().Add(time.Hour))

	_, err := auth.ParseToken(sign(posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "1", Issuer: "someone-else", ExpiresAt: exp},
		Kind:             domain.ActorCashier,
	}))
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = auth.ParseToken(sign(posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "not-a-uuid", Issuer: tokenIssuer, ExpiresAt: exp},
		Kind:             domain.ActorManager,
	}))
	assert.ErrorIs(t, err, errInvalidToken)
}
