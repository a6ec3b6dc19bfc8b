package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
	"storepos/backend/internal/service"
)

const tokenIssuer = "storepos"

// AuthManager issues and verifies the bearer tokens handed out at login. A
// token only names the account; the account itself is reloaded on every
// request so deactivation takes effect immediately.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Kind domain.ActorKind `json:"kind"`
}

var errInvalidToken = errors.New("invalid or expired token")

func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (a *AuthManager) Issue(p domain.Principal) (domain.LoginResponse, error) {
	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(p.ID, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	resp := domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		Actor:       p.ID,
		Name:        p.Name,
	}
	if p.HasStore() {
		storeID := p.StoreID
		resp.StoreID = &storeID
	}
	return resp, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.ActorID, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.ActorID{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.ActorID{}, errInvalidToken
	}
	actor, err := domain.ParseActor(claims.Kind, sub)
	if err != nil {
		return domain.ActorID{}, errInvalidToken
	}
	return actor, nil
}

func (a *AuthManager) sign(actor domain.ActorID, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.Key(),
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Kind: actor.Kind,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// requireAuth resolves the bearer token to a live principal and stores it in
// the request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, r, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			a.writeError(w, r, apperr.Wrap(apperr.CodeUnauthorized, err, err.Error()))
			return
		}
		principal, err := a.service.ResolvePrincipal(r.Context(), actor)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		ctx := service.WithActor(r.Context(), principal)
		ctx = a.log.WithActor(ctx, principal.ID.String())
		if principal.HasStore() {
			ctx = a.log.WithStoreID(ctx, principal.StoreID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := service.ActorFromContext(r.Context())
		if !ok || !principal.ID.IsManager() {
			writeJSON(w, http.StatusForbidden, errorEnvelope{
				Error: "manager role required",
				Code:  apperr.CodeForbidden,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, r, rateLimited())
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	principal, err := a.service.Authenticate(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp, err := a.auth.Issue(principal)
	if err != nil {
		a.writeError(w, r, apperr.Wrap(apperr.CodeInternal, err, "failed to issue token"))
		return
	}

	ctx := a.log.WithActor(r.Context(), principal.ID.String())
	a.log.Info(ctx, "auth.login")
	writeSuccess(w, http.StatusOK, resp)
}
