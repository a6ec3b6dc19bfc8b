package httpapi

import (
	"net/http"

	"storepos/backend/internal/domain"
)

func (a *API) handleManagerSignup(w http.ResponseWriter, r *http.Request) {
	var req domain.ManagerSignupRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	resp, err := a.service.SignupManager(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	message := "Store created"
	if resp.Pending {
		message = "Join request sent to the store manager"
	}
	writeSuccessMessage(w, http.StatusCreated, resp, message)
}

func (a *API) handleCashierSignup(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierSignupRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	cashier, err := a.service.SignupCashier(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccessMessage(w, http.StatusCreated, cashier, "Join request sent to the store manager")
}

func (a *API) handleLookupManager(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, r, rateLimited())
		return
	}
	var req domain.LookupManagerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	email, err := a.service.LookupManager(r.Context(), req.Identifier)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"email": email})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.Session(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, session)
}

func (a *API) handleListJoinRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := a.service.ListJoinRequests(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, requests)
}

func (a *API) handleReviewJoinRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := idParam(r, "requestID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req domain.JoinRequestReview
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	jr, err := a.service.ReviewJoinRequest(r.Context(), requestID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, jr)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListStoreUsers(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, users)
}
