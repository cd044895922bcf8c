package http

import (
	"net/http"
	"time"

	"chreosis/internal/domain/account"
	"chreosis/internal/domain/ledger"
)

type AccountHandler struct {
	accounts *account.Service
}

func NewAccountHandler(accounts *account.Service) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type CreateAccountRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type UpdateAccountRequest struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
}

// AccountResponse renders the balance as a fixed two-decimal string.
type AccountResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// HandleAccounts handles GET (list) and POST (create) on /api/accounts/
func (h *AccountHandler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		accounts, err := h.accounts.ListAccountsByUserID(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, "Failed to list accounts")
			return
		}
		response := make([]AccountResponse, 0, len(accounts))
		for _, acc := range accounts {
			response = append(response, toAccountResponse(acc))
		}
		writeJSON(w, http.StatusOK, response)

	case http.MethodPost:
		var req CreateAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		acc, err := h.accounts.CreateAccount(r.Context(), account.CreateParams{
			UserID: userID,
			Name:   req.Name,
			Type:   req.Type,
		})
		if err != nil {
			writeError(w, r, err, "Failed to create account")
			return
		}
		writeJSON(w, http.StatusCreated, toAccountResponse(acc))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAccountByID handles GET, PATCH and DELETE on /api/accounts/{id}
func (h *AccountHandler) HandleAccountByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		acc, err := h.accounts.GetAccount(r.Context(), accountID, userID)
		if err != nil {
			writeError(w, r, err, "Failed to get account")
			return
		}
		writeJSON(w, http.StatusOK, toAccountResponse(acc))

	case http.MethodPatch:
		var req UpdateAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		acc, err := h.accounts.UpdateAccount(r.Context(), accountID, userID, account.UpdateParams{
			Name: req.Name,
			Type: req.Type,
		})
		if err != nil {
			writeError(w, r, err, "Failed to update account")
			return
		}
		writeJSON(w, http.StatusOK, toAccountResponse(acc))

	case http.MethodDelete:
		if err := h.accounts.DeleteAccount(r.Context(), accountID, userID); err != nil {
			writeError(w, r, err, "Failed to delete account")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func toAccountResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:        acc.ID,
		Name:      acc.Name,
		Type:      acc.Type,
		Balance:   acc.Balance.StringFixed(ledger.MinorUnits),
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
}
