package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"chreosis/internal/domain/ledger"
	"chreosis/internal/domain/transaction"
)

const dateLayout = "2006-01-02"

type TransactionHandler struct {
	transactions *transaction.Service
}

func NewTransactionHandler(transactions *transaction.Service) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// TransactionRequest is the body for create and update. Amount accepts a JSON
// string or number; Date accepts YYYY-MM-DD or RFC 3339.
type TransactionRequest struct {
	AccountID  *int64           `json:"accountId"`
	CategoryID *int64           `json:"categoryId"`
	Date       *string          `json:"date"`
	Amount     *decimal.Decimal `json:"amount"`
	Type       *string          `json:"type"`
	Note       *string          `json:"note"`
	Attachment *string          `json:"attachment"`
	Place      *string          `json:"place"`
	Currency   *string          `json:"currency"`
}

type MoveRequest struct {
	AccountID int64 `json:"accountId"`
}

type TransactionResponse struct {
	ID         int64   `json:"id"`
	AccountID  int64   `json:"accountId"`
	CategoryID int64   `json:"categoryId"`
	Date       string  `json:"date"`
	Amount     string  `json:"amount"`
	Type       string  `json:"type"`
	Note       *string `json:"note,omitempty"`
	Attachment *string `json:"attachment,omitempty"`
	Place      *string `json:"place,omitempty"`
	Currency   *string `json:"currency,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

type TransactionDetailResponse struct {
	ID           int64   `json:"id"`
	AccountName  string  `json:"accountName"`
	CategoryName string  `json:"categoryName"`
	UserName     string  `json:"userName"`
	Date         string  `json:"date"`
	Amount       string  `json:"amount"`
	Type         string  `json:"type"`
	Note         *string `json:"note,omitempty"`
	Attachment   *string `json:"attachment,omitempty"`
}

// HandleTransactions handles GET (list) and POST (create) on /api/transactions/
func (h *TransactionHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		filter, err := parseFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		txs, err := h.transactions.List(r.Context(), userID, filter)
		if err != nil {
			writeError(w, r, err, "Failed to list transactions")
			return
		}
		response := make([]TransactionResponse, 0, len(txs))
		for _, t := range txs {
			response = append(response, toTransactionResponse(t))
		}
		writeJSON(w, http.StatusOK, response)

	case http.MethodPost:
		h.handleCreate(w, r, userID)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TransactionHandler) handleCreate(w http.ResponseWriter, r *http.Request, userID int64) {
	var req TransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == nil || req.CategoryID == nil || req.Amount == nil || req.Type == nil {
		http.Error(w, "accountId, categoryId, amount and type are required", http.StatusBadRequest)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := h.transactions.Create(r.Context(), transaction.CreateParams{
		UserID:     userID,
		AccountID:  *req.AccountID,
		CategoryID: *req.CategoryID,
		Date:       date,
		Amount:     *req.Amount,
		Type:       ledger.Kind(*req.Type),
		Note:       req.Note,
		Attachment: req.Attachment,
		Place:      req.Place,
		Currency:   req.Currency,
	})
	if err != nil {
		writeError(w, r, err, "Failed to create transaction")
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

// HandleDetails returns the listing with account, category and user names.
func (h *TransactionHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	details, err := h.transactions.ListDetails(r.Context(), userID, filter)
	if err != nil {
		writeError(w, r, err, "Failed to list transactions")
		return
	}

	response := make([]TransactionDetailResponse, 0, len(details))
	for _, d := range details {
		response = append(response, TransactionDetailResponse{
			ID:           d.ID,
			AccountName:  d.AccountName,
			CategoryName: d.CategoryName,
			UserName:     d.UserName,
			Date:         d.Date.Format(time.RFC3339),
			Amount:       d.Amount.StringFixed(ledger.MinorUnits),
			Type:         string(d.Type),
			Note:         d.Note,
			Attachment:   d.Attachment,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// HandleTransactionByID handles GET, PUT, PATCH and DELETE on /api/transactions/{id}
func (h *TransactionHandler) HandleTransactionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := h.transactions.Get(r.Context(), userID, id)
		if err != nil {
			writeError(w, r, err, "Failed to get transaction")
			return
		}
		writeJSON(w, http.StatusOK, toTransactionResponse(t))

	case http.MethodPut, http.MethodPatch:
		h.handleUpdate(w, r, userID, id)

	case http.MethodDelete:
		if err := h.transactions.Delete(r.Context(), userID, id); err != nil {
			writeError(w, r, err, "Failed to delete transaction")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TransactionHandler) handleUpdate(w http.ResponseWriter, r *http.Request, userID, id int64) {
	var req TransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := transaction.UpdateParams{
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		Date:       date,
		Amount:     req.Amount,
		Note:       req.Note,
		Attachment: req.Attachment,
	}
	if req.Type != nil {
		kind := ledger.Kind(*req.Type)
		params.Type = &kind
	}

	t, err := h.transactions.Update(r.Context(), userID, id, params)
	if err != nil {
		writeError(w, r, err, "Failed to update transaction")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

// HandleMove moves a transaction to another account of the same user.
func (h *TransactionHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AccountID <= 0 {
		http.Error(w, "accountId is required", http.StatusBadRequest)
		return
	}

	t, err := h.transactions.Move(r.Context(), userID, id, req.AccountID)
	if err != nil {
		writeError(w, r, err, "Failed to move transaction")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func parseFilter(r *http.Request) (transaction.Filter, error) {
	q := r.URL.Query()
	var f transaction.Filter

	for key, dst := range map[string]**int64{"accountId": &f.AccountID, "categoryId": &f.CategoryID} {
		if v := q.Get(key); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return f, fmt.Errorf("invalid %s", key)
			}
			*dst = &id
		}
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(key); v != "" {
			t, err := parseDate(&v)
			if err != nil {
				return f, fmt.Errorf("invalid %s", key)
			}
			*dst = t
		}
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, fmt.Errorf("invalid %s", key)
			}
			*dst = n
		}
	}
	return f, nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, *s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", *s)
	}
	return &t, nil
}

func toTransactionResponse(t *transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:         t.ID,
		AccountID:  t.AccountID,
		CategoryID: t.CategoryID,
		Date:       t.Date.Format(time.RFC3339),
		Amount:     t.Amount.StringFixed(ledger.MinorUnits),
		Type:       string(t.Type),
		Note:       t.Note,
		Attachment: t.Attachment,
		Place:      t.Place,
		Currency:   t.Currency,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  t.UpdatedAt.Format(time.RFC3339),
	}
}
