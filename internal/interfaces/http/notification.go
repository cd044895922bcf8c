package http

import (
	"net/http"
	"strconv"
	"time"

	"chreosis/internal/domain/notification"
)

type NotificationHandler struct {
	notificationService *notification.Service
}

func NewNotificationHandler(notificationService *notification.Service) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// --- Request/Response types ---

type RegisterDeviceRequest struct {
	Token      string `json:"token"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
}

type UpdatePreferencesRequest struct {
	GeneralEnabled      *bool `json:"general_enabled"`
	AccountsEnabled     *bool `json:"accounts_enabled"`
	TransactionsEnabled *bool `json:"transactions_enabled"`
}

type PreferencesResponse struct {
	Success bool                     `json:"success"`
	Data    *PreferencesDataResponse `json:"data"`
}

type PreferencesDataResponse struct {
	GeneralEnabled      bool `json:"general_enabled"`
	AccountsEnabled     bool `json:"accounts_enabled"`
	TransactionsEnabled bool `json:"transactions_enabled"`
}

type NotificationResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Category  string            `json:"category"`
	OpenedAt  *string           `json:"opened_at"`
	CreatedAt string            `json:"created_at"`
	Data      map[string]string `json:"data"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Pagination    PaginationResponse     `json:"pagination"`
}

type PaginationResponse struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

const (
	defaultNotificationsPerPage = 20
	maxNotificationsPerPage     = 100
)

// --- Handlers ---

// HandleNotifications handles GET /api/notifications/ (list)
func (h *NotificationHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > maxNotificationsPerPage {
		perPage = defaultNotificationsPerPage
	}

	notifications, total, err := h.notificationService.ListNotifications(r.Context(), userID, page, perPage)
	if err != nil {
		writeError(w, r, err, "Failed to list notifications")
		return
	}

	items := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, toNotificationResponse(n))
	}

	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}

	writeJSON(w, http.StatusOK, NotificationListResponse{
		Notifications: items,
		Pagination: PaginationResponse{
			Page:    page,
			PerPage: perPage,
			Total:   total,
			Pages:   pages,
		},
	})
}

// HandleOpen handles POST /api/notifications/{id}/open
func (h *NotificationHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	notificationID := r.PathValue("id")
	if notificationID == "" {
		http.Error(w, "Notification ID is required", http.StatusBadRequest)
		return
	}

	if err := h.notificationService.MarkNotificationOpened(r.Context(), notificationID, userID); err != nil {
		writeError(w, r, err, "Failed to mark notification as opened")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandlePreferences handles GET and PATCH on /api/notifications/preferences
func (h *NotificationHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var (
		prefs *notification.NotificationPreference
		err   error
	)
	switch r.Method {
	case http.MethodGet:
		prefs, err = h.notificationService.GetPreferences(r.Context(), userID)
	case http.MethodPatch, http.MethodPost:
		var req UpdatePreferencesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		prefs, err = h.notificationService.UpdatePreferences(r.Context(), userID, notification.UpdatePreferenceParams{
			GeneralEnabled:      req.GeneralEnabled,
			AccountsEnabled:     req.AccountsEnabled,
			TransactionsEnabled: req.TransactionsEnabled,
		})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		writeError(w, r, err, "Failed to handle preferences")
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{
		Success: true,
		Data: &PreferencesDataResponse{
			GeneralEnabled:      prefs.GeneralEnabled,
			AccountsEnabled:     prefs.AccountsEnabled,
			TransactionsEnabled: prefs.TransactionsEnabled,
		},
	})
}

// HandleRegisterDevice handles POST /api/devices/register
func (h *NotificationHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.notificationService.RegisterDevice(r.Context(), notification.CreateDeviceTokenParams{
		UserID:     userID,
		Token:      req.Token,
		Name:       req.Name,
		DeviceType: req.DeviceType,
	})
	if err != nil {
		writeError(w, r, err, "Failed to register device")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   token.Token,
	})
}

// --- Helpers ---

func toNotificationResponse(n *notification.Notification) NotificationResponse {
	var openedAt *string
	if n.OpenedAt != nil {
		formatted := n.OpenedAt.Format(time.RFC3339)
		openedAt = &formatted
	}

	data := n.Data
	if data == nil {
		data = make(map[string]string)
	}

	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		OpenedAt:  openedAt,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		Data:      data,
	}
}
