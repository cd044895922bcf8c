package notification

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Data keys understood by the mobile app.
const (
	DataKeyType      = "type"
	DataKeyRoute     = "route"
	DataKeyAccountID = "accountId"
	DataKeyBalance   = "balance"

	TypeBalanceChanged = "balance_changed"
)

// Service contains the business logic for notification operations
type Service struct {
	repo      Repository
	messenger Messenger
}

// NewService creates a new notification service. messenger may be nil, in
// which case notifications are stored but never pushed.
func NewService(repo Repository, messenger Messenger) *Service {
	return &Service{repo: repo, messenger: messenger}
}

// SetMessenger attaches the push client once it has been built.
// The push client needs DeactivateToken, so it is created after the service.
func (s *Service) SetMessenger(m Messenger) {
	s.messenger = m
}

// RegisterDevice registers a device token for the authenticated user.
// If the token already belongs to another user, it is reassigned.
// Creates default notification preferences if none exist.
func (s *Service) RegisterDevice(ctx context.Context, params CreateDeviceTokenParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := s.repo.UpsertDeviceToken(ctx, params)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPreferences(ctx, params.UserID); errors.Is(err, ErrPreferencesNotFound) {
		if _, err := s.repo.UpsertPreferences(ctx, params.UserID, UpdatePreferenceParams{}); err != nil {
			log.Warn().Err(err).Int64("user_id", params.UserID).Msg("failed to create default notification preferences")
		}
	}

	return token, nil
}

// DeactivateToken marks a token the push provider rejected as inactive.
func (s *Service) DeactivateToken(ctx context.Context, token string) error {
	return s.repo.DeactivateToken(ctx, token)
}

// GetPreferences returns the notification preferences for a user.
// Returns default (all-enabled) preferences if none have been created yet.
func (s *Service) GetPreferences(ctx context.Context, userID int64) (*NotificationPreference, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}

	prefs, err := s.repo.GetPreferences(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

// UpdatePreferences updates notification preferences for a user
func (s *Service) UpdatePreferences(ctx context.Context, userID int64, params UpdatePreferenceParams) (*NotificationPreference, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}

	return s.repo.UpsertPreferences(ctx, userID, params)
}

// ListNotifications returns paginated notifications for a user
func (s *Service) ListNotifications(ctx context.Context, userID int64, page, perPage int) ([]*Notification, int, error) {
	if userID <= 0 {
		return nil, 0, errors.New("valid user ID is required")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return s.repo.ListByUserID(ctx, userID, page, perPage)
}

// MarkNotificationOpened marks a notification as opened by the authenticated user
func (s *Service) MarkNotificationOpened(ctx context.Context, notificationID string, userID int64) error {
	if notificationID == "" {
		return ErrNotificationNotFound
	}

	return s.repo.MarkOpened(ctx, notificationID, userID)
}

// SendToUser pushes a notification to every active device of a user and stores it.
// Disabled categories are skipped silently. Push failures are logged, not returned.
func (s *Service) SendToUser(ctx context.Context, userID int64, title, body, category string, data map[string]string) error {
	if !IsValidCategory(category) {
		return ErrInvalidCategory
	}

	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	if !prefs.IsCategoryEnabled(category) {
		log.Debug().Int64("user_id", userID).Str("category", category).Msg("notification skipped, category disabled")
		return nil
	}

	if data == nil {
		data = make(map[string]string)
	}
	if _, ok := data[DataKeyRoute]; !ok {
		data[DataKeyRoute] = category
	}

	tokens, err := s.activeTokens(ctx, userID)
	if err != nil {
		return err
	}

	if len(tokens) > 0 && s.messenger != nil {
		if err := s.messenger.SendMulticast(ctx, tokens, title, body, data); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("error sending notification")
		}
	}

	_, err = s.repo.CreateNotification(ctx, CreateNotificationParams{
		UserID:   userID,
		Title:    title,
		Message:  body,
		Category: category,
		Data:     data,
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("error storing notification")
	}

	return nil
}

// NotifyBalanceChanged sends a silent message so open apps refresh the account.
// It is not stored in the notification history.
func (s *Service) NotifyBalanceChanged(ctx context.Context, userID, accountID int64, balance string) error {
	if s.messenger == nil {
		return nil
	}

	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	if !prefs.IsCategoryEnabled(CategoryAccounts) {
		return nil
	}

	tokens, err := s.activeTokens(ctx, userID)
	if err != nil || len(tokens) == 0 {
		return err
	}

	return s.messenger.SendDataOnly(ctx, tokens, map[string]string{
		DataKeyType:      TypeBalanceChanged,
		DataKeyRoute:     CategoryAccounts,
		DataKeyAccountID: strconv.FormatInt(accountID, 10),
		DataKeyBalance:   balance,
	})
}

func (s *Service) activeTokens(ctx context.Context, userID int64) ([]string, error) {
	devices, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, len(devices))
	for i, d := range devices {
		tokens[i] = d.Token
	}
	return tokens, nil
}
