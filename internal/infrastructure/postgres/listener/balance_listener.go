package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"chreosis/internal/domain/ledger"
	"chreosis/internal/domain/transaction"
)

const (
	// ChannelName must match the channel the ledger store notifies on.
	ChannelName       = "account_balance_changed"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
	deliveryTimeout   = 10 * time.Second
)

// BalanceNotifier receives committed balance changes.
type BalanceNotifier interface {
	NotifyBalanceChanged(ctx context.Context, userID, accountID int64, balance string) error
}

// BalanceListener forwards account balance changes published with NOTIFY to
// the user's devices. Postgres only delivers a notification once the
// transaction that raised it commits.
type BalanceListener struct {
	connStr    string
	notifier   BalanceNotifier
	shutdownCh chan struct{}
	done       chan struct{}
}

func NewBalanceListener(connStr string, notifier BalanceNotifier) *BalanceListener {
	return &BalanceListener{
		connStr:    connStr,
		notifier:   notifier,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *BalanceListener) Start(ctx context.Context) {
	go l.listen(ctx)
	log.Info().Str("channel", ChannelName).Msg("Balance listener started")
}

// Stop gracefully shuts down the listener
func (l *BalanceListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	log.Info().Msg("Balance listener stopped")
}

func (l *BalanceListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Info().Msg("Reconnecting to PostgreSQL for balance notifications")
		}
	}
}

func (l *BalanceListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Debug().Msg("Connected to PostgreSQL notification channel")
		case pq.ListenerEventDisconnected:
			log.Warn().Err(err).Msg("Disconnected from PostgreSQL notification channel")
		case pq.ListenerEventReconnected:
			log.Info().Msg("Reconnected to PostgreSQL notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Warn().Err(err).Msg("Notification channel connection attempt failed")
		}
	})
	defer listener.Close()

	if err := listener.Listen(ChannelName); err != nil {
		log.Error().Err(err).Str("channel", ChannelName).Msg("Failed to listen on channel")
		return
	}

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// nil means the connection was re-established and events may have been lost
				continue
			}
			l.handleNotification(n)
		case <-time.After(pingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					log.Warn().Err(err).Msg("Listener ping failed")
				}
			}()
		}
	}
}

func (l *BalanceListener) handleNotification(n *pq.Notification) {
	change, err := decodeChange(n.Extra)
	if err != nil {
		log.Warn().Err(err).Str("payload", n.Extra).Msg("Failed to parse balance notification")
		return
	}

	// The listener context may already be cancelled during shutdown.
	go l.deliver(change)
}

func (l *BalanceListener) deliver(change transaction.BalanceChange) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	balance := change.Balance.StringFixed(ledger.MinorUnits)
	if err := l.notifier.NotifyBalanceChanged(ctx, change.UserID, change.AccountID, balance); err != nil {
		log.Warn().Err(err).
			Int64("user_id", change.UserID).
			Int64("account_id", change.AccountID).
			Msg("Failed to push balance change")
	}
}

func decodeChange(payload string) (transaction.BalanceChange, error) {
	var change transaction.BalanceChange
	err := json.Unmarshal([]byte(payload), &change)
	return change, err
}
