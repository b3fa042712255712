// Package ingestion feeds the execution pipeline from the ledger. A
// Watcher subscribes to log notifications mentioning tracked source
// wallets, fetches each transaction, runs detection and classification
// and hands copyable trades to the orchestrator for every user tracking
// that wallet.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/cache"
	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/observability"
	sol "github.com/happy2099/zap-mono-sub002/internal/solana"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
)

const (
	// DefaultFetchAttempts bounds re-fetches of a signature the RPC node
	// has not indexed yet at notification time.
	DefaultFetchAttempts = 3
	// DefaultFetchDelay is the wait between those re-fetches.
	DefaultFetchDelay = 400 * time.Millisecond
)

// SwapDetector turns a transaction event into a balance-diff verdict.
type SwapDetector interface {
	Detect(ev *domain.TransactionEvent, trader string) (*domain.SwapDetection, error)
}

// TradeClassifier resolves the venue of a detected swap.
type TradeClassifier interface {
	Classify(ctx context.Context, ev *domain.TransactionEvent, det *domain.SwapDetection, trader string) (*domain.ClassifiedTrade, *domain.CloningTarget, error)
}

// TransactionSource fetches confirmed transactions by signature.
type TransactionSource interface {
	GetTransactionEvent(ctx context.Context, signature string) (*domain.TransactionEvent, error)
}

// TradeAcceptor queues a copyable trade for reconstruction.
type TradeAcceptor interface {
	Accept(ctx context.Context, userID string, trade *domain.ClassifiedTrade, target *domain.CloningTarget) (string, error)
}

// Watcher consumes the wallet log stream and drives the pipeline.
type Watcher struct {
	stream     sol.LogStream
	source     TransactionSource
	detector   SwapDetector
	classifier TradeClassifier
	users      storage.UserStore
	observed   storage.ObservedTradeStore
	acceptor   TradeAcceptor
	caches     *cache.Manager
	metrics    *observability.Metrics
	log        *logrus.Logger

	fetchAttempts int
	fetchDelay    time.Duration

	// trader wallet -> ids of users copying it
	followers map[string][]string
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Stream     sol.LogStream
	Source     TransactionSource
	Detector   SwapDetector
	Classifier TradeClassifier
	Users      storage.UserStore
	Acceptor   TradeAcceptor

	// Observed receives every classified trade for offline analysis.
	// Optional.
	Observed storage.ObservedTradeStore
	// Caches holds fetched transaction packets. Optional.
	Caches  *cache.Manager
	Metrics *observability.Metrics
	Logger  *logrus.Logger

	FetchAttempts int
	FetchDelay    time.Duration
}

// NewWatcher creates a Watcher. Stream, Source, Detector, Classifier,
// Users and Acceptor are required.
func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	if opts.Stream == nil || opts.Source == nil || opts.Detector == nil ||
		opts.Classifier == nil || opts.Users == nil || opts.Acceptor == nil {
		return nil, errors.New("stream, source, detector, classifier, users and acceptor are required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.FetchAttempts <= 0 {
		opts.FetchAttempts = DefaultFetchAttempts
	}
	if opts.FetchDelay <= 0 {
		opts.FetchDelay = DefaultFetchDelay
	}

	return &Watcher{
		stream:        opts.Stream,
		source:        opts.Source,
		detector:      opts.Detector,
		classifier:    opts.Classifier,
		users:         opts.Users,
		observed:      opts.Observed,
		acceptor:      opts.Acceptor,
		caches:        opts.Caches,
		metrics:       opts.Metrics,
		log:           opts.Logger,
		fetchAttempts: opts.FetchAttempts,
		fetchDelay:    opts.FetchDelay,
		followers:     make(map[string][]string),
	}, nil
}

// Run subscribes to every tracked wallet of every active user and
// processes notifications until ctx is cancelled or the stream closes.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.subscribeTracked(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.stream.Events():
			if !ok {
				return errors.New("log stream closed")
			}
			w.handleEvent(ctx, ev)
		}
	}
}

func (w *Watcher) subscribeTracked(ctx context.Context) error {
	users, err := w.users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	for _, u := range users {
		for _, wallet := range u.TrackedWallets {
			if len(w.followers[wallet]) == 0 {
				if err := w.stream.Subscribe(ctx, wallet); err != nil {
					return fmt.Errorf("subscribe %s: %w", wallet, err)
				}
			}
			w.followers[wallet] = append(w.followers[wallet], u.ID)
		}
	}

	w.log.WithField("wallets", len(w.followers)).Info("watching tracked wallets")
	return nil
}

func (w *Watcher) handleEvent(ctx context.Context, ev sol.LogEvent) {
	if w.metrics != nil {
		w.metrics.LogEventsReceived.Inc()
		w.metrics.HighestSlotSeen.Set(float64(ev.Slot))
	}
	if ev.Failed {
		return
	}

	started := time.Now()
	logger := w.log.WithFields(logrus.Fields{
		"signature": ev.Signature,
		"wallet":    ev.Wallet,
		"slot":      ev.Slot,
	})

	txEvent, err := w.fetchTransaction(ctx, ev.Signature)
	if err != nil {
		logger.WithError(err).Warn("fetch transaction")
		return
	}
	if txEvent == nil {
		if w.metrics != nil {
			w.metrics.TransactionFetchMisses.Inc()
		}
		logger.Debug("transaction not indexed, giving up")
		return
	}
	if w.metrics != nil {
		w.metrics.TransactionsFetched.Inc()
	}
	if w.caches != nil {
		w.caches.Packets.Set(ev.Signature, txEvent)
		w.caches.Network.Store(cache.NetworkState{
			RPCHealthy:   true,
			WSConnected:  true,
			LastSlotSeen: ev.Slot,
			UpdatedAt:    time.Now(),
		})
		if w.metrics != nil {
			w.metrics.PacketsCached.Set(float64(w.caches.Packets.Len()))
		}
	}

	det, err := w.detector.Detect(txEvent, ev.Wallet)
	if err != nil {
		if w.metrics != nil {
			w.metrics.DetectionErrors.WithLabelValues(string(domain.CategoryOf(err))).Inc()
		}
		logger.WithError(err).Warn("detection")
		return
	}
	if !det.IsSwap {
		if w.metrics != nil {
			w.metrics.NonSwapsSkipped.Inc()
		}
		return
	}
	if w.metrics != nil {
		w.metrics.SwapsDetected.WithLabelValues(string(det.Type)).Inc()
	}

	trade, target, err := w.classifier.Classify(ctx, txEvent, det, ev.Wallet)
	if err != nil {
		logger.WithError(err).Warn("classification")
		return
	}
	if w.metrics != nil {
		w.metrics.TradesClassified.WithLabelValues(string(trade.Venue)).Inc()
		w.metrics.DetectionLatency.Observe(time.Since(started).Seconds())
	}

	w.archive(ctx, trade, logger)

	if !trade.Copyable() {
		if w.metrics != nil && trade.Router != "" {
			w.metrics.RouterTradesUnresolved.Inc()
		}
		logger.WithField("reason", trade.Reason).Info("trade not copyable")
		return
	}

	for _, userID := range w.followers[ev.Wallet] {
		if _, err := w.acceptor.Accept(ctx, userID, trade, target); err != nil {
			if errors.Is(err, domain.ErrDuplicateSignature) {
				continue
			}
			logger.WithField("user_id", userID).WithError(err).Warn("accept trade")
		}
	}
}

// fetchTransaction retries briefly when the node has not indexed the
// signature yet. A nil result after the attempt budget is a miss, not
// an error.
func (w *Watcher) fetchTransaction(ctx context.Context, signature string) (*domain.TransactionEvent, error) {
	for attempt := 0; ; attempt++ {
		ev, err := w.source.GetTransactionEvent(ctx, signature)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}
		if attempt+1 >= w.fetchAttempts {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.fetchDelay):
		}
	}
}

func (w *Watcher) archive(ctx context.Context, trade *domain.ClassifiedTrade, logger *logrus.Entry) {
	if w.observed == nil {
		return
	}
	if err := w.observed.Insert(ctx, trade); err != nil {
		logger.WithError(err).Warn("archive observed trade")
	}
}
