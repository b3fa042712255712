// Package orchestrator runs the trade execution state machine.
// Records move pending → executing → {completed | failed | cancelled};
// terminal states never transition again. At most one non-terminal record
// may exist per originating signature.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/cache"
	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/notify"
	"github.com/happy2099/zap-mono-sub002/internal/observability"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
	"github.com/happy2099/zap-mono-sub002/internal/submit"
)

const (
	// DefaultWorkers is the number of concurrent execution workers.
	DefaultWorkers = 4
	// DefaultMaxAttempts bounds retries of transient failures.
	DefaultMaxAttempts = 3
	// DefaultQueueSize is the job channel capacity.
	DefaultQueueSize = 1024
	// DefaultAttemptTimeout is the budget for one reconstruction attempt,
	// covering policy reads, cloning probes, quote and submission.
	DefaultAttemptTimeout = 30 * time.Second

	// retryConfidenceFloor is the minimum classification confidence for a
	// transient failure to be retried. Heuristic resolutions below it fail
	// on the first error rather than burn attempts on a guessed venue.
	retryConfidenceFloor = 80
)

// ErrShuttingDown is returned by Accept after shutdown has begun.
var ErrShuttingDown = errors.New("orchestrator is shutting down")

// Cloner reconstructs a classified trade for a different wallet.
type Cloner interface {
	Clone(ctx context.Context, trade *domain.ClassifiedTrade, target *domain.CloningTarget, wallet solana.PublicKey, policy domain.UserPolicy) (*domain.ClonedInstructionSet, error)
}

// Submitter assembles, signs and broadcasts a cloned instruction set.
type Submitter interface {
	Submit(ctx context.Context, set *domain.ClonedInstructionSet) (*submit.Receipt, error)
}

type job struct {
	recordID string
	target   *domain.CloningTarget
}

// Orchestrator owns the execution workers and the trade record archive.
type Orchestrator struct {
	records  storage.TradeRecordStore
	users    storage.UserStore
	cloner   Cloner
	sender   Submitter
	notifier notify.Notifier
	caches   *cache.Manager
	metrics  *observability.Metrics
	log      *logrus.Logger

	workers        int
	maxAttempts    int
	attemptTimeout time.Duration

	jobs chan job
	wg   sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc

	// termMu serializes terminal transitions so a late attempt result and a
	// concurrent Cancel cannot both move the same record.
	termMu sync.Mutex
}

// Options for creating an Orchestrator.
type Options struct {
	Records  storage.TradeRecordStore
	Users    storage.UserStore
	Cloner   Cloner
	Sender   Submitter
	Notifier notify.Notifier

	// Caches is pruned on terminal transitions. Optional.
	Caches *cache.Manager
	// Metrics is optional.
	Metrics *observability.Metrics
	Logger  *logrus.Logger

	Workers        int
	MaxAttempts    int
	QueueSize      int
	AttemptTimeout time.Duration
}

// New creates an Orchestrator. Records, Users, Cloner and Sender are
// required.
func New(opts Options) (*Orchestrator, error) {
	if opts.Records == nil || opts.Users == nil || opts.Cloner == nil || opts.Sender == nil {
		return nil, errors.New("records, users, cloner and sender are required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}

	return &Orchestrator{
		records:        opts.Records,
		users:          opts.Users,
		cloner:         opts.Cloner,
		sender:         opts.Sender,
		notifier:       opts.Notifier,
		caches:         opts.Caches,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		workers:        opts.Workers,
		maxAttempts:    opts.MaxAttempts,
		attemptTimeout: opts.AttemptTimeout,
		jobs:           make(chan job, opts.QueueSize),
		cancels:        make(map[string]context.CancelFunc),
	}, nil
}

// Run starts the execution workers and blocks until ctx is cancelled.
// On shutdown every record still pending or executing is cancelled,
// never left dangling.
func (o *Orchestrator) Run(ctx context.Context) {
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}

	<-ctx.Done()

	o.mu.Lock()
	o.closed = true
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	o.wg.Wait()
	o.cancelRemaining()
}

// Accept registers a trade for reconstruction and queues it. Returns the
// new record id, or ErrDuplicateSignature when a non-terminal record
// already exists for the originating signature.
func (o *Orchestrator) Accept(ctx context.Context, userID string, trade *domain.ClassifiedTrade, target *domain.CloningTarget) (string, error) {
	if !trade.Copyable() {
		return "", domain.Categorizef(domain.ErrorCategoryClassification, "trade is not copyable: %s", trade.Reason)
	}

	if _, err := o.records.GetActiveBySignature(ctx, trade.Signature); err == nil {
		o.countDuplicate()
		return "", domain.ErrDuplicateSignature
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("check active record: %w", err)
	}

	rec := &domain.TradeRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Trade:     trade,
		State:     domain.TradeStatePending,
		StartedAt: time.Now().UTC(),
	}
	if err := o.records.Insert(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			o.countDuplicate()
			return "", domain.ErrDuplicateSignature
		}
		return "", fmt.Errorf("insert record: %w", err)
	}
	if o.metrics != nil {
		o.metrics.TradesAccepted.Inc()
		o.metrics.TradesInFlight.Inc()
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.terminate(context.Background(), rec, domain.TradeStateCancelled, nil)
		return "", ErrShuttingDown
	}
	o.mu.Unlock()

	select {
	case o.jobs <- job{recordID: rec.ID, target: target}:
	case <-ctx.Done():
		o.terminate(context.Background(), rec, domain.TradeStateCancelled, nil)
		return "", ctx.Err()
	}

	o.log.WithFields(logrus.Fields{
		"record_id": rec.ID,
		"user_id":   userID,
		"signature": trade.Signature,
		"venue":     string(trade.Venue),
	}).Info("trade accepted")

	return rec.ID, nil
}

// Cancel moves a non-terminal record to cancelled. Always permitted;
// an in-flight attempt sees its context cancelled and its result is
// discarded.
func (o *Orchestrator) Cancel(ctx context.Context, recordID string) error {
	rec, err := o.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.State.Terminal() {
		return nil
	}

	o.mu.Lock()
	if cancel, ok := o.cancels[recordID]; ok {
		cancel()
	}
	o.mu.Unlock()

	o.terminate(ctx, rec, domain.TradeStateCancelled, nil)
	return nil
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-o.jobs:
			o.execute(ctx, j)
		}
	}
}

func (o *Orchestrator) execute(ctx context.Context, j job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	o.cancels[j.recordID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, j.recordID)
		o.mu.Unlock()
	}()

	for {
		rec, err := o.records.GetByID(jobCtx, j.recordID)
		if err != nil {
			o.log.WithField("record_id", j.recordID).WithError(err).Error("load record")
			return
		}
		if rec.State.Terminal() {
			// Cancelled while queued; discard.
			return
		}

		rec.State = domain.TradeStateExecuting
		rec.Attempts++
		if err := o.records.Update(jobCtx, rec); err != nil {
			o.log.WithField("record_id", rec.ID).WithError(err).Error("mark executing")
			return
		}

		receipt, err := o.attempt(jobCtx, rec, j.target)
		if jobCtx.Err() != nil {
			// Cancel moved the record to a terminal state while the attempt
			// was in flight; its outcome, success included, is discarded.
			return
		}
		if err == nil {
			o.terminate(ctx, rec, domain.TradeStateCompleted, receipt)
			return
		}

		category := domain.CategoryOf(err)
		if o.shouldRetry(rec, category) {
			o.log.WithFields(logrus.Fields{
				"record_id": rec.ID,
				"attempt":   rec.Attempts,
				"category":  string(category),
			}).WithError(err).Warn("transient failure, retrying")
			if o.metrics != nil {
				o.metrics.TradesRetried.Inc()
			}
			continue
		}

		rec.ErrorCategory = category
		rec.ErrorMessage = err.Error()
		o.terminate(ctx, rec, domain.TradeStateFailed, nil)
		return
	}
}

// attempt runs one reconstruction pass under the fixed time budget.
func (o *Orchestrator) attempt(ctx context.Context, rec *domain.TradeRecord, target *domain.CloningTarget) (*submit.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	policy, err := o.users.GetUserPolicy(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.Categorizef(domain.ErrorCategoryResource, "no policy for user %s", rec.UserID)
		}
		return nil, domain.Categorize(domain.ErrorCategoryNetwork, err)
	}

	walletAddr, err := o.users.GetPrimaryWallet(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.Categorizef(domain.ErrorCategoryResource, "no wallet for user %s", rec.UserID)
		}
		return nil, domain.Categorize(domain.ErrorCategoryNetwork, err)
	}
	wallet, err := solana.PublicKeyFromBase58(walletAddr)
	if err != nil {
		return nil, domain.Categorizef(domain.ErrorCategoryResource, "invalid wallet for user %s: %v", rec.UserID, err)
	}

	set, err := o.cloner.Clone(ctx, rec.Trade, target, wallet, policy)
	if err != nil {
		return nil, err
	}

	receipt, err := o.sender.Submit(ctx, set)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (o *Orchestrator) shouldRetry(rec *domain.TradeRecord, category domain.ErrorCategory) bool {
	if !category.Transient() {
		return false
	}
	if rec.Attempts >= o.maxAttempts {
		return false
	}
	return rec.Trade != nil && rec.Trade.Confidence >= retryConfidenceFloor
}

// terminate moves a record to a terminal state, emits exactly one
// notification and prunes the packet cache for its signature. Terminal
// states are final: a record another path already terminated is left
// untouched and the caller's result is discarded.
func (o *Orchestrator) terminate(ctx context.Context, rec *domain.TradeRecord, state domain.TradeState, receipt *submit.Receipt) {
	o.termMu.Lock()
	defer o.termMu.Unlock()

	current, err := o.records.GetByID(ctx, rec.ID)
	if err != nil {
		o.log.WithField("record_id", rec.ID).WithError(err).Error("load record for terminal transition")
		return
	}
	if current.State.Terminal() {
		return
	}
	rec.Attempts = current.Attempts

	rec.State = state
	rec.EndedAt = time.Now().UTC()
	if receipt != nil {
		rec.SubmittedSignature = receipt.Signature
		rec.ExecutionTime = receipt.ExecutionTime
	}

	if err := o.records.Update(ctx, rec); err != nil {
		o.log.WithFields(logrus.Fields{
			"record_id": rec.ID,
			"state":     string(state),
		}).WithError(err).Error("persist terminal state")
	}

	if o.caches != nil && rec.Trade != nil {
		o.caches.Packets.Delete(rec.Trade.Signature)
	}

	if o.metrics != nil {
		o.metrics.TradesInFlight.Dec()
		switch state {
		case domain.TradeStateCompleted:
			o.metrics.TradesCompleted.Inc()
			o.metrics.ExecutionLatency.Observe(rec.EndedAt.Sub(rec.StartedAt).Seconds())
		case domain.TradeStateFailed:
			o.metrics.TradesFailed.WithLabelValues(string(rec.ErrorCategory)).Inc()
		}
	}

	switch state {
	case domain.TradeStateCompleted:
		o.log.WithFields(logrus.Fields{
			"record_id":     rec.ID,
			"submitted_sig": rec.SubmittedSignature,
			"attempts":      rec.Attempts,
		}).Info("trade completed")
		o.notifier.TradeCompleted(ctx, rec)
	default:
		o.log.WithFields(logrus.Fields{
			"record_id": rec.ID,
			"state":     string(state),
			"category":  string(rec.ErrorCategory),
			"attempts":  rec.Attempts,
		}).Warn("trade not completed")
		o.notifier.TradeFailed(ctx, rec)
	}
}

// cancelRemaining drains the closed job queue and cancels every record
// the store still reports as non-terminal.
func (o *Orchestrator) cancelRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		select {
		case <-o.jobs:
			// Records behind queued jobs are picked up by the state
			// listing below.
			continue
		default:
		}
		break
	}

	for _, state := range []domain.TradeState{domain.TradeStatePending, domain.TradeStateExecuting} {
		records, err := o.records.ListByState(ctx, state)
		if err != nil {
			o.log.WithError(err).Error("list records for shutdown cancellation")
			continue
		}
		for _, rec := range records {
			o.terminate(ctx, rec, domain.TradeStateCancelled, nil)
		}
	}
}

func (o *Orchestrator) countDuplicate() {
	if o.metrics != nil {
		o.metrics.DuplicatesRejected.Inc()
	}
}
