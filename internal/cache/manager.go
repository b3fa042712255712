package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/domain"
)

// Default lifetimes.
const (
	DefaultPacketTTL     = 20 * time.Minute
	DefaultSnapshotTTL   = 15 * time.Second
	DefaultSweepInterval = time.Minute
)

// Snapshot is recent chain state used when assembling transactions.
type Snapshot struct {
	Blockhash   string
	Slot        int64
	RetrievedAt time.Time
}

// NetworkState is long-lived connectivity state shared across components.
// It has no TTL: consumers overwrite it as conditions change.
type NetworkState struct {
	RPCHealthy   bool
	WSConnected  bool
	LastSlotSeen int64
	UpdatedAt    time.Time
}

// Manager bundles the process-wide caches and runs the background sweep
// that bounds memory between reads.
type Manager struct {
	Packets   *TTLStore[*domain.TransactionEvent]
	Snapshots *TTLStore[Snapshot]
	Network   Cell[NetworkState]

	sweepInterval time.Duration
	log           *logrus.Logger
}

// Options configures Manager. Zero durations pick the defaults.
type Options struct {
	PacketTTL     time.Duration
	SnapshotTTL   time.Duration
	SweepInterval time.Duration
	Logger        *logrus.Logger
}

// NewManager creates the cache set with the given lifetimes.
func NewManager(opts Options) *Manager {
	if opts.PacketTTL <= 0 {
		opts.PacketTTL = DefaultPacketTTL
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = DefaultSnapshotTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Manager{
		Packets:       NewTTLStore[*domain.TransactionEvent](opts.PacketTTL),
		Snapshots:     NewTTLStore[Snapshot](opts.SnapshotTTL),
		sweepInterval: opts.SweepInterval,
		log:           opts.Logger,
	}
}

// Run sweeps expired entries until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped := m.Packets.Prune() + m.Snapshots.Prune()
			if dropped > 0 {
				m.log.WithField("dropped", dropped).Debug("cache sweep")
			}
		}
	}
}
