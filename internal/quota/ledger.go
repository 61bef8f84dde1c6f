package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

// Policy decides what happens to billable requests once the limit is reached
type Policy string

const (
	// PolicySoft lets requests through and flags them as over the limit
	PolicySoft Policy = "soft"
	// PolicyHard rejects requests before any work is done
	PolicyHard Policy = "hard"
)

// ParsePolicy converts a configuration value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySoft, PolicyHard:
		return Policy(s), nil
	case "":
		return PolicySoft, nil
	}
	return "", fmt.Errorf("unknown quota policy %q", s)
}

// LimitWarning is returned alongside responses of users at or over their limit
const LimitWarning = "API call limit reached. You have used all of your free API calls."

// Store persists quota records. Every mutating method must be a single atomic
// statement and create the record with defaultLimit when it does not exist.
type Store interface {
	GetQuota(ctx context.Context, userID string) (*models.Quota, error)
	EnsureQuota(ctx context.Context, userID string, defaultLimit int) error
	IncrementQuota(ctx context.Context, userID string, defaultLimit int) (*models.Quota, error)
	ResetQuota(ctx context.Context, userID string, defaultLimit int) (*models.Quota, error)
}

// Usage is a raw counter reading
type Usage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Snapshot is a counter reading with the derived quota state
type Snapshot struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Exceeded  bool `json:"exceeded"`
}

// NewSnapshot derives remaining calls and the exceeded flag
func NewSnapshot(used, limit int) Snapshot {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
		Exceeded:  used >= limit,
	}
}

// Warning returns the over-limit warning or an empty string
func (s Snapshot) Warning() string {
	if s.Exceeded {
		return LimitWarning
	}
	return ""
}

// Ledger tracks per-user call counters against their limits
type Ledger struct {
	store        Store
	defaultLimit int
	policy       Policy
	logger       *logging.Logger
}

// NewLedger creates a ledger
func NewLedger(store Store, defaultLimit int, policy Policy, logger *logging.Logger) *Ledger {
	if policy == "" {
		policy = PolicySoft
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Ledger{
		store:        store,
		defaultLimit: defaultLimit,
		policy:       policy,
		logger:       logger,
	}
}

// Policy returns the enforcement policy of this ledger
func (l *Ledger) Policy() Policy {
	return l.policy
}

// DefaultLimit returns the limit given to newly created records
func (l *Ledger) DefaultLimit() int {
	return l.defaultLimit
}

// GetUsage reads the counter, creating a default record if none exists
func (l *Ledger) GetUsage(ctx context.Context, userID string) (Usage, error) {
	q, err := l.store.GetQuota(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		if err := l.store.EnsureQuota(ctx, userID, l.defaultLimit); err != nil {
			return Usage{}, fmt.Errorf("failed to create quota record: %w", err)
		}
		l.logger.LogQuotaEvent(userID, "created", 0, l.defaultLimit)
		q, err = l.store.GetQuota(ctx, userID)
	}
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get quota: %w", err)
	}

	return Usage{Used: q.CallsUsed, Limit: q.CallsLimit}, nil
}

// CheckLimit returns the current snapshot of a user's quota
func (l *Ledger) CheckLimit(ctx context.Context, userID string) (Snapshot, error) {
	usage, err := l.GetUsage(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(usage.Used, usage.Limit), nil
}

// Increment atomically adds one call to the counter and returns the new snapshot
func (l *Ledger) Increment(ctx context.Context, userID string) (Snapshot, error) {
	q, err := l.store.IncrementQuota(ctx, userID, l.defaultLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to increment quota: %w", err)
	}

	snap := NewSnapshot(q.CallsUsed, q.CallsLimit)
	metrics.QuotaIncrementsTotal.Inc()
	if snap.Exceeded {
		metrics.QuotaExceededTotal.WithLabelValues(string(l.policy)).Inc()
	}
	l.logger.LogQuotaEvent(userID, "increment", q.CallsUsed, q.CallsLimit)

	return snap, nil
}

// Reset sets the counter back to zero without touching the limit
func (l *Ledger) Reset(ctx context.Context, userID string) (Snapshot, error) {
	q, err := l.store.ResetQuota(ctx, userID, l.defaultLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to reset quota: %w", err)
	}

	l.logger.LogQuotaEvent(userID, "reset", q.CallsUsed, q.CallsLimit)
	return NewSnapshot(q.CallsUsed, q.CallsLimit), nil
}

// Blocks reports whether a request with this snapshot must be rejected up front
func (l *Ledger) Blocks(s Snapshot) bool {
	return l.policy == PolicyHard && s.Exceeded
}
