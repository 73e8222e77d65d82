package stream

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/arenalive/arenalive/internal/observability"
)

// StatusEnded is the terminal status sentinel on the state channel.
const StatusEnded = "ended"

// Snapshot is one deserialized match state message. Snapshots are replaced
// whole on every message, never merged.
type Snapshot struct {
	MatchID   string  `json:"match_id"`
	Timestamp float64 `json:"timestamp"`
	HealthA   int     `json:"health_a"`
	HealthB   int     `json:"health_b"`
	Round     int     `json:"round"`
	Timer     int     `json:"timer"`
	Status    string  `json:"status"`

	RoundWinner *string `json:"round_winner"`
	MatchWinner *string `json:"match_winner"`

	// Per-character health for team formats; absent in singles.
	TeamHealthA []int `json:"team_health_a,omitempty"`
	TeamHealthB []int `json:"team_health_b,omitempty"`
	ActiveCharA *int  `json:"active_char_a,omitempty"`
	ActiveCharB *int  `json:"active_char_b,omitempty"`

	OddsA     float64 `json:"odds_a"`
	OddsB     float64 `json:"odds_b"`
	PoolTotal uint64  `json:"pool_total"`
}

// StateTracker consumes the match state channel. HandleMessage runs on the
// owning channel's read loop; Latest and Ended may be read from other
// goroutines (the status endpoint), hence the lock.
type StateTracker struct {
	log     *slog.Logger
	metrics *observability.Metrics
	onEnded func()

	mu     sync.RWMutex
	latest *Snapshot
	ended  bool
}

// NewStateTracker creates a tracker. onEnded, if non-nil, fires exactly once
// when the terminal status sentinel arrives.
func NewStateTracker(log *slog.Logger, metrics *observability.Metrics, onEnded func()) *StateTracker {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &StateTracker{log: log, metrics: metrics, onEnded: onEnded}
}

// HandleMessage parses one text message. Malformed JSON is dropped; the
// terminal sentinel sets ended without touching the last snapshot; anything
// after the sentinel is ignored.
func (t *StateTracker) HandleMessage(data []byte) {
	if t.Ended() {
		return
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.log.Debug("dropping malformed state message", slog.String("error", err.Error()))
		t.metrics.MessagesDropped.WithLabelValues("state_json").Inc()
		return
	}

	if snap.Status == StatusEnded {
		t.log.Info("match ended", slog.String("match_id", snap.MatchID))
		t.mu.Lock()
		t.ended = true
		t.mu.Unlock()
		if t.onEnded != nil {
			t.onEnded()
		}
		return
	}

	t.mu.Lock()
	t.latest = &snap
	t.mu.Unlock()
	t.metrics.SnapshotsReceived.Inc()
}

// Reset clears the tracker for a different match: the ended latch drops and
// the last snapshot is discarded.
func (t *StateTracker) Reset() {
	t.mu.Lock()
	t.latest = nil
	t.ended = false
	t.mu.Unlock()
}

// Latest returns the most recent snapshot, or nil before the first one.
func (t *StateTracker) Latest() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// Ended reports whether the terminal sentinel has been seen.
func (t *StateTracker) Ended() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ended
}
