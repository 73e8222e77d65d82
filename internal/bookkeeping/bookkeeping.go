// Package bookkeeping records placed stakes with the platform's off-chain
// ledger. The on-chain transaction is authoritative; this record is
// fire-and-forget and must never block or roll back a stake.
package bookkeeping

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arenalive/arenalive/internal/httpclient"
)

// StakeRecord is the payload posted after a stake transaction lands.
type StakeRecord struct {
	MatchID          string `json:"match_id"`
	Bettor           string `json:"bettor"`
	Side             string `json:"side"`
	AmountMinorUnits uint64 `json:"amount_minor_units"`
	TxSignature      string `json:"tx_signature"`
}

// Recorder posts stake records.
type Recorder struct {
	http    *httpclient.Client
	baseURL string
	log     *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// NewRecorder creates a recorder rooted at baseURL.
func NewRecorder(hc *httpclient.Client, baseURL string, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		timeout: 10 * time.Second,
	}
}

// Record posts a stake record synchronously.
func (r *Recorder) Record(ctx context.Context, rec StakeRecord) error {
	return r.http.PostJSON(ctx, r.baseURL+"/stakes", rec, nil)
}

// RecordAsync posts a stake record in the background. Failures are logged
// and dropped; the on-chain state already holds the truth.
func (r *Recorder) RecordAsync(rec StakeRecord) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Record(ctx, rec); err != nil {
			r.log.Warn("stake record failed",
				slog.String("match_id", rec.MatchID),
				slog.String("tx", rec.TxSignature),
				slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until all background records have finished. Used on shutdown
// and in tests.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
