// pg_fedi is a federated ActivityPub server core.
// Copyright (C) 2026 The pg_fedi Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package delivery implements spec.md §4.6's DeliveryScheduler: a polling
// worker that leases pending deliveries, signs and POSTs them, and records
// success/failure with bounded exponential-ish (fixed-table) backoff.
//
// Grounded on framework/conn/retrier.go's timer-driven retry loop and
// util/safe_start_stop.go's Start/Stop/timer discipline, reused for this
// scheduler's own lifecycle since it is a generic, domain-free primitive.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/codybrom/pg-fedi/internal/crypto"
	"github.com/codybrom/pg-fedi/internal/httpsig"
	"github.com/codybrom/pg-fedi/internal/store"
	"github.com/codybrom/pg-fedi/internal/xlog"
)

// Transport is the injected HTTP sender, spec.md §5's bounded suspension
// point for each outbound POST. *http.Client satisfies this directly.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the scheduler's tunables, matching spec.md §6's
// max_delivery_attempts/delivery_timeout_seconds plus the ambient lease
// batch size, poll period and per-host rate limit SPEC_FULL.md §2 adds.
type Config struct {
	MaxAttempts    int
	BatchSize      int
	PollPeriod     time.Duration
	Timeout        time.Duration
	UserAgent      string
	RateLimitQPS   float64
	RateLimitBurst int
}

// Scheduler is spec.md §4.6's DeliveryScheduler. Multiple instances may run
// safely provided leases are claimed atomically (spec.md §4.6), which
// Store.LeaseDeliveries guarantees via SELECT ... FOR UPDATE SKIP LOCKED.
type Scheduler struct {
	store     *store.Store
	transport Transport
	cfg       Config

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler. Defaults are filled in for any zero-valued
// Config field, matching spec.md §6's defaults.
func New(s *store.Store, transport Transport, cfg Config) *Scheduler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.PollPeriod <= 0 {
		cfg.PollPeriod = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "pg_fedi/0.1.0"
	}
	if cfg.RateLimitQPS <= 0 {
		cfg.RateLimitQPS = 2
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	return &Scheduler{
		store:     s,
		transport: transport,
		cfg:       cfg,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Start begins the polling loop. Idempotent; a second Start before Stop is
// a no-op, matching util/safe_start_stop.go's SafeStartStop discipline.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.loop(s.ctx)
}

// Stop blocks until the loop goroutine has exited. An in-flight lease's
// transaction was begun with the loop's context, so cancelling that context
// rolls it back and its rows stay leasable; no row is left in an
// in-progress state (spec.md §5's shutdown discipline).
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.cfg.PollPeriod)
	defer timer.Stop()
	wake := s.store.DeliveryQueuedChan()

	for {
		select {
		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(s.cfg.PollPeriod)
		case <-wake:
			// A fresh Delivery row was enqueued; re-subscribe before the
			// next broadcast overwrites the channel out from under us.
			wake = s.store.DeliveryQueuedChan()
			s.runOnce(ctx)
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.cfg.PollPeriod)
		case <-ctx.Done():
			return
		}
	}
}

// runOnce leases one batch and processes each row, matching spec.md §4.6's
// Lease/Send/Success/Failure steps.
func (s *Scheduler) runOnce(ctx context.Context) {
	lease, err := s.store.LeaseDeliveries(ctx, s.cfg.BatchSize)
	if err != nil {
		xlog.Errorf("delivery: lease deliveries: %v", err)
		return
	}
	if len(lease.Rows) == 0 {
		if err := lease.Rollback(); err != nil {
			xlog.Errorf("delivery: rollback empty lease: %v", err)
		}
		return
	}

	for _, row := range lease.Rows {
		s.attempt(ctx, lease, row)
	}

	if err := lease.Commit(); err != nil {
		xlog.Errorf("delivery: commit lease: %v", err)
	}
}

// attempt signs, sends and records the outcome of one leased delivery.
func (s *Scheduler) attempt(ctx context.Context, lease *store.Lease, row store.LeasedDelivery) {
	if host, err := hostOf(row.InboxURI); err == nil {
		if err := s.limiterFor(host).Wait(ctx); err != nil {
			s.recordFailure(ctx, lease, row, fmt.Sprintf("rate limiter: %v", err), nil)
			return
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	date := rfc1123GMT(time.Now())
	sigHeader, err := httpsig.BuildHeader(row.KeyID, row.PrivateKeyPEM, http.MethodPost, row.InboxURI, date, row.ActivityJSON)
	if err != nil {
		s.recordFailure(ctx, lease, row, fmt.Sprintf("sign: %v", err), nil)
		return
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, row.InboxURI, bytes.NewReader(row.ActivityJSON))
	if err != nil {
		s.recordFailure(ctx, lease, row, fmt.Sprintf("build request: %v", err), nil)
		return
	}
	req.Header.Set("Date", date)
	req.Header.Set("Digest", crypto.Digest(row.ActivityJSON))
	req.Header.Set("Signature", sigHeader)
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := s.transport.Do(req)
	if err != nil {
		s.recordFailure(ctx, lease, row, err.Error(), nil)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := lease.Success(ctx, row.ID, resp.StatusCode); err != nil {
			xlog.Errorf("delivery: record success %d: %v", row.ID, err)
		}
		return
	}
	code := resp.StatusCode
	s.recordFailure(ctx, lease, row, fmt.Sprintf("remote returned status %d", code), &code)
}

func (s *Scheduler) recordFailure(ctx context.Context, lease *store.Lease, row store.LeasedDelivery, msg string, statusCode *int) {
	if err := lease.Failure(ctx, row.ID, msg, statusCode, row.Attempts, s.cfg.MaxAttempts); err != nil {
		xlog.Errorf("delivery: record failure %d: %v", row.ID, err)
	}
}

func (s *Scheduler) limiterFor(host string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RateLimitQPS), s.cfg.RateLimitBurst)
		s.limiters[host] = l
	}
	return l
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("delivery: no host in %q", rawURL)
	}
	return u.Host, nil
}

// rfc1123GMT formats t per spec.md §6's "Date: <RFC-1123 UTC>", which in
// practice means the literal zone name "GMT" rather than Go's default "UTC"
// abbreviation for the UTC location.
func rfc1123GMT(t time.Time) string {
	return strings.Replace(t.UTC().Format(time.RFC1123), "UTC", "GMT", 1)
}
