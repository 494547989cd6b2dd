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

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnqueueDelivery inserts one Delivery row. It does not wake an idle
// worker itself; NotifyDeliveryQueued is the separate wake-up call, and a
// row enqueued without one is picked up by the next poll. Called within the same
// transaction as the activity that caused it, so the row never appears
// without its causing activity.
func (s *Store) EnqueueDelivery(ctx context.Context, tx *sql.Tx, activityID int64, inboxURI string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO deliveries (activity_id, inbox_uri) VALUES ($1, $2);`, activityID, inboxURI)
	if err != nil {
		return fmt.Errorf("store: enqueue delivery for activity %d: %w", activityID, err)
	}
	return nil
}

// EnqueueDeliveriesForFollowers fans a single activity out to one Delivery
// row per accepted follower of authorID, preferring each follower's
// shared_inbox_uri when present (spec.md §4.5 step 6). Implemented as a
// single INSERT…SELECT, grounded on models/outboxes.go's fan-out shape,
// rather than a per-follower loop of inserts.
func (s *Store) EnqueueDeliveriesForFollowers(ctx context.Context, tx *sql.Tx, activityID, authorID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO deliveries (activity_id, inbox_uri)
SELECT $1, COALESCE(a.shared_inbox_uri, a.inbox_uri)
FROM follows f
JOIN actors a ON a.id = f.actor_id
WHERE f.target_id = $2 AND f.accepted = TRUE;`, activityID, authorID)
	if err != nil {
		return 0, fmt.Errorf("store: enqueue deliveries for followers of %d: %w", authorID, err)
	}
	n, err := res.RowsAffected()
	return n, err
}

// LeasedDelivery is one row claimed by Lease, joined with the sending
// actor's private key and the raw activity document to POST.
type LeasedDelivery struct {
	ID            int64
	ActivityID    int64
	InboxURI      string
	Attempts      int
	KeyID         string
	PrivateKeyPEM string
	ActivityJSON  []byte
}

// Lease holds a transaction-scoped batch of Delivery rows claimed via
// row-level locking (SELECT ... FOR UPDATE SKIP LOCKED), matching spec.md
// §4.6's "lease MUST be race-free" requirement. The caller must call
// Commit after recording each row's outcome via Success/Failure, or
// Rollback to release the rows unleased (e.g. on worker shutdown, so
// Queued rows stay safe to re-lease per spec.md §5).
type Lease struct {
	tx    *sql.Tx
	store *Store
	Rows  []LeasedDelivery
}

const leaseSQL = `
SELECT d.id, d.activity_id, d.inbox_uri, d.attempts,
	k.key_id, k.private_key_pem, a.raw_document
FROM deliveries d
JOIN activities a ON a.id = d.activity_id
JOIN keys k ON k.actor_id = a.actor_id
WHERE d.status IN ('Queued', 'Failed')
	AND d.next_retry_at <= now()
	AND k.private_key_pem IS NOT NULL
ORDER BY d.next_retry_at
LIMIT $1
FOR UPDATE OF d SKIP LOCKED;`

// LeaseDeliveries claims up to n Delivery rows ready for (re)attempt,
// skipping rows whose sender has no private key (spec.md §4.6's Lease
// step). The returned Lease's underlying transaction holds row locks
// until Commit/Rollback; the caller is expected to call exactly one.
func (s *Store) LeaseDeliveries(ctx context.Context, n int) (*Lease, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: lease deliveries: begin tx: %w", err)
	}
	rows, err := tx.QueryContext(ctx, leaseSQL, n)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("store: lease deliveries: %w", err)
	}
	defer rows.Close()

	var out []LeasedDelivery
	for rows.Next() {
		var d LeasedDelivery
		if err := rows.Scan(&d.ID, &d.ActivityID, &d.InboxURI, &d.Attempts, &d.KeyID, &d.PrivateKeyPEM, &d.ActivityJSON); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("store: lease deliveries: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &Lease{tx: tx, store: s, Rows: out}, nil
}

// Commit finalizes the lease. Every row must have had Success or Failure
// called on it first; rows that were never touched remain Queued/Failed
// untouched, unlocked once the transaction commits.
func (l *Lease) Commit() error {
	return l.tx.Commit()
}

// Rollback releases the lease's row locks without applying any change,
// leaving every row safe to re-lease (spec.md §5's shutdown discipline).
func (l *Lease) Rollback() error {
	return l.tx.Rollback()
}

// Success marks a leased delivery Delivered (spec.md §4.6's 2xx case).
func (l *Lease) Success(ctx context.Context, id int64, statusCode int) error {
	_, err := l.tx.ExecContext(ctx, `
UPDATE deliveries SET status = 'Delivered', attempts = attempts + 1,
	last_attempt_at = now(), last_status_code = $2
WHERE id = $1;`, id, statusCode)
	if err != nil {
		return fmt.Errorf("store: delivery success %d: %w", id, err)
	}
	return nil
}

// backoffSchedule is spec.md §4.6's fixed retry table: 1m, 5m, 30m, 2h,
// 12h, 24h, 3d, 7d. A deliberate redesign replacing the teacher's own
// exponential-doubling backoff (framework/conn/retrier.go), since spec.md
// §9 calls out the fixed table as authoritative.
var backoffSchedule = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	1800 * time.Second,
	7200 * time.Second,
	43200 * time.Second,
	86400 * time.Second,
	259200 * time.Second,
	604800 * time.Second,
}

// NextRetryDelay returns R[min(attempts, |R|-1)] for the given 1-based
// attempt count, spec.md §4.6's backoff formula (R is 1-indexed there: the
// first failure, attempts=1, maps to R's first entry, 60s — spec.md §8's
// "next_retry_at ≈ now()+60s" after one failure). Converted to a 0-indexed
// Go slice, that is backoffSchedule[attempts-1].
func NextRetryDelay(attempts int) time.Duration {
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

// Failure records a failed delivery attempt (spec.md §4.6's non-2xx/
// timeout/connection-error case). If attempts reaches maxAttempts the
// delivery is terminally Expired; otherwise it is scheduled for retry with
// the fixed backoff and left Failed.
func (l *Lease) Failure(ctx context.Context, id int64, errMsg string, statusCode *int, attemptsBefore, maxAttempts int) error {
	attempts := attemptsBefore + 1
	if attempts >= maxAttempts {
		_, err := l.tx.ExecContext(ctx, `
UPDATE deliveries SET status = 'Expired', attempts = $2,
	last_attempt_at = now(), last_error = $3, last_status_code = $4
WHERE id = $1;`, id, attempts, errMsg, statusCode)
		if err != nil {
			return fmt.Errorf("store: delivery expire %d: %w", id, err)
		}
		return nil
	}
	nextRetry := time.Now().Add(NextRetryDelay(attempts))
	_, err := l.tx.ExecContext(ctx, `
UPDATE deliveries SET status = 'Failed', attempts = $2,
	last_attempt_at = now(), next_retry_at = $3, last_error = $4, last_status_code = $5
WHERE id = $1;`, id, attempts, nextRetry, errMsg, statusCode)
	if err != nil {
		return fmt.Errorf("store: delivery failure %d: %w", id, err)
	}
	return nil
}

// InsertDeliveryForTest inserts a Delivery row directly, for unit tests that
// exercise Failure/Success transitions without an InboxPipeline/OutboxBuilder
// caller (spec.md §8 scenario 6).
func (s *Store) InsertDeliveryForTest(ctx context.Context, activityID int64, inboxURI string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO deliveries (activity_id, inbox_uri) VALUES ($1, $2) RETURNING id;`, activityID, inboxURI).Scan(&id)
	return id, err
}
