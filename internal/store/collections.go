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
	"fmt"
)

// PageSize is the fixed OrderedCollectionPage size spec.md §4.7 names.
const PageSize = 20

// OutboxCount returns the total number of local, processed activities by
// actorID, the denominator for the outbox collection summary.
func (s *Store) OutboxCount(ctx context.Context, actorID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
SELECT count(*) FROM activities WHERE actor_id = $1 AND local = TRUE AND processed = TRUE;`, actorID).Scan(&n)
	return n, err
}

// OutboxPage returns one page (0-indexed) of actorID's local activity URIs,
// newest first.
func (s *Store) OutboxPage(ctx context.Context, actorID int64, page int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT coalesce(uri, '') FROM activities
WHERE actor_id = $1 AND local = TRUE AND processed = TRUE
ORDER BY inserted_at DESC
LIMIT $2 OFFSET $3;`, actorID, PageSize, page*PageSize)
	if err != nil {
		return nil, fmt.Errorf("store: outbox page: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// FollowersCount returns the accepted-followers count for actorID.
func (s *Store) FollowersCount(ctx context.Context, actorID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM follows WHERE target_id = $1 AND accepted = TRUE;`, actorID).Scan(&n)
	return n, err
}

// FollowersPage returns one page of actorID's accepted follower URIs.
func (s *Store) FollowersPage(ctx context.Context, actorID int64, page int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.uri FROM follows f JOIN actors a ON a.id = f.actor_id
WHERE f.target_id = $1 AND f.accepted = TRUE
ORDER BY f.id
LIMIT $2 OFFSET $3;`, actorID, PageSize, page*PageSize)
	if err != nil {
		return nil, fmt.Errorf("store: followers page: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// FollowingCount returns the accepted-following count for actorID.
func (s *Store) FollowingCount(ctx context.Context, actorID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM follows WHERE actor_id = $1 AND accepted = TRUE;`, actorID).Scan(&n)
	return n, err
}

// FollowingPage returns one page of actorID's accepted following URIs.
func (s *Store) FollowingPage(ctx context.Context, actorID int64, page int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.uri FROM follows f JOIN actors a ON a.id = f.target_id
WHERE f.actor_id = $1 AND f.accepted = TRUE
ORDER BY f.id
LIMIT $2 OFFSET $3;`, actorID, PageSize, page*PageSize)
	if err != nil {
		return nil, fmt.Errorf("store: following page: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// FeaturedCount returns the pinned-object count for actorID.
func (s *Store) FeaturedCount(ctx context.Context, actorID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM featured WHERE actor_id = $1;`, actorID).Scan(&n)
	return n, err
}

// FeaturedPage returns one page of actorID's pinned object URIs.
func (s *Store) FeaturedPage(ctx context.Context, actorID int64, page int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT o.uri FROM featured ft JOIN objects o ON o.id = ft.object_id
WHERE ft.actor_id = $1
ORDER BY ft.id
LIMIT $2 OFFSET $3;`, actorID, PageSize, page*PageSize)
	if err != nil {
		return nil, fmt.Errorf("store: featured page: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func scanStrings(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
