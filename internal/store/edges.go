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
	"errors"
	"fmt"
)

// UpsertFollow creates or updates the (follower, target) Follow edge,
// spec.md §3's Follow edge. ON CONFLICT preserves an already-accepted
// follow rather than downgrading it, since a replayed inbound Follow
// should not un-accept an edge a prior Accept already confirmed.
func (s *Store) UpsertFollow(ctx context.Context, tx *sql.Tx, followerID, targetID int64, accepted bool, followActivityURI string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
INSERT INTO follows (actor_id, target_id, accepted, follow_activity_uri)
VALUES ($1, $2, $3, $4)
ON CONFLICT (actor_id, target_id) DO UPDATE SET
	accepted = follows.accepted OR EXCLUDED.accepted,
	follow_activity_uri = EXCLUDED.follow_activity_uri
RETURNING id;`, followerID, targetID, accepted, followActivityURI).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert follow %d->%d: %w", followerID, targetID, err)
	}
	return id, nil
}

// AcceptFollowByActivityURI sets accepted=true on the follow edge whose
// originating Follow activity URI matches, spec.md §4.4's Accept verb.
// Returns whether a row changed.
func (s *Store) AcceptFollowByActivityURI(ctx context.Context, tx *sql.Tx, followActivityURI string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE follows SET accepted = TRUE WHERE follow_activity_uri = $1;`, followActivityURI)
	if err != nil {
		return false, fmt.Errorf("store: accept follow %s: %w", followActivityURI, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteFollowByActivityURI removes the follow edge originated by
// followActivityURI, spec.md §4.4's Reject verb. Missing rows are not an
// error (idempotent).
func (s *Store) DeleteFollowByActivityURI(ctx context.Context, tx *sql.Tx, followActivityURI string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE follow_activity_uri = $1;`, followActivityURI)
	if err != nil {
		return fmt.Errorf("store: delete follow by activity %s: %w", followActivityURI, err)
	}
	return nil
}

// DeleteFollow removes the (follower, target) edge if present. Used by
// Undo Follow and by Block's "sever any follow edges in either direction".
func (s *Store) DeleteFollow(ctx context.Context, tx *sql.Tx, followerID, targetID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE actor_id = $1 AND target_id = $2;`, followerID, targetID)
	if err != nil {
		return fmt.Errorf("store: delete follow %d->%d: %w", followerID, targetID, err)
	}
	return nil
}

// FollowersOf returns the ids of accepted followers of targetID.
func (s *Store) FollowersOf(ctx context.Context, tx *sql.Tx, targetID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT actor_id FROM follows WHERE target_id = $1 AND accepted = TRUE;`, targetID)
	if err != nil {
		return nil, fmt.Errorf("store: followers of %d: %w", targetID, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertLike inserts a Like edge. ON CONFLICT does nothing (spec.md §4.4's
// Like verb).
func (s *Store) InsertLike(ctx context.Context, tx *sql.Tx, actorID, objectID int64) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO likes (actor_id, object_id) VALUES ($1, $2)
ON CONFLICT (actor_id, object_id) DO NOTHING;`, actorID, objectID)
	if err != nil {
		return fmt.Errorf("store: insert like %d/%d: %w", actorID, objectID, err)
	}
	return nil
}

// DeleteLike removes a Like edge, if present (idempotent Undo).
func (s *Store) DeleteLike(ctx context.Context, tx *sql.Tx, actorID, objectID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE actor_id = $1 AND object_id = $2;`, actorID, objectID)
	if err != nil {
		return fmt.Errorf("store: delete like %d/%d: %w", actorID, objectID, err)
	}
	return nil
}

// InsertAnnounce inserts an Announce edge. ON CONFLICT does nothing.
func (s *Store) InsertAnnounce(ctx context.Context, tx *sql.Tx, actorID, objectID int64) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO announces (actor_id, object_id) VALUES ($1, $2)
ON CONFLICT (actor_id, object_id) DO NOTHING;`, actorID, objectID)
	if err != nil {
		return fmt.Errorf("store: insert announce %d/%d: %w", actorID, objectID, err)
	}
	return nil
}

// DeleteAnnounce removes an Announce edge, if present.
func (s *Store) DeleteAnnounce(ctx context.Context, tx *sql.Tx, actorID, objectID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM announces WHERE actor_id = $1 AND object_id = $2;`, actorID, objectID)
	if err != nil {
		return fmt.Errorf("store: delete announce %d/%d: %w", actorID, objectID, err)
	}
	return nil
}

// InsertBlockActor records actorID blocking blockedActorID, and severs any
// follow edges in either direction, spec.md §4.4's Block verb.
func (s *Store) InsertBlockActor(ctx context.Context, tx *sql.Tx, actorID, blockedActorID int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO blocks (actor_id, blocked_actor_id) VALUES ($1, $2);`, actorID, blockedActorID); err != nil {
		return fmt.Errorf("store: insert block %d->%d: %w", actorID, blockedActorID, err)
	}
	if err := s.DeleteFollow(ctx, tx, actorID, blockedActorID); err != nil {
		return err
	}
	return s.DeleteFollow(ctx, tx, blockedActorID, actorID)
}

// InsertBlockDomain records actorID blocking an entire remote domain.
func (s *Store) InsertBlockDomain(ctx context.Context, tx *sql.Tx, actorID int64, domain string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO blocks (actor_id, blocked_domain) VALUES ($1, $2);`, actorID, domain)
	if err != nil {
		return fmt.Errorf("store: insert block domain %s: %w", domain, err)
	}
	return nil
}

// InsertFeatured pins objectID to actorID's featured collection (SPEC_FULL.md
// §4.4's supplemented Add verb). ON CONFLICT does nothing.
func (s *Store) InsertFeatured(ctx context.Context, tx *sql.Tx, actorID, objectID int64) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO featured (actor_id, object_id) VALUES ($1, $2)
ON CONFLICT (actor_id, object_id) DO NOTHING;`, actorID, objectID)
	if err != nil {
		return fmt.Errorf("store: insert featured %d/%d: %w", actorID, objectID, err)
	}
	return nil
}

// DeleteFeatured unpins objectID from actorID's featured collection
// (SPEC_FULL.md §4.4's supplemented Remove verb).
func (s *Store) DeleteFeatured(ctx context.Context, tx *sql.Tx, actorID, objectID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM featured WHERE actor_id = $1 AND object_id = $2;`, actorID, objectID)
	if err != nil {
		return fmt.Errorf("store: delete featured %d/%d: %w", actorID, objectID, err)
	}
	return nil
}

// RetargetFollowing moves every accepted-follow edge pointing at oldTargetID
// to point at newTargetID instead, the SPEC_FULL.md §4.4 supplemented Move
// verb's best-effort re-target of followers who already accepted the old
// actor. Edges that would collide with an existing edge are left on the old
// target rather than erroring.
func (s *Store) RetargetFollowing(ctx context.Context, tx *sql.Tx, oldTargetID, newTargetID int64) error {
	_, err := tx.ExecContext(ctx, `
UPDATE follows SET target_id = $2
WHERE target_id = $1
	AND accepted = TRUE
	AND NOT EXISTS (SELECT 1 FROM follows f2 WHERE f2.actor_id = follows.actor_id AND f2.target_id = $2);`,
		oldTargetID, newTargetID)
	if err != nil {
		return fmt.Errorf("store: retarget following %d->%d: %w", oldTargetID, newTargetID, err)
	}
	return nil
}

// FollowEdge reports a follow edge's acceptance state, if present.
func (s *Store) FollowEdge(ctx context.Context, tx *sql.Tx, followerID, targetID int64) (accepted bool, found bool, err error) {
	err = tx.QueryRowContext(ctx, `SELECT accepted FROM follows WHERE actor_id = $1 AND target_id = $2;`, followerID, targetID).Scan(&accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("store: follow edge %d->%d: %w", followerID, targetID, err)
	}
	return accepted, true, nil
}
