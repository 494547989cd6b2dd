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

	"github.com/codybrom/pg-fedi/internal/apmodel"
)

// ErrNotFound is returned by read operations that find no matching row.
var ErrNotFound = errors.New("store: not found")

const upsertActorSQL = `
INSERT INTO actors (
	uri, kind, username, domain, display_name, summary,
	inbox_uri, outbox_uri, followers_uri, following_uri, featured_uri,
	shared_inbox_uri, avatar_url, header_url, url,
	manually_approves_followers, discoverable, memorial,
	fields_attachment, raw_document
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
)
ON CONFLICT (uri) DO UPDATE SET
	kind = EXCLUDED.kind,
	display_name = EXCLUDED.display_name,
	summary = EXCLUDED.summary,
	inbox_uri = EXCLUDED.inbox_uri,
	outbox_uri = EXCLUDED.outbox_uri,
	followers_uri = EXCLUDED.followers_uri,
	following_uri = EXCLUDED.following_uri,
	featured_uri = EXCLUDED.featured_uri,
	shared_inbox_uri = EXCLUDED.shared_inbox_uri,
	avatar_url = EXCLUDED.avatar_url,
	header_url = EXCLUDED.header_url,
	url = EXCLUDED.url,
	manually_approves_followers = EXCLUDED.manually_approves_followers,
	discoverable = EXCLUDED.discoverable,
	memorial = EXCLUDED.memorial,
	fields_attachment = EXCLUDED.fields_attachment,
	raw_document = EXCLUDED.raw_document,
	updated_at = now()
RETURNING id;`

// UpsertActor performs spec.md §4.1's idempotent, URI-keyed actor upsert.
// Safe to call repeatedly under concurrent retries (spec.md §9's "Idempotent
// stubs" note).
func (s *Store) UpsertActor(ctx context.Context, tx *sql.Tx, a *apmodel.Actor) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, upsertActorSQL,
		a.URI, string(a.Kind), a.Username, a.Domain, a.DisplayName, a.Summary,
		a.InboxURI, a.OutboxURI, a.FollowersURI, a.FollowingURI, a.FeaturedURI,
		a.SharedInboxURI, a.AvatarURL, a.HeaderURL, a.URL,
		a.ManuallyApprovesFollowers, a.Discoverable, a.Memorial,
		a.FieldsAttachment, a.RawDocument,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert actor %s: %w", a.URI, err)
	}
	return id, nil
}

const getActorByURISQL = `
SELECT id, uri, kind, username, domain, display_name, summary,
	inbox_uri, outbox_uri, followers_uri, following_uri, featured_uri,
	shared_inbox_uri, avatar_url, header_url, url,
	manually_approves_followers, discoverable, memorial,
	fields_attachment, raw_document, created_at, updated_at
FROM actors WHERE uri = $1;`

func scanActor(row *sql.Row) (*apmodel.Actor, error) {
	a := &apmodel.Actor{}
	var kind string
	err := row.Scan(
		&a.ID, &a.URI, &kind, &a.Username, &a.Domain, &a.DisplayName, &a.Summary,
		&a.InboxURI, &a.OutboxURI, &a.FollowersURI, &a.FollowingURI, &a.FeaturedURI,
		&a.SharedInboxURI, &a.AvatarURL, &a.HeaderURL, &a.URL,
		&a.ManuallyApprovesFollowers, &a.Discoverable, &a.Memorial,
		&a.FieldsAttachment, &a.RawDocument, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Kind = apmodel.ActorKind(kind)
	return a, nil
}

// GetActorByURI looks up an actor by its stable URI.
func (s *Store) GetActorByURI(ctx context.Context, tx *sql.Tx, uri string) (*apmodel.Actor, error) {
	row := tx.QueryRowContext(ctx, getActorByURISQL, uri)
	a, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get actor %s: %w", uri, err)
	}
	return a, nil
}

// GetActorByID looks up an actor by its internal handle.
func (s *Store) GetActorByID(ctx context.Context, tx *sql.Tx, id int64) (*apmodel.Actor, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, uri, kind, username, domain, display_name, summary,
	inbox_uri, outbox_uri, followers_uri, following_uri, featured_uri,
	shared_inbox_uri, avatar_url, header_url, url,
	manually_approves_followers, discoverable, memorial,
	fields_attachment, raw_document, created_at, updated_at
FROM actors WHERE id = $1;`, id)
	a, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get actor by id %d: %w", id, err)
	}
	return a, nil
}

// GetActorByUsername looks up a local actor by its (username, NULL domain).
func (s *Store) GetActorByUsername(ctx context.Context, tx *sql.Tx, username string) (*apmodel.Actor, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, uri, kind, username, domain, display_name, summary,
	inbox_uri, outbox_uri, followers_uri, following_uri, featured_uri,
	shared_inbox_uri, avatar_url, header_url, url,
	manually_approves_followers, discoverable, memorial,
	fields_attachment, raw_document, created_at, updated_at
FROM actors WHERE username = $1 AND domain IS NULL;`, username)
	a, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get actor by username %s: %w", username, err)
	}
	return a, nil
}

const upsertKeySQL = `
INSERT INTO keys (actor_id, key_id, public_key_pem, private_key_pem)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key_id) DO UPDATE SET
	public_key_pem = EXCLUDED.public_key_pem,
	private_key_pem = COALESCE(EXCLUDED.private_key_pem, keys.private_key_pem)
RETURNING id;`

// UpsertKey performs spec.md §4.1's idempotent key upsert, keyed by key_id.
func (s *Store) UpsertKey(ctx context.Context, tx *sql.Tx, k *apmodel.Key) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, upsertKeySQL, k.ActorID, k.KeyID, k.PublicKeyPEM, k.PrivateKeyPEM).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert key %s: %w", k.KeyID, err)
	}
	return id, nil
}

// GetKeyByActorID returns the at-most-one Key row owned by actorID.
func (s *Store) GetKeyByActorID(ctx context.Context, tx *sql.Tx, actorID int64) (*apmodel.Key, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, actor_id, key_id, public_key_pem, private_key_pem
FROM keys WHERE actor_id = $1;`, actorID)
	k := &apmodel.Key{}
	err := row.Scan(&k.ID, &k.ActorID, &k.KeyID, &k.PublicKeyPEM, &k.PrivateKeyPEM)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get key for actor %d: %w", actorID, err)
	}
	return k, nil
}

// IsActorBlocked reports whether actorURI or its domain is blocked by any
// local actor, the anchor of spec.md §4.4 step 2.
func (s *Store) IsActorBlocked(ctx context.Context, tx *sql.Tx, actorURI, domain string) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx, `
SELECT count(*) FROM blocks b
LEFT JOIN actors a ON a.id = b.blocked_actor_id
WHERE b.blocked_domain = $2 OR a.uri = $1;`, actorURI, domain).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: check blocked %s: %w", actorURI, err)
	}
	return count > 0, nil
}

// RebuildActorStats recomputes every ActorStats row from base tables,
// spec.md §4.1's consistency-recovery operation.
func (s *Store) RebuildActorStats(ctx context.Context) error {
	return s.doInTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO actor_stats (actor_id) SELECT id FROM actors
ON CONFLICT (actor_id) DO NOTHING;`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE actor_stats SET
	statuses_count = COALESCE((SELECT count(*) FROM objects o WHERE o.actor_id = actor_stats.actor_id AND o.deleted_at IS NULL), 0),
	last_status_at = (SELECT max(o.published_at) FROM objects o WHERE o.actor_id = actor_stats.actor_id AND o.deleted_at IS NULL),
	following_count = COALESCE((SELECT count(*) FROM follows f WHERE f.actor_id = actor_stats.actor_id AND f.accepted), 0),
	followers_count = COALESCE((SELECT count(*) FROM follows f WHERE f.target_id = actor_stats.actor_id AND f.accepted), 0);`); err != nil {
			return err
		}
		return nil
	})
}

// GetActorStats returns the denormalized counters for actorID.
func (s *Store) GetActorStats(ctx context.Context, tx *sql.Tx, actorID int64) (*apmodel.ActorStats, error) {
	row := tx.QueryRowContext(ctx, `
SELECT actor_id, statuses_count, followers_count, following_count, last_status_at
FROM actor_stats WHERE actor_id = $1;`, actorID)
	st := &apmodel.ActorStats{}
	err := row.Scan(&st.ActorID, &st.StatusesCount, &st.FollowersCount, &st.FollowingCount, &st.LastStatusAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &apmodel.ActorStats{ActorID: actorID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get actor stats %d: %w", actorID, err)
	}
	return st, nil
}
