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

const insertObjectSQL = `
INSERT INTO objects (
	uri, kind, actor_id, content, content_text, summary, canonical_url, url,
	attachment, visibility, sensitive, language, in_reply_to_uri,
	conversation_uri, published_at, raw_document
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (uri) DO NOTHING
RETURNING id;`

// InsertObjectParams mirrors apmodel.Object's insertable columns. A thin
// params struct (rather than passing *apmodel.Object directly) keeps the
// not-yet-known id and server-derived timestamp explicit at the call site.
type InsertObjectParams struct {
	URI             string
	Kind            string
	ActorID         int64
	Content         sql.NullString
	ContentText     sql.NullString
	Summary         sql.NullString
	CanonicalURL    sql.NullString
	URL             sql.NullString
	Attachment      sql.NullString
	Visibility      string
	Sensitive       bool
	Language        sql.NullString
	InReplyToURI    sql.NullString
	ConversationURI sql.NullString
	PublishedAt     interface{}
	RawDocument     sql.NullString
}

// InsertObject inserts a new Object row. ON CONFLICT on uri does nothing
// (spec.md §4.4's Create handling and §3's tombstone-retention invariant:
// a soft-deleted object's row must never be resurrected by a replayed
// Create). Returns (id, inserted) where inserted is false if the row
// already existed.
func (s *Store) InsertObject(ctx context.Context, tx *sql.Tx, p InsertObjectParams) (id int64, inserted bool, err error) {
	row := tx.QueryRowContext(ctx, insertObjectSQL,
		p.URI, p.Kind, p.ActorID, p.Content, p.ContentText, p.Summary, p.CanonicalURL, p.URL,
		p.Attachment, p.Visibility, p.Sensitive, p.Language, p.InReplyToURI,
		p.ConversationURI, p.PublishedAt, p.RawDocument,
	)
	err = row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// ON CONFLICT DO NOTHING with no matching RETURNING row: object
		// already exists. Look its id up so callers can still react.
		lookupErr := tx.QueryRowContext(ctx, `SELECT id FROM objects WHERE uri = $1;`, p.URI).Scan(&id)
		if lookupErr != nil {
			return 0, false, fmt.Errorf("store: insert object %s: %w", p.URI, lookupErr)
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: insert object %s: %w", p.URI, err)
	}
	return id, true, nil
}

const insertObjectWithIDSQL = `
INSERT INTO objects (
	id, uri, kind, actor_id, content, content_text, summary, canonical_url, url,
	attachment, visibility, sensitive, language, in_reply_to_uri,
	conversation_uri, published_at, raw_document
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (uri) DO NOTHING
RETURNING id;`

// InsertObjectWithID inserts a new Object row at a pre-allocated id (from
// NextObjectID), so the caller can mint object_uri/object_url from the id
// before the row exists (spec.md §4.5 steps 2-4). ON CONFLICT on uri does
// nothing, matching InsertObject's idempotence.
func (s *Store) InsertObjectWithID(ctx context.Context, tx *sql.Tx, id int64, p InsertObjectParams) (inserted bool, err error) {
	var gotID int64
	row := tx.QueryRowContext(ctx, insertObjectWithIDSQL,
		id, p.URI, p.Kind, p.ActorID, p.Content, p.ContentText, p.Summary, p.CanonicalURL, p.URL,
		p.Attachment, p.Visibility, p.Sensitive, p.Language, p.InReplyToURI,
		p.ConversationURI, p.PublishedAt, p.RawDocument,
	)
	err = row.Scan(&gotID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: insert object with id %d: %w", id, err)
	}
	return true, nil
}

// GetObjectByURI loads a full Object row by its stable URI, the read path
// apdoc.Serializer uses to render an Object document.
func (s *Store) GetObjectByURI(ctx context.Context, uri string) (*apmodel.Object, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, uri, kind, actor_id, content, content_text, summary, canonical_url, url,
	attachment, visibility, sensitive, language, in_reply_to_uri,
	conversation_uri, published_at, edited_at, deleted_at, raw_document
FROM objects WHERE uri = $1;`, uri)
	o := &apmodel.Object{}
	var kind, vis string
	err := row.Scan(&o.ID, &o.URI, &kind, &o.ActorID, &o.Content, &o.ContentText, &o.Summary,
		&o.CanonicalURL, &o.URL, &o.Attachment, &vis, &o.Sensitive, &o.Language,
		&o.InReplyToURI, &o.ConversationURI, &o.PublishedAt, &o.EditedAt, &o.DeletedAt, &o.RawDocument)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get object %s: %w", uri, err)
	}
	o.Kind = apmodel.ObjectKind(kind)
	o.Visibility = apmodel.Visibility(vis)
	return o, nil
}

// GetObjectIDByURI returns the internal handle for an object URI.
func (s *Store) GetObjectIDByURI(ctx context.Context, tx *sql.Tx, uri string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM objects WHERE uri = $1;`, uri).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("store: get object id %s: %w", uri, err)
	}
	return id, nil
}

// ObjectOwnerAndConversation returns the owning actor_id and
// conversation_uri for an object, used by OutboxBuilder to inherit a
// parent's conversation (spec.md §4.5 step 3).
func (s *Store) ObjectOwnerAndConversation(ctx context.Context, tx *sql.Tx, uri string) (actorID int64, conversationURI sql.NullString, err error) {
	err = tx.QueryRowContext(ctx, `SELECT actor_id, conversation_uri FROM objects WHERE uri = $1;`, uri).Scan(&actorID, &conversationURI)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sql.NullString{}, ErrNotFound
	}
	if err != nil {
		return 0, sql.NullString{}, fmt.Errorf("store: object owner/conversation %s: %w", uri, err)
	}
	return
}

// SoftDeleteObject tombstones an object iff it is owned by actorID,
// clearing content/content_text and setting deleted_at (spec.md §4.4's
// Delete verb and §3's soft-delete invariant). Returns whether a row
// changed; no change is spec.md §7's silent UnauthorizedMutation.
func (s *Store) SoftDeleteObject(ctx context.Context, tx *sql.Tx, uri string, actorID int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
UPDATE objects SET content = NULL, content_text = NULL, deleted_at = now()
WHERE uri = $1 AND actor_id = $2 AND deleted_at IS NULL;`, uri, actorID)
	if err != nil {
		return false, fmt.Errorf("store: soft delete object %s: %w", uri, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateObject mutates content/summary/sensitive iff owned by actorID,
// setting edited_at (spec.md §4.4's Update verb). Returns whether a row
// changed.
func (s *Store) UpdateObject(ctx context.Context, tx *sql.Tx, uri string, actorID int64, content, summary sql.NullString, sensitive bool) (bool, error) {
	res, err := tx.ExecContext(ctx, `
UPDATE objects SET content = $3, content_text = NULL, summary = $4, sensitive = $5, edited_at = now()
WHERE uri = $1 AND actor_id = $2 AND deleted_at IS NULL;`, uri, actorID, content, summary, sensitive)
	if err != nil {
		return false, fmt.Errorf("store: update object %s: %w", uri, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetObjectContentText backfills content_text after UpdateObject, since the
// HTML→text extraction happens in internal/apmodel above the store layer.
func (s *Store) SetObjectContentText(ctx context.Context, tx *sql.Tx, uri string, text sql.NullString) error {
	_, err := tx.ExecContext(ctx, `UPDATE objects SET content_text = $2 WHERE uri = $1;`, uri, text)
	if err != nil {
		return fmt.Errorf("store: set content_text %s: %w", uri, err)
	}
	return nil
}
