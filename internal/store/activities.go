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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codybrom/pg-fedi/internal/apmodel"
)

// addrList (de)serializes the to/cc addressing arrays through the JSONB
// to_addr/cc_addr columns, avoiding a dependency on a Postgres array driver
// the teacher's own database/sql dialect never needed either.
type addrList []string

func (a addrList) Value() (interface{}, error) {
	b, err := json.Marshal([]string(a))
	return string(b), err
}

func (a *addrList) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		*a = nil
		return nil
	default:
		return fmt.Errorf("addrList: unsupported scan type %T", src)
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*a = out
	return nil
}

// InsertActivityParams mirrors apmodel.Activity's insertable columns.
type InsertActivityParams struct {
	URI         sql.NullString
	Kind        string
	ActorID     int64
	ObjectURI   sql.NullString
	TargetURI   sql.NullString
	To          []string
	Cc          []string
	RawDocument sql.NullString
	Local       bool
	Processed   bool
}

const upsertActivitySQL = `
INSERT INTO activities (uri, kind, actor_id, object_uri, target_uri, to_addr, cc_addr, raw_document, local, processed)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (uri) DO UPDATE SET
	processed = FALSE,
	raw_document = EXCLUDED.raw_document
RETURNING id;`

const insertActivityNoURISQL = `
INSERT INTO activities (uri, kind, actor_id, object_uri, target_uri, to_addr, cc_addr, raw_document, local, processed)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id;`

// UpsertActivity inserts an Activity row. When p.URI is set, the insert is
// ON CONFLICT(uri) idempotent and resets processed=false to permit
// reprocessing (spec.md §4.4 step 5); activities without a URI (an inbound
// activity that carried no id) always insert a new row.
func (s *Store) UpsertActivity(ctx context.Context, tx *sql.Tx, p InsertActivityParams) (int64, error) {
	q := upsertActivitySQL
	if !p.URI.Valid {
		q = insertActivityNoURISQL
	}
	var id int64
	err := tx.QueryRowContext(ctx, q,
		p.URI, p.Kind, p.ActorID, p.ObjectURI, p.TargetURI,
		addrList(p.To), addrList(p.Cc), p.RawDocument, p.Local, p.Processed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert activity: %w", err)
	}
	return id, nil
}

const insertActivityWithIDSQL = `
INSERT INTO activities (id, uri, kind, actor_id, object_uri, target_uri, to_addr, cc_addr, raw_document, local, processed)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id;`

// InsertActivityWithID inserts an Activity row at a pre-allocated id (from
// NextActivityID), so the caller can mint activity_uri from the id before
// the row exists (spec.md §4.5 step 5, §4.4's Follow->Accept path).
func (s *Store) InsertActivityWithID(ctx context.Context, tx *sql.Tx, id int64, p InsertActivityParams) error {
	var gotID int64
	err := tx.QueryRowContext(ctx, insertActivityWithIDSQL,
		id, p.URI, p.Kind, p.ActorID, p.ObjectURI, p.TargetURI,
		addrList(p.To), addrList(p.Cc), p.RawDocument, p.Local, p.Processed,
	).Scan(&gotID)
	if err != nil {
		return fmt.Errorf("store: insert activity with id %d: %w", id, err)
	}
	return nil
}

// MarkActivityProcessed sets processed=true, the durability marker of
// spec.md §3's Activity invariant.
func (s *Store) MarkActivityProcessed(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE activities SET processed = TRUE WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: mark activity %d processed: %w", id, err)
	}
	return nil
}

// FindProcessedActivityByURI returns the URI of an already-processed
// activity, the anchor of spec.md §4.4 step 3's de-duplication.
func (s *Store) FindProcessedActivityByURI(ctx context.Context, tx *sql.Tx, uri string) (string, bool, error) {
	var gotURI string
	err := tx.QueryRowContext(ctx, `SELECT uri FROM activities WHERE uri = $1 AND processed = TRUE;`, uri).Scan(&gotURI)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: find processed activity %s: %w", uri, err)
	}
	return gotURI, true, nil
}

// FindActivityByTargetURI looks up an Activity by its own uri, used by
// Undo to resolve the inner activity's kind, object and target by URI
// (spec.md §4.4's Undo semantics), and by apdoc's ActivityDocument.
func (s *Store) FindActivityByTargetURI(ctx context.Context, tx *sql.Tx, uri string) (*apmodel.Activity, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, uri, kind, actor_id, object_uri, target_uri, to_addr, cc_addr, raw_document, local, processed, inserted_at
FROM activities WHERE uri = $1;`, uri)
	act := &apmodel.Activity{}
	var kind string
	var to, cc addrList
	err := row.Scan(&act.ID, &act.URI, &kind, &act.ActorID, &act.ObjectURI, &act.TargetURI, &to, &cc, &act.RawDocument, &act.Local, &act.Processed, &act.InsertedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find activity by uri %s: %w", uri, err)
	}
	act.Kind = apmodel.ActivityKind(kind)
	act.To = []string(to)
	act.Cc = []string(cc)
	return act, nil
}

// ActivityByID loads an Activity by internal id.
func (s *Store) ActivityByID(ctx context.Context, tx *sql.Tx, id int64) (*apmodel.Activity, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, uri, kind, actor_id, object_uri, target_uri, to_addr, cc_addr, raw_document, local, processed, inserted_at
FROM activities WHERE id = $1;`, id)
	act := &apmodel.Activity{}
	var kind string
	var to, cc addrList
	err := row.Scan(&act.ID, &act.URI, &kind, &act.ActorID, &act.ObjectURI, &act.TargetURI, &to, &cc, &act.RawDocument, &act.Local, &act.Processed, &act.InsertedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: activity by id %d: %w", id, err)
	}
	act.Kind = apmodel.ActivityKind(kind)
	act.To = []string(to)
	act.Cc = []string(cc)
	return act, nil
}

// Timeline returns the most recent N processed, non-deleted, public
// objects posted before before (or now, if zero), newest first. This is
// the read-query contract spec.md §4.1 names ("a small set of read
// queries (timeline...")); ranking/relevance beyond recency is a Non-goal
// per spec.md §1.
func (s *Store) Timeline(ctx context.Context, limit int, before time.Time) ([]*apmodel.Object, error) {
	if before.IsZero() {
		before = time.Now()
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT o.id, o.uri, o.kind, o.actor_id, o.content, o.content_text, o.summary,
	o.canonical_url, o.url, o.attachment, o.visibility, o.sensitive, o.language,
	o.in_reply_to_uri, o.conversation_uri, o.published_at, o.edited_at, o.deleted_at, o.raw_document
FROM objects o
WHERE o.visibility = 'Public' AND o.deleted_at IS NULL AND o.published_at < $1
ORDER BY o.published_at DESC
LIMIT $2;`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("store: timeline: %w", err)
	}
	defer rows.Close()
	return scanObjects(rows)
}

func scanObjects(rows *sql.Rows) ([]*apmodel.Object, error) {
	var out []*apmodel.Object
	for rows.Next() {
		o := &apmodel.Object{}
		var kind, vis string
		if err := rows.Scan(&o.ID, &o.URI, &kind, &o.ActorID, &o.Content, &o.ContentText, &o.Summary,
			&o.CanonicalURL, &o.URL, &o.Attachment, &vis, &o.Sensitive, &o.Language,
			&o.InReplyToURI, &o.ConversationURI, &o.PublishedAt, &o.EditedAt, &o.DeletedAt, &o.RawDocument); err != nil {
			return nil, fmt.Errorf("store: scan object: %w", err)
		}
		o.Kind = apmodel.ObjectKind(kind)
		o.Visibility = apmodel.Visibility(vis)
		out = append(out, o)
	}
	return out, rows.Err()
}

// SearchObjects does a naive substring search over content_text for public,
// non-deleted objects. Full-text search ranking is a Non-goal per spec.md
// §1; this satisfies the "supports... search" read-query contract at its
// simplest useful level.
func (s *Store) SearchObjects(ctx context.Context, query string, limit int) ([]*apmodel.Object, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT o.id, o.uri, o.kind, o.actor_id, o.content, o.content_text, o.summary,
	o.canonical_url, o.url, o.attachment, o.visibility, o.sensitive, o.language,
	o.in_reply_to_uri, o.conversation_uri, o.published_at, o.edited_at, o.deleted_at, o.raw_document
FROM objects o
WHERE o.visibility = 'Public' AND o.deleted_at IS NULL AND o.content_text ILIKE '%' || $1 || '%'
ORDER BY o.published_at DESC
LIMIT $2;`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search objects: %w", err)
	}
	defer rows.Close()
	return scanObjects(rows)
}
