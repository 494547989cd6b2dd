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

// Package outbox implements spec.md §4.5's OutboxBuilder: construct local
// activities and fan them out to follower inboxes for delivery.
//
// Grounded on services/data.go's doInTx wrapping of multi-table writes and
// models/outboxes.go's INSERT…SELECT fan-out shape (one Delivery row per
// follower materialized in a single statement).
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codybrom/pg-fedi/internal/apmodel"
	"github.com/codybrom/pg-fedi/internal/paths"
	"github.com/codybrom/pg-fedi/internal/store"
)

// PublicURI is the ActivityStreams "public" addressing pseudo-actor.
const PublicURI = "https://www.w3.org/ns/activitystreams#Public"

// ErrUnknownActor is returned when CreateNote names a username with no
// local actor row, spec.md §7's fatal-for-outbox UnknownActor case.
var ErrUnknownActor = errors.New("outbox: unknown local actor")

// Builder is spec.md §4.5's OutboxBuilder.
type Builder struct {
	store *store.Store
	base  paths.Base
}

// New builds a Builder minting URIs under base.
func New(s *store.Store, base paths.Base) *Builder {
	return &Builder{store: s, base: base}
}

// CreateNote implements spec.md §4.5's six steps: resolve the local actor,
// allocate and insert the object, determine its conversation, persist a
// local Create activity, and fan deliveries out to accepted followers.
func (b *Builder) CreateNote(ctx context.Context, username, htmlContent, summary, inReplyTo string) (string, error) {
	var objectURI string
	err := b.store.WithTx(ctx, func(tx *sql.Tx) error {
		actor, err := b.store.GetActorByUsername(ctx, tx, username)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownActor, username)
		}
		if err != nil {
			return err
		}

		oid, err := b.store.NextObjectID(ctx, tx)
		if err != nil {
			return err
		}
		objectURI = b.base.ObjectURI(username, oid)
		objectURL := b.base.ObjectURL(username, oid)

		conversationURI := b.base.ConversationURI(oid)
		var inReplyToParam sql.NullString
		if inReplyTo != "" {
			inReplyToParam = sql.NullString{String: inReplyTo, Valid: true}
			if parentActorID, parentConv, err := b.store.ObjectOwnerAndConversation(ctx, tx, inReplyTo); err == nil {
				_ = parentActorID
				if parentConv.Valid && parentConv.String != "" {
					conversationURI = parentConv.String
				}
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		contentText := apmodel.StripHTML(htmlContent)
		now := time.Now().UTC()

		if _, err := b.store.InsertObjectWithID(ctx, tx, oid, store.InsertObjectParams{
			URI:             objectURI,
			Kind:            string(apmodel.ObjectNote),
			ActorID:         actor.ID,
			Content:         sql.NullString{String: htmlContent, Valid: true},
			ContentText:     sql.NullString{String: contentText, Valid: true},
			Summary:         nullIfEmpty(summary),
			URL:             sql.NullString{String: objectURL, Valid: true},
			Visibility:      string(apmodel.VisibilityPublic),
			InReplyToURI:    inReplyToParam,
			ConversationURI: sql.NullString{String: conversationURI, Valid: true},
			PublishedAt:     now,
		}); err != nil {
			return fmt.Errorf("outbox: insert object: %w", err)
		}

		aid, err := b.store.NextActivityID(ctx, tx)
		if err != nil {
			return err
		}
		activityURI := b.base.ActivityURI(username, aid)
		followersURI := b.base.FollowersURI(username)

		createDoc := map[string]interface{}{
			"@context": "https://www.w3.org/ns/activitystreams",
			"id":       activityURI,
			"type":     "Create",
			"actor":    actor.URI,
			"to":       []string{PublicURI},
			"cc":       []string{followersURI},
			"object": map[string]interface{}{
				"id":        objectURI,
				"type":      "Note",
				"attributedTo": actor.URI,
				"content":   htmlContent,
				"url":       objectURL,
				"published": now.Format(time.RFC3339),
			},
		}
		rawJSON, err := json.Marshal(createDoc)
		if err != nil {
			return fmt.Errorf("outbox: marshal create: %w", err)
		}

		if err := b.store.InsertActivityWithID(ctx, tx, aid, store.InsertActivityParams{
			URI:         sql.NullString{String: activityURI, Valid: true},
			Kind:        string(apmodel.ActivityCreate),
			ActorID:     actor.ID,
			ObjectURI:   sql.NullString{String: objectURI, Valid: true},
			To:          []string{PublicURI},
			Cc:          []string{followersURI},
			RawDocument: sql.NullString{String: string(rawJSON), Valid: true},
			Local:       true,
			Processed:   true,
		}); err != nil {
			return fmt.Errorf("outbox: insert activity: %w", err)
		}

		if _, err := b.store.EnqueueDeliveriesForFollowers(ctx, tx, aid, actor.ID); err != nil {
			return fmt.Errorf("outbox: fan out deliveries: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	b.store.NotifyDeliveryQueued()
	return objectURI, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
