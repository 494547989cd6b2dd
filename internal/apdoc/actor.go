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

package apdoc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/codybrom/pg-fedi/internal/apmodel"
	"github.com/codybrom/pg-fedi/internal/store"
)

// ActorDocument renders username's actor document: publicKey,
// endpoints.sharedInbox, icon/header when present, and the
// manuallyApprovesFollowers/discoverable booleans (spec.md §4.7).
func (s *Serializer) ActorDocument(ctx context.Context, username string) (map[string]interface{}, error) {
	var actor *apmodel.Actor
	var key *apmodel.Key
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		a, err := s.store.GetActorByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		actor = a
		k, err := s.store.GetKeyByActorID(ctx, tx, a.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		key = k
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.actorDoc(actor, key), nil
}

func (s *Serializer) actorDoc(a *apmodel.Actor, key *apmodel.Key) map[string]interface{} {
	doc := map[string]interface{}{
		"id":                        a.URI,
		"type":                      string(a.Kind),
		"preferredUsername":         a.Username,
		"name":                      omitEmpty(a.DisplayName),
		"summary":                   omitEmpty(a.Summary),
		"inbox":                     a.InboxURI,
		"outbox":                    a.OutboxURI,
		"followers":                 a.FollowersURI,
		"following":                 a.FollowingURI,
		"featured":                  a.FeaturedURI,
		"url":                       omitEmpty(nullString(a.URL)),
		"manuallyApprovesFollowers": a.ManuallyApprovesFollowers,
		"discoverable":              a.Discoverable,
	}
	if icon := nullString(a.AvatarURL); icon != "" {
		doc["icon"] = map[string]interface{}{"type": "Image", "url": icon}
	}
	if header := nullString(a.HeaderURL); header != "" {
		doc["image"] = map[string]interface{}{"type": "Image", "url": header}
	}
	if shared := nullString(a.SharedInboxURI); shared != "" {
		doc["endpoints"] = map[string]interface{}{"sharedInbox": shared}
	}
	if key != nil {
		doc["publicKey"] = map[string]interface{}{
			"id":           key.KeyID,
			"owner":        a.URI,
			"publicKeyPem": key.PublicKeyPEM,
		}
	}
	return withContext(compact(doc))
}
