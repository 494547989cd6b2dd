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
	"encoding/json"

	"github.com/codybrom/pg-fedi/internal/apmodel"
)

// ActivityDocument renders the Activity at uri. If a raw document was
// captured at ingest it is returned verbatim with @context injected when
// absent; otherwise the activity is reconstructed from its stored fields
// (spec.md §4.7) — the path a locally minted activity with no captured
// raw_document, or one whose raw_document failed to parse, takes.
func (s *Serializer) ActivityDocument(ctx context.Context, uri string) (map[string]interface{}, error) {
	var act *apmodel.Activity
	var actorURI string
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		a, err := s.store.FindActivityByTargetURI(ctx, tx, uri)
		if err != nil {
			return err
		}
		act = a
		owner, err := s.store.GetActorByID(ctx, tx, a.ActorID)
		if err != nil {
			return err
		}
		actorURI = owner.URI
		return nil
	})
	if err != nil {
		return nil, err
	}

	if raw := nullString(act.RawDocument); raw != "" {
		var doc map[string]interface{}
		if jsonErr := json.Unmarshal([]byte(raw), &doc); jsonErr == nil {
			return withContext(doc), nil
		}
	}
	return withContext(s.reconstructActivity(act, actorURI)), nil
}

func (s *Serializer) reconstructActivity(act *apmodel.Activity, actorURI string) map[string]interface{} {
	doc := map[string]interface{}{
		"id":     nullString(act.URI),
		"type":   string(act.Kind),
		"actor":  actorURI,
		"object": omitEmpty(nullString(act.ObjectURI)),
	}
	if act.TargetURI.Valid {
		doc["target"] = act.TargetURI.String
	}
	if len(act.To) > 0 {
		doc["to"] = act.To
	}
	if len(act.Cc) > 0 {
		doc["cc"] = act.Cc
	}
	return compact(doc)
}
