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
	"encoding/json"
	"time"

	"github.com/codybrom/pg-fedi/internal/apmodel"
)

// ObjectDocument renders the Object at uri: content, optional contentMap
// keyed by language, summary (which implies sensitive=true), inReplyTo,
// conversation, updated, to/cc (spec.md §4.7). A tombstoned object (soft
// deleted) renders as a bare Tombstone per spec.md §3's retention invariant.
func (s *Serializer) ObjectDocument(ctx context.Context, uri string) (map[string]interface{}, error) {
	o, err := s.store.GetObjectByURI(ctx, uri)
	if err != nil {
		return nil, err
	}
	if o.IsDeleted() {
		return withContext(tombstoneDoc(o)), nil
	}

	var attachment interface{}
	if a := nullString(o.Attachment); a != "" {
		var v interface{}
		if json.Unmarshal([]byte(a), &v) == nil {
			attachment = v
		}
	}

	doc := map[string]interface{}{
		"id":           o.URI,
		"type":         string(o.Kind),
		"content":      nullString(o.Content),
		"summary":      omitEmpty(nullString(o.Summary)),
		"sensitive":    o.Sensitive || nullString(o.Summary) != "",
		"url":          omitEmpty(nullString(o.URL)),
		"inReplyTo":    omitEmpty(nullString(o.InReplyToURI)),
		"conversation": omitEmpty(nullString(o.ConversationURI)),
		"published":    o.PublishedAt.Format(time.RFC3339),
		"to":           []string{},
		"cc":           []string{},
		"attachment":   attachment,
	}
	if lang := nullString(o.Language); lang != "" {
		doc["contentMap"] = map[string]interface{}{lang: nullString(o.Content)}
	}
	if o.EditedAt.Valid {
		doc["updated"] = o.EditedAt.Time.Format(time.RFC3339)
	}
	if o.Visibility == apmodel.VisibilityPublic {
		doc["to"] = []string{publicURI}
	}
	return withContext(compact(doc)), nil
}

const publicURI = "https://www.w3.org/ns/activitystreams#Public"

func tombstoneDoc(o *apmodel.Object) map[string]interface{} {
	return map[string]interface{}{
		"id":      o.URI,
		"type":    "Tombstone",
		"deleted": o.DeletedAt.Time.Format(time.RFC3339),
	}
}
