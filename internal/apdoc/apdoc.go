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

// Package apdoc implements spec.md §4.7's Serializer: renders actors,
// objects, activities and ordered collections as JSON-LD documents.
//
// Documents are built as map[string]interface{} and marshaled with
// encoding/json, in the style of klppl-klistr/internal/ap/types.go and
// transmute.go (plain AS2 documents), not a generated vocabulary tree.
// See DESIGN.md for why go-fed/activity's streams/vocab packages are not
// adopted for this role.
package apdoc

import (
	"database/sql"

	"github.com/codybrom/pg-fedi/internal/paths"
	"github.com/codybrom/pg-fedi/internal/store"
)

// defaultContext is the JSON-LD @context shared by actor, object and
// reconstructed activity documents: ActivityStreams plus the security
// vocabulary (publicKey) and the "toot" terms actor documents reference
// (manuallyApprovesFollowers, discoverable).
var defaultContext = []interface{}{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
	map[string]interface{}{
		"toot":                      "http://joinmastodon.org/ns#",
		"discoverable":              "toot:discoverable",
		"manuallyApprovesFollowers": "as:manuallyApprovesFollowers",
		"sensitive":                 "as:sensitive",
	},
}

// ErrNotFound is returned when the named actor/object/activity has no row.
var ErrNotFound = store.ErrNotFound

// Serializer is spec.md §4.7's document builder.
type Serializer struct {
	store *store.Store
	base  paths.Base
}

// New builds a Serializer minting collection/resource URIs under base.
func New(s *store.Store, base paths.Base) *Serializer {
	return &Serializer{store: s, base: base}
}

func nullString(n sql.NullString) string {
	if !n.Valid {
		return ""
	}
	return n.String
}

func omitEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func compact(m map[string]interface{}) map[string]interface{} {
	for k, v := range m {
		if v == nil {
			delete(m, k)
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			delete(m, k)
		}
	}
	return m
}

// withContext prefixes doc with the shared @context, unless it already
// carries one (spec.md §4.7: "inject @context when absent").
func withContext(doc map[string]interface{}) map[string]interface{} {
	if _, ok := doc["@context"]; !ok {
		doc["@context"] = defaultContext
	}
	return doc
}
