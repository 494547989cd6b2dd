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
	"database/sql"
	"testing"
	"time"

	"github.com/codybrom/pg-fedi/internal/apmodel"
)

func TestOmitEmpty(t *testing.T) {
	if got := omitEmpty(""); got != nil {
		t.Errorf("omitEmpty(\"\") = %v, want nil", got)
	}
	if got := omitEmpty("x"); got != "x" {
		t.Errorf("omitEmpty(\"x\") = %v, want \"x\"", got)
	}
}

func TestCompactDropsNilAndEmptyString(t *testing.T) {
	doc := compact(map[string]interface{}{
		"a": "kept",
		"b": "",
		"c": nil,
		"d": 0,
	})
	if _, ok := doc["b"]; ok {
		t.Error("compact left an empty string key in place")
	}
	if _, ok := doc["c"]; ok {
		t.Error("compact left a nil-valued key in place")
	}
	if v, ok := doc["d"]; !ok || v != 0 {
		t.Error("compact should not drop a zero int, only nil/empty-string")
	}
	if doc["a"] != "kept" {
		t.Error("compact dropped a populated key")
	}
}

func TestWithContextInjectsOnlyWhenAbsent(t *testing.T) {
	doc := withContext(map[string]interface{}{"id": "https://a.example/1"})
	if doc["@context"] == nil {
		t.Fatal("expected @context to be injected")
	}

	existing := []interface{}{"https://custom.example/context"}
	doc2 := withContext(map[string]interface{}{"@context": existing, "id": "https://a.example/2"})
	ctx, ok := doc2["@context"].([]interface{})
	if !ok || len(ctx) != 1 || ctx[0] != "https://custom.example/context" {
		t.Errorf("withContext overwrote an existing @context: %v", doc2["@context"])
	}
}

func TestActorDocShape(t *testing.T) {
	s := &Serializer{}
	a := &apmodel.Actor{
		URI:                       "https://test.example/users/alice",
		Kind:                      apmodel.ActorPerson,
		Username:                  "alice",
		DisplayName:               "Alice",
		InboxURI:                  "https://test.example/users/alice/inbox",
		OutboxURI:                 "https://test.example/users/alice/outbox",
		FollowersURI:              "https://test.example/users/alice/followers",
		FollowingURI:              "https://test.example/users/alice/following",
		FeaturedURI:               "https://test.example/users/alice/collections/featured",
		SharedInboxURI:            sql.NullString{String: "https://test.example/inbox", Valid: true},
		Discoverable:              true,
		ManuallyApprovesFollowers: false,
	}
	key := &apmodel.Key{KeyID: a.URI + "#main-key", PublicKeyPEM: "-----BEGIN PUBLIC KEY-----..."}

	doc := s.actorDoc(a, key)

	if doc["@context"] == nil {
		t.Error("actor document missing @context")
	}
	if doc["id"] != a.URI || doc["preferredUsername"] != "alice" || doc["type"] != "Person" {
		t.Errorf("unexpected core fields: %v", doc)
	}
	endpoints, ok := doc["endpoints"].(map[string]interface{})
	if !ok || endpoints["sharedInbox"] != "https://test.example/inbox" {
		t.Errorf("endpoints.sharedInbox missing or wrong: %v", doc["endpoints"])
	}
	pk, ok := doc["publicKey"].(map[string]interface{})
	if !ok || pk["id"] != key.KeyID || pk["owner"] != a.URI {
		t.Errorf("publicKey block missing or wrong: %v", doc["publicKey"])
	}
	if doc["discoverable"] != true {
		t.Error("discoverable should be true")
	}
	if _, hasName := doc["name"]; !hasName || doc["name"] != "Alice" {
		t.Errorf("name = %v, want Alice", doc["name"])
	}
}

func TestActorDocOmitsPublicKeyWhenNil(t *testing.T) {
	s := &Serializer{}
	a := &apmodel.Actor{URI: "https://test.example/users/bob", Kind: apmodel.ActorPerson, Username: "bob"}
	doc := s.actorDoc(a, nil)
	if _, ok := doc["publicKey"]; ok {
		t.Error("expected no publicKey block when key is nil")
	}
}

func TestReconstructActivityOmitsEmptyFields(t *testing.T) {
	s := &Serializer{}
	act := &apmodel.Activity{
		URI:  sql.NullString{String: "https://test.example/activities/1", Valid: true},
		Kind: apmodel.ActivityFollow,
	}
	doc := s.reconstructActivity(act, "https://test.example/users/alice")

	if doc["actor"] != "https://test.example/users/alice" || doc["type"] != "Follow" {
		t.Errorf("unexpected core fields: %v", doc)
	}
	if _, ok := doc["object"]; ok {
		t.Error("object should be omitted when ObjectURI is unset")
	}
	if _, ok := doc["target"]; ok {
		t.Error("target should be omitted when TargetURI is unset")
	}
	if _, ok := doc["to"]; ok {
		t.Error("to should be omitted when empty")
	}
}

func TestReconstructActivityIncludesAddressing(t *testing.T) {
	s := &Serializer{}
	act := &apmodel.Activity{
		URI:       sql.NullString{String: "https://test.example/activities/2", Valid: true},
		Kind:      apmodel.ActivityCreate,
		ObjectURI: sql.NullString{String: "https://test.example/objects/1", Valid: true},
		To:        []string{publicURI},
		Cc:        []string{"https://test.example/users/alice/followers"},
	}
	doc := s.reconstructActivity(act, "https://test.example/users/alice")
	if doc["object"] != "https://test.example/objects/1" {
		t.Errorf("object = %v, want the ObjectURI", doc["object"])
	}
	to, ok := doc["to"].([]string)
	if !ok || len(to) != 1 || to[0] != publicURI {
		t.Errorf("to = %v, want [%s]", doc["to"], publicURI)
	}
}

func TestObjectDocumentTombstone(t *testing.T) {
	o := &apmodel.Object{
		URI:       "https://test.example/objects/1",
		Kind:      apmodel.ObjectNote,
		DeletedAt: sql.NullTime{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Valid: true},
	}
	doc := tombstoneDoc(o)
	if doc["type"] != "Tombstone" {
		t.Errorf("type = %v, want Tombstone", doc["type"])
	}
	if doc["id"] != o.URI {
		t.Errorf("id = %v, want %v", doc["id"], o.URI)
	}
	if doc["deleted"] != "2026-01-02T03:04:05Z" {
		t.Errorf("deleted = %v, want RFC3339 timestamp", doc["deleted"])
	}
}
