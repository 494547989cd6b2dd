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

package inbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/codybrom/pg-fedi/internal/apmodel"
	"github.com/codybrom/pg-fedi/internal/store"
)

// openTestStore mirrors internal/store's own env-var-gated integration test
// helper; skipped unless PGFEDI_TEST_DSN names a reachable Postgres.
func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("PGFEDI_TEST_DSN"))
	if dsn == "" {
		t.Skip("PGFEDI_TEST_DSN not set")
	}
	s, err := store.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func mustLocalActor(t *testing.T, s *store.Store, username string) *apmodel.Actor {
	t.Helper()
	a := &apmodel.Actor{
		URI:          "https://test.example/users/" + username,
		Kind:         apmodel.ActorPerson,
		Username:     username,
		InboxURI:     "https://test.example/users/" + username + "/inbox",
		OutboxURI:    "https://test.example/users/" + username + "/outbox",
		FollowersURI: "https://test.example/users/" + username + "/followers",
		FollowingURI: "https://test.example/users/" + username + "/following",
		FeaturedURI:  "https://test.example/users/" + username + "/collections/featured",
		Discoverable: true,
	}
	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		id, err := s.UpsertActor(context.Background(), tx, a)
		a.ID = id
		return err
	})
	if err != nil {
		t.Fatalf("seed actor %s: %v", username, err)
	}
	return a
}

func TestProcessAutoAcceptedFollow(t *testing.T) {
	s := openTestStore(t)
	local := mustLocalActor(t, s, "localuser")

	p := New(s, true)
	ctx := context.Background()

	followDoc := map[string]interface{}{
		"id":     "https://remote.example/activities/follow1",
		"type":   "Follow",
		"actor":  "https://remote.example/users/bob",
		"object": local.URI,
	}
	raw, _ := json.Marshal(followDoc)

	if _, err := p.Process(ctx, raw); err != nil {
		t.Fatalf("Process(Follow): %v", err)
	}

	var accepted, found bool
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		remote, err := s.GetActorByURI(ctx, tx, "https://remote.example/users/bob")
		if err != nil {
			return err
		}
		accepted, found, err = s.FollowEdge(ctx, tx, remote.ID, local.ID)
		return err
	})
	if err != nil {
		t.Fatalf("FollowEdge: %v", err)
	}
	if !found || !accepted {
		t.Errorf("follow edge found=%v accepted=%v, want true/true", found, accepted)
	}

	// An Accept activity addressed back to the follower should have been
	// enqueued for delivery.
	var pending int
	err = s.DB().QueryRowContext(ctx, `
SELECT count(*) FROM deliveries d JOIN activities a ON a.id = d.activity_id
WHERE a.kind = 'Accept' AND d.inbox_uri = $1;`, "https://remote.example/users/bob/inbox").Scan(&pending)
	if err != nil {
		t.Fatalf("count deliveries: %v", err)
	}
	if pending == 0 {
		t.Error("expected an Accept delivery to be enqueued")
	}
}

func TestProcessUndoFollow(t *testing.T) {
	s := openTestStore(t)
	local := mustLocalActor(t, s, "targetuser")

	p := New(s, true)
	ctx := context.Background()

	followID := "https://remote.example/activities/follow2"
	followDoc := map[string]interface{}{
		"id":     followID,
		"type":   "Follow",
		"actor":  "https://remote.example/users/carol",
		"object": local.URI,
	}
	raw, _ := json.Marshal(followDoc)
	if _, err := p.Process(ctx, raw); err != nil {
		t.Fatalf("Process(Follow): %v", err)
	}

	undoDoc := map[string]interface{}{
		"id":     "https://remote.example/activities/undo1",
		"type":   "Undo",
		"actor":  "https://remote.example/users/carol",
		"object": followID,
	}
	raw, _ = json.Marshal(undoDoc)
	if _, err := p.Process(ctx, raw); err != nil {
		t.Fatalf("Process(Undo): %v", err)
	}

	var found bool
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		remote, err := s.GetActorByURI(ctx, tx, "https://remote.example/users/carol")
		if err != nil {
			return err
		}
		_, found, err = s.FollowEdge(ctx, tx, remote.ID, local.ID)
		return err
	})
	if err != nil {
		t.Fatalf("FollowEdge: %v", err)
	}
	if found {
		t.Error("follow edge should have been removed by Undo")
	}
}

func TestProcessRemoteCreate(t *testing.T) {
	s := openTestStore(t)
	p := New(s, true)
	ctx := context.Background()

	objURI := "https://remote.example/users/dave/objects/1"
	createDoc := map[string]interface{}{
		"id":    "https://remote.example/activities/create1",
		"type":  "Create",
		"actor": "https://remote.example/users/dave",
		"object": map[string]interface{}{
			"id":           objURI,
			"type":         "Note",
			"attributedTo": "https://remote.example/users/dave",
			"content":      "<p>hello fediverse</p>",
			"to":           []string{"https://www.w3.org/ns/activitystreams#Public"},
		},
	}
	raw, _ := json.Marshal(createDoc)
	resultURI, err := p.Process(ctx, raw)
	if err != nil {
		t.Fatalf("Process(Create): %v", err)
	}
	if resultURI != createDoc["id"] {
		t.Errorf("resultURI = %q, want %q", resultURI, createDoc["id"])
	}

	o, err := s.GetObjectByURI(ctx, objURI)
	if err != nil {
		t.Fatalf("GetObjectByURI: %v", err)
	}
	if o.ContentText.String != "hello fediverse" {
		t.Errorf("content_text = %q, want %q", o.ContentText.String, "hello fediverse")
	}

	// Re-delivering the same activity must be idempotent (no duplicate
	// object row, same resulting URI).
	if _, err := p.Process(ctx, raw); err != nil {
		t.Fatalf("Process(Create) replay: %v", err)
	}
	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT count(*) FROM objects WHERE uri = $1;`, objURI).Scan(&count); err != nil {
		t.Fatalf("count objects: %v", err)
	}
	if count != 1 {
		t.Errorf("replayed Create produced %d object rows, want 1", count)
	}
}

func TestProcessMalformedActivity(t *testing.T) {
	s := openTestStore(t)
	p := New(s, true)
	if _, err := p.Process(context.Background(), []byte(`{"type":"Follow"}`)); err == nil {
		t.Error("expected ErrMalformedActivity for a document with no actor")
	}
}
