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
	"os"
	"strings"
	"testing"

	"github.com/codybrom/pg-fedi/internal/apmodel"
	"github.com/codybrom/pg-fedi/internal/paths"
	"github.com/codybrom/pg-fedi/internal/store"
)

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

func TestActorDocumentRoundTrip(t *testing.T) {
	s := openTestStore(t)
	base := paths.New("test.example", true)
	doc := New(s, base)
	ctx := context.Background()

	a := &apmodel.Actor{
		URI:          base.ActorURI("carol"),
		Kind:         apmodel.ActorPerson,
		Username:     "carol",
		InboxURI:     base.InboxURI("carol"),
		OutboxURI:    base.OutboxURI("carol"),
		FollowersURI: base.FollowersURI("carol"),
		FollowingURI: base.FollowingURI("carol"),
		FeaturedURI:  base.FeaturedURI("carol"),
		Discoverable: true,
	}
	if err := s.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := s.UpsertActor(ctx, tx, a)
		a.ID = id
		return err
	}); err != nil {
		t.Fatalf("seed actor: %v", err)
	}

	got, err := doc.ActorDocument(ctx, "carol")
	if err != nil {
		t.Fatalf("ActorDocument: %v", err)
	}
	if got["preferredUsername"] != "carol" || got["id"] != a.URI {
		t.Errorf("unexpected actor document: %v", got)
	}
	if _, ok := got["publicKey"]; ok {
		t.Error("expected no publicKey block for an actor with no seeded key")
	}
}

func TestOutboxCollectionSummaryEmpty(t *testing.T) {
	s := openTestStore(t)
	base := paths.New("test.example", true)
	doc := New(s, base)
	ctx := context.Background()

	a := &apmodel.Actor{
		URI:          base.ActorURI("dave"),
		Kind:         apmodel.ActorPerson,
		Username:     "dave",
		InboxURI:     base.InboxURI("dave"),
		OutboxURI:    base.OutboxURI("dave"),
		FollowersURI: base.FollowersURI("dave"),
		FollowingURI: base.FollowingURI("dave"),
		FeaturedURI:  base.FeaturedURI("dave"),
		Discoverable: true,
	}
	if err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := s.UpsertActor(ctx, tx, a)
		return err
	}); err != nil {
		t.Fatalf("seed actor: %v", err)
	}

	got, err := doc.OutboxCollection(ctx, "dave", nil)
	if err != nil {
		t.Fatalf("OutboxCollection: %v", err)
	}
	if got["type"] != "OrderedCollection" || got["totalItems"] != int64(0) {
		t.Errorf("unexpected empty outbox summary: %v", got)
	}
	if _, ok := got["last"]; ok {
		t.Error("an empty collection should have no \"last\" page")
	}
}
