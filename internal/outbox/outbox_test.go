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

package outbox

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/codybrom/pg-fedi/internal/apmodel"
	"github.com/codybrom/pg-fedi/internal/paths"
	"github.com/codybrom/pg-fedi/internal/store"
)

func TestNullIfEmpty(t *testing.T) {
	if got := nullIfEmpty(""); got.Valid {
		t.Errorf("nullIfEmpty(\"\") = %+v, want invalid", got)
	}
	if got := nullIfEmpty("hi"); !got.Valid || got.String != "hi" {
		t.Errorf("nullIfEmpty(\"hi\") = %+v, want valid \"hi\"", got)
	}
}

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

func TestCreateNoteUnknownActor(t *testing.T) {
	s := openTestStore(t)
	b := New(s, paths.New("test.example", true))
	if _, err := b.CreateNote(context.Background(), "ghost", "<p>hi</p>", "", ""); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("CreateNote(unknown actor) err = %v, want ErrUnknownActor", err)
	}
}

func TestCreateNoteFansOutToAcceptedFollowers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := paths.New("test.example", true)
	b := New(s, base)

	author := &apmodel.Actor{
		URI:          base.ActorURI("author"),
		Kind:         apmodel.ActorPerson,
		Username:     "author",
		InboxURI:     base.InboxURI("author"),
		OutboxURI:    base.OutboxURI("author"),
		FollowersURI: base.FollowersURI("author"),
		FollowingURI: base.FollowingURI("author"),
		FeaturedURI:  base.FeaturedURI("author"),
		Discoverable: true,
	}
	follower := &apmodel.Actor{
		URI:            "https://remote.example/users/fan",
		Kind:           apmodel.ActorPerson,
		Username:       "fan",
		Domain:         sql.NullString{String: "remote.example", Valid: true},
		InboxURI:       "https://remote.example/users/fan/inbox",
		OutboxURI:      "https://remote.example/users/fan/outbox",
		FollowersURI:   "https://remote.example/users/fan/followers",
		FollowingURI:   "https://remote.example/users/fan/following",
		FeaturedURI:    "https://remote.example/users/fan/collections/featured",
		SharedInboxURI: sql.NullString{String: "https://remote.example/inbox", Valid: true},
		Discoverable:   true,
	}

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := s.UpsertActor(ctx, tx, author)
		author.ID = id
		if err != nil {
			return err
		}
		id, err = s.UpsertActor(ctx, tx, follower)
		follower.ID = id
		if err != nil {
			return err
		}
		_, err = s.UpsertFollow(ctx, tx, follower.ID, author.ID, true, "https://remote.example/activities/follow-seed")
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	objectURI, err := b.CreateNote(ctx, "author", "<p>hello world</p>", "", "")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if objectURI == "" {
		t.Fatal("CreateNote returned empty object URI")
	}

	var n int
	err = s.DB().QueryRowContext(ctx, `
SELECT count(*) FROM deliveries d
JOIN activities a ON a.id = d.activity_id
WHERE a.actor_id = $1 AND d.inbox_uri = $2;`, author.ID, follower.SharedInboxURI.String).Scan(&n)
	if err != nil {
		t.Fatalf("count deliveries: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one delivery to the follower's shared inbox, got %d", n)
	}
}
