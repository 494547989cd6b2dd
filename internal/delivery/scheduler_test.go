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

package delivery

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/codybrom/pg-fedi/internal/apmodel"
	"github.com/codybrom/pg-fedi/internal/crypto"
	"github.com/codybrom/pg-fedi/internal/store"
)

func TestHostOf(t *testing.T) {
	host, err := hostOf("https://remote.example/users/bob/inbox")
	if err != nil || host != "remote.example" {
		t.Errorf("hostOf = (%q, %v), want (remote.example, nil)", host, err)
	}
	if _, err := hostOf("not a url with host"); err == nil {
		t.Error("expected an error for a URL with no host")
	}
}

func TestRFC1123GMT(t *testing.T) {
	ts := time.Date(2025, 2, 9, 12, 0, 0, 0, time.UTC)
	got := rfc1123GMT(ts)
	if !strings.HasSuffix(got, "GMT") {
		t.Errorf("rfc1123GMT = %q, want it to end in GMT not UTC", got)
	}
}

// fakeTransport records requests and returns a fixed status code.
type fakeTransport struct {
	status  int
	sendErr error
	reqs    []*http.Request
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.reqs = append(f.reqs, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &http.Response{StatusCode: f.status, Body: http.NoBody}, nil
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

// seedDeliverableActivity inserts a local actor with a keypair, a local
// activity it authored, and one Delivery row targeting inboxURI, returning
// the delivery id.
func seedDeliverableActivity(t *testing.T, s *store.Store, inboxURI string) int64 {
	t.Helper()
	ctx := context.Background()
	pub, priv, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	var activityID int64
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		actor := &apmodel.Actor{
			URI:          "https://test.example/users/sender",
			Kind:         apmodel.ActorPerson,
			Username:     "sender",
			InboxURI:     "https://test.example/users/sender/inbox",
			OutboxURI:    "https://test.example/users/sender/outbox",
			FollowersURI: "https://test.example/users/sender/followers",
			FollowingURI: "https://test.example/users/sender/following",
			FeaturedURI:  "https://test.example/users/sender/collections/featured",
			Discoverable: true,
		}
		actorID, err := s.UpsertActor(ctx, tx, actor)
		if err != nil {
			return err
		}
		if _, err := s.UpsertKey(ctx, tx, &apmodel.Key{
			ActorID:       actorID,
			KeyID:         actor.URI + "#main-key",
			PublicKeyPEM:  pub,
			PrivateKeyPEM: sql.NullString{String: priv, Valid: true},
		}); err != nil {
			return err
		}
		activityID, err = s.UpsertActivity(ctx, tx, store.InsertActivityParams{
			URI:       sql.NullString{String: "https://test.example/activities/1", Valid: true},
			Kind:      string(apmodel.ActivityCreate),
			ActorID:   actorID,
			Local:     true,
			Processed: true,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	id, err := s.InsertDeliveryForTest(ctx, activityID, inboxURI)
	if err != nil {
		t.Fatalf("InsertDeliveryForTest: %v", err)
	}
	return id
}

func TestRunOnceMarksSuccessOn2xx(t *testing.T) {
	s := openTestStore(t)
	seedDeliverableActivity(t, s, "https://remote.example/users/bob/inbox")

	transport := &fakeTransport{status: 202}
	sched := New(s, transport, Config{})
	sched.runOnce(context.Background())

	if len(transport.reqs) != 1 {
		t.Fatalf("expected exactly one outbound request, got %d", len(transport.reqs))
	}
	req := transport.reqs[0]
	for _, h := range []string{"Date", "Digest", "Signature", "Content-Type"} {
		if req.Header.Get(h) == "" {
			t.Errorf("missing required header %s", h)
		}
	}

	var status string
	if err := s.DB().QueryRowContext(context.Background(), `SELECT status FROM deliveries LIMIT 1;`).Scan(&status); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != "Delivered" {
		t.Errorf("status = %q, want Delivered", status)
	}
}

func TestRunOnceSchedulesRetryOnFailure(t *testing.T) {
	s := openTestStore(t)
	seedDeliverableActivity(t, s, "https://remote.example/users/carol/inbox")

	transport := &fakeTransport{sendErr: errors.New("connection refused")}
	sched := New(s, transport, Config{MaxAttempts: 8})
	sched.runOnce(context.Background())

	var status string
	var attempts int
	err := s.DB().QueryRowContext(context.Background(), `SELECT status, attempts FROM deliveries LIMIT 1;`).Scan(&status, &attempts)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if status != "Failed" || attempts != 1 {
		t.Errorf("status=%q attempts=%d, want Failed/1", status, attempts)
	}
}
