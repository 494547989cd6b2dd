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

// Command pgfedictl is the interactive admin CLI: provision local actors
// and their keypairs, and recompute denormalized stats. Grounded on
// framework/prompt.go's promptui usage for admin flows and cmdline.go's
// flag-driven action dispatch.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"

	"github.com/codybrom/pg-fedi/internal/apmodel"
	"github.com/codybrom/pg-fedi/internal/config"
	"github.com/codybrom/pg-fedi/internal/crypto"
	"github.com/codybrom/pg-fedi/internal/paths"
	"github.com/codybrom/pg-fedi/internal/store"
)

var (
	cfgPath = flag.String("config", "pg_fedi.ini", "path to the ini config file")
)

func main() {
	flag.Parse()
	action := "new-actor"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	s, err := store.Open(cfg.Database.DSN())
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		fatalf("migrate: %v", err)
	}

	base := paths.New(cfg.Server.Domain, cfg.Server.UseHTTPS)

	switch action {
	case "new-actor":
		if err := newActor(ctx, s, base); err != nil {
			fatalf("new-actor: %v", err)
		}
	case "rebuild-stats":
		if err := s.RebuildActorStats(ctx); err != nil {
			fatalf("rebuild-stats: %v", err)
		}
		fmt.Println("actor_stats rebuilt")
	default:
		fatalf("unknown action %q (supported: new-actor, rebuild-stats)", action)
	}
}

// newActor walks an operator through provisioning a local Person actor:
// username, display name, then a generated RSA-2048 keypair persisted
// alongside it in one transaction.
func newActor(ctx context.Context, s *store.Store, base paths.Base) error {
	username, err := (&promptui.Prompt{
		Label: "Username",
		Validate: func(input string) error {
			if input == "" {
				return fmt.Errorf("username must not be empty")
			}
			return nil
		},
	}).Run()
	if err != nil {
		return err
	}

	displayName, err := (&promptui.Prompt{
		Label:   "Display name",
		Default: username,
	}).Run()
	if err != nil {
		return err
	}

	publicPEM, privatePEM, err := crypto.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}

	actor := &apmodel.Actor{
		URI:               base.ActorURI(username),
		Kind:              apmodel.ActorPerson,
		Username:          username,
		DisplayName:       displayName,
		InboxURI:          base.InboxURI(username),
		OutboxURI:         base.OutboxURI(username),
		FollowersURI:      base.FollowersURI(username),
		FollowingURI:      base.FollowingURI(username),
		FeaturedURI:       base.FeaturedURI(username),
		SharedInboxURI:    sql.NullString{String: base.SharedInboxURI(), Valid: true},
		Discoverable:      true,
	}

	var actorID int64
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := s.UpsertActor(ctx, tx, actor)
		if err != nil {
			return err
		}
		actorID = id
		_, err = s.UpsertKey(ctx, tx, &apmodel.Key{
			ActorID:       id,
			KeyID:         base.KeyID(username),
			PublicKeyPEM:  publicPEM,
			PrivateKeyPEM: sql.NullString{String: privatePEM, Valid: true},
		})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("created actor %s (id=%d)\n", actor.URI, actorID)
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
