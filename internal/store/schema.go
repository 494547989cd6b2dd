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

package store

// Schema holds the DDL for every table DataStore manages, plus the triggers
// that keep ActorStats denormalized counters current (spec.md §4.1).
// Table creation is idempotent (CREATE TABLE IF NOT EXISTS /
// CREATE OR REPLACE ...) so Migrate can run on every process start.
var schema = []string{
	createActorsTable,
	createKeysTable,
	createObjectsTable,
	createActivitiesTable,
	createFollowsTable,
	createLikesTable,
	createAnnouncesTable,
	createBlocksTable,
	createDeliveriesTable,
	createFeaturedTable,
	createActorStatsTable,
	createFollowStatsTriggerFn,
	createFollowStatsTrigger,
	createObjectStatsTriggerFn,
	createObjectStatsTrigger,
}

const createActorsTable = `
CREATE TABLE IF NOT EXISTS actors (
	id                           BIGSERIAL PRIMARY KEY,
	uri                          TEXT NOT NULL UNIQUE,
	kind                         TEXT NOT NULL,
	username                     TEXT NOT NULL,
	domain                       TEXT,
	display_name                 TEXT NOT NULL DEFAULT '',
	summary                      TEXT NOT NULL DEFAULT '',
	inbox_uri                    TEXT NOT NULL,
	outbox_uri                   TEXT NOT NULL,
	followers_uri                TEXT NOT NULL,
	following_uri                TEXT NOT NULL,
	featured_uri                 TEXT NOT NULL,
	shared_inbox_uri             TEXT,
	avatar_url                   TEXT,
	header_url                   TEXT,
	url                          TEXT,
	manually_approves_followers  BOOLEAN NOT NULL DEFAULT FALSE,
	discoverable                 BOOLEAN NOT NULL DEFAULT TRUE,
	memorial                     BOOLEAN NOT NULL DEFAULT FALSE,
	fields_attachment            JSONB,
	raw_document                 JSONB,
	created_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (username, domain)
);`

const createKeysTable = `
CREATE TABLE IF NOT EXISTS keys (
	id               BIGSERIAL PRIMARY KEY,
	actor_id         BIGINT NOT NULL REFERENCES actors(id),
	key_id           TEXT NOT NULL UNIQUE,
	public_key_pem   TEXT NOT NULL,
	private_key_pem  TEXT,
	UNIQUE (actor_id)
);`

const createObjectsTable = `
CREATE TABLE IF NOT EXISTS objects (
	id                BIGSERIAL PRIMARY KEY,
	uri               TEXT NOT NULL UNIQUE,
	kind              TEXT NOT NULL,
	actor_id          BIGINT NOT NULL REFERENCES actors(id),
	content           TEXT,
	content_text      TEXT,
	summary           TEXT,
	canonical_url     TEXT,
	url               TEXT,
	attachment        JSONB,
	visibility        TEXT NOT NULL,
	sensitive         BOOLEAN NOT NULL DEFAULT FALSE,
	language          TEXT,
	in_reply_to_uri   TEXT,
	conversation_uri  TEXT,
	published_at      TIMESTAMPTZ NOT NULL,
	edited_at         TIMESTAMPTZ,
	deleted_at        TIMESTAMPTZ,
	raw_document      JSONB
);`

const createActivitiesTable = `
CREATE TABLE IF NOT EXISTS activities (
	id            BIGSERIAL PRIMARY KEY,
	uri           TEXT UNIQUE,
	kind          TEXT NOT NULL,
	actor_id      BIGINT NOT NULL REFERENCES actors(id),
	object_uri    TEXT,
	target_uri    TEXT,
	to_addr       JSONB NOT NULL DEFAULT '[]',
	cc_addr       JSONB NOT NULL DEFAULT '[]',
	raw_document  JSONB,
	local         BOOLEAN NOT NULL DEFAULT FALSE,
	processed     BOOLEAN NOT NULL DEFAULT FALSE,
	inserted_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createFollowsTable = `
CREATE TABLE IF NOT EXISTS follows (
	id                BIGSERIAL PRIMARY KEY,
	actor_id          BIGINT NOT NULL REFERENCES actors(id),
	target_id         BIGINT NOT NULL REFERENCES actors(id),
	accepted          BOOLEAN NOT NULL DEFAULT FALSE,
	follow_activity_uri TEXT,
	UNIQUE (actor_id, target_id)
);`

const createLikesTable = `
CREATE TABLE IF NOT EXISTS likes (
	id         BIGSERIAL PRIMARY KEY,
	actor_id   BIGINT NOT NULL REFERENCES actors(id),
	object_id  BIGINT NOT NULL REFERENCES objects(id),
	UNIQUE (actor_id, object_id)
);`

const createAnnouncesTable = `
CREATE TABLE IF NOT EXISTS announces (
	id         BIGSERIAL PRIMARY KEY,
	actor_id   BIGINT NOT NULL REFERENCES actors(id),
	object_id  BIGINT NOT NULL REFERENCES objects(id),
	UNIQUE (actor_id, object_id)
);`

const createBlocksTable = `
CREATE TABLE IF NOT EXISTS blocks (
	id                BIGSERIAL PRIMARY KEY,
	actor_id          BIGINT NOT NULL REFERENCES actors(id),
	blocked_actor_id  BIGINT REFERENCES actors(id),
	blocked_domain    TEXT,
	CHECK (
		(blocked_actor_id IS NOT NULL AND blocked_domain IS NULL) OR
		(blocked_actor_id IS NULL AND blocked_domain IS NOT NULL)
	)
);`

const createDeliveriesTable = `
CREATE TABLE IF NOT EXISTS deliveries (
	id                BIGSERIAL PRIMARY KEY,
	activity_id       BIGINT NOT NULL REFERENCES activities(id),
	inbox_uri         TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'Queued',
	attempts          INTEGER NOT NULL DEFAULT 0,
	last_attempt_at   TIMESTAMPTZ,
	next_retry_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_error        TEXT,
	last_status_code  INTEGER,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// createFeaturedTable backs the SPEC_FULL.md §4.4 supplemented Add/Remove
// verbs: pinning an object to an actor's featured/pinned collection.
const createFeaturedTable = `
CREATE TABLE IF NOT EXISTS featured (
	id         BIGSERIAL PRIMARY KEY,
	actor_id   BIGINT NOT NULL REFERENCES actors(id),
	object_id  BIGINT NOT NULL REFERENCES objects(id),
	UNIQUE (actor_id, object_id)
);`

const createActorStatsTable = `
CREATE TABLE IF NOT EXISTS actor_stats (
	actor_id         BIGINT PRIMARY KEY REFERENCES actors(id),
	statuses_count   BIGINT NOT NULL DEFAULT 0,
	followers_count  BIGINT NOT NULL DEFAULT 0,
	following_count  BIGINT NOT NULL DEFAULT 0,
	last_status_at   TIMESTAMPTZ
);`

// createFollowStatsTriggerFn maintains followers_count/following_count as
// follow edges are inserted, updated (accepted flips) or deleted, matching
// spec.md §4.1's "counter maintenance is triggered" requirement.
const createFollowStatsTriggerFn = `
CREATE OR REPLACE FUNCTION pg_fedi_follow_stats() RETURNS TRIGGER AS $$
BEGIN
	INSERT INTO actor_stats (actor_id) VALUES
		(COALESCE(NEW.actor_id, OLD.actor_id)),
		(COALESCE(NEW.target_id, OLD.target_id))
	ON CONFLICT (actor_id) DO NOTHING;

	IF (TG_OP = 'INSERT' AND NEW.accepted) THEN
		UPDATE actor_stats SET following_count = following_count + 1 WHERE actor_id = NEW.actor_id;
		UPDATE actor_stats SET followers_count = followers_count + 1 WHERE actor_id = NEW.target_id;
	ELSIF (TG_OP = 'UPDATE' AND NEW.accepted AND NOT OLD.accepted) THEN
		UPDATE actor_stats SET following_count = following_count + 1 WHERE actor_id = NEW.actor_id;
		UPDATE actor_stats SET followers_count = followers_count + 1 WHERE actor_id = NEW.target_id;
	ELSIF (TG_OP = 'UPDATE' AND OLD.accepted AND NOT NEW.accepted) THEN
		UPDATE actor_stats SET following_count = following_count - 1 WHERE actor_id = OLD.actor_id;
		UPDATE actor_stats SET followers_count = followers_count - 1 WHERE actor_id = OLD.target_id;
	ELSIF (TG_OP = 'DELETE' AND OLD.accepted) THEN
		UPDATE actor_stats SET following_count = following_count - 1 WHERE actor_id = OLD.actor_id;
		UPDATE actor_stats SET followers_count = followers_count - 1 WHERE actor_id = OLD.target_id;
	END IF;
	RETURN COALESCE(NEW, OLD);
END;
$$ LANGUAGE plpgsql;`

const createFollowStatsTrigger = `
DROP TRIGGER IF EXISTS pg_fedi_follow_stats_trigger ON follows;
CREATE TRIGGER pg_fedi_follow_stats_trigger
AFTER INSERT OR UPDATE OR DELETE ON follows
FOR EACH ROW EXECUTE FUNCTION pg_fedi_follow_stats();`

// createObjectStatsTriggerFn maintains statuses_count/last_status_at as
// objects are inserted or soft-deleted.
const createObjectStatsTriggerFn = `
CREATE OR REPLACE FUNCTION pg_fedi_object_stats() RETURNS TRIGGER AS $$
BEGIN
	INSERT INTO actor_stats (actor_id) VALUES (COALESCE(NEW.actor_id, OLD.actor_id))
	ON CONFLICT (actor_id) DO NOTHING;

	IF (TG_OP = 'INSERT') THEN
		UPDATE actor_stats
		SET statuses_count = statuses_count + 1,
		    last_status_at = GREATEST(COALESCE(last_status_at, NEW.published_at), NEW.published_at)
		WHERE actor_id = NEW.actor_id;
	ELSIF (TG_OP = 'UPDATE' AND NEW.deleted_at IS NOT NULL AND OLD.deleted_at IS NULL) THEN
		UPDATE actor_stats SET statuses_count = statuses_count - 1 WHERE actor_id = NEW.actor_id;
	END IF;
	RETURN COALESCE(NEW, OLD);
END;
$$ LANGUAGE plpgsql;`

const createObjectStatsTrigger = `
DROP TRIGGER IF EXISTS pg_fedi_object_stats_trigger ON objects;
CREATE TRIGGER pg_fedi_object_stats_trigger
AFTER INSERT OR UPDATE ON objects
FOR EACH ROW EXECUTE FUNCTION pg_fedi_object_stats();`
