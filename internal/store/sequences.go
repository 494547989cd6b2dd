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

import (
	"context"
	"database/sql"
	"fmt"
)

// NextObjectID pre-allocates the handle OutboxBuilder mints object_uri/
// object_url from (spec.md §4.5 step 2: "Allocate a new object handle oid
// from a monotonic sequence"), drawing directly from the objects table's
// own BIGSERIAL sequence rather than maintaining a parallel counter table.
func (s *Store) NextObjectID(ctx context.Context, tx *sql.Tx) (int64, error) {
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('objects_id_seq');`).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: next object id: %w", err)
	}
	return id, nil
}

// NextActivityID pre-allocates the handle OutboxBuilder and InboxPipeline's
// Accept-on-Follow path mint activity_uri from (spec.md §4.5 step 5, §4.4's
// Follow verb).
func (s *Store) NextActivityID(ctx context.Context, tx *sql.Tx) (int64, error) {
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('activities_id_seq');`).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: next activity id: %w", err)
	}
	return id, nil
}
