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

// Package nodeinfo defines the data contract an external HTTP layer would
// serve at /.well-known/nodeinfo and /nodeinfo/2.0. Document rendering and
// the discovery JRD template are a Non-goal (spec.md §1); only the stats
// shape and the Source interface that computes it live here.
package nodeinfo

import (
	"context"
)

// Stats mirrors spec.md §6's NodeInfo 2.0 usage block, grounded on the
// teacher's services.NodeInfoStats field set.
type Stats struct {
	TotalUsers     int
	ActiveHalfYear int
	ActiveMonth    int
	ActiveWeek     int
	LocalPosts     int
}

// Source computes Stats on demand. A concrete implementation lives wherever
// the HTTP front door is assembled, backed by internal/store queries; this
// package only fixes the contract an external server wires a handler to.
type Source interface {
	GetStats(ctx context.Context) (Stats, error)
}
