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
	"testing"
	"time"
)

func TestNextRetryDelaySchedule(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 60 * time.Second},
		{2, 300 * time.Second},
		{3, 1800 * time.Second},
		{8, 604800 * time.Second},
		{9, 604800 * time.Second}, // clamps at the schedule's last entry
		{0, 60 * time.Second},     // defensive floor
	}
	for _, c := range cases {
		if got := NextRetryDelay(c.attempts); got != c.want {
			t.Errorf("NextRetryDelay(%d) = %v, want %v", c.attempts, got, c.want)
		}
	}
}
