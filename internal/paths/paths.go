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

// Package paths mints the stable URI layout named in spec.md §6, for a
// fixed, closed set of resources rather than the teacher's pluggable
// {user}-keyed path table (see paths/iri.go).
package paths

import "fmt"

// Base is the instance root, e.g. "https://test.example".
type Base string

// ActorURI returns "B/users/u".
func (b Base) ActorURI(username string) string {
	return fmt.Sprintf("%s/users/%s", b, username)
}

// InboxURI returns "B/users/u/inbox".
func (b Base) InboxURI(username string) string {
	return b.ActorURI(username) + "/inbox"
}

// OutboxURI returns "B/users/u/outbox".
func (b Base) OutboxURI(username string) string {
	return b.ActorURI(username) + "/outbox"
}

// FollowersURI returns "B/users/u/followers".
func (b Base) FollowersURI(username string) string {
	return b.ActorURI(username) + "/followers"
}

// FollowingURI returns "B/users/u/following".
func (b Base) FollowingURI(username string) string {
	return b.ActorURI(username) + "/following"
}

// FeaturedURI returns "B/users/u/collections/featured".
func (b Base) FeaturedURI(username string) string {
	return b.ActorURI(username) + "/collections/featured"
}

// SharedInboxURI returns "B/inbox".
func (b Base) SharedInboxURI() string {
	return fmt.Sprintf("%s/inbox", b)
}

// KeyID returns "B/users/u#main-key".
func (b Base) KeyID(username string) string {
	return b.ActorURI(username) + "#main-key"
}

// ObjectURI returns "B/users/u/objects/n".
func (b Base) ObjectURI(username string, n int64) string {
	return fmt.Sprintf("%s/users/%s/objects/%d", b, username, n)
}

// ObjectURL returns "B/@u/n", the human-facing permalink.
func (b Base) ObjectURL(username string, n int64) string {
	return fmt.Sprintf("%s/@%s/%d", b, username, n)
}

// ConversationURI returns "B/conversations/n".
func (b Base) ConversationURI(n int64) string {
	return fmt.Sprintf("%s/conversations/%d", b, n)
}

// ActivityURI returns "B/users/u/activities/n".
func (b Base) ActivityURI(username string, n int64) string {
	return fmt.Sprintf("%s/users/%s/activities/%d", b, username, n)
}

// New builds a Base from a domain and the use_https config flag.
func New(domain string, useHTTPS bool) Base {
	scheme := "https"
	if !useHTTPS {
		scheme = "http"
	}
	return Base(fmt.Sprintf("%s://%s", scheme, domain))
}
