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

// Package webfinger defines the data contract for resolving acct:user@domain
// to a JRD naming the actor's canonical URI. JRD template rendering and
// host-meta XRD are a Non-goal (spec.md §1); only the lookup contract and
// the JRD shape live here.
package webfinger

import "context"

// JRD is the minimal WebFinger response shape spec.md §6 names: a subject
// plus a self "application/activity+json" link to the actor document.
type JRD struct {
	Subject string      `json:"subject"`
	Aliases []string    `json:"aliases,omitempty"`
	Links   []JRDLink   `json:"links"`
}

// JRDLink is one WebFinger link relation.
type JRDLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

// Resolver resolves a local username to the actor URI a WebFinger lookup
// for acct:username@domain should return. An external HTTP layer parses
// the "resource" query parameter, calls Resolve, and builds the JRD.
type Resolver interface {
	Resolve(ctx context.Context, username string) (actorURI string, err error)
}

// BuildJRD assembles the JRD for a resolved actor URI, the one piece of
// this package's logic that is not purely a Non-goal interface stub: every
// implementation would otherwise duplicate this exact link shape.
func BuildJRD(acct, actorURI string) JRD {
	return JRD{
		Subject: acct,
		Aliases: []string{actorURI},
		Links: []JRDLink{
			{Rel: "self", Type: "application/activity+json", Href: actorURI},
		},
	}
}
