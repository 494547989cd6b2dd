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

// Package apmodel holds the typed variants and structs of spec.md §3: the
// actor/object/activity/visibility/delivery-status data model, URI parsing
// and HTML text extraction.
package apmodel

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// ActorKind enumerates spec.md §3's Actor.kind values.
type ActorKind string

const (
	ActorPerson       ActorKind = "Person"
	ActorGroup        ActorKind = "Group"
	ActorApplication  ActorKind = "Application"
	ActorService      ActorKind = "Service"
	ActorOrganization ActorKind = "Organization"
)

// ObjectKind enumerates spec.md §3's Object.kind values.
type ObjectKind string

const (
	ObjectNote     ObjectKind = "Note"
	ObjectArticle  ObjectKind = "Article"
	ObjectPage     ObjectKind = "Page"
	ObjectImage    ObjectKind = "Image"
	ObjectVideo    ObjectKind = "Video"
	ObjectAudio    ObjectKind = "Audio"
	ObjectEvent    ObjectKind = "Event"
	ObjectQuestion ObjectKind = "Question"
	ObjectDocument ObjectKind = "Document"
)

// recognizedObjectKinds backs InboxPipeline's Create handling ("if inner has
// a recognized object type").
var recognizedObjectKinds = map[string]ObjectKind{
	"Note":     ObjectNote,
	"Article":  ObjectArticle,
	"Page":     ObjectPage,
	"Image":    ObjectImage,
	"Video":    ObjectVideo,
	"Audio":    ObjectAudio,
	"Event":    ObjectEvent,
	"Question": ObjectQuestion,
	"Document": ObjectDocument,
}

// RecognizedObjectKind reports whether t names one of spec.md §3's Object
// kinds, returning the typed ObjectKind if so.
func RecognizedObjectKind(t string) (ObjectKind, bool) {
	k, ok := recognizedObjectKinds[t]
	return k, ok
}

// ActivityKind enumerates spec.md §3's Activity.kind values, including the
// SPEC_FULL.md §4.4 supplemented Add/Remove/Move verbs.
type ActivityKind string

const (
	ActivityCreate   ActivityKind = "Create"
	ActivityUpdate   ActivityKind = "Update"
	ActivityDelete   ActivityKind = "Delete"
	ActivityFollow   ActivityKind = "Follow"
	ActivityAccept   ActivityKind = "Accept"
	ActivityReject   ActivityKind = "Reject"
	ActivityLike     ActivityKind = "Like"
	ActivityAnnounce ActivityKind = "Announce"
	ActivityUndo     ActivityKind = "Undo"
	ActivityBlock    ActivityKind = "Block"
	ActivityFlag     ActivityKind = "Flag"
	ActivityMove     ActivityKind = "Move"
	ActivityAdd      ActivityKind = "Add"
	ActivityRemove   ActivityKind = "Remove"
)

// Visibility enumerates spec.md §3's Object.visibility values.
type Visibility string

const (
	VisibilityPublic        Visibility = "Public"
	VisibilityUnlisted      Visibility = "Unlisted"
	VisibilityFollowersOnly Visibility = "FollowersOnly"
	VisibilityDirect        Visibility = "Direct"
)

// DeliveryStatus enumerates spec.md §3's Delivery.status values.
type DeliveryStatus string

const (
	DeliveryQueued    DeliveryStatus = "Queued"
	DeliveryDelivered DeliveryStatus = "Delivered"
	DeliveryFailed    DeliveryStatus = "Failed"
	DeliveryExpired   DeliveryStatus = "Expired"
)

// Actor is spec.md §3's Actor entity.
type Actor struct {
	ID                        int64
	URI                       string
	Kind                      ActorKind
	Username                  string
	Domain                    sql.NullString // absent ⇒ local
	DisplayName               string
	Summary                   string
	InboxURI                  string
	OutboxURI                 string
	FollowersURI              string
	FollowingURI              string
	FeaturedURI               string
	SharedInboxURI            sql.NullString
	AvatarURL                 sql.NullString
	HeaderURL                 sql.NullString
	URL                       sql.NullString // SPEC_FULL.md §3 supplement
	ManuallyApprovesFollowers bool
	Discoverable              bool
	Memorial                  bool
	FieldsAttachment          sql.NullString // SPEC_FULL.md §3 supplement, raw JSON
	RawDocument               sql.NullString
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// IsLocal reports whether the actor is hosted on this instance.
func (a *Actor) IsLocal() bool { return !a.Domain.Valid || a.Domain.String == "" }

// Key is spec.md §3's Key entity: at most one per actor.
type Key struct {
	ID            int64
	ActorID       int64
	KeyID         string
	PublicKeyPEM  string
	PrivateKeyPEM sql.NullString // present iff the owning actor is local
}

// Object is spec.md §3's Object entity.
type Object struct {
	ID              int64
	URI             string
	Kind            ObjectKind
	ActorID         int64
	Content         sql.NullString
	ContentText     sql.NullString
	Summary         sql.NullString
	CanonicalURL    sql.NullString
	URL             sql.NullString // SPEC_FULL.md §3 supplement
	Attachment      sql.NullString // SPEC_FULL.md §3 supplement, raw JSON
	Visibility      Visibility
	Sensitive       bool
	Language        sql.NullString
	InReplyToURI    sql.NullString
	ConversationURI sql.NullString
	PublishedAt     time.Time
	EditedAt        sql.NullTime
	DeletedAt       sql.NullTime
	RawDocument     sql.NullString
}

// IsDeleted reports whether the object has been soft-deleted.
func (o *Object) IsDeleted() bool { return o.DeletedAt.Valid }

// Activity is spec.md §3's Activity entity.
type Activity struct {
	ID          int64
	URI         sql.NullString
	Kind        ActivityKind
	ActorID     int64
	ObjectURI   sql.NullString
	TargetURI   sql.NullString
	To          []string
	Cc          []string
	RawDocument sql.NullString
	Local       bool
	Processed   bool
	InsertedAt  time.Time // SPEC_FULL.md §3 supplement
}

// Follow is spec.md §3's Follow edge: (actor, target), unique, carrying
// acceptance state and the originating Follow activity URI.
type Follow struct {
	ID              int64
	ActorID         int64
	TargetID        int64
	Accepted        bool
	FollowActorURI  string // the Follow activity's URI, for Accept/Reject lookup
}

// Like is spec.md §3's Like edge: (actor, object), unique.
type Like struct {
	ID       int64
	ActorID  int64
	ObjectID int64
}

// Announce is spec.md §3's Announce edge: (actor, object), unique.
type Announce struct {
	ID       int64
	ActorID  int64
	ObjectID int64
}

// Block is spec.md §3's Block entity: ActorID (the blocker) is always set,
// and exactly one of BlockedActorID or BlockedDomain is populated.
type Block struct {
	ID              int64
	ActorID         int64
	BlockedActorID  sql.NullInt64
	BlockedDomain   sql.NullString
}

// Delivery is spec.md §3's outbound queue entry.
type Delivery struct {
	ID             int64
	ActivityID     int64
	InboxURI       string
	Status         DeliveryStatus
	Attempts       int
	LastAttemptAt  sql.NullTime
	NextRetryAt    time.Time
	LastError      sql.NullString
	LastStatusCode sql.NullInt64
	CreatedAt      time.Time // SPEC_FULL.md §3 supplement
}

// ActorStats is spec.md §3's denormalized counters.
type ActorStats struct {
	ActorID         int64
	StatusesCount   int64
	FollowersCount  int64
	FollowingCount  int64
	LastStatusAt    sql.NullTime
}

var wsCollapse = regexp.MustCompile(`[ \t\r\n]+`)

var stripPolicy = bluemonday.StrictPolicy()

// StripHTML extracts plain text from html, matching spec.md §3's
// Object.content_text derivation. Uses bluemonday.StrictPolicy to remove all
// tags, then collapses runs of whitespace left behind by block elements.
func StripHTML(html string) string {
	text := stripPolicy.Sanitize(html)
	text = strings.TrimSpace(wsCollapse.ReplaceAllString(text, " "))
	return text
}

// ErrInvalidActorURI is returned by Domain when the URI cannot be
// parsed as a host-bearing absolute URI.
var ErrInvalidActorURI = errors.New("apmodel: invalid actor URI")

// Domain returns the host component of a URI, the anchor InboxPipeline uses
// to classify an actor's origin and check it against Block rows (spec.md
// §4.4 step 2).
func Domain(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidActorURI, err)
	}
	if u.Host == "" {
		return "", ErrInvalidActorURI
	}
	return u.Hostname(), nil
}

// DeriveUsername guesses a stub username from an actor URI's last path
// segment, used when InboxPipeline creates a minimum actor stub for an
// unknown remote URI (spec.md §4.4 step 4).
func DeriveUsername(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	segs := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	if len(segs) == 0 {
		return uri
	}
	last := segs[len(segs)-1]
	if last == "" {
		return uri
	}
	return last
}
