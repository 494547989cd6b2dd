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

// Package inbox implements spec.md §4.4's InboxPipeline: classify,
// de-duplicate, authorize and dispatch incoming activities, materializing
// each verb's effects on the social graph and content store.
//
// Grounded on go-fed-apcore's ap/s2s.go for the shape of one pipeline
// object wired against store-backed services (not its generic pub.Callback
// mechanism), and on the hand-rolled switch-on-type dispatch found in
// other_examples/15fe60e8_dimkr-tootik__fed-inbox.go.go and
// klppl-klistr/internal/ap/handler.go.
package inbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codybrom/pg-fedi/internal/apmodel"
	"github.com/codybrom/pg-fedi/internal/store"
	"github.com/codybrom/pg-fedi/internal/xlog"
)

// Error taxonomy, spec.md §7.
var (
	// ErrMalformedActivity is returned when a required field (type or
	// actor) is missing from the inbound document.
	ErrMalformedActivity = errors.New("inbox: malformed activity")
)

// Pipeline is spec.md §4.4's InboxPipeline.
type Pipeline struct {
	store             *store.Store
	autoAcceptFollows bool
}

// New builds a Pipeline. autoAcceptFollows mirrors config.ServerConfig's
// auto_accept_follows (spec.md §6), AUTO_ACCEPT in the Follow verb's
// semantics.
func New(s *store.Store, autoAcceptFollows bool) *Pipeline {
	return &Pipeline{store: s, autoAcceptFollows: autoAcceptFollows}
}

// Process implements spec.md §4.4's seven-step algorithm. Returns the
// processed activity's URI, or "" if the activity was silently rejected
// (Block) or carried no id (a local callback would never call Process with
// no id; remote activities conventionally always have one).
func (p *Pipeline) Process(ctx context.Context, raw []byte) (string, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedActivity, err)
	}

	typ, _ := doc["type"].(string)
	id, _ := doc["id"].(string)
	actorURI := idOf(doc["actor"])
	if typ == "" || actorURI == "" {
		return "", ErrMalformedActivity
	}

	domain, err := apmodel.Domain(actorURI)
	if err != nil {
		return "", fmt.Errorf("%w: actor uri: %s", ErrMalformedActivity, err)
	}

	var resultURI string
	err = p.store.WithTx(ctx, func(tx *sql.Tx) error {
		blocked, err := p.store.IsActorBlocked(ctx, tx, actorURI, domain)
		if err != nil {
			return err
		}
		if blocked {
			return nil
		}

		if id != "" {
			existing, found, err := p.store.FindProcessedActivityByURI(ctx, tx, id)
			if err != nil {
				return err
			}
			if found {
				resultURI = existing
				return nil
			}
		}

		actor, err := p.resolveActor(ctx, tx, actorURI)
		if err != nil {
			return err
		}

		var uriParam sql.NullString
		if id != "" {
			uriParam = sql.NullString{String: id, Valid: true}
		}
		rawJSON, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("inbox: re-marshal raw document: %w", err)
		}
		activityID, err := p.store.UpsertActivity(ctx, tx, store.InsertActivityParams{
			URI:         uriParam,
			Kind:        typ,
			ActorID:     actor.ID,
			ObjectURI:   stringOrNull(idOf(doc["object"])),
			TargetURI:   stringOrNull(idOf(doc["target"])),
			To:          addressees(doc["to"]),
			Cc:          addressees(doc["cc"]),
			RawDocument: sql.NullString{String: string(rawJSON), Valid: true},
			Local:       false,
			Processed:   false,
		})
		if err != nil {
			return err
		}

		if err := p.dispatch(ctx, tx, apmodel.ActivityKind(typ), actor, doc); err != nil {
			return err
		}

		if err := p.store.MarkActivityProcessed(ctx, tx, activityID); err != nil {
			return err
		}

		resultURI = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return resultURI, nil
}

// resolveActor looks up an actor by URI, creating a minimum stub if absent
// (spec.md §4.4 step 4). The stub is sufficient to accept the current
// activity; an external fetcher hydrates the remaining fields later.
func (p *Pipeline) resolveActor(ctx context.Context, tx *sql.Tx, uri string) (*apmodel.Actor, error) {
	actor, err := p.store.GetActorByURI(ctx, tx, uri)
	if err == nil {
		return actor, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	domain, err := apmodel.Domain(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedActivity, err)
	}
	stub := &apmodel.Actor{
		URI:          uri,
		Kind:         apmodel.ActorPerson,
		Username:     apmodel.DeriveUsername(uri),
		Domain:       sql.NullString{String: domain, Valid: true},
		InboxURI:     uri + "/inbox",
		OutboxURI:    uri + "/outbox",
		FollowersURI: uri + "/followers",
		FollowingURI: uri + "/following",
		FeaturedURI:  uri + "/collections/featured",
		Discoverable: true,
	}
	id, err := p.store.UpsertActor(ctx, tx, stub)
	if err != nil {
		return nil, fmt.Errorf("inbox: create actor stub %s: %w", uri, err)
	}
	stub.ID = id
	return stub, nil
}

// dispatch applies one verb's effects, spec.md §4.4's "Dispatch by verb".
// Unknown verbs are logged and treated as a no-op success.
func (p *Pipeline) dispatch(ctx context.Context, tx *sql.Tx, kind apmodel.ActivityKind, actor *apmodel.Actor, doc map[string]interface{}) error {
	switch kind {
	case apmodel.ActivityFollow:
		return p.handleFollow(ctx, tx, actor, doc)
	case apmodel.ActivityLike:
		return p.handleLike(ctx, tx, actor, doc)
	case apmodel.ActivityAnnounce:
		return p.handleAnnounce(ctx, tx, actor, doc)
	case apmodel.ActivityUndo:
		return p.handleUndo(ctx, tx, actor, doc)
	case apmodel.ActivityCreate:
		return p.handleCreate(ctx, tx, actor, doc)
	case apmodel.ActivityUpdate:
		return p.handleUpdate(ctx, tx, actor, doc)
	case apmodel.ActivityDelete:
		return p.handleDelete(ctx, tx, actor, doc)
	case apmodel.ActivityAccept:
		return p.handleAccept(ctx, tx, doc)
	case apmodel.ActivityReject:
		return p.handleReject(ctx, tx, doc)
	case apmodel.ActivityBlock:
		return p.handleBlock(ctx, tx, actor, doc)
	case apmodel.ActivityAdd:
		return p.handleAdd(ctx, tx, actor, doc)
	case apmodel.ActivityRemove:
		return p.handleRemove(ctx, tx, actor, doc)
	case apmodel.ActivityMove:
		return p.handleMove(ctx, tx, actor, doc)
	default:
		xlog.Infof("inbox: no-op for unknown activity type %q", kind)
		return nil
	}
}

func stringOrNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// handleFollow implements spec.md §4.4's Follow verb.
func (p *Pipeline) handleFollow(ctx context.Context, tx *sql.Tx, follower *apmodel.Actor, doc map[string]interface{}) error {
	targetURI := idOf(doc["object"])
	if targetURI == "" {
		return nil
	}
	target, err := p.resolveActor(ctx, tx, targetURI)
	if err != nil {
		return err
	}

	followActivityURI, _ := doc["id"].(string)
	if _, err := p.store.UpsertFollow(ctx, tx, follower.ID, target.ID, p.autoAcceptFollows, followActivityURI); err != nil {
		return err
	}

	if !p.autoAcceptFollows || !target.IsLocal() {
		return nil
	}

	acceptID, err := p.store.NextActivityID(ctx, tx)
	if err != nil {
		return err
	}
	acceptURI := fmt.Sprintf("%s/activities/%d", target.URI, acceptID)
	acceptDoc := map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       acceptURI,
		"type":     "Accept",
		"actor":    target.URI,
		"object":   doc,
		"to":       []string{follower.URI},
	}
	rawJSON, err := json.Marshal(acceptDoc)
	if err != nil {
		return fmt.Errorf("inbox: marshal accept: %w", err)
	}
	if err := p.store.InsertActivityWithID(ctx, tx, acceptID, store.InsertActivityParams{
		URI:         sql.NullString{String: acceptURI, Valid: true},
		Kind:        string(apmodel.ActivityAccept),
		ActorID:     target.ID,
		ObjectURI:   stringOrNull(followActivityURI),
		TargetURI:   stringOrNull(follower.URI),
		To:          []string{follower.URI},
		RawDocument: sql.NullString{String: string(rawJSON), Valid: true},
		Local:       true,
		Processed:   true,
	}); err != nil {
		return err
	}

	return p.store.EnqueueDelivery(ctx, tx, acceptID, follower.InboxURI)
}

// handleLike implements spec.md §4.4's Like verb.
func (p *Pipeline) handleLike(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	objURI := idOf(doc["object"])
	if objURI == "" {
		return nil
	}
	objectID, err := p.store.GetObjectIDByURI(ctx, tx, objURI)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return p.store.InsertLike(ctx, tx, actor.ID, objectID)
}

// handleAnnounce implements spec.md §4.4's Announce verb.
func (p *Pipeline) handleAnnounce(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	objURI := idOf(doc["object"])
	if objURI == "" {
		return nil
	}
	objectID, err := p.store.GetObjectIDByURI(ctx, tx, objURI)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return p.store.InsertAnnounce(ctx, tx, actor.ID, objectID)
}

// handleUndo implements spec.md §4.4's Undo verb: inspect the inner object,
// resolving it by URI if it is a bare string, then dispatch to the reverse
// of Follow/Like/Announce. Missing targets are silently ignored.
func (p *Pipeline) handleUndo(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	inner := doc["object"]
	innerURI, isURIRef := inner.(string)
	if isURIRef {
		inactivity, err := p.store.FindActivityByTargetURI(ctx, tx, innerURI)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return p.undoByKind(ctx, tx, actor, inactivity.Kind, inactivity.ObjectURI, inactivity.TargetURI)
	}

	m := asObject(inner)
	if m == nil {
		return nil
	}
	innerKind := apmodel.ActivityKind(stringOrEmpty(m, "type"))
	objURI := stringOrNull(idOf(m["object"]))
	targetURI := stringOrNull(idOf(m["target"]))
	return p.undoByKind(ctx, tx, actor, innerKind, objURI, targetURI)
}

func (p *Pipeline) undoByKind(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, kind apmodel.ActivityKind, objectURI, targetURI sql.NullString) error {
	switch kind {
	case apmodel.ActivityFollow:
		if !objectURI.Valid {
			return nil
		}
		target, err := p.store.GetActorByURI(ctx, tx, objectURI.String)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return p.store.DeleteFollow(ctx, tx, actor.ID, target.ID)
	case apmodel.ActivityLike:
		if !objectURI.Valid {
			return nil
		}
		objID, err := p.store.GetObjectIDByURI(ctx, tx, objectURI.String)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return p.store.DeleteLike(ctx, tx, actor.ID, objID)
	case apmodel.ActivityAnnounce:
		if !objectURI.Valid {
			return nil
		}
		objID, err := p.store.GetObjectIDByURI(ctx, tx, objectURI.String)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return p.store.DeleteAnnounce(ctx, tx, actor.ID, objID)
	default:
		return nil
	}
}

// handleCreate implements spec.md §4.4's Create verb.
func (p *Pipeline) handleCreate(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	obj := asObject(doc["object"])
	if obj == nil {
		return nil
	}
	kind, ok := apmodel.RecognizedObjectKind(stringOrEmpty(obj, "type"))
	if !ok {
		return nil
	}
	uri := stringOrEmpty(obj, "id")
	if uri == "" {
		return nil
	}

	published := time.Now().UTC()
	if ps := stringOrEmpty(obj, "published"); ps != "" {
		if t, err := time.Parse(time.RFC3339, ps); err == nil {
			published = t
		}
	}

	html := stringOrEmpty(obj, "content")
	var rawJSON []byte
	if b, err := json.Marshal(obj); err == nil {
		rawJSON = b
	}

	_, _, err := p.store.InsertObject(ctx, tx, store.InsertObjectParams{
		URI:             uri,
		Kind:            string(kind),
		ActorID:         actor.ID,
		Content:         stringOrNull(html),
		ContentText:     stringOrNull(apmodel.StripHTML(html)),
		Summary:         stringOrNull(stringOrEmpty(obj, "summary")),
		CanonicalURL:    stringOrNull(stringOrEmpty(obj, "url")),
		Visibility:      string(apmodel.VisibilityPublic),
		Language:        stringOrNull(contentMapLanguage(obj)),
		InReplyToURI:    stringOrNull(idOf(obj["inReplyTo"])),
		ConversationURI: stringOrNull(stringOrEmpty(obj, "conversation")),
		PublishedAt:     published,
		RawDocument:     sql.NullString{String: string(rawJSON), Valid: rawJSON != nil},
	})
	return err
}

// handleUpdate implements spec.md §4.4's Update verb: mutate content/
// summary/sensitive only if the stored object's actor_id matches.
func (p *Pipeline) handleUpdate(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	obj := asObject(doc["object"])
	if obj == nil {
		return nil
	}
	uri := stringOrEmpty(obj, "id")
	if uri == "" {
		return nil
	}
	html := stringOrEmpty(obj, "content")
	sensitive := stringOrEmpty(obj, "summary") != ""
	changed, err := p.store.UpdateObject(ctx, tx, uri, actor.ID, stringOrNull(html), stringOrNull(stringOrEmpty(obj, "summary")), sensitive)
	if err != nil {
		return err
	}
	if !changed {
		return nil // UnauthorizedMutation: silently ignored, spec.md §7.
	}
	return p.store.SetObjectContentText(ctx, tx, uri, stringOrNull(apmodel.StripHTML(html)))
}

// handleDelete implements spec.md §4.4's Delete verb: soft-delete iff owned
// by the activity's actor.
func (p *Pipeline) handleDelete(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	uri := idOf(doc["object"])
	if uri == "" {
		return nil
	}
	_, err := p.store.SoftDeleteObject(ctx, tx, uri, actor.ID)
	return err
}

// handleAccept implements spec.md §4.4's Accept verb: the inner object's id
// identifies a prior Follow activity by URI.
func (p *Pipeline) handleAccept(ctx context.Context, tx *sql.Tx, doc map[string]interface{}) error {
	followURI := idOf(doc["object"])
	if followURI == "" {
		return nil
	}
	_, err := p.store.AcceptFollowByActivityURI(ctx, tx, followURI)
	return err
}

// handleReject implements spec.md §4.4's Reject verb.
func (p *Pipeline) handleReject(ctx context.Context, tx *sql.Tx, doc map[string]interface{}) error {
	followURI := idOf(doc["object"])
	if followURI == "" {
		return nil
	}
	return p.store.DeleteFollowByActivityURI(ctx, tx, followURI)
}

// handleBlock implements spec.md §4.4's Block verb: record a block edge and
// sever any follow edges in either direction.
func (p *Pipeline) handleBlock(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	targetURI := idOf(doc["object"])
	if targetURI == "" {
		return nil
	}
	target, err := p.resolveActor(ctx, tx, targetURI)
	if err != nil {
		return err
	}
	return p.store.InsertBlockActor(ctx, tx, actor.ID, target.ID)
}

// handleAdd implements SPEC_FULL.md §4.4's supplemented Add verb: pin an
// object to the actor's featured collection.
func (p *Pipeline) handleAdd(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	objURI := idOf(doc["object"])
	if objURI == "" {
		return nil
	}
	objID, err := p.store.GetObjectIDByURI(ctx, tx, objURI)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return p.store.InsertFeatured(ctx, tx, actor.ID, objID)
}

// handleRemove implements SPEC_FULL.md §4.4's supplemented Remove verb:
// unpin an object from the actor's featured collection.
func (p *Pipeline) handleRemove(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	objURI := idOf(doc["object"])
	if objURI == "" {
		return nil
	}
	objID, err := p.store.GetObjectIDByURI(ctx, tx, objURI)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return p.store.DeleteFeatured(ctx, tx, actor.ID, objID)
}

// handleMove implements SPEC_FULL.md §4.4's supplemented Move verb: the
// actor row itself is left unchanged (Process stores the Move activity row
// like any other), plus a best-effort re-target of followers who already
// accepted the old actor onto the "target" actor, mirroring klppl-klistr's
// handleMove.
func (p *Pipeline) handleMove(ctx context.Context, tx *sql.Tx, actor *apmodel.Actor, doc map[string]interface{}) error {
	targetURI := idOf(doc["target"])
	if targetURI == "" {
		return nil
	}
	target, err := p.resolveActor(ctx, tx, targetURI)
	if err != nil {
		return err
	}
	return p.store.RetargetFollowing(ctx, tx, actor.ID, target.ID)
}
