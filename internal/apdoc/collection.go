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

package apdoc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codybrom/pg-fedi/internal/store"
)

// collectionKind names one of the four ordered collections a local actor
// exposes, each backed by a distinct pair of store count/page queries.
type collectionKind int

const (
	collectionOutbox collectionKind = iota
	collectionFollowers
	collectionFollowing
	collectionFeatured
)

// Collection renders username's outbox/followers/following/featured
// collection. With page == nil, returns a summary {totalItems, first,
// last?}; with a page number, returns an OrderedCollectionPage with
// partOf and prev/next when applicable, at the fixed PageSize of 20
// (spec.md §4.7).
func (s *Serializer) Collection(ctx context.Context, kind collectionKind, username string, page *int) (map[string]interface{}, error) {
	var actorID int64
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		a, err := s.store.GetActorByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		actorID = a.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	collectionURI, countFn, pageFn := s.collectionFuncs(kind, username)
	total, err := countFn(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("apdoc: collection count: %w", err)
	}

	if page == nil {
		doc := map[string]interface{}{
			"id":         collectionURI,
			"type":       "OrderedCollection",
			"totalItems": total,
			"first":      collectionURI + "?page=1",
		}
		if total > 0 {
			lastPage := (total - 1) / store.PageSize
			doc["last"] = fmt.Sprintf("%s?page=%d", collectionURI, lastPage+1)
		}
		return withContext(doc), nil
	}

	p := *page
	if p < 1 {
		p = 1
	}
	items, err := pageFn(ctx, actorID, p-1)
	if err != nil {
		return nil, fmt.Errorf("apdoc: collection page: %w", err)
	}

	doc := map[string]interface{}{
		"id":           fmt.Sprintf("%s?page=%d", collectionURI, p),
		"type":         "OrderedCollectionPage",
		"partOf":       collectionURI,
		"orderedItems": items,
	}
	if int64(p)*store.PageSize < total {
		doc["next"] = fmt.Sprintf("%s?page=%d", collectionURI, p+1)
	}
	if p > 1 {
		doc["prev"] = fmt.Sprintf("%s?page=%d", collectionURI, p-1)
	}
	return withContext(doc), nil
}

func (s *Serializer) collectionFuncs(kind collectionKind, username string) (uri string, countFn func(context.Context, int64) (int64, error), pageFn func(context.Context, int64, int) ([]string, error)) {
	switch kind {
	case collectionFollowers:
		return s.base.FollowersURI(username), s.store.FollowersCount, s.store.FollowersPage
	case collectionFollowing:
		return s.base.FollowingURI(username), s.store.FollowingCount, s.store.FollowingPage
	case collectionFeatured:
		return s.base.FeaturedURI(username), s.store.FeaturedCount, s.store.FeaturedPage
	default:
		return s.base.OutboxURI(username), s.store.OutboxCount, s.store.OutboxPage
	}
}

// OutboxCollection renders username's outbox collection or page.
func (s *Serializer) OutboxCollection(ctx context.Context, username string, page *int) (map[string]interface{}, error) {
	return s.Collection(ctx, collectionOutbox, username, page)
}

// FollowersCollection renders username's followers collection or page.
func (s *Serializer) FollowersCollection(ctx context.Context, username string, page *int) (map[string]interface{}, error) {
	return s.Collection(ctx, collectionFollowers, username, page)
}

// FollowingCollection renders username's following collection or page.
func (s *Serializer) FollowingCollection(ctx context.Context, username string, page *int) (map[string]interface{}, error) {
	return s.Collection(ctx, collectionFollowing, username, page)
}

// FeaturedCollection renders username's pinned-objects collection or page.
func (s *Serializer) FeaturedCollection(ctx context.Context, username string, page *int) (map[string]interface{}, error) {
	return s.Collection(ctx, collectionFeatured, username, page)
}
