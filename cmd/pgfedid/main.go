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

// Command pgfedid is a thin HTTP front door wiring internal/config,
// internal/store, internal/inbox, internal/outbox, internal/delivery and
// internal/apdoc behind a gorilla/mux router. Full HTTP front-end design
// (auth middleware, TLS termination, rate limiting at the edge) is out of
// scope per spec.md §1; routes here exist only to give the core packages a
// reachable surface, grounded on router.go's mux.NewRouter() style.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/codybrom/pg-fedi/internal/apdoc"
	"github.com/codybrom/pg-fedi/internal/config"
	"github.com/codybrom/pg-fedi/internal/delivery"
	"github.com/codybrom/pg-fedi/internal/inbox"
	"github.com/codybrom/pg-fedi/internal/outbox"
	"github.com/codybrom/pg-fedi/internal/paths"
	"github.com/codybrom/pg-fedi/internal/store"
	"github.com/codybrom/pg-fedi/internal/xlog"
)

func main() {
	cfgPath := flag.String("config", "pg_fedi.ini", "path to the ini config file")
	flag.Parse()

	xlog.Init(false)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		xlog.Errorf("load config: %v", err)
		return
	}

	s, err := store.Open(cfg.Database.DSN())
	if err != nil {
		xlog.Errorf("open store: %v", err)
		return
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		xlog.Errorf("migrate: %v", err)
		return
	}

	base := paths.New(cfg.Server.Domain, cfg.Server.UseHTTPS)
	pipeline := inbox.New(s, cfg.Server.AutoAcceptFollows)
	builder := outbox.New(s, base)
	serializer := apdoc.New(s, base)

	sched := delivery.New(s, http.DefaultClient, delivery.Config{
		MaxAttempts:    cfg.Delivery.MaxDeliveryAttempts,
		BatchSize:      cfg.Delivery.LeaseBatchSize,
		PollPeriod:     time.Duration(cfg.Delivery.PollPeriodSeconds) * time.Second,
		Timeout:        time.Duration(cfg.Delivery.DeliveryTimeoutSeconds) * time.Second,
		UserAgent:      cfg.Server.UserAgent,
		RateLimitQPS:   cfg.Delivery.OutboundRateLimitQPS,
		RateLimitBurst: cfg.Delivery.OutboundRateLimitBurst,
	})
	sched.Start()
	defer sched.Stop()

	srv := &server{store: s, pipeline: pipeline, builder: builder, doc: serializer, base: base}
	r := mux.NewRouter()
	r.HandleFunc("/users/{user}", srv.getActor).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/inbox", srv.postInbox).Methods(http.MethodPost)
	r.HandleFunc("/inbox", srv.postInbox).Methods(http.MethodPost)
	r.HandleFunc("/users/{user}/outbox", srv.getOutbox).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/outbox", srv.postOutbox).Methods(http.MethodPost)
	r.HandleFunc("/users/{user}/followers", srv.getFollowers).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/following", srv.getFollowing).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/collections/featured", srv.getFeatured).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/objects/{oid}", srv.getObject).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/activities/{aid}", srv.getActivity).Methods(http.MethodGet)

	xlog.Infof("pgfedid listening on :8080 for domain %s", cfg.Server.Domain)
	if err := http.ListenAndServe(":8080", r); err != nil {
		xlog.Errorf("serve: %v", err)
	}
}

type server struct {
	store    *store.Store
	pipeline *inbox.Pipeline
	builder  *outbox.Builder
	doc      *apdoc.Serializer
	base     paths.Base
}

func (s *server) getActor(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]
	doc, err := s.doc.ActorDocument(r.Context(), username)
	writeJSONOr404(w, doc, err)
}

func (s *server) postInbox(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if _, err := s.pipeline.Process(r.Context(), body); err != nil {
		xlog.Errorf("inbox: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) getOutbox(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]
	doc, err := s.doc.OutboxCollection(r.Context(), username, pageParam(r))
	writeJSONOr404(w, doc, err)
}

func (s *server) postOutbox(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]
	if err := r.ParseForm(); err != nil {
		http.Error(w, "parse form", http.StatusBadRequest)
		return
	}
	objectURI, err := s.builder.CreateNote(r.Context(), username,
		r.FormValue("content"), r.FormValue("summary"), r.FormValue("in_reply_to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Location", objectURI)
	w.WriteHeader(http.StatusCreated)
}

func (s *server) getFollowers(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]
	doc, err := s.doc.FollowersCollection(r.Context(), username, pageParam(r))
	writeJSONOr404(w, doc, err)
}

func (s *server) getFollowing(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]
	doc, err := s.doc.FollowingCollection(r.Context(), username, pageParam(r))
	writeJSONOr404(w, doc, err)
}

func (s *server) getFeatured(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]
	doc, err := s.doc.FeaturedCollection(r.Context(), username, pageParam(r))
	writeJSONOr404(w, doc, err)
}

func (s *server) getObject(w http.ResponseWriter, r *http.Request) {
	uri := s.base.ObjectURI(mux.Vars(r)["user"], mustInt64(mux.Vars(r)["oid"]))
	doc, err := s.doc.ObjectDocument(r.Context(), uri)
	writeJSONOr404(w, doc, err)
}

func (s *server) getActivity(w http.ResponseWriter, r *http.Request) {
	uri := s.base.ActivityURI(mux.Vars(r)["user"], mustInt64(mux.Vars(r)["aid"]))
	doc, err := s.doc.ActivityDocument(r.Context(), uri)
	writeJSONOr404(w, doc, err)
}

func pageParam(r *http.Request) *int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func mustInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func writeJSONOr404(w http.ResponseWriter, doc map[string]interface{}, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/activity+json")
	_ = json.NewEncoder(w).Encode(doc)
}
