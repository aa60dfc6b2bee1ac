// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

// Package server implements the REST API over the objects service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"stixview.io/stixview/objects"
)

var mon = monkit.Package()

// Server implements the REST API for STIX object search.
type Server struct {
	log      *zap.Logger
	service  *objects.Service
	config   objects.Config
	endpoint string
	handler  http.Handler
}

// NewServer creates a new objects API server.
func NewServer(log *zap.Logger, service *objects.Service, config objects.Config, endpoint string) *Server {
	server := &Server{
		log:      log,
		service:  service,
		config:   config,
		endpoint: endpoint,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/objects/sdos", server.listSDOs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/objects/scos", server.listSCOs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/objects/sros", server.listSROs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/objects/smos", server.listSMOs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/objects/{object_id}", server.getObject).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/objects/{object_id}/reports", server.getReports).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/objects/{object_id}/bundle", server.getBundle).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/reports/{report_id}/objects/{object_id}", server.deleteObject).Methods(http.MethodDelete)
	server.handler = router

	return server
}

// Handler returns the root HTTP handler, mostly for tests.
func (server *Server) Handler() http.Handler {
	return server.handler
}

// Run serves the API until the context is canceled.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:        server.endpoint,
		Handler:     server.handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	server.log.Info("server starting", zap.String("endpoint", server.endpoint))
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (server *Server) listSDOs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	q := r.URL.Query()
	filter := objects.SDOFilter{
		Types:     queryList(q.Get("types")),
		Name:      q.Get("name"),
		Labels:    q.Get("labels"),
		VisibleTo: q.Get("visible_to"),
		Sort:      q.Get("sort"),
	}

	page, err := server.service.SDOs(ctx, filter, server.pageParams(r))
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, page)
}

func (server *Server) listSCOs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	q := r.URL.Query()
	filter := objects.SCOFilter{
		Types: queryList(q.Get("types")),
		Value: q.Get("value"),
		Sort:  q.Get("sort"),
	}
	if postID := q.Get("post_id"); postID != "" {
		filter.MatchProperties = map[string]interface{}{"_obstracts_post_id": postID}
	}

	page, err := server.service.SCOs(ctx, filter, server.pageParams(r))
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, page)
}

func (server *Server) listSROs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	q := r.URL.Query()
	filter := objects.SROFilter{
		SourceRef:           q.Get("source_ref"),
		TargetRef:           q.Get("target_ref"),
		SourceRefTypes:      queryList(q.Get("source_ref_type")),
		TargetRefTypes:      queryList(q.Get("target_ref_type")),
		RelationshipType:    q.Get("relationship_type"),
		IncludeEmbeddedRefs: queryBool(q.Get("include_embedded_refs"), true),
		VisibleTo:           q.Get("visible_to"),
		Sort:                q.Get("sort"),
	}

	page, err := server.service.SROs(ctx, filter, server.pageParams(r))
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, page)
}

func (server *Server) listSMOs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	q := r.URL.Query()
	filter := objects.SMOFilter{
		Types: queryList(q.Get("types")),
		Sort:  q.Get("sort"),
	}

	page, err := server.service.SMOs(ctx, filter, server.pageParams(r))
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, page)
}

func (server *Server) getObject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	object, err := server.service.ObjectByID(ctx, mux.Vars(r)["object_id"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, object)
}

func (server *Server) getReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	page, err := server.service.ContainingReports(ctx, mux.Vars(r)["object_id"], server.pageParams(r))
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, page)
}

func (server *Server) getBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	q := r.URL.Query()
	filter := objects.BundleFilter{
		Types:               queryList(q.Get("types")),
		IncludeEmbeddedRefs: queryBool(q.Get("include_embedded_refs"), true),
		VisibleTo:           q.Get("visible_to"),
	}

	page, err := server.service.Bundle(ctx, mux.Vars(r)["object_id"], filter, server.pageParams(r))
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, page)
}

func (server *Server) deleteObject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	vars := mux.Vars(r)
	err = server.service.DeleteObjectFromReport(ctx, vars["report_id"], vars["object_id"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) pageParams(r *http.Request) objects.PageParams {
	q := r.URL.Query()
	return server.config.ParsePageParams(q.Get("page"), q.Get("page_size"))
}

func (server *Server) jsonResponse(w http.ResponseWriter, status int, body interface{}) {
	jsonBytes, err := json.Marshal(body)
	if err != nil {
		server.errorResponse(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonBytes)
}

func (server *Server) errorResponse(w http.ResponseWriter, err error) {
	server.log.Warn("error during API request", zap.Error(err))

	e := ErrInternalError
	switch {
	case objects.ErrNotFound.Has(err):
		e = ErrNotFound
	case objects.ErrInvalidPage.Has(err), objects.ErrQuery.Has(err):
		e = &ErrorResponse{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	resp, _ := json.Marshal(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_, _ = w.Write(resp)
}

// queryList splits a comma-separated parameter, dropping empty entries.
func queryList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// queryBool parses a boolean-ish parameter; true/yes/1/y are truthy,
// anything else is false, absent means the default.
func queryBool(value string, def bool) bool {
	if value == "" {
		return def
	}
	switch strings.ToLower(value) {
	case "true", "yes", "1", "y":
		return true
	}
	return false
}
