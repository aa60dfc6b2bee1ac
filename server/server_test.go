// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stixview.io/stixview/objects"
	"stixview.io/stixview/server"
)

type storeCall struct {
	query    string
	bindVars map[string]interface{}
}

type fakeStore struct {
	calls   []storeCall
	results []objects.Result
}

func (store *fakeStore) Search(ctx context.Context, query string, bindVars map[string]interface{}) (objects.Result, error) {
	store.calls = append(store.calls, storeCall{query: query, bindVars: bindVars})
	if len(store.results) > 0 {
		result := store.results[0]
		store.results = store.results[1:]
		return result, nil
	}
	return objects.Result{Objects: []objects.Object{}}, nil
}

func (store *fakeStore) RemoveDocument(ctx context.Context, docID string) error { return nil }

func (store *fakeStore) RecomputeLatest(ctx context.Context, vertexCollection, edgeCollection string, stixIDs []string) error {
	return nil
}

func newTestServer(t *testing.T, store *fakeStore) *httptest.Server {
	log := zaptest.NewLogger(t)
	config := objects.DefaultConfig()
	service := objects.NewService(log, store, "stixview_view", config)
	api := server.NewServer(log, service, config, ":0")
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestListSDOs(t *testing.T) {
	store := &fakeStore{results: []objects.Result{{
		Objects:   []objects.Object{{"id": "malware--1", "type": "malware"}},
		FullCount: 12,
	}}}
	srv := newTestServer(t, store)

	resp, body := get(t, srv.URL+"/api/v1/objects/sdos?types=malware,indicator&name=Wanna&page=2&page_size=10&sort=modified_descending")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	require.EqualValues(t, 10, body["page_size"])
	require.EqualValues(t, 2, body["page_number"])
	require.EqualValues(t, 1, body["page_results_count"])
	require.EqualValues(t, 12, body["total_results_count"])
	require.Len(t, body["objects"], 1)

	call := store.calls[0]
	require.ElementsMatch(t, []string{"malware", "indicator"}, call.bindVars["types"])
	require.Equal(t, "%Wanna%", call.bindVars["name"])
	require.EqualValues(t, 10, call.bindVars["offset"])
	require.EqualValues(t, 10, call.bindVars["count"])
	require.Contains(t, call.query, "SORT doc.modified DESC")
}

func TestListSCOsPostID(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)

	resp, _ := get(t, srv.URL+"/api/v1/objects/scos?value=1.1.1&post_id=post-7")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	call := store.calls[0]
	require.Equal(t, "1.1.1", call.bindVars["search_value"])
	require.Equal(t, map[string]interface{}{"_obstracts_post_id": "post-7"}, call.bindVars["matcher"])
}

func TestListSROsEmbeddedRefs(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)

	resp, _ := get(t, srv.URL+"/api/v1/objects/sros?include_embedded_refs=no&source_ref_type=malware")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, store.calls[0].query, "doc._is_ref != TRUE")

	// truthy spellings keep embedded refs
	store.calls = nil
	resp, _ = get(t, srv.URL+"/api/v1/objects/sros?include_embedded_refs=Yes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, store.calls[0].query, "_is_ref")
}

func TestGetObjectNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	resp, body := get(t, srv.URL+"/api/v1/objects/indicator--missing")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.EqualValues(t, 404, body["code"])
	require.NotEmpty(t, body["message"])
}

func TestGetObject(t *testing.T) {
	store := &fakeStore{results: []objects.Result{{
		Objects: []objects.Object{{"id": "indicator--7", "type": "indicator"}},
	}}}
	srv := newTestServer(t, store)

	resp, body := get(t, srv.URL+"/api/v1/objects/indicator--7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "indicator--7", body["id"])
}

func TestGetBundle(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)

	resp, body := get(t, srv.URL+"/api/v1/objects/malware--1/bundle?types=identity")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "objects")
	require.Contains(t, store.calls[0].query, "LET bundle_ids = FLATTEN(")
	require.Equal(t, "malware--1", store.calls[0].bindVars["id"])
}

func TestGetReports(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)

	resp, body := get(t, srv.URL+"/api/v1/objects/ipv4-addr--9/reports")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "reports")
}

func TestInvalidPage(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	resp, body := get(t, srv.URL+"/api/v1/objects/sdos?page=4294967296")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.EqualValues(t, 400, body["code"])
	require.Contains(t, body["message"], "invalid page")
}

func TestDeleteObject(t *testing.T) {
	store := &fakeStore{results: []objects.Result{{
		Objects: []objects.Object{{
			"report_key": "",
			"object_key": nil,
			"closure":    []interface{}{},
		}},
	}}}
	srv := newTestServer(t, store)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/reports/report--9/objects/url--1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	// deleting an absent object is still success with no content
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
