package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer secret-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/api/clients/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "abc" {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(apiError{Status: 404, Title: "Not Found", Detail: "client missing not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(WGClient{UUID: "abc", Login: "alice"})
	})
	r.Post("/api/clients", func(w http.ResponseWriter, r *http.Request) {
		var in NewClient
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(apiError{Status: 409, Title: "Conflict", Detail: "public_key in use by " + in.Login})
	})
	r.Get("/api/passes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Pass{{ID: 1, Added: len(r.URL.Query().Get("limit"))}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetClient(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL+"/", "secret-token")

	got, err := c.GetClient(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Login)

	_, err = c.GetClient(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "client missing not found")
}

func TestErrorDetail(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, "secret-token")

	_, err := c.CreateClient(context.Background(), NewClient{Login: "bob"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public_key in use by bob")
}

func TestUnauthorized(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, "wrong")

	_, err := c.ListClients(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListPasses(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, "secret-token")

	passes, err := c.ListPasses(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, 2, passes[0].Added)
}
