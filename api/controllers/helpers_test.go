package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/threshingfloor/roastery-backend/internal/access"
)

var (
	adminIdentity    = access.Identity{UserID: uuid.New(), Email: "admin@coffeeshop.com", Name: "Admin", IsAdmin: true}
	customerIdentity = access.Identity{UserID: uuid.New(), Email: "jane@example.com", Name: "Jane"}
)

// serve routes a single request through a chi router so URL params resolve.
func serve(t *testing.T, method, pattern, target, body string, id *access.Identity, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if id != nil {
		req = req.WithContext(access.WithIdentity(context.Background(), *id))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v (%s)", err, envelope.Data)
	}
}
