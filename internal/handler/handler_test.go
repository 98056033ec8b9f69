package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/robsonsouzans/listans/internal/auth"
	"github.com/robsonsouzans/listans/internal/middleware"
	"github.com/robsonsouzans/listans/internal/model"
	"github.com/robsonsouzans/listans/internal/shopping"
	"github.com/robsonsouzans/listans/internal/store"
)

// testEnv wires the handlers onto a router the way the server does, over a
// memory store.
type testEnv struct {
	router   *mux.Router
	store    *store.MemoryStore
	service  *shopping.Service
	sessions *auth.SessionRegistry
	gateway  *auth.Gateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	st := store.NewMemoryStore()
	service := shopping.NewService(st, logger, time.Second)
	sessions := auth.NewSessionRegistry()
	gateway := auth.NewGateway(st, sessions, logger, bcrypt.MinCost)

	router := mux.NewRouter()
	authenticator := auth.NewSessionAuthenticator(st, sessions)
	router.Use(mux.MiddlewareFunc(middleware.Auth(authenticator, logger)))

	NewAuthHandler(gateway, logger).RegisterRoutes(router)
	NewShoppingHandler(service, st, logger).RegisterRoutes(router)

	return &testEnv{
		router:   router,
		store:    st,
		service:  service,
		sessions: sessions,
		gateway:  gateway,
	}
}

// do performs a request against the router. A non-empty token is sent as a
// bearer credential.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

// signup registers a user through the API and returns the session token.
func (e *testEnv) signup(t *testing.T, name, email string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/auth/signup", "", signupRequest{
		Name:     name,
		Email:    email,
		Password: "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp model.APIResponse[sessionResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing signup response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("signup returned an empty token")
	}
	return resp.Data.Token
}

// defaultList fetches the user's lists, triggering default list creation,
// and returns the first list's ID.
func (e *testEnv) defaultList(t *testing.T, token string) string {
	t.Helper()

	rec := e.do(t, http.MethodGet, "/api/v1/lists", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lists status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp model.APIResponse[[]model.List]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing lists response: %v", err)
	}
	if len(resp.Data) == 0 {
		t.Fatal("expected at least one list")
	}
	return resp.Data[0].ID
}

// createGroup adds a group through the API and returns it.
func (e *testEnv) createGroup(t *testing.T, token, listID, name string) model.Group {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/lists/"+listID+"/groups", token, createGroupRequest{Name: name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp model.APIResponse[model.Group]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing group response: %v", err)
	}
	return resp.Data
}

// createItem adds an item through the API and returns it.
func (e *testEnv) createItem(t *testing.T, token, groupID string, req createItemRequest) model.Item {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/groups/"+groupID+"/items", token, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp model.APIResponse[model.Item]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing item response: %v", err)
	}
	return resp.Data
}
