package httpapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/inkwell-hq/inkwell/internal/auth"
	"github.com/inkwell-hq/inkwell/internal/config"
	"github.com/inkwell-hq/inkwell/internal/model"
	"github.com/inkwell-hq/inkwell/internal/rate"
	"github.com/inkwell-hq/inkwell/internal/service"
	"github.com/inkwell-hq/inkwell/internal/store/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour)
	svc := service.New(st, tokens)
	cfg := config.Config{
		SecretKey: "test-secret",
		TokenTTL:  time.Hour,
		RateLimits: config.RateLimits{
			RegisterPerMinute: 1000,
			LoginPerMinute:    1000,
			WritePerMinute:    1000,
		},
	}
	return NewServer(svc, rate.NewMemory(), cfg)
}

func doJSON(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, srv *Server, email string) (int64, string) {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/users", "", fmt.Sprintf(`{"email":%q,"password":"hunter2"}`, email))
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, w.Code, w.Body.String())
	}
	var user model.User
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}

	form := url.Values{"username": {email}, "password": {"hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	lw := httptest.NewRecorder()
	srv.ServeHTTP(lw, req)
	if lw.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, lw.Code, lw.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(lw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Fatalf("token_type = %q, want bearer", resp.TokenType)
	}
	return user.ID, resp.AccessToken
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp.Kind
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "ada@example.com")
	if token == "" {
		t.Fatal("empty token")
	}

	// Duplicate email.
	w := doJSON(t, srv, http.MethodPost, "/users", "", `{"email":"ada@example.com","password":"other"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: status %d", w.Code)
	}

	// Wrong password is 401, unknown email is 404.
	form := url.Values{"username": {"ada@example.com"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	lw := httptest.NewRecorder()
	srv.ServeHTTP(lw, req)
	if lw.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", lw.Code)
	}

	form = url.Values{"username": {"nobody@example.com"}, "password": {"nope"}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	lw = httptest.NewRecorder()
	srv.ServeHTTP(lw, req)
	if lw.Code != http.StatusNotFound {
		t.Fatalf("unknown email: status %d", lw.Code)
	}
}

func TestPasswordNeverSerialized(t *testing.T) {
	srv := newTestServer(t)
	id, _ := registerAndLogin(t, srv, "ada@example.com")

	w := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/users/%d", id), "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get user: status %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("user payload leaks password field: %s", w.Body.String())
	}
}

func TestPostCRUD(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "ada@example.com")

	w := doJSON(t, srv, http.MethodPost, "/posts", token, `{"title":"hello","content":"first post"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create post: status %d body %s", w.Code, w.Body.String())
	}
	var post model.Post
	if err := json.Unmarshal(w.Body.Bytes(), &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	if !post.Published {
		t.Fatal("published should default to true")
	}

	w = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get post: status %d", w.Code)
	}
	var pv model.PostWithVotes
	if err := json.Unmarshal(w.Body.Bytes(), &pv); err != nil {
		t.Fatalf("decode post with votes: %v", err)
	}
	if pv.Post.ID != post.ID || pv.Votes != 0 {
		t.Fatalf("got post %d votes %d", pv.Post.ID, pv.Votes)
	}

	w = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/posts/%d", post.ID), token, `{"title":"hello again","content":"edited"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update post: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/posts/%d", post.ID), token, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete post: status %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted post: status %d", w.Code)
	}
}

func TestPostEndpointsRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodGet, "/posts", ""},
		{http.MethodGet, "/posts/1", ""},
		{http.MethodPost, "/posts", `{"title":"t","content":"c"}`},
		{http.MethodPut, "/posts/1", `{"title":"t","content":"c"}`},
		{http.MethodDelete, "/posts/1", ""},
		{http.MethodPost, "/vote", `{"post_id":1,"dir":1}`},
	} {
		w := doJSON(t, srv, tc.method, tc.path, "", tc.body)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status %d", tc.method, tc.path, w.Code)
		}
		if kind := errorKind(t, w); kind != "unauthenticated" {
			t.Errorf("%s %s kind = %q", tc.method, tc.path, kind)
		}

		w = doJSON(t, srv, tc.method, tc.path, "garbage-token", tc.body)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bad token: status %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestOwnershipChecks(t *testing.T) {
	srv := newTestServer(t)
	_, owner := registerAndLogin(t, srv, "owner@example.com")
	_, other := registerAndLogin(t, srv, "other@example.com")

	w := doJSON(t, srv, http.MethodPost, "/posts", owner, `{"title":"mine","content":"keep out"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create post: status %d", w.Code)
	}
	var post model.Post
	if err := json.Unmarshal(w.Body.Bytes(), &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}

	w = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/posts/%d", post.ID), other, `{"title":"stolen","content":"x"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("update as non-owner: status %d", w.Code)
	}
	w = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/posts/%d", post.ID), other, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("delete as non-owner: status %d", w.Code)
	}

	// Missing post reports 404 even to a non-owner.
	w = doJSON(t, srv, http.MethodDelete, "/posts/9999", other, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete missing post: status %d", w.Code)
	}
}

func TestVoteEndpoint(t *testing.T) {
	srv := newTestServer(t)
	_, owner := registerAndLogin(t, srv, "owner@example.com")
	_, voter := registerAndLogin(t, srv, "voter@example.com")

	w := doJSON(t, srv, http.MethodPost, "/posts", owner, `{"title":"vote on me","content":"pls"}`)
	var post model.Post
	if err := json.Unmarshal(w.Body.Bytes(), &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	votePayload := fmt.Sprintf(`{"post_id":%d,"dir":1}`, post.ID)
	unvotePayload := fmt.Sprintf(`{"post_id":%d,"dir":0}`, post.ID)

	// Self vote is forbidden.
	w = doJSON(t, srv, http.MethodPost, "/vote", owner, votePayload)
	if w.Code != http.StatusForbidden {
		t.Fatalf("self vote: status %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/vote", voter, votePayload)
	if w.Code != http.StatusCreated {
		t.Fatalf("vote: status %d body %s", w.Code, w.Body.String())
	}

	// Double vote conflicts.
	w = doJSON(t, srv, http.MethodPost, "/vote", voter, votePayload)
	if w.Code != http.StatusConflict {
		t.Fatalf("double vote: status %d", w.Code)
	}
	if kind := errorKind(t, w); kind != "conflict" {
		t.Fatalf("double vote kind = %q", kind)
	}

	// Count is visible on reads.
	w = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), voter, "")
	var pv model.PostWithVotes
	if err := json.Unmarshal(w.Body.Bytes(), &pv); err != nil {
		t.Fatalf("decode post with votes: %v", err)
	}
	if pv.Votes != 1 {
		t.Fatalf("votes = %d, want 1", pv.Votes)
	}

	w = doJSON(t, srv, http.MethodPost, "/vote", voter, unvotePayload)
	if w.Code != http.StatusCreated {
		t.Fatalf("unvote: status %d", w.Code)
	}

	// Removing a vote that is not there is 404.
	w = doJSON(t, srv, http.MethodPost, "/vote", voter, unvotePayload)
	if w.Code != http.StatusNotFound {
		t.Fatalf("double unvote: status %d", w.Code)
	}

	// Unknown post is 404, bad dir is 400.
	w = doJSON(t, srv, http.MethodPost, "/vote", voter, `{"post_id":9999,"dir":1}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("vote on missing post: status %d", w.Code)
	}
	w = doJSON(t, srv, http.MethodPost, "/vote", voter, fmt.Sprintf(`{"post_id":%d,"dir":7}`, post.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad dir: status %d", w.Code)
	}
}

func TestListPostsEmpty(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "reader@example.com")
	w := doJSON(t, srv, http.MethodGet, "/posts", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list posts: status %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Fatalf("empty list = %s, want []", got)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: status %d", w.Code)
	}
}

func TestRejectsUnknownJSONFields(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "ada@example.com")

	w := doJSON(t, srv, http.MethodPost, "/posts", token, `{"title":"t","content":"c","bogus":true}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d", w.Code)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.RateLimits.RegisterPerMinute = 2

	for i := 0; i < 2; i++ {
		body := fmt.Sprintf(`{"email":"u%d@example.com","password":"pw"}`, i)
		if w := doJSON(t, srv, http.MethodPost, "/users", "", body); w.Code != http.StatusCreated {
			t.Fatalf("register %d: status %d", i, w.Code)
		}
	}
	w := doJSON(t, srv, http.MethodPost, "/users", "", `{"email":"late@example.com","password":"pw"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit: status %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}
