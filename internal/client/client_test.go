package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkwell-hq/inkwell/internal/auth"
	"github.com/inkwell-hq/inkwell/internal/config"
	httpapp "github.com/inkwell-hq/inkwell/internal/http"
	"github.com/inkwell-hq/inkwell/internal/rate"
	"github.com/inkwell-hq/inkwell/internal/service"
	"github.com/inkwell-hq/inkwell/internal/store/sqlite"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := service.New(st, auth.NewTokenService([]byte("client-test"), time.Hour))
	cfg := config.Config{
		RateLimits: config.RateLimits{
			RegisterPerMinute: 1000,
			LoginPerMinute:    1000,
			WritePerMinute:    1000,
		},
	}
	srv := httptest.NewServer(httpapp.NewServer(svc, rate.NewMemory(), cfg))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	owner := New(api.URL)
	if _, err := owner.Register("owner@example.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := owner.Login("owner@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	post, err := owner.CreatePost("hello", "from the client", true)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	voter := New(api.URL)
	if _, err := voter.Register("voter@example.com", "pw"); err != nil {
		t.Fatalf("register voter: %v", err)
	}
	if _, err := voter.Login("voter@example.com", "pw"); err != nil {
		t.Fatalf("login voter: %v", err)
	}
	if err := voter.Vote(post.ID); err != nil {
		t.Fatalf("vote: %v", err)
	}

	got, err := owner.GetPost(post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Votes != 1 {
		t.Fatalf("votes = %d, want 1", got.Votes)
	}

	posts, err := owner.ListPosts()
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("len(posts) = %d, want 1", len(posts))
	}

	if _, err := owner.UpdatePost(post.ID, "hello again", "edited", true); err != nil {
		t.Fatalf("update post: %v", err)
	}
	if err := owner.DeletePost(post.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	api := newTestAPI(t)

	c := New(api.URL)
	if _, err := c.Register("ada@example.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := c.Login("ada@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	post, err := c.CreatePost("mine", "self votes are out", true)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	err = c.Vote(post.ID)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Kind != "forbidden" {
		t.Fatalf("self vote error = %d %q", apiErr.Status, apiErr.Kind)
	}

	if _, err := c.GetPost(9999); err == nil {
		t.Fatal("expected error for missing post")
	}
}

func TestClientUnauthenticated(t *testing.T) {
	api := newTestAPI(t)

	c := New(api.URL)
	_, err := c.CreatePost("nope", "no token", true)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}
