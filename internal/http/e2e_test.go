package httpapp_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkwell-hq/inkwell/internal/auth"
	"github.com/inkwell-hq/inkwell/internal/client"
	"github.com/inkwell-hq/inkwell/internal/config"
	httpapp "github.com/inkwell-hq/inkwell/internal/http"
	"github.com/inkwell-hq/inkwell/internal/rate"
	"github.com/inkwell-hq/inkwell/internal/service"
	"github.com/inkwell-hq/inkwell/internal/store/sqlite"
)

// TestEndToEnd walks the whole surface over a real listener, through the
// logging middleware, using the Go client.
func TestEndToEnd(t *testing.T) {
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := service.New(st, auth.NewTokenService([]byte("e2e-secret"), time.Hour))
	cfg := config.Config{
		RateLimits: config.RateLimits{
			RegisterPerMinute: 1000,
			LoginPerMinute:    1000,
			WritePerMinute:    1000,
		},
	}
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := httpapp.WithRequestLogging(log, httpapp.NewServer(svc, rate.NewMemory(), cfg))

	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)

	alice := client.New(api.URL)
	bob := client.New(api.URL)

	aliceUser, err := alice.Register("alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if _, err := alice.Login("alice@example.com", "correct horse"); err != nil {
		t.Fatalf("login alice: %v", err)
	}
	if _, err := bob.Register("bob@example.com", "battery staple"); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	if _, err := bob.Login("bob@example.com", "battery staple"); err != nil {
		t.Fatalf("login bob: %v", err)
	}

	post, err := alice.CreatePost("e2e", "over a real socket", true)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.OwnerID != aliceUser.ID {
		t.Fatalf("owner = %d, want %d", post.OwnerID, aliceUser.ID)
	}

	if err := bob.Vote(post.ID); err != nil {
		t.Fatalf("vote: %v", err)
	}
	got, err := bob.GetPost(post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Votes != 1 {
		t.Fatalf("votes = %d, want 1", got.Votes)
	}

	// Bob cannot touch Alice's post.
	if _, err := bob.UpdatePost(post.ID, "hijack", "x", true); err == nil {
		t.Fatal("expected forbidden update")
	}

	if err := bob.Unvote(post.ID); err != nil {
		t.Fatalf("unvote: %v", err)
	}
	if err := alice.DeletePost(post.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	posts, err := alice.ListPosts()
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("len(posts) = %d, want 0", len(posts))
	}

	// Request id header comes back from the middleware.
	resp, err := http.Get(api.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id header")
	}
}
