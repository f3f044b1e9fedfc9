package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/inkwell-hq/inkwell/internal/auth"
	"github.com/inkwell-hq/inkwell/internal/client"
	"github.com/inkwell-hq/inkwell/internal/config"
	httpapp "github.com/inkwell-hq/inkwell/internal/http"
	"github.com/inkwell-hq/inkwell/internal/rate"
	"github.com/inkwell-hq/inkwell/internal/service"
	"github.com/inkwell-hq/inkwell/internal/store"
	"github.com/inkwell-hq/inkwell/internal/store/postgres"
	"github.com/inkwell-hq/inkwell/internal/store/sqlite"
)

// CLIConfig holds the CLI client configuration persisted to disk.
type CLIConfig struct {
	BaseURL  string `json:"base_url"`
	Email    string `json:"email"`
	UserID   int64  `json:"user_id"`
	Token    string `json:"token"`
	TokenExp string `json:"token_expires"`
}

func main() {
	if len(os.Args) < 2 {
		runServer()
		return
	}

	cmd := os.Args[1]

	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println("inkwell v0.1.0")
		return
	}

	if strings.HasPrefix(cmd, "-") {
		runServer()
		return
	}

	args := os.Args[2:]

	switch cmd {
	case "server", "serve":
		runServer()
	case "register":
		cmdRegister(args)
	case "login":
		cmdLogin(args)
	case "post":
		cmdPost(args)
	case "read", "list":
		cmdRead(args)
	case "update", "edit":
		cmdUpdate(args)
	case "delete", "rm":
		cmdDelete(args)
	case "vote":
		cmdVote(args)
	case "status", "whoami":
		cmdStatus(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`inkwell - Blog backend with posts and votes

Usage: inkwell <command> [options]

Quick Start:
  inkwell register --email you@example.com --password secret
  inkwell post --title "Hello" --content "My first post"

Client Commands:
  register            Create an account and log in
  login               Log in (when the token expires)
  post                Create a post
  read                Read posts
  update              Update your own post
  delete              Delete your own post
  vote                Vote on a post (or take the vote back)
  status              Show current config and token status

Server:
  server              Start the Inkwell server (default if no command)

Examples:
  inkwell post --title "Thoughts on Go" --content "..."
  inkwell read --post 123
  inkwell vote --post 123
  inkwell vote --post 123 --remove

Environment Variables (server):
  INKWELL_ADDR             Listen address (default: :8080)
  INKWELL_SECRET           Token signing secret (required)
  INKWELL_DB               SQLite path (default: inkwell.db)
  INKWELL_DATABASE_DSN     Postgres DSN (overrides SQLite when set)
  INKWELL_TOKEN_TTL        Token lifetime (default: 60m)`)
}

func runServer() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	tokens := auth.NewTokenService([]byte(cfg.SecretKey), cfg.TokenTTL)
	svc := service.New(st, tokens)
	server := httpapp.NewServer(svc, rate.NewMemory(), cfg)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapp.WithRequestLogging(log, server),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("inkwell listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.DatabaseDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.Open(ctx, cfg.DatabaseDSN)
	}
	return sqlite.Open(cfg.DBPath)
}

func cmdRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "Email address (required)")
	password := fs.String("password", "", "Password (required)")
	url := fs.String("url", "http://localhost:8080", "Inkwell server URL")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "Error: --email and --password are required")
		os.Exit(1)
	}

	c := client.New(*url)
	user, err := c.Register(*email, *password)
	if err != nil {
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != "conflict" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Already registered as %s\n", *email)
	} else {
		fmt.Printf("✓ Registered %s (user %d)\n", user.Email, user.ID)
	}

	if _, err := c.Login(*email, *password); err != nil {
		fmt.Fprintf(os.Stderr, "Error logging in: %v\n", err)
		os.Exit(1)
	}

	cfg := CLIConfig{
		BaseURL:  strings.TrimSuffix(*url, "/"),
		Email:    *email,
		UserID:   user.ID,
		Token:    c.Token,
		TokenExp: time.Now().Add(55 * time.Minute).Format(time.RFC3339),
	}
	if err := saveCLIConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Logged in (config: %s)\n", cliConfigPath())
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	password := fs.String("password", "", "Password (required)")
	fs.Parse(args)

	cfg, err := loadCLIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nRun 'inkwell register' first\n", err)
		os.Exit(1)
	}
	if *password == "" {
		fmt.Fprintln(os.Stderr, "Error: --password is required")
		os.Exit(1)
	}

	c := client.New(cfg.BaseURL)
	if _, err := c.Login(cfg.Email, *password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg.Token = c.Token
	cfg.TokenExp = time.Now().Add(55 * time.Minute).Format(time.RFC3339)
	if err := saveCLIConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Logged in as %s\n", cfg.Email)
}

func cmdPost(args []string) {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	title := fs.String("title", "", "Post title (required)")
	content := fs.String("content", "", "Post content (required)")
	draft := fs.Bool("draft", false, "Save as unpublished draft")
	fs.Parse(args)

	if *title == "" || *content == "" {
		fmt.Fprintln(os.Stderr, "Error: --title and --content are required")
		os.Exit(1)
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	post, err := c.CreatePost(*title, *content, !*draft)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Posted: %s\n", post.Title)
	fmt.Printf("  ID: %d\n", post.ID)
}

func cmdRead(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	postID := fs.Int64("post", 0, "Get a specific post")
	fs.Parse(args)

	c, err := loadAuthenticatedClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *postID != 0 {
		pv, err := c.GetPost(*postID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n%s\n", pv.Post.Title)
		fmt.Printf("  Votes: %d | Author: %d | %s\n", pv.Votes, pv.Post.OwnerID, pv.Post.CreatedAt.Format("2006-01-02"))
		fmt.Printf("\n  %s\n", pv.Post.Content)
		return
	}

	posts, err := c.ListPosts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	for i, pv := range posts {
		fmt.Printf("%d. %s\n", i+1, pv.Post.Title)
		fmt.Printf("   %d votes | author %d | #%d\n\n", pv.Votes, pv.Post.OwnerID, pv.Post.ID)
	}
}

func cmdUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	postID := fs.Int64("post", 0, "Post ID (required)")
	title := fs.String("title", "", "New title (required)")
	content := fs.String("content", "", "New content (required)")
	draft := fs.Bool("draft", false, "Mark as unpublished")
	fs.Parse(args)

	if *postID == 0 || *title == "" || *content == "" {
		fmt.Fprintln(os.Stderr, "Error: --post, --title, and --content are required")
		os.Exit(1)
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if _, err := c.UpdatePost(*postID, *title, *content, !*draft); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Updated post %d\n", *postID)
}

func cmdDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	postID := fs.Int64("post", 0, "Post ID to delete")
	fs.Parse(args)

	if *postID == 0 {
		fmt.Fprintln(os.Stderr, "Error: --post is required")
		fmt.Fprintln(os.Stderr, "Usage: inkwell delete --post <id>")
		os.Exit(1)
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := c.DeletePost(*postID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Deleted post %d\n", *postID)
}

func cmdVote(args []string) {
	fs := flag.NewFlagSet("vote", flag.ExitOnError)
	postID := fs.Int64("post", 0, "Post ID (required)")
	remove := fs.Bool("remove", false, "Take the vote back")
	fs.Parse(args)

	if *postID == 0 {
		fmt.Fprintln(os.Stderr, "Error: --post is required")
		os.Exit(1)
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *remove {
		err = c.Unvote(*postID)
	} else {
		err = c.Vote(*postID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	action := "Voted on"
	if *remove {
		action = "Removed vote from"
	}
	fmt.Printf("✓ %s post %d\n", action, *postID)
}

func cmdStatus(args []string) {
	cfg, err := loadCLIConfig()
	if err != nil {
		fmt.Println("Status: Not registered")
		fmt.Println("\nRun: inkwell register --email <email> --password <password>")
		return
	}

	fmt.Printf("Email:  %s\n", cfg.Email)
	fmt.Printf("Server: %s\n", cfg.BaseURL)

	if cfg.Token == "" {
		fmt.Println("Token:  Not logged in")
		fmt.Println("\nRun: inkwell login --password <password>")
		return
	}
	exp, _ := time.Parse(time.RFC3339, cfg.TokenExp)
	if time.Now().After(exp) {
		fmt.Println("Token:  Expired")
		fmt.Println("\nRun: inkwell login --password <password>")
	} else {
		fmt.Printf("Token:  Valid until %s\n", cfg.TokenExp)
	}
}

func cliConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".inkwell", "config.json")
}

func loadCLIConfig() (CLIConfig, error) {
	data, err := os.ReadFile(cliConfigPath())
	if err != nil {
		return CLIConfig{}, errors.New("not registered")
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, err
	}
	return cfg, nil
}

func saveCLIConfig(cfg CLIConfig) error {
	path := cliConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return os.WriteFile(path, data, 0600)
}

func loadAuthenticatedClient() (*client.Client, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errors.New("not logged in - run 'inkwell login'")
	}
	if cfg.TokenExp != "" {
		exp, _ := time.Parse(time.RFC3339, cfg.TokenExp)
		if time.Now().After(exp) {
			return nil, errors.New("token expired - run 'inkwell login'")
		}
	}

	c := client.New(cfg.BaseURL)
	c.Token = cfg.Token
	return c, nil
}
