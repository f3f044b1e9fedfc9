package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/inkwell-hq/inkwell/internal/client"
)

var users = []struct {
	email    string
	password string
}{
	{"ada@example.com", "seed-pass-1"},
	{"grace@example.com", "seed-pass-2"},
	{"edsger@example.com", "seed-pass-3"},
	{"donald@example.com", "seed-pass-4"},
	{"barbara@example.com", "seed-pass-5"},
}

var posts = []struct {
	title   string
	content string
	draft   bool
}{
	{"Welcome to Inkwell", "A small blog backend with posts and votes. This is the first post.", false},
	{"On Writing Short Programs", "The best programs are the ones you can hold in your head all at once.", false},
	{"Notes from a Code Review", "Three things I look for: naming, error paths, and tests that tell a story.", false},
	{"Why Vote Counts Belong in Queries", "Storing derived counts invites drift. Counting at read time keeps one source of truth.", false},
	{"Draft: Unfinished Thoughts", "This one is not published yet.", true},
	{"SQLite in Production", "It is more capable than its reputation suggests, especially for small services.", false},
	{"The Case for Boring Technology", "Every novel dependency is a debt you service forever.", false},
	{"Migrations as Append-Only History", "Never edit an applied migration. Add a new one.", false},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Inkwell server URL")
	flag.Parse()

	log.Printf("Seeding database at %s...", *baseURL)

	var clients []*client.Client
	for _, u := range users {
		c := client.New(*baseURL)
		if _, err := c.Register(u.email, u.password); err != nil {
			log.Fatalf("register %s: %v", u.email, err)
		}
		if _, err := c.Login(u.email, u.password); err != nil {
			log.Fatalf("login %s: %v", u.email, err)
		}
		log.Printf("✓ Registered user: %s", u.email)
		clients = append(clients, c)
	}

	// Posts from random users.
	type owned struct {
		id    int64
		owner int
	}
	var created []owned
	for _, p := range posts {
		idx := rand.Intn(len(clients))
		post, err := clients[idx].CreatePost(p.title, p.content, !p.draft)
		if err != nil {
			log.Printf("✗ Failed to post: %v", err)
			continue
		}
		created = append(created, owned{id: post.ID, owner: idx})
		log.Printf("✓ Posted #%d: %s (by %s)", post.ID, p.title, users[idx].email)
	}

	// Each user votes on some posts they don't own.
	voteCount := 0
	for idx, c := range clients {
		for _, p := range created {
			if p.owner == idx || rand.Float32() < 0.4 {
				continue
			}
			if err := c.Vote(p.id); err != nil {
				continue
			}
			voteCount++
		}
	}
	log.Printf("✓ Added %d votes", voteCount)

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Users: %d\n", len(users))
	fmt.Printf("Posts: %d\n", len(created))
	fmt.Println("\nAPI at:", *baseURL)
}
