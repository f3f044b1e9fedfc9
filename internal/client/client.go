// Package client provides a Go client for the Inkwell API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inkwell-hq/inkwell/internal/model"
)

// Client is an Inkwell API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

// New creates a new Inkwell client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Register creates a new user account.
func (c *Client) Register(email, password string) (model.User, error) {
	var user model.User
	err := c.doJSON(http.MethodPost, "/users", map[string]string{
		"email":    email,
		"password": password,
	}, &user)
	return user, err
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(email, password string) (string, error) {
	form := url.Values{"username": {email}, "password": {password}}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.send(req, &result); err != nil {
		return "", err
	}
	c.Token = result.AccessToken
	return result.AccessToken, nil
}

// GetUser fetches a user's public profile.
func (c *Client) GetUser(id int64) (model.User, error) {
	var user model.User
	err := c.doJSON(http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &user)
	return user, err
}

// ListPosts fetches all posts with vote counts.
func (c *Client) ListPosts() ([]model.PostWithVotes, error) {
	var posts []model.PostWithVotes
	err := c.doJSON(http.MethodGet, "/posts", nil, &posts)
	return posts, err
}

// GetPost fetches one post with its vote count.
func (c *Client) GetPost(id int64) (model.PostWithVotes, error) {
	var post model.PostWithVotes
	err := c.doJSON(http.MethodGet, fmt.Sprintf("/posts/%d", id), nil, &post)
	return post, err
}

// CreatePost creates a post owned by the authenticated user.
func (c *Client) CreatePost(title, content string, published bool) (model.Post, error) {
	var post model.Post
	err := c.doJSON(http.MethodPost, "/posts", map[string]any{
		"title":     title,
		"content":   content,
		"published": published,
	}, &post)
	return post, err
}

// UpdatePost replaces a post's content. Only the owner may update.
func (c *Client) UpdatePost(id int64, title, content string, published bool) (model.Post, error) {
	var post model.Post
	err := c.doJSON(http.MethodPut, fmt.Sprintf("/posts/%d", id), map[string]any{
		"title":     title,
		"content":   content,
		"published": published,
	}, &post)
	return post, err
}

// DeletePost deletes a post. Only the owner may delete.
func (c *Client) DeletePost(id int64) error {
	return c.doJSON(http.MethodDelete, fmt.Sprintf("/posts/%d", id), nil, nil)
}

// Vote adds the caller's vote on a post.
func (c *Client) Vote(postID int64) error {
	return c.doJSON(http.MethodPost, "/vote", map[string]any{
		"post_id": postID,
		"dir":     model.VoteAdd,
	}, nil)
}

// Unvote removes the caller's vote on a post.
func (c *Client) Unvote(postID int64) error {
	return c.doJSON(http.MethodPost, "/vote", map[string]any{
		"post_id": postID,
		"dir":     model.VoteRemove,
	}, nil)
}

func (c *Client) doJSON(method, path string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, dest)
}

func (c *Client) send(req *http.Request, dest any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if dest == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
