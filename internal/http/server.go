package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/inkwell-hq/inkwell/internal/config"
	"github.com/inkwell-hq/inkwell/internal/model"
	"github.com/inkwell-hq/inkwell/internal/rate"
	"github.com/inkwell-hq/inkwell/internal/service"

	_ "github.com/inkwell-hq/inkwell/docs" // swagger docs

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

type Server struct {
	svc     *service.Service
	limiter rate.Limiter
	cfg     config.Config
}

func NewServer(svc *service.Service, limiter rate.Limiter, cfg config.Config) *Server {
	return &Server{svc: svc, limiter: limiter, cfg: cfg}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/swagger/") {
		httpSwagger.WrapHandler.ServeHTTP(w, r)
		return
	}

	segments := splitPath(r.URL.Path)

	switch {
	case len(segments) == 1 && segments[0] == "users":
		if r.Method == http.MethodPost {
			s.handleCreateUser(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "users":
		if r.Method == http.MethodGet {
			s.handleGetUser(w, r, segments[1])
			return
		}
	case len(segments) == 1 && segments[0] == "login":
		if r.Method == http.MethodPost {
			s.handleLogin(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "posts":
		if r.Method == http.MethodGet {
			s.handleListPosts(w, r)
			return
		}
		if r.Method == http.MethodPost {
			s.handleCreatePost(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "posts":
		if r.Method == http.MethodGet {
			s.handleGetPost(w, r, segments[1])
			return
		}
		if r.Method == http.MethodPut {
			s.handleUpdatePost(w, r, segments[1])
			return
		}
		if r.Method == http.MethodDelete {
			s.handleDeletePost(w, r, segments[1])
			return
		}
	case len(segments) == 1 && segments[0] == "vote":
		if r.Method == http.MethodPost {
			s.handleVote(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "healthz":
		if r.Method == http.MethodGet {
			s.handleHealthz(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "openapi.json":
		if r.Method == http.MethodGet {
			s.serveOpenAPIJSON(w, r)
			return
		}
	}

	notFound(w)
}

// handleCreateUser godoc
//
//	@Summary		Register a user
//	@Description	Create a new user account with an email and password
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			user	body		object{email=string,password=string}	true	"Credentials"
//	@Success		201		{object}	model.User
//	@Failure		400		{object}	map[string]string	"Invalid input or email taken"
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/users [post]
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "register", s.cfg.RateLimits.RegisterPerMinute) {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeValidation(w, err)
		return
	}
	user, err := s.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser godoc
//
//	@Summary		Get a user
//	@Description	Get a user's public profile by ID
//	@Tags			Users
//	@Produce		json
//	@Param			id	path		int	true	"User ID"
//	@Success		200	{object}	model.User
//	@Failure		404	{object}	map[string]string	"User not found"
//	@Router			/users/{id} [get]
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeValidation(w, errors.New("invalid user id"))
		return
	}
	user, err := s.svc.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchange an email and password for a bearer token. Form-encoded with the email in the username field.
//	@Tags			Users
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			username	formData	string	true	"Email"
//	@Param			password	formData	string	true	"Password"
//	@Success		200			{object}	map[string]string	"Access token"
//	@Failure		401			{object}	map[string]string	"Wrong password"
//	@Failure		404			{object}	map[string]string	"Unknown email"
//	@Failure		429			{object}	map[string]string	"Rate limited"
//	@Router			/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "login", s.cfg.RateLimits.LoginPerMinute) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeValidation(w, err)
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeValidation(w, errors.New("username and password required"))
		return
	}
	token, err := s.svc.Login(r.Context(), email, password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// handleListPosts godoc
//
//	@Summary		List posts
//	@Description	Get all posts with their vote counts, newest first. Requires authentication.
//	@Tags			Posts
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		model.PostWithVotes
//	@Failure		401	{object}	map[string]string	"Authentication required"
//	@Router			/posts [get]
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	posts, err := s.svc.ListPosts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if posts == nil {
		posts = []model.PostWithVotes{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// handleGetPost godoc
//
//	@Summary		Get a post
//	@Description	Get a single post with its vote count. Requires authentication.
//	@Tags			Posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Post ID"
//	@Success		200	{object}	model.PostWithVotes
//	@Failure		401	{object}	map[string]string	"Authentication required"
//	@Failure		404	{object}	map[string]string	"Post not found"
//	@Router			/posts/{id} [get]
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request, idStr string) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeValidation(w, errors.New("invalid post id"))
		return
	}
	post, err := s.svc.GetPost(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handleCreatePost godoc
//
//	@Summary		Create a post
//	@Description	Create a new post owned by the authenticated user. Requires authentication.
//	@Tags			Posts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			post	body		object{title=string,content=string,published=bool}	true	"Post data"
//	@Success		201		{object}	model.Post
//	@Failure		400		{object}	map[string]string	"Validation error"
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/posts [post]
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "write", s.cfg.RateLimits.WritePerMinute) {
		return
	}
	userID, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var req service.PostInput
	if err := readJSON(r.Body, &req); err != nil {
		writeValidation(w, err)
		return
	}
	post, err := s.svc.CreatePost(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// handleUpdatePost godoc
//
//	@Summary		Update a post
//	@Description	Replace a post's title, content, and published flag. Only the owner may update.
//	@Tags			Posts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int													true	"Post ID"
//	@Param			post	body		object{title=string,content=string,published=bool}	true	"New post data"
//	@Success		200		{object}	model.Post
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		403		{object}	map[string]string	"Not the owner"
//	@Failure		404		{object}	map[string]string	"Post not found"
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/posts/{id} [put]
func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request, idStr string) {
	if !s.allowRateLimit(w, r, "write", s.cfg.RateLimits.WritePerMinute) {
		return
	}
	userID, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeValidation(w, errors.New("invalid post id"))
		return
	}
	var req service.PostInput
	if err := readJSON(r.Body, &req); err != nil {
		writeValidation(w, err)
		return
	}
	post, err := s.svc.UpdatePost(r.Context(), userID, id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handleDeletePost godoc
//
//	@Summary		Delete a post
//	@Description	Delete a post and its votes. Only the owner may delete.
//	@Tags			Posts
//	@Security		BearerAuth
//	@Param			id	path	int	true	"Post ID"
//	@Success		204	"Deleted"
//	@Failure		401	{object}	map[string]string	"Authentication required"
//	@Failure		403	{object}	map[string]string	"Not the owner"
//	@Failure		404	{object}	map[string]string	"Post not found"
//	@Failure		429	{object}	map[string]string	"Rate limited"
//	@Router			/posts/{id} [delete]
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, idStr string) {
	if !s.allowRateLimit(w, r, "write", s.cfg.RateLimits.WritePerMinute) {
		return
	}
	userID, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeValidation(w, errors.New("invalid post id"))
		return
	}
	if err := s.svc.DeletePost(r.Context(), userID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVote godoc
//
//	@Summary		Vote on a post
//	@Description	Add (dir=1) or remove (dir=0) the caller's vote on a post. Voting on your own post is forbidden.
//	@Tags			Votes
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			vote	body		object{post_id=int,dir=int}	true	"Vote direction (dir: 0 or 1)"
//	@Success		201		{object}	map[string]string	"Vote recorded"
//	@Failure		400		{object}	map[string]string	"Invalid direction"
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		403		{object}	map[string]string	"Own post"
//	@Failure		404		{object}	map[string]string	"Post or vote not found"
//	@Failure		409		{object}	map[string]string	"Already voted"
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/vote [post]
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "write", s.cfg.RateLimits.WritePerMinute) {
		return
	}
	userID, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var req struct {
		PostID int64         `json:"post_id"`
		Dir    model.VoteDir `json:"dir"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeValidation(w, err)
		return
	}
	if req.PostID == 0 {
		writeValidation(w, errors.New("post_id required"))
		return
	}
	if err := s.svc.CastVote(r.Context(), userID, req.PostID, req.Dir); err != nil {
		writeServiceError(w, err)
		return
	}
	msg := "successfully added vote"
	if req.Dir == model.VoteRemove {
		msg = "successfully deleted vote"
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": msg})
}

// handleHealthz godoc
//
//	@Summary	Health check
//	@Tags		Meta
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write([]byte(doc))
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (int64, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeError(w, http.StatusUnauthorized, kindUnauthenticated, errors.New("missing bearer token"))
		return 0, false
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	userID, err := s.svc.Authenticate(r.Context(), bearer)
	if err != nil {
		writeServiceError(w, err)
		return 0, false
	}
	return userID, true
}

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) bool {
	if limit <= 0 {
		return true
	}
	key := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(key, limit, time.Minute); !ok {
		writeRateLimit(w, retry)
		return false
	}
	return true
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

const (
	kindUnauthenticated = "unauthenticated"
	kindBadCredentials  = "bad_credentials"
	kindNotFound        = "not_found"
	kindForbidden       = "forbidden"
	kindConflict        = "conflict"
	kindValidation      = "validation"
	kindInternal        = "internal"
)

// writeServiceError translates service sentinels into status codes. The
// missing-or-forbidden checks in the service already order not-found before
// forbidden, so the mapping here is flat.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, kindUnauthenticated, err)
	case errors.Is(err, service.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, kindBadCredentials, err)
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrVoteNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, err)
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrSelfVote):
		writeError(w, http.StatusForbidden, kindForbidden, err)
	case errors.Is(err, service.ErrAlreadyVoted):
		writeError(w, http.StatusConflict, kindConflict, err)
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, kindConflict, err)
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrTitleRequired),
		errors.Is(err, service.ErrContentRequired),
		errors.Is(err, service.ErrInvalidVoteDir):
		writeValidation(w, err)
	default:
		writeError(w, http.StatusInternalServerError, kindInternal, err)
	}
}

func writeValidation(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, kindValidation, err)
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error(), "kind": kind})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"kind":        "rate_limited",
		"retry_after": int(retry.Seconds()),
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, kindNotFound, errors.New("not found"))
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
