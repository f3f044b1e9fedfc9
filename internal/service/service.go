// Package service composes the stores, the password hasher, and the token
// service into the request-level operations of the API. All domain outcomes
// are reported as the sentinel errors in errors.go; nothing storage-level
// escapes unmapped.
package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/inkwell-hq/inkwell/internal/auth"
	"github.com/inkwell-hq/inkwell/internal/model"
	"github.com/inkwell-hq/inkwell/internal/store"
)

type Service struct {
	store  store.Store
	tokens *auth.TokenService
}

func New(st store.Store, tokens *auth.TokenService) *Service {
	return &Service{store: st, tokens: tokens}
}

// PostInput carries the caller-supplied fields of a post. Published
// defaults to true when the caller omits it.
type PostInput struct {
	Title     string
	Content   string
	Published *bool
}

func (in PostInput) published() bool {
	if in.Published == nil {
		return true
	}
	return *in.Published
}

func (in PostInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(in.Content) == "" {
		return ErrContentRequired
	}
	return nil
}

func (s *Service) Register(ctx context.Context, email, password string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return model.User{}, ErrInvalidEmail
	}
	if password == "" {
		return model.User{}, ErrPasswordRequired
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	user := model.User{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	id, err := s.store.CreateUser(ctx, &user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, err
	}
	user.ID = id
	return user, nil
}

// Login exchanges credentials for a bearer token. An unknown email and a
// wrong password are distinct outcomes, matching the original API contract.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return "", ErrBadCredentials
	}
	return s.tokens.Issue(user.ID)
}

// Authenticate resolves a bearer string to a user id. Every verification
// failure collapses to ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, bearer string) (int64, error) {
	userID, err := s.tokens.Verify(bearer)
	if err != nil {
		return 0, ErrUnauthenticated
	}
	return userID, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (model.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (s *Service) ListPosts(ctx context.Context) ([]model.PostWithVotes, error) {
	return s.store.ListPostsWithVotes(ctx)
}

func (s *Service) GetPost(ctx context.Context, id int64) (model.PostWithVotes, error) {
	pv, err := s.store.GetPostWithVotes(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.PostWithVotes{}, ErrNotFound
		}
		return model.PostWithVotes{}, err
	}
	return pv, nil
}

func (s *Service) CreatePost(ctx context.Context, ownerID int64, in PostInput) (model.Post, error) {
	if err := in.validate(); err != nil {
		return model.Post{}, err
	}
	post := model.Post{
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Published: in.published(),
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
	id, err := s.store.CreatePost(ctx, &post)
	if err != nil {
		return model.Post{}, err
	}
	post.ID = id
	return post, nil
}

// UpdatePost checks existence before ownership: an unknown id is NotFound
// for every caller, an existing post someone else owns is Forbidden.
func (s *Service) UpdatePost(ctx context.Context, actorID, id int64, in PostInput) (model.Post, error) {
	if err := in.validate(); err != nil {
		return model.Post{}, err
	}
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Post{}, ErrNotFound
		}
		return model.Post{}, err
	}
	if !auth.CanModifyPost(actorID, post.OwnerID) {
		return model.Post{}, ErrForbidden
	}

	updated, err := s.store.UpdatePost(ctx, id, store.PostUpdate{
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Published: in.published(),
	})
	if err != nil {
		// Deleted between the ownership check and the write.
		if errors.Is(err, store.ErrNotFound) {
			return model.Post{}, ErrNotFound
		}
		return model.Post{}, err
	}
	return updated, nil
}

func (s *Service) DeletePost(ctx context.Context, actorID, id int64) error {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !auth.CanModifyPost(actorID, post.OwnerID) {
		return ErrForbidden
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// CastVote applies one vote operation. The authorization decision runs on
// fetched state, but the storage constraint stays authoritative: a
// concurrent duplicate insert still comes back as ErrAlreadyVoted.
func (s *Service) CastVote(ctx context.Context, actorID, postID int64, dir model.VoteDir) error {
	if !dir.Valid() {
		return ErrInvalidVoteDir
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	vote := model.Vote{UserID: actorID, PostID: postID}
	exists, err := s.store.HasVote(ctx, vote)
	if err != nil {
		return err
	}
	if err := auth.CheckVote(actorID, post.OwnerID, dir, exists); err != nil {
		switch {
		case errors.Is(err, auth.ErrSelfVote):
			return ErrSelfVote
		case errors.Is(err, auth.ErrAlreadyVoted):
			return ErrAlreadyVoted
		case errors.Is(err, auth.ErrVoteNotFound):
			return ErrVoteNotFound
		}
		return err
	}

	switch dir {
	case model.VoteAdd:
		if err := s.store.CreateVote(ctx, vote); err != nil {
			if errors.Is(err, store.ErrDuplicateVote) {
				return ErrAlreadyVoted
			}
			return err
		}
	case model.VoteRemove:
		if err := s.store.DeleteVote(ctx, vote); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrVoteNotFound
			}
			return err
		}
	}
	return nil
}
