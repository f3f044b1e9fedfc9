package store

import (
	"context"
	"errors"

	"github.com/inkwell-hq/inkwell/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicateVote  = errors.New("duplicate vote")
)

// PostUpdate carries the mutable fields of a post. All three are applied;
// the owner and creation time never change.
type PostUpdate struct {
	Title     string
	Content   string
	Published bool
}

type Store interface {
	UserStore
	PostStore
	VoteStore
	Close() error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, post *model.Post) (int64, error)
	GetPost(ctx context.Context, id int64) (model.Post, error)
	// GetPostWithVotes returns the post and the count of vote rows
	// referencing it, computed in one query.
	GetPostWithVotes(ctx context.Context, id int64) (model.PostWithVotes, error)
	ListPostsWithVotes(ctx context.Context) ([]model.PostWithVotes, error)
	// UpdatePost applies the update iff the row still exists, returning
	// ErrNotFound otherwise. The existence re-check and the write run in
	// one transaction so a concurrent delete cannot strand a half-write.
	UpdatePost(ctx context.Context, id int64, upd PostUpdate) (model.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

type VoteStore interface {
	// CreateVote inserts the (user, post) pair. The unique constraint on
	// the pair is the authoritative guard against concurrent duplicates;
	// a violation surfaces as ErrDuplicateVote.
	CreateVote(ctx context.Context, vote model.Vote) error
	// DeleteVote removes the pair, ErrNotFound if it was never cast.
	DeleteVote(ctx context.Context, vote model.Vote) error
	HasVote(ctx context.Context, vote model.Vote) (bool, error)
}
