package service

import "errors"

// Domain error taxonomy. The HTTP layer maps each to a status code and a
// machine-checkable kind; nothing below ever reaches a caller raw.
var (
	ErrUnauthenticated = errors.New("could not validate credentials")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("not allowed to perform requested action")
	ErrEmailTaken      = errors.New("email is already registered")
	ErrUserNotFound    = errors.New("user not found")
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrSelfVote        = errors.New("voting on your own post is not allowed")
	ErrAlreadyVoted    = errors.New("already voted on this post")
	ErrVoteNotFound    = errors.New("vote does not exist")

	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordRequired = errors.New("password is required")
	ErrTitleRequired    = errors.New("title is required")
	ErrContentRequired  = errors.New("content is required")
	ErrInvalidVoteDir   = errors.New("dir must be 0 or 1")
)
