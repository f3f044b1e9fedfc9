package auth

import (
	"errors"

	"github.com/inkwell-hq/inkwell/internal/model"
)

var (
	ErrSelfVote     = errors.New("voting on your own post is not allowed")
	ErrAlreadyVoted = errors.New("already voted on this post")
	ErrVoteNotFound = errors.New("vote does not exist")
)

// CanModifyPost reports whether the actor may update or delete a post.
// Only the owner may; ownership never changes after creation.
func CanModifyPost(actorID, ownerID int64) bool {
	return actorID == ownerID
}

// CheckVote decides whether a vote request is permitted given the post's
// owner and whether the (actor, post) vote already exists. Removing a vote
// that was never cast is an error, not a no-op.
func CheckVote(actorID, ownerID int64, dir model.VoteDir, exists bool) error {
	if actorID == ownerID {
		return ErrSelfVote
	}
	switch dir {
	case model.VoteAdd:
		if exists {
			return ErrAlreadyVoted
		}
	case model.VoteRemove:
		if !exists {
			return ErrVoteNotFound
		}
	}
	return nil
}
