package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Published bool      `json:"published"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostWithVotes pairs a post with its vote count. The count is aggregated
// at read time from the votes table, never stored on the post row.
type PostWithVotes struct {
	Post  Post  `json:"post"`
	Votes int64 `json:"votes"`
}

// Vote is a (user, post) pair; the pair itself is the identity.
type Vote struct {
	UserID int64 `json:"user_id"`
	PostID int64 `json:"post_id"`
}

// VoteDir is the two-valued direction of a vote request.
type VoteDir int

const (
	VoteRemove VoteDir = 0
	VoteAdd    VoteDir = 1
)

func (d VoteDir) Valid() bool {
	return d == VoteRemove || d == VoteAdd
}
