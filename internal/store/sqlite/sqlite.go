package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inkwell-hq/inkwell/internal/model"
	"github.com/inkwell-hq/inkwell/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: Initial schema
	`
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	published INTEGER NOT NULL DEFAULT 1,
	owner_id INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(owner_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_posts_owner_id ON posts(owner_id);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);

CREATE TABLE IF NOT EXISTS votes (
	user_id INTEGER NOT NULL,
	post_id INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY(user_id, post_id),
	FOREIGN KEY(user_id) REFERENCES users(id),
	FOREIGN KEY(post_id) REFERENCES posts(id) ON DELETE CASCADE
);
`,
	// Future migrations go here:
	// Migration 2: `ALTER TABLE ...`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (email, password_hash, created_at)
VALUES (?, ?, ?)
`, user.Email, user.PasswordHash, user.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateEmail
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at
FROM users
WHERE id = ?
`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at
FROM users
WHERE email = ?
`, email)
	return scanUser(row)
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO posts (title, content, published, owner_id, created_at)
VALUES (?, ?, ?, ?, ?)
`, post.Title, post.Content, boolToInt(post.Published), post.OwnerID, post.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetPost(ctx context.Context, id int64) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, content, published, owner_id, created_at
FROM posts
WHERE id = ?
`, id)
	return scanPost(row)
}

func (s *Store) GetPostWithVotes(ctx context.Context, id int64) (model.PostWithVotes, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT p.id, p.title, p.content, p.published, p.owner_id, p.created_at, COUNT(v.post_id)
FROM posts p
LEFT JOIN votes v ON v.post_id = p.id
WHERE p.id = ?
GROUP BY p.id
`, id)
	var pv model.PostWithVotes
	var published int
	var created int64
	err := row.Scan(&pv.Post.ID, &pv.Post.Title, &pv.Post.Content, &published, &pv.Post.OwnerID, &created, &pv.Votes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PostWithVotes{}, store.ErrNotFound
		}
		return model.PostWithVotes{}, err
	}
	pv.Post.Published = published == 1
	pv.Post.CreatedAt = time.Unix(created, 0)
	return pv, nil
}

func (s *Store) ListPostsWithVotes(ctx context.Context) ([]model.PostWithVotes, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.title, p.content, p.published, p.owner_id, p.created_at, COUNT(v.post_id)
FROM posts p
LEFT JOIN votes v ON v.post_id = p.id
GROUP BY p.id
ORDER BY p.created_at DESC, p.id DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []model.PostWithVotes
	for rows.Next() {
		var pv model.PostWithVotes
		var published int
		var created int64
		if err := rows.Scan(&pv.Post.ID, &pv.Post.Title, &pv.Post.Content, &published, &pv.Post.OwnerID, &created, &pv.Votes); err != nil {
			return nil, err
		}
		pv.Post.Published = published == 1
		pv.Post.CreatedAt = time.Unix(created, 0)
		posts = append(posts, pv)
	}
	return posts, rows.Err()
}

func (s *Store) UpdatePost(ctx context.Context, id int64, upd store.PostUpdate) (model.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Post{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE posts SET title = ?, content = ?, published = ? WHERE id = ?
`, upd.Title, upd.Content, boolToInt(upd.Published), id)
	if err != nil {
		return model.Post{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		err = store.ErrNotFound
		return model.Post{}, err
	}

	row := tx.QueryRowContext(ctx, `
SELECT id, title, content, published, owner_id, created_at
FROM posts
WHERE id = ?
`, id)
	post, err := scanPost(row)
	if err != nil {
		return model.Post{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Post{}, err
	}
	return post, nil
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateVote(ctx context.Context, vote model.Vote) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO votes (user_id, post_id, created_at)
VALUES (?, ?, ?)
`, vote.UserID, vote.PostID, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateVote
		}
		return err
	}
	return nil
}

func (s *Store) DeleteVote(ctx context.Context, vote model.Vote) error {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM votes WHERE user_id = ? AND post_id = ?
`, vote.UserID, vote.PostID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) HasVote(ctx context.Context, vote model.Vote) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1 FROM votes WHERE user_id = ? AND post_id = ?
`, vote.UserID, vote.PostID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	u.CreatedAt = time.Unix(created, 0)
	return u, nil
}

func scanPost(row *sql.Row) (model.Post, error) {
	var p model.Post
	var published int
	var created int64
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &published, &p.OwnerID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	p.Published = published == 1
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
