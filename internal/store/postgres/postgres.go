// Package postgres is the Postgres-backed store, selected when a database
// DSN is configured. Schema is managed by goose using the embedded
// migrations directory.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/inkwell-hq/inkwell/internal/model"
	"github.com/inkwell-hq/inkwell/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const pgUniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO users (email, password_hash, created_at)
VALUES ($1, $2, $3)
RETURNING id
`, user.Email, user.PasswordHash, user.CreatedAt).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateEmail
		}
		return 0, err
	}
	return id, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at FROM users WHERE id = $1
`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at FROM users WHERE email = $1
`, email)
	return scanUser(row)
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO posts (title, content, published, owner_id, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, post.Title, post.Content, post.Published, post.OwnerID, post.CreatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, content, published, owner_id, created_at FROM posts WHERE id = $1
`, id)
	return scanPost(row)
}

func (s *Store) GetPostWithVotes(ctx context.Context, id int64) (model.PostWithVotes, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT p.id, p.title, p.content, p.published, p.owner_id, p.created_at, COUNT(v.post_id)
FROM posts p
LEFT JOIN votes v ON v.post_id = p.id
WHERE p.id = $1
GROUP BY p.id
`, id)
	var pv model.PostWithVotes
	err := row.Scan(&pv.Post.ID, &pv.Post.Title, &pv.Post.Content, &pv.Post.Published, &pv.Post.OwnerID, &pv.Post.CreatedAt, &pv.Votes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PostWithVotes{}, store.ErrNotFound
		}
		return model.PostWithVotes{}, err
	}
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
		if err := rows.Scan(&pv.Post.ID, &pv.Post.Title, &pv.Post.Content, &pv.Post.Published, &pv.Post.OwnerID, &pv.Post.CreatedAt, &pv.Votes); err != nil {
			return nil, err
		}
		posts = append(posts, pv)
	}
	return posts, rows.Err()
}

func (s *Store) UpdatePost(ctx context.Context, id int64, upd store.PostUpdate) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `
UPDATE posts SET title = $1, content = $2, published = $3
WHERE id = $4
RETURNING id, title, content, published, owner_id, created_at
`, upd.Title, upd.Content, upd.Published, id)
	post, err := scanPost(row)
	if err != nil {
		return model.Post{}, err
	}
	return post, nil
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
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
VALUES ($1, $2, $3)
`, vote.UserID, vote.PostID, time.Now())
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
DELETE FROM votes WHERE user_id = $1 AND post_id = $2
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
SELECT 1 FROM votes WHERE user_id = $1 AND post_id = $2
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
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

func scanPost(row *sql.Row) (model.Post, error) {
	var p model.Post
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Published, &p.OwnerID, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
