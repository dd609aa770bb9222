package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-api/internal/domain"
)

// PostRepository define el contrato de persistencia para posts.
type PostRepository interface {
	Create(ctx context.Context, post domain.Post) error
	GetByID(ctx context.Context, id string) (domain.Post, error)
	List(ctx context.Context) ([]domain.Post, error)
	Update(ctx context.Context, post domain.Post) error
	Delete(ctx context.Context, id string) error
}

type PgPostRepository struct {
	pool *pgxpool.Pool
}

func NewPgPostRepository(pool *pgxpool.Pool) *PgPostRepository {
	return &PgPostRepository{pool: pool}
}

const postSelect = `
	SELECT p.id, p.author_id, p.content,
	       COALESCE(array_agg(m.user_id::text) FILTER (WHERE m.user_id IS NOT NULL), '{}'),
	       p.created_at, p.updated_at
	FROM posts p
	LEFT JOIN post_mentions m ON m.post_id = p.id
`

func (r *PgPostRepository) Create(ctx context.Context, post domain.Post) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO posts (id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, query, post.ID, post.AuthorID, post.Content, post.CreatedAt, post.UpdatedAt); err != nil {
		return err
	}
	if err := insertPostMentions(ctx, tx, post.ID, post.Mentions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgPostRepository) GetByID(ctx context.Context, id string) (domain.Post, error) {
	const query = postSelect + ` WHERE p.id = $1 GROUP BY p.id`
	p, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, err
	}
	return p, err
}

func (r *PgPostRepository) List(ctx context.Context) ([]domain.Post, error) {
	const query = postSelect + ` GROUP BY p.id ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *PgPostRepository) Update(ctx context.Context, post domain.Post) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const query = `UPDATE posts SET content = $2, updated_at = $3 WHERE id = $1`
	tag, err := tx.Exec(ctx, query, post.ID, post.Content, post.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if _, err := tx.Exec(ctx, `DELETE FROM post_mentions WHERE post_id = $1`, post.ID); err != nil {
		return err
	}
	if err := insertPostMentions(ctx, tx, post.ID, post.Mentions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgPostRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanPost(row pgx.Row) (domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Content, &p.Mentions, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func insertPostMentions(ctx context.Context, tx pgx.Tx, postID string, mentions []string) error {
	for _, userID := range mentions {
		const query = `INSERT INTO post_mentions (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, query, postID, userID); err != nil {
			return err
		}
	}
	return nil
}
