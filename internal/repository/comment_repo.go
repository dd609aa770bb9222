package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-api/internal/domain"
)

// CommentRepository define el contrato de persistencia para comentarios.
type CommentRepository interface {
	Create(ctx context.Context, comment domain.Comment) error
	GetByID(ctx context.Context, id string) (domain.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]domain.Comment, error)
	Update(ctx context.Context, comment domain.Comment) error
	Delete(ctx context.Context, id string) error
}

type PgCommentRepository struct {
	pool *pgxpool.Pool
}

func NewPgCommentRepository(pool *pgxpool.Pool) *PgCommentRepository {
	return &PgCommentRepository{pool: pool}
}

const commentSelect = `
	SELECT c.id, c.post_id, c.author_id, c.content,
	       COALESCE(array_agg(m.user_id::text) FILTER (WHERE m.user_id IS NOT NULL), '{}'),
	       c.created_at, c.updated_at
	FROM comments c
	LEFT JOIN comment_mentions m ON m.comment_id = c.id
`

func (r *PgCommentRepository) Create(ctx context.Context, comment domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO comments (id, post_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, query,
		comment.ID,
		comment.PostID,
		comment.AuthorID,
		comment.Content,
		comment.CreatedAt,
		comment.UpdatedAt,
	); err != nil {
		return err
	}
	if err := insertCommentMentions(ctx, tx, comment.ID, comment.Mentions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgCommentRepository) GetByID(ctx context.Context, id string) (domain.Comment, error) {
	const query = commentSelect + ` WHERE c.id = $1 GROUP BY c.id`
	c, err := scanComment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, err
	}
	return c, err
}

func (r *PgCommentRepository) ListByPost(ctx context.Context, postID string) ([]domain.Comment, error) {
	const query = commentSelect + ` WHERE c.post_id = $1 GROUP BY c.id ORDER BY c.created_at DESC`
	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *PgCommentRepository) Update(ctx context.Context, comment domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const query = `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`
	tag, err := tx.Exec(ctx, query, comment.ID, comment.Content, comment.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if _, err := tx.Exec(ctx, `DELETE FROM comment_mentions WHERE comment_id = $1`, comment.ID); err != nil {
		return err
	}
	if err := insertCommentMentions(ctx, tx, comment.ID, comment.Mentions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgCommentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.Mentions, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func insertCommentMentions(ctx context.Context, tx pgx.Tx, commentID string, mentions []string) error {
	for _, userID := range mentions {
		const query = `INSERT INTO comment_mentions (comment_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, query, commentID, userID); err != nil {
			return err
		}
	}
	return nil
}
