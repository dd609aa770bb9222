package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/repository"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotAuthor       = errors.New("not the author")
)

// PostService maneja posts y comentarios con menciones a usuarios.
type PostService struct {
	logger   *zap.Logger
	posts    repository.PostRepository
	comments repository.CommentRepository
	users    repository.UserRepository
}

func NewPostService(logger *zap.Logger, posts repository.PostRepository, comments repository.CommentRepository, users repository.UserRepository) *PostService {
	return &PostService{
		logger:   logger,
		posts:    posts,
		comments: comments,
		users:    users,
	}
}

func (s *PostService) CreatePost(ctx context.Context, author domain.User, content string, mentions []string) (domain.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Post{}, &ValidationError{Field: "content", Message: "content required"}
	}
	resolved, err := s.resolveMentions(ctx, mentions)
	if err != nil {
		return domain.Post{}, err
	}

	now := time.Now().UTC()
	post := domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  author.ID,
		Content:   content,
		Mentions:  resolved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (domain.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Post{}, ErrPostNotFound
		}
		return domain.Post{}, err
	}
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context) ([]domain.Post, error) {
	return s.posts.List(ctx)
}

func (s *PostService) UpdatePost(ctx context.Context, actor domain.User, id, content string, mentions []string) (domain.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	if post.AuthorID != actor.ID {
		return domain.Post{}, ErrNotAuthor
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Post{}, &ValidationError{Field: "content", Message: "content required"}
	}
	resolved, err := s.resolveMentions(ctx, mentions)
	if err != nil {
		return domain.Post{}, err
	}

	post.Content = content
	post.Mentions = resolved
	post.UpdatedAt = time.Now().UTC()
	if err := s.posts.Update(ctx, post); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Post{}, ErrPostNotFound
		}
		return domain.Post{}, err
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, actor domain.User, id string) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.ID {
		return ErrNotAuthor
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

func (s *PostService) CreateComment(ctx context.Context, author domain.User, postID, content string, mentions []string) (domain.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return domain.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Comment{}, &ValidationError{Field: "content", Message: "content required"}
	}
	resolved, err := s.resolveMentions(ctx, mentions)
	if err != nil {
		return domain.Comment{}, err
	}

	now := time.Now().UTC()
	comment := domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  author.ID,
		Content:   content,
		Mentions:  resolved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

func (s *PostService) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListByPost(ctx, postID)
}

func (s *PostService) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Comment{}, ErrCommentNotFound
		}
		return domain.Comment{}, err
	}
	return comment, nil
}

func (s *PostService) UpdateComment(ctx context.Context, actor domain.User, id, content string, mentions []string) (domain.Comment, error) {
	comment, err := s.GetComment(ctx, id)
	if err != nil {
		return domain.Comment{}, err
	}
	if comment.AuthorID != actor.ID {
		return domain.Comment{}, ErrNotAuthor
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Comment{}, &ValidationError{Field: "content", Message: "content required"}
	}
	resolved, err := s.resolveMentions(ctx, mentions)
	if err != nil {
		return domain.Comment{}, err
	}

	comment.Content = content
	comment.Mentions = resolved
	comment.UpdatedAt = time.Now().UTC()
	if err := s.comments.Update(ctx, comment); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Comment{}, ErrCommentNotFound
		}
		return domain.Comment{}, err
	}
	return comment, nil
}

func (s *PostService) DeleteComment(ctx context.Context, actor domain.User, id string) error {
	comment, err := s.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if comment.AuthorID != actor.ID {
		return ErrNotAuthor
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCommentNotFound
		}
		return err
	}
	return nil
}

// resolveMentions verifica que cada id mencionado exista y elimina
// duplicados. Cualquier id desconocido invalida la petición completa.
func (s *PostService) resolveMentions(ctx context.Context, mentions []string) ([]string, error) {
	if len(mentions) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(mentions))
	resolved := make([]string, 0, len(mentions))
	for _, id := range mentions {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &ValidationError{Field: "mentions", Message: "mentioned user not found"}
			}
			return nil, err
		}
		seen[id] = true
		resolved = append(resolved, id)
	}
	return resolved, nil
}
