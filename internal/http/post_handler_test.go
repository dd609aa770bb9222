package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/service"
)

type mockPostRepo struct {
	posts map[string]domain.Post
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[string]domain.Post)}
}

func (m *mockPostRepo) Create(_ context.Context, post domain.Post) error {
	m.posts[post.ID] = post
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id string) (domain.Post, error) {
	post, ok := m.posts[id]
	if !ok {
		return domain.Post{}, pgx.ErrNoRows
	}
	return post, nil
}

func (m *mockPostRepo) List(_ context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	for _, p := range m.posts {
		posts = append(posts, p)
	}
	return posts, nil
}

func (m *mockPostRepo) Update(_ context.Context, post domain.Post) error {
	if _, ok := m.posts[post.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.posts[post.ID] = post
	return nil
}

func (m *mockPostRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.posts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.posts, id)
	return nil
}

type mockCommentRepo struct {
	comments map[string]domain.Comment
}

func newMockCommentRepo() *mockCommentRepo {
	return &mockCommentRepo{comments: make(map[string]domain.Comment)}
}

func (m *mockCommentRepo) Create(_ context.Context, comment domain.Comment) error {
	m.comments[comment.ID] = comment
	return nil
}

func (m *mockCommentRepo) GetByID(_ context.Context, id string) (domain.Comment, error) {
	comment, ok := m.comments[id]
	if !ok {
		return domain.Comment{}, pgx.ErrNoRows
	}
	return comment, nil
}

func (m *mockCommentRepo) ListByPost(_ context.Context, postID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	return comments, nil
}

func (m *mockCommentRepo) Update(_ context.Context, comment domain.Comment) error {
	if _, ok := m.comments[comment.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.comments[comment.ID] = comment
	return nil
}

func (m *mockCommentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.comments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.comments, id)
	return nil
}

func setupContentRouter(repo *mockUserRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	resolver := service.NewIdentityResolver(repo)
	accounts := service.NewAccountService(logger, repo, resolver, service.NewStaticCodeIssuer(), nil)
	jwtSvc := service.NewJWTService("test-secret", time.Minute, time.Hour)
	posts := service.NewPostService(logger, newMockPostRepo(), newMockCommentRepo(), repo)

	userH := NewUserHandler(logger, accounts, resolver, jwtSvc)
	postH := NewPostHandler(logger, accounts, posts)
	return NewRouter(logger, jwtSvc, userH, postH)
}

func createPost(t *testing.T, r http.Handler, token, content string) string {
	t.Helper()
	rec := performRequest(r, http.MethodPost, "/posts", map[string]any{"content": content}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Post domain.Post `json:"post"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Post.ID == "" {
		t.Fatalf("unexpected create post response %s", rec.Body.String())
	}
	return resp.Post.ID
}

func TestCreatePostRequiresAuth(t *testing.T) {
	r := setupContentRouter(newMockUserRepo())

	rec := performRequest(r, http.MethodPost, "/posts", map[string]any{"content": "hola"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPostLifecycleEndpoints(t *testing.T) {
	r := setupContentRouter(newMockUserRepo())
	token := registerAndLogin(t, r, "poster@example.com", "secret1", map[string]string{
		"email":    "poster@example.com",
		"password": "secret1",
	})
	otherToken := registerAndLogin(t, r, "reader@example.com", "secret1", map[string]string{
		"email":    "reader@example.com",
		"password": "secret1",
	})

	postID := createPost(t, r, token, "primer post")

	rec := performRequest(r, http.MethodGet, "/posts/"+postID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected public read 200, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodPut, "/posts/"+postID, map[string]any{"content": "hacked"}, otherToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodPost, "/posts/"+postID+"/comments", map[string]any{"content": "buen post"}, otherToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for comment, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = performRequest(r, http.MethodGet, "/posts/"+postID+"/comments", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing comments, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodDelete, "/posts/"+postID, nil, token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting own post, got %d", rec.Code)
	}
}
