package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-api/internal/domain"
	"social-api/internal/service"
)

// PostHandler mantiene dependencias para endpoints de posts y comentarios.
type PostHandler struct {
	logger   *zap.Logger
	accounts *service.AccountService
	posts    *service.PostService
}

func NewPostHandler(logger *zap.Logger, accounts *service.AccountService, posts *service.PostService) *PostHandler {
	return &PostHandler{
		logger:   logger,
		accounts: accounts,
		posts:    posts,
	}
}

type postRequest struct {
	Content  string   `json:"content" binding:"required"`
	Mentions []string `json:"mentions"`
}

// CreatePost maneja POST /posts.
func (h *PostHandler) CreatePost(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create post request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	post, err := h.posts.CreatePost(c.Request.Context(), user, req.Content, req.Mentions)
	if err != nil {
		h.respondContentError(c, err, "create post failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// ListPosts maneja GET /posts.
func (h *PostHandler) ListPosts(c *gin.Context) {
	posts, err := h.posts.ListPosts(c.Request.Context())
	if err != nil {
		h.logger.Error("list posts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// GetPost maneja GET /posts/:id.
func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondContentError(c, err, "get post failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// UpdatePost maneja PUT /posts/:id.
func (h *PostHandler) UpdatePost(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update post request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	post, err := h.posts.UpdatePost(c.Request.Context(), user, c.Param("id"), req.Content, req.Mentions)
	if err != nil {
		h.respondContentError(c, err, "update post failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// DeletePost maneja DELETE /posts/:id.
func (h *PostHandler) DeletePost(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if err := h.posts.DeletePost(c.Request.Context(), user, c.Param("id")); err != nil {
		h.respondContentError(c, err, "delete post failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateComment maneja POST /posts/:id/comments.
func (h *PostHandler) CreateComment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create comment request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	comment, err := h.posts.CreateComment(c.Request.Context(), user, c.Param("id"), req.Content, req.Mentions)
	if err != nil {
		h.respondContentError(c, err, "create comment failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// ListComments maneja GET /posts/:id/comments.
func (h *PostHandler) ListComments(c *gin.Context) {
	comments, err := h.posts.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondContentError(c, err, "list comments failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// UpdateComment maneja PUT /comments/:id.
func (h *PostHandler) UpdateComment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update comment request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	comment, err := h.posts.UpdateComment(c.Request.Context(), user, c.Param("id"), req.Content, req.Mentions)
	if err != nil {
		h.respondContentError(c, err, "update comment failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment maneja DELETE /comments/:id.
func (h *PostHandler) DeleteComment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if err := h.posts.DeleteComment(c.Request.Context(), user, c.Param("id")); err != nil {
		h.respondContentError(c, err, "delete comment failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PostHandler) currentUser(c *gin.Context) (domain.User, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return domain.User{}, false
	}
	user, err := h.accounts.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return domain.User{}, false
		}
		h.logger.Error("load current user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return domain.User{}, false
	}
	return user, true
}

func (h *PostHandler) respondContentError(c *gin.Context, err error, logMsg string) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "field": vErr.Field})
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrCommentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotAuthor):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
	default:
		h.logger.Error(logMsg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
