package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/feed-services/internal/comment"
	"github.com/socialfeed/feed-services/internal/comment/service"
	"github.com/socialfeed/feed-services/internal/identity"
	"github.com/socialfeed/feed-services/pkg/logger"
	"github.com/socialfeed/feed-services/pkg/middleware"
)

// Service is the subset of the comment service the routes depend on.
type Service interface {
	Create(ctx context.Context, p *identity.Principal, postID, text string) (string, error)
	Delete(ctx context.Context, p *identity.Principal, postID, commentID string) error
	List(ctx context.Context, p *identity.Principal, postID string) ([]*comment.View, error)
}

// RegisterCommentRoutes mounts the comment endpoints under /api/posts/:postId.
// mw runs in order ahead of every handler: authentication first, so that
// later middleware such as the rate limiter sees the caller's principal.
// Requests without a principal are refused by the service itself as well.
func RegisterCommentRoutes(r gin.IRouter, svc Service, mw ...gin.HandlerFunc) {
	g := r.Group("/api/posts/:postId/comments")
	for _, h := range mw {
		if h != nil {
			g.Use(h)
		}
	}

	g.POST("", func(c *gin.Context) {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
			return
		}
		id, err := svc.Create(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("postId"), req.Text)
		if err != nil {
			WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Comment was successfully created", "id": id})
	})

	g.GET("", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("postId"))
		if err != nil {
			WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	g.DELETE("/:commentId", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("postId"), c.Param("commentId")); err != nil {
			WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
	})
}

// WriteError maps comment service errors onto HTTP responses.
func WriteError(c *gin.Context, err error) {
	var partial *service.PartialError
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "code": "UNAUTHORIZED"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
	case errors.Is(err, service.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found", "code": "POST_NOT_FOUND"})
	case errors.Is(err, service.ErrCommentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found", "code": "COMMENT_NOT_FOUND"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "FORBIDDEN"})
	case errors.As(err, &partial):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "comment count could not be updated",
			"code":      "PARTIAL_FAILURE",
			"partial":   true,
			"postId":    partial.PostID,
			"commentId": partial.CommentID,
		})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "STORE_ERROR"})
	}
}
