package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/feed-services/internal/identity"
	"github.com/socialfeed/feed-services/internal/models"
	"github.com/socialfeed/feed-services/internal/post/service"
	"github.com/socialfeed/feed-services/pkg/logger"
	"github.com/socialfeed/feed-services/pkg/middleware"
)

type Service interface {
	Create(ctx context.Context, p *identity.Principal, text, location string, m *service.Media) (*models.Post, error)
	Get(ctx context.Context, p *identity.Principal, id string) (*models.Post, error)
}

// RegisterPostRoutes mounts POST /api/posts and GET /api/posts/:postId.
// maxUpload caps multipart bodies; zero means unlimited. mw runs in order
// ahead of the handlers, authentication first.
func RegisterPostRoutes(r gin.IRouter, svc Service, maxUpload int64, mw ...gin.HandlerFunc) {
	g := r.Group("/api/posts")
	for _, h := range mw {
		if h != nil {
			g.Use(h)
		}
	}

	g.POST("", func(c *gin.Context) {
		var req struct {
			Text     string `json:"text" form:"text"`
			Location string `json:"location" form:"location"`
		}
		var media *service.Media
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			if maxUpload > 0 {
				c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
			}
			if err := c.ShouldBind(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
				return
			}
			fh, err := c.FormFile("media")
			if err != nil && !errors.Is(err, http.ErrMissingFile) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
				return
			}
			if fh != nil {
				f, err := fh.Open()
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
					return
				}
				defer f.Close()
				media = &service.Media{
					Filename:    fh.Filename,
					ContentType: fh.Header.Get("Content-Type"),
					Size:        fh.Size,
					Body:        f,
				}
			}
		} else if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
			return
		}

		p, err := svc.Create(c.Request.Context(), middleware.PrincipalFrom(c), req.Text, req.Location, media)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	})

	g.GET("/:postId", func(c *gin.Context) {
		p, err := svc.Get(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("postId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "code": "UNAUTHORIZED"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found", "code": "POST_NOT_FOUND"})
	case errors.Is(err, service.ErrMedia):
		c.JSON(http.StatusBadGateway, gin.H{"error": "media upload failed", "code": "MEDIA_UPLOAD_FAILED"})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "STORE_ERROR"})
	}
}
