package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the feed service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>feed-services - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "feed-services", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "code": {"type":"string"}, "partial": {"type":"boolean"}, "postId": {"type":"string"}, "commentId": {"type":"string"} } },
      "Post": { "type": "object", "properties": { "id": {"type":"string"}, "authorId": {"type":"string"}, "text": {"type":"string"}, "location": {"type":"string"}, "mediaUrl": {"type":"string"}, "commentCount": {"type":"integer"}, "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"} } },
      "Comment": { "type": "object", "properties": { "id": {"type":"string"}, "postId": {"type":"string"}, "userId": {"type":"string"}, "text": {"type":"string"}, "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"}, "user": {"type":"object","nullable":true}, "post": {"type":"object","nullable":true} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/v1/me": {
      "get": { "summary": "Current user, recorded from token claims", "responses": { "200": { "description": "user" }, "401": { "description": "unauthenticated" } } }
    },
    "/api/v1/logout": {
      "post": { "summary": "Revoke the presented access token", "responses": { "200": { "description": "logged out" }, "401": { "description": "unauthenticated" } } }
    },
    "/api/posts": {
      "post": {
        "summary": "Create a post (JSON, or multipart with an image in 'media')",
        "requestBody": { "content": {
          "application/json": { "schema": {"type":"object","properties":{"text":{"type":"string"},"location":{"type":"string"}}} },
          "multipart/form-data": { "schema": {"type":"object","properties":{"text":{"type":"string"},"location":{"type":"string"},"media":{"type":"string","format":"binary"}}} }
        }},
        "responses": { "201": { "description": "created", "content": {"application/json": {"schema": {"$ref":"#/components/schemas/Post"}}} }, "400": { "description": "invalid post" }, "502": { "description": "media upload failed" } }
      }
    },
    "/api/posts/{postId}": {
      "get": { "summary": "Get a post with its comment count", "parameters": [{"name":"postId","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "post" }, "404": { "description": "post not found" } } }
    },
    "/api/posts/{postId}/comments": {
      "get": {
        "summary": "List comments of a post, oldest first",
        "parameters": [{"name":"postId","in":"path","required":true,"schema":{"type":"string"}}],
        "responses": { "200": { "description": "comments", "content": {"application/json": {"schema": {"type":"array","items":{"$ref":"#/components/schemas/Comment"}}}} }, "401": { "description": "unauthenticated" } }
      },
      "post": {
        "summary": "Submit a comment",
        "parameters": [{"name":"postId","in":"path","required":true,"schema":{"type":"string"}}],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"text":{"type":"string"}},"required":["text"]} } } },
        "responses": { "201": { "description": "Comment was successfully created" }, "400": { "description": "empty text" }, "401": { "description": "unauthenticated" }, "404": { "description": "post not found" }, "500": { "description": "store error; partial=true when the comment was stored but the count was not updated", "content": {"application/json": {"schema": {"$ref":"#/components/schemas/Error"}}} } }
      }
    },
    "/api/posts/{postId}/comments/{commentId}": {
      "delete": {
        "summary": "Delete a comment",
        "parameters": [{"name":"postId","in":"path","required":true,"schema":{"type":"string"}},{"name":"commentId","in":"path","required":true,"schema":{"type":"string"}}],
        "responses": { "200": { "description": "Comment deleted successfully" }, "401": { "description": "unauthenticated" }, "403": { "description": "not the comment or post author (owner policy)" }, "404": { "description": "post or comment not found" }, "500": { "description": "store error" } }
      }
    },
    "/health": { "get": { "summary": "Liveness", "security": [], "responses": { "200": { "description": "ok" } } } },
    "/ready": { "get": { "summary": "Readiness of the document store", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "store unreachable" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
