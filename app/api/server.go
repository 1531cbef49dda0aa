package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamjohnlea/discogs-helper/app/catalog"
	"github.com/adamjohnlea/discogs-helper/app/cfg"
)

const userContextKey = "current_user"

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Routes
	setupRoutes(r, handler, apiAccessKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Downloaded cover images
	r.Static("/covers", cfg.Get().CoversDir)

	// API endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		api.Use(userMiddleware())
		{
			api.GET("/search", handler.Search)
			api.GET("/releases/:id", handler.GetRelease)
			api.GET("/recommendations", handler.GetRecommendations)

			api.GET("/collection", handler.ListCollection)
			api.POST("/collection", handler.AddToCollection)
			api.DELETE("/collection/:id", handler.RemoveFromCollection)
			api.PATCH("/collection/:id", handler.UpdateCollectionNotes)

			api.GET("/wantlist", handler.ListWantlist)
			api.POST("/wantlist", handler.AddToWantlist)
			api.DELETE("/wantlist/:id", handler.RemoveFromWantlist)
			api.POST("/wantlist/:id/promote", handler.PromoteWantlistItem)

			api.POST("/import", handler.StartImport)
			api.POST("/import/batch", handler.ProcessImportBatch)
			api.GET("/import/progress", handler.GetImportProgress)
			api.POST("/import/restart", handler.RestartImport)
			api.POST("/import/retry", handler.RetryImport)

			api.POST("/export", handler.ExportCollection)
		}
		log.Printf("API endpoints enabled with authentication")
	} else {
		log.Printf("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health": "/health",
			"stats":  "/stats",
			"covers": "/covers/<filename>",
		}

		if apiAccessKey != "" {
			endpoints["search"] = "/api/search?q=<query> (requires X-API-Key header)"
			endpoints["collection"] = "/api/collection (requires X-API-Key header)"
			endpoints["wantlist"] = "/api/wantlist (requires X-API-Key header)"
			endpoints["import"] = "/api/import, /api/import/batch, /api/import/progress (requires X-API-Key header)"
			endpoints["export"] = "/api/export (POST, requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "Discogs Helper",
			"version":     cfg.GetVersion(),
			"description": "Personal vinyl-record collection manager backed by the Discogs catalog",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get API key from X-API-Key header
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// userMiddleware resolves the authenticated collector into a request-scoped
// identity. Single-user deployment: the identity comes from configuration,
// but handlers and services only ever see the explicit User value.
func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userContextKey, catalog.User{
			ID:       1,
			Username: cfg.Get().DiscogsUsername,
		})
		c.Next()
	}
}

func currentUser(c *gin.Context) catalog.User {
	return c.MustGet(userContextKey).(catalog.User)
}
