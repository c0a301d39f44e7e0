package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"photo-review-backend/internal/middleware"
)

// Routes is everything NewRouter mounts. Nil gates leave a route open;
// empty directories are not served.
type Routes struct {
	Upload       *UploadHandler
	Status       *StatusHandler
	Stream       *StreamHandler
	Interactions *InteractionsHandler
	Messages     *MessageHandler

	InteractionGate gin.HandlerFunc
	MessageGate     gin.HandlerFunc

	UploadDir string
	StaticDir string
}

func NewRouter(r Routes) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())

	router.GET("/health", HealthHandler)

	router.POST("/upload", r.Upload.Upload)
	router.GET("/status/:id", r.Status.GetStatus)
	router.GET("/result/:id", r.Status.GetStatus)
	router.GET("/ws/status/:id", r.Stream.StreamStatus)

	discord := router.Group("/discord")
	discord.POST("/interactions", chain(r.InteractionGate, r.Interactions.HandleInteraction)...)
	discord.POST("/message", chain(r.MessageGate, r.Messages.HandleMessage)...)

	if r.UploadDir != "" {
		router.Static("/uploads", r.UploadDir)
	}
	if dirExists(r.StaticDir) {
		files := http.FileServer(http.Dir(r.StaticDir))
		router.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return router
}

func chain(gate gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if gate == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{gate, h}
}

func dirExists(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
