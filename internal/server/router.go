package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Documents *DocumentsHandler
	Reprocess *ReprocessHandler
	Reports   *ReportsHandler
	Debug     *DebugHandler
}

// NewRouter wires the gin engine, CORS, and all routes.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 32 << 20

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-User-ID"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/healthz", h.Debug.Healthz)

	api := r.Group("/api")
	{
		docs := api.Group("/documents")
		{
			docs.POST("/upload", h.Documents.Upload)
			docs.GET("", h.Documents.List)
			docs.GET("/:id", h.Documents.Get)
			docs.POST("/reprocess", h.Reprocess.Reprocess)
		}
		api.GET("/files/:handle", h.Documents.Download)

		reports := api.Group("/reports")
		{
			reports.GET("/pnl", h.Reports.YearPL)
			reports.GET("/pnl/export", h.Reports.ExportYearPL)
		}

		debug := api.Group("/debug")
		{
			debug.GET("/config", h.Debug.Config)
			debug.GET("/storage", h.Debug.Storage)
		}
	}

	return r
}
