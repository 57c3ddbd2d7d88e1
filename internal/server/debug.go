package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/murphyws/finance-portal/internal/config"
	"github.com/murphyws/finance-portal/internal/repository"
	"github.com/murphyws/finance-portal/internal/storage"
)

// DebugHandler exposes operator probes: which integrations are configured
// and whether the storage backends answer.
type DebugHandler struct {
	cfg       *config.Config
	client    *mongo.Client
	secondary storage.SecondaryStore // nil when not configured
	logger    *slog.Logger
}

func NewDebugHandler(cfg *config.Config, client *mongo.Client, secondary storage.SecondaryStore, logger *slog.Logger) *DebugHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugHandler{cfg: cfg, client: client, secondary: secondary, logger: logger}
}

// Healthz is the liveness probe.
func (h *DebugHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// Config reports which integrations are wired, without echoing any secret.
func (h *DebugHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mongoConfigured":     h.cfg.MongoURI != "",
		"mongoDatabase":       h.cfg.MongoDBName,
		"supabaseConfigured":  h.cfg.SupabaseConfigured(),
		"supabaseBucket":      h.cfg.SupabaseBucket,
		"anthropicConfigured": h.cfg.AnthropicAPIKey != "",
		"anthropicModel":      h.cfg.AnthropicModel,
		"manusConfigured":     h.cfg.ManusConfigured(),
		"batchLimit":          h.cfg.BatchLimit,
	})
}

// Storage pings both backends and reports each one independently.
func (h *DebugHandler) Storage(c *gin.Context) {
	ctx := c.Request.Context()
	out := gin.H{}

	if err := repository.HealthCheck(ctx, h.client, 5*time.Second, h.logger); err != nil {
		out["primary"] = gin.H{"ok": false, "error": err.Error()}
	} else {
		out["primary"] = gin.H{"ok": true}
	}

	if h.secondary == nil {
		out["secondary"] = gin.H{"ok": false, "error": "not configured"}
	} else if names, err := h.secondary.List(ctx, ""); err != nil {
		out["secondary"] = gin.H{"ok": false, "error": err.Error()}
	} else {
		out["secondary"] = gin.H{"ok": true, "objects": len(names)}
	}

	c.JSON(http.StatusOK, out)
}
