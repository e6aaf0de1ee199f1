package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/db"
	"github.com/metergate/metergate/internal/ledger"
	"github.com/metergate/metergate/internal/models"
)

// PanelHandler serves the admin panel endpoints: quota status, maintenance
// actions and usage record listings.
type PanelHandler struct {
	db         *gorm.DB
	guard      *ledger.Guard
	reconciler *ledger.Reconciler
}

// NewPanelHandler constructs a PanelHandler.
func NewPanelHandler(conn *gorm.DB, guard *ledger.Guard, reconciler *ledger.Reconciler) *PanelHandler {
	return &PanelHandler{db: conn, guard: guard, reconciler: reconciler}
}

// GlobalQuota reports the global quota state.
func (h *PanelHandler) GlobalQuota(c *gin.Context) {
	status, errStatus := h.guard.Status(c.Request.Context())
	if errStatus != nil {
		log.WithError(errStatus).Error("quota status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query quota status failed"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// maintenanceRequest selects a maintenance action.
type maintenanceRequest struct {
	Action string `json:"action"`
}

// Maintenance runs an administrative maintenance action: fix_schema re-runs
// the migrations, sync_global_usage rebuilds the usage counter from records.
func (h *PanelHandler) Maintenance(c *gin.Context) {
	var req maintenanceRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch strings.TrimSpace(req.Action) {
	case "fix_schema":
		if errMigrate := db.Migrate(h.db); errMigrate != nil {
			log.WithError(errMigrate).Error("schema repair failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "schema repair failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"action": req.Action, "success": true})
	case "sync_global_usage":
		drift, errReconcile := h.reconciler.ReconcileGlobalUsage(c.Request.Context())
		if errReconcile != nil {
			log.WithError(errReconcile).Error("global usage reconciliation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"action": req.Action, "success": true, "drift": drift})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown maintenance action"})
	}
}

// Records returns a paged listing of usage records, newest first.
func (h *PanelHandler) Records(c *gin.Context) {
	page, perPage := pagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.UsageRecord{})
	if userID := strings.TrimSpace(c.Query("user_id")); userID != "" {
		query = query.Where("account_id = ?", userID)
	}
	if model := strings.TrimSpace(c.Query("model")); model != "" {
		query = query.Where("model_name = ?", model)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query records failed"})
		return
	}

	var records []models.UsageRecord
	errFind := query.Order("use_time DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&records).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query records failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "total": total, "page": page, "per_page": perPage})
}
