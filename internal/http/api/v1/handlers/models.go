package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/ledger"
	"github.com/metergate/metergate/internal/models"
)

// ModelsHandler manages model price policies.
type ModelsHandler struct {
	db      *gorm.DB
	pricing *ledger.Pricing
}

// NewModelsHandler constructs a ModelsHandler.
func NewModelsHandler(conn *gorm.DB, pricing *ledger.Pricing) *ModelsHandler {
	return &ModelsHandler{db: conn, pricing: pricing}
}

// List returns every known model price.
func (h *ModelsHandler) List(c *gin.Context) {
	var prices []models.ModelPrice
	errFind := h.db.WithContext(c.Request.Context()).
		Order("id ASC").
		Find(&prices).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query models failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": prices})
}

// updatePriceRequest sets the price policy for one model. Omitted fields
// keep their current values.
type updatePriceRequest struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	BaseModelID string           `json:"base_model_id"`
	InputPrice  *decimal.Decimal `json:"input_price"`
	OutputPrice *decimal.Decimal `json:"output_price"`
	PerMsgPrice *decimal.Decimal `json:"per_msg_price"`
}

// UpdatePrice creates or updates a model price row. The row is created lazily
// through the pricing resolver so variants inherit their base model's prices.
func (h *ModelsHandler) UpdatePrice(c *gin.Context) {
	var req updatePriceRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if req.InputPrice != nil && req.InputPrice.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input_price must not be negative"})
		return
	}
	if req.OutputPrice != nil && req.OutputPrice.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "output_price must not be negative"})
		return
	}

	ctx := c.Request.Context()
	price, errGet := h.pricing.GetOrCreate(ctx, req.ID, req.Name, req.BaseModelID)
	if errGet != nil {
		log.WithError(errGet).WithField("model", req.ID).Error("get or create model price failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save model price failed"})
		return
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(req.Name); name != "" && name != price.Name {
		updates["name"] = name
		price.Name = name
	}
	if req.InputPrice != nil {
		updates["input_price"] = *req.InputPrice
		price.InputPrice = *req.InputPrice
	}
	if req.OutputPrice != nil {
		updates["output_price"] = *req.OutputPrice
		price.OutputPrice = *req.OutputPrice
	}
	if req.PerMsgPrice != nil {
		updates["per_msg_price"] = *req.PerMsgPrice
		price.PerMsgPrice = *req.PerMsgPrice
	}
	if len(updates) > 0 {
		errUpdate := h.db.WithContext(ctx).Model(&models.ModelPrice{}).
			Where("id = ?", price.ID).
			Updates(updates).Error
		if errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save model price failed"})
			return
		}
	}
	c.JSON(http.StatusOK, price)
}
