package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/metergate/metergate/internal/ledger"
)

// InletHandler serves the pre-call admission check.
type InletHandler struct {
	estimator *ledger.Estimator
}

// NewInletHandler constructs an InletHandler.
func NewInletHandler(estimator *ledger.Estimator) *InletHandler {
	return &InletHandler{estimator: estimator}
}

// inletRequest is the admission check payload.
type inletRequest struct {
	User  identityPayload `json:"user"`
	Model string          `json:"model"`
}

// Check runs the admission check for a request about to hit the upstream
// model. It never debits a balance.
func (h *InletHandler) Check(c *gin.Context) {
	var req inletRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body", "error_type": "bad_request"})
		return
	}
	if strings.TrimSpace(req.User.ID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "user id is required", "error_type": "bad_request"})
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "model is required", "error_type": "bad_request"})
		return
	}

	result, errCheck := h.estimator.CheckAdmission(c.Request.Context(), req.User.toIdentity(), req.Model)
	if errCheck != nil {
		abortBilling(c, errCheck)
		return
	}

	response := gin.H{
		"success":    true,
		"balance":    result.Balance,
		"inlet_cost": result.Surcharge,
	}
	if result.Unmetered {
		response["unmetered"] = true
	} else {
		response["source"] = wireSource(result.Source)
	}
	c.JSON(http.StatusOK, response)
}
