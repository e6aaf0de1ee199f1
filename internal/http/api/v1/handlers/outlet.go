package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/metergate/metergate/internal/ledger"
	"github.com/metergate/metergate/internal/tokenizer"
)

// OutletHandler settles requests after the upstream model call.
type OutletHandler struct {
	engine  *ledger.Engine
	counter tokenizer.Counter
}

// NewOutletHandler constructs an OutletHandler.
func NewOutletHandler(engine *ledger.Engine, counter tokenizer.Counter) *OutletHandler {
	return &OutletHandler{engine: engine, counter: counter}
}

// usagePayload is the provider-reported token usage, when available.
type usagePayload struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// outletRequest is the settlement payload. Messages carry the full exchange
// including the model response; they are only consulted when the provider
// did not report usage.
type outletRequest struct {
	User     identityPayload     `json:"user"`
	Model    string              `json:"model"`
	Messages []tokenizer.Message `json:"messages"`
	Usage    *usagePayload       `json:"usage"`
}

// Settle charges for a completed request.
func (h *OutletHandler) Settle(c *gin.Context) {
	var req outletRequest
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

	usage := h.resolveUsage(&req)
	result, errSettle := h.engine.Settle(c.Request.Context(), req.User.toIdentity(), req.Model, usage)
	if errSettle != nil {
		abortBilling(c, errSettle)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"balance":       result.Balance,
		"cost":          result.Charge,
		"source":        wireSource(result.Source),
		"input_tokens":  result.InputTokens,
		"output_tokens": result.OutputTokens,
		"record_id":     result.RecordID,
	})
}

// resolveUsage prefers provider-reported usage and falls back to estimating
// from message content: the final message is the model output regardless of
// its role, everything before it the input.
func (h *OutletHandler) resolveUsage(req *outletRequest) ledger.TokenUsage {
	if req.Usage != nil && (req.Usage.InputTokens > 0 || req.Usage.OutputTokens > 0) {
		return ledger.TokenUsage{
			InputTokens:  req.Usage.InputTokens,
			OutputTokens: req.Usage.OutputTokens,
		}
	}

	if len(req.Messages) == 0 {
		return ledger.TokenUsage{}
	}
	last := len(req.Messages) - 1
	return ledger.TokenUsage{
		InputTokens:  tokenizer.CountMessages(h.counter, req.Messages[:last]),
		OutputTokens: tokenizer.CountMessages(h.counter, req.Messages[last:]),
	}
}
