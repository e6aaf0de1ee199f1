// Package handlers implements the v1 API endpoints.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/metergate/metergate/internal/ledger"
)

// identityPayload is the caller identity carried by inlet/outlet requests.
type identityPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p identityPayload) toIdentity() ledger.Identity {
	return ledger.Identity{ID: p.ID, Name: p.Name, Email: p.Email}
}

// billingErrorType maps a ledger error to its wire error_type.
func billingErrorType(err error) string {
	switch {
	case errors.Is(err, ledger.ErrQuotaExpired):
		return "quota_expired"
	case errors.Is(err, ledger.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrUnpriceableModel):
		return "unpriceable_model"
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return "balance_overflow"
	case errors.Is(err, ledger.ErrAccountDeleted):
		return "account_deleted"
	default:
		return "internal"
	}
}

// billingErrorStatus maps a ledger error to an HTTP status code.
func billingErrorStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrQuotaExpired), errors.Is(err, ledger.ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrUnpriceableModel), errors.Is(err, ledger.ErrAccountDeleted):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abortBilling writes the standard billing failure envelope.
func abortBilling(c *gin.Context, err error) {
	status := billingErrorStatus(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("billing endpoint internal error")
		c.JSON(status, gin.H{"success": false, "error": "internal error", "error_type": "internal"})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error(), "error_type": billingErrorType(err)})
}

// wireSource lowercases the ledger pool name for responses.
func wireSource(source string) string {
	return strings.ToLower(source)
}

// pagination reads page/per_page query parameters with sane bounds.
func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 200 {
		perPage = 200
	}
	return page, perPage
}
