package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/db"
	"github.com/metergate/metergate/internal/models"
)

// UsersHandler manages account administration endpoints.
type UsersHandler struct {
	db *gorm.DB
}

// NewUsersHandler constructs a UsersHandler.
func NewUsersHandler(conn *gorm.DB) *UsersHandler {
	return &UsersHandler{db: conn}
}

// userView is the user listing row.
type userView struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
	Deleted bool            `json:"deleted"`
	GroupID *string         `json:"group_id"`
}

// allowed sort columns for the user listing.
var userSortColumns = map[string]string{
	"balance":    "accounts.balance",
	"created_at": "accounts.created_at",
	"name":       "accounts.name",
}

// List returns a paged, searchable account listing with group membership.
func (h *UsersHandler) List(c *gin.Context) {
	page, perPage := pagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Account{}).
		Select("accounts.id, accounts.name, accounts.email, accounts.balance, accounts.deleted, group_memberships.group_id").
		Joins("LEFT JOIN group_memberships ON group_memberships.account_id = accounts.id")

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+search+"%")
		query = query.Where(
			h.db.Where(db.CaseInsensitiveLikeExpr(h.db, "accounts.name"), pattern).
				Or(db.CaseInsensitiveLikeExpr(h.db, "accounts.email"), pattern).
				Or(db.CaseInsensitiveLikeExpr(h.db, "accounts.id"), pattern),
		)
	}
	if deleted := c.Query("deleted"); deleted == "true" || deleted == "false" {
		query = query.Where("accounts.deleted = ?", deleted == "true")
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query users failed"})
		return
	}

	sortColumn, ok := userSortColumns[c.DefaultQuery("sort", "created_at")]
	if !ok {
		sortColumn = "accounts.created_at"
	}
	direction := "DESC"
	if strings.EqualFold(c.Query("order"), "asc") {
		direction = "ASC"
	}

	var users []userView
	errFind := query.Order(sortColumn + " " + direction).
		Offset((page - 1) * perPage).Limit(perPage).
		Scan(&users).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query users failed"})
		return
	}
	if users == nil {
		users = []userView{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": total, "page": page, "per_page": perPage})
}

// setBalanceRequest is the administrative balance update payload.
type setBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

// SetBalance sets an account balance to an absolute value, recording the
// delta as a top-up or refund with a topup_history row.
func (h *UsersHandler) SetBalance(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("id"))
	var req setBalanceRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Balance.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "balance must not be negative"})
		return
	}

	var updated models.Account
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if errFind := tx.Take(&account, "id = ?", accountID).Error; errFind != nil {
			return errFind
		}

		delta := req.Balance.Sub(account.Balance)
		if errUpdate := tx.Model(&account).UpdateColumn("balance", req.Balance).Error; errUpdate != nil {
			return errUpdate
		}

		if !delta.IsZero() {
			entryType := models.TransactionTypeTopup
			if delta.IsNegative() {
				entryType = models.TransactionTypeRefund
			}
			entry := models.Transaction{
				AccountID: account.ID,
				Type:      entryType,
				Source:    models.SourcePersonal,
				Amount:    delta,
			}
			if errEntry := tx.Create(&entry).Error; errEntry != nil {
				return errEntry
			}
			topup := models.Topup{
				TargetID:   account.ID,
				TargetType: models.TopupTargetUser,
				Amount:     delta,
			}
			if errTopup := tx.Create(&topup).Error; errTopup != nil {
				return errTopup
			}
		}

		account.Balance = req.Balance
		updated = account
		return nil
	})
	if errors.Is(errTx, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if errTx != nil {
		log.WithError(errTx).WithField("account", accountID).Error("set balance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update balance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": updated.ID, "balance": updated.Balance})
}

// assignGroupRequest maps a user to a group; an empty or "none" group id
// removes the membership.
type assignGroupRequest struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
}

// AssignGroup sets or clears a user's group membership.
func (h *UsersHandler) AssignGroup(c *gin.Context) {
	var req assignGroupRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	ctx := c.Request.Context()
	var account models.Account
	if errFind := h.db.WithContext(ctx).Take(&account, "id = ?", userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	groupID := strings.TrimSpace(req.GroupID)
	if groupID == "" || strings.EqualFold(groupID, "none") {
		errDelete := h.db.WithContext(ctx).
			Where("account_id = ?", userID).
			Delete(&models.GroupMembership{}).Error
		if errDelete != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "remove membership failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "group_id": nil})
		return
	}

	var group models.Group
	if errFind := h.db.WithContext(ctx).Take(&group, "id = ?", groupID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query group failed"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDelete := tx.Where("account_id = ?", userID).Delete(&models.GroupMembership{}).Error; errDelete != nil {
			return errDelete
		}
		return tx.Create(&models.GroupMembership{AccountID: userID, GroupID: groupID}).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign group failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "group_id": groupID})
}

// Delete soft-deletes an account. The row stays readable for history but can
// never be debited again.
func (h *UsersHandler) Delete(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("id"))
	res := h.db.WithContext(c.Request.Context()).Model(&models.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("deleted", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete user failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": accountID, "deleted": true})
}
