package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/models"
)

// GroupsHandler manages shared balance pools.
type GroupsHandler struct {
	db *gorm.DB
}

// NewGroupsHandler constructs a GroupsHandler.
func NewGroupsHandler(conn *gorm.DB) *GroupsHandler {
	return &GroupsHandler{db: conn}
}

// groupView is the group listing row.
type groupView struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	AdminEmail     string          `json:"admin_email"`
	Balance        decimal.Decimal `json:"balance"`
	AlertThreshold decimal.Decimal `json:"alert_threshold"`
	MemberCount    int64           `json:"member_count"`
}

// List returns all groups with member counts.
func (h *GroupsHandler) List(c *gin.Context) {
	var groups []groupView
	errFind := h.db.WithContext(c.Request.Context()).Model(&models.Group{}).
		Select("groups.id, groups.name, groups.admin_email, groups.balance, groups.alert_threshold, COUNT(group_memberships.account_id) AS member_count").
		Joins("LEFT JOIN group_memberships ON group_memberships.group_id = groups.id").
		Group("groups.id, groups.name, groups.admin_email, groups.balance, groups.alert_threshold").
		Order("groups.created_at ASC").
		Scan(&groups).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query groups failed"})
		return
	}
	if groups == nil {
		groups = []groupView{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// upsertGroupRequest creates or updates a group. Balance and alert threshold
// are optional on update.
type upsertGroupRequest struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	AdminEmail     string           `json:"admin_email"`
	Balance        *decimal.Decimal `json:"balance"`
	AlertThreshold *decimal.Decimal `json:"alert_threshold"`
}

// Upsert creates a group or updates an existing one. A balance change is
// recorded as a top-up or refund.
func (h *GroupsHandler) Upsert(c *gin.Context) {
	var req upsertGroupRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if req.Balance != nil && req.Balance.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "balance must not be negative"})
		return
	}

	var saved models.Group
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		groupID := strings.TrimSpace(req.ID)
		if groupID == "" {
			return h.createGroup(tx, &saved, req)
		}

		var group models.Group
		errFind := tx.Take(&group, "id = ?", groupID).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			req.ID = groupID
			return h.createGroup(tx, &saved, req)
		}
		if errFind != nil {
			return errFind
		}

		updates := map[string]any{
			"name":        req.Name,
			"admin_email": req.AdminEmail,
		}
		if req.AlertThreshold != nil {
			updates["alert_threshold"] = *req.AlertThreshold
			group.AlertThreshold = *req.AlertThreshold
		}
		if req.Balance != nil && !req.Balance.Equal(group.Balance) {
			updates["balance"] = *req.Balance
			if errRecord := recordGroupBalanceChange(tx, group.ID, req.Balance.Sub(group.Balance)); errRecord != nil {
				return errRecord
			}
			group.Balance = *req.Balance
		}
		if errUpdate := tx.Model(&group).UpdateColumns(updates).Error; errUpdate != nil {
			return errUpdate
		}
		group.Name = req.Name
		group.AdminEmail = req.AdminEmail
		saved = group
		return nil
	})
	if errTx != nil {
		log.WithError(errTx).Error("group upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save group failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              saved.ID,
		"name":            saved.Name,
		"admin_email":     saved.AdminEmail,
		"balance":         saved.Balance,
		"alert_threshold": saved.AlertThreshold,
	})
}

func (h *GroupsHandler) createGroup(tx *gorm.DB, saved *models.Group, req upsertGroupRequest) error {
	group := models.Group{
		ID:         strings.TrimSpace(req.ID),
		Name:       req.Name,
		AdminEmail: req.AdminEmail,
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if req.Balance != nil {
		group.Balance = *req.Balance
	}
	if req.AlertThreshold != nil {
		group.AlertThreshold = *req.AlertThreshold
	} else {
		group.AlertThreshold = decimal.RequireFromString("10.00")
	}
	if errCreate := tx.Create(&group).Error; errCreate != nil {
		return errCreate
	}
	if !group.Balance.IsZero() {
		if errRecord := recordGroupBalanceChange(tx, group.ID, group.Balance); errRecord != nil {
			return errRecord
		}
	}
	*saved = group
	return nil
}

// recordGroupBalanceChange writes the ledger and history rows for an
// administrative group balance change.
func recordGroupBalanceChange(tx *gorm.DB, groupID string, delta decimal.Decimal) error {
	entryType := models.TransactionTypeTopup
	if delta.IsNegative() {
		entryType = models.TransactionTypeRefund
	}
	entry := models.Transaction{
		GroupID: &groupID,
		Type:    entryType,
		Source:  models.SourceGroup,
		Amount:  delta,
	}
	if errEntry := tx.Create(&entry).Error; errEntry != nil {
		return errEntry
	}
	return tx.Create(&models.Topup{
		TargetID:   groupID,
		TargetType: models.TopupTargetGroup,
		Amount:     delta,
	}).Error
}

// Delete removes a group and its memberships. Member accounts fall back to
// their personal balances.
func (h *GroupsHandler) Delete(c *gin.Context) {
	groupID := strings.TrimSpace(c.Param("id"))
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errMembers := tx.Where("group_id = ?", groupID).Delete(&models.GroupMembership{}).Error; errMembers != nil {
			return errMembers
		}
		res := tx.Where("id = ?", groupID).Delete(&models.Group{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(errTx, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete group failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": groupID, "deleted": true})
}
