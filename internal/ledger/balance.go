package ledger

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/models"
)

// pools holds the account and its group membership, resolved once per
// request. group is nil for accounts outside any group.
type pools struct {
	account *models.Account
	group   *models.Group
}

// getOrCreateAccount loads an account, provisioning it with the configured
// starting balance on first contact. Identity fields are refreshed when the
// caller supplies newer values.
func getOrCreateAccount(tx *gorm.DB, cfg *config.Config, id Identity) (*models.Account, error) {
	accountID := strings.TrimSpace(id.ID)
	if accountID == "" {
		return nil, errors.New("ledger: account id is required")
	}

	var account models.Account
	errFind := tx.Take(&account, "id = ?", accountID).Error
	if errFind == nil {
		refreshIdentity(tx, &account, id)
		return &account, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	account = models.Account{
		ID:      accountID,
		Email:   strings.TrimSpace(id.Email),
		Name:    strings.TrimSpace(id.Name),
		Balance: cfg.InitBalance(),
	}
	errCreate := tx.Create(&account).Error
	if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
		errCreate = tx.Take(&account, "id = ?", accountID).Error
	}
	if errCreate != nil {
		return nil, errCreate
	}
	log.WithField("account", accountID).
		WithField("balance", account.Balance.String()).
		Info("ledger: provisioned account")
	return &account, nil
}

// refreshIdentity updates stored name and email when the request carries
// non-empty values that differ from the row.
func refreshIdentity(tx *gorm.DB, account *models.Account, id Identity) {
	updates := map[string]any{}
	if name := strings.TrimSpace(id.Name); name != "" && name != account.Name {
		updates["name"] = name
		account.Name = name
	}
	if email := strings.TrimSpace(id.Email); email != "" && email != account.Email {
		updates["email"] = email
		account.Email = email
	}
	if len(updates) == 0 {
		return
	}
	if err := tx.Model(account).UpdateColumns(updates).Error; err != nil {
		log.WithError(err).WithField("account", account.ID).Warn("ledger: failed to refresh identity")
	}
}

// resolvePools loads the account's group, if any.
func resolvePools(tx *gorm.DB, account *models.Account) (*pools, error) {
	p := &pools{account: account}

	var membership models.GroupMembership
	errFind := tx.Preload("Group").Take(&membership, "account_id = ?", account.ID).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return p, nil
	}
	if errFind != nil {
		return nil, errFind
	}
	p.group = membership.Group
	return p, nil
}

// debitCascading charges amount against the group balance first, then the
// personal balance. Each attempt is a conditional update so a concurrent
// debit can never push a balance negative. It returns the pool that paid
// and the paying balance after the debit.
func debitCascading(tx *gorm.DB, p *pools, amount decimal.Decimal) (source string, remaining decimal.Decimal, err error) {
	if p.group != nil {
		ok, errGroup := debitGroup(tx, p.group.ID, amount)
		if errGroup != nil {
			return "", decimal.Zero, errGroup
		}
		if ok {
			var group models.Group
			if errRead := tx.Take(&group, "id = ?", p.group.ID).Error; errRead != nil {
				return "", decimal.Zero, errRead
			}
			return models.SourceGroup, group.Balance, nil
		}
	}

	ok, errPersonal := debitPersonal(tx, p.account.ID, amount)
	if errPersonal != nil {
		return "", decimal.Zero, errPersonal
	}
	if !ok {
		if p.account.Deleted {
			return "", decimal.Zero, ErrAccountDeleted
		}
		return "", decimal.Zero, ErrInsufficientFunds
	}
	var account models.Account
	if errRead := tx.Take(&account, "id = ?", p.account.ID).Error; errRead != nil {
		return "", decimal.Zero, errRead
	}
	return models.SourcePersonal, account.Balance, nil
}

// debitGroup attempts a conditional debit of a group balance.
func debitGroup(tx *gorm.DB, groupID string, amount decimal.Decimal) (bool, error) {
	res := tx.Model(&models.Group{}).
		Where("id = ? AND balance >= ?", groupID, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// debitPersonal attempts a conditional debit of a personal balance. Deleted
// accounts never pay from their personal pool.
func debitPersonal(tx *gorm.DB, accountID string, amount decimal.Decimal) (bool, error) {
	res := tx.Model(&models.Account{}).
		Where("id = ? AND deleted = ? AND balance >= ?", accountID, false, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
