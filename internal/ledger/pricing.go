package ledger

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/models"
	"github.com/metergate/metergate/internal/settings"
)

// Pricing resolves model price policies and admission surcharges. Reads fail
// closed: a model without a price row and without usable defaults is
// unpriceable and must never be charged an undefined amount.
type Pricing struct {
	db  *gorm.DB
	cfg *config.Manager
}

// NewPricing constructs a Pricing resolver.
func NewPricing(db *gorm.DB, cfg *config.Manager) *Pricing {
	return &Pricing{db: db, cfg: cfg}
}

// Resolve returns the price policy for a model. Unknown models fall back to
// the configured defaults without creating a row.
func (p *Pricing) Resolve(ctx context.Context, modelID string) (*models.ModelPrice, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, ErrUnpriceableModel
	}

	var price models.ModelPrice
	errFind := p.db.WithContext(ctx).Take(&price, "id = ?", modelID).Error
	if errFind == nil {
		return &price, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	input, output, perMsg, ok := p.defaults()
	if !ok {
		return nil, ErrUnpriceableModel
	}
	return &models.ModelPrice{
		ID:          modelID,
		Name:        modelID,
		InputPrice:  input,
		OutputPrice: output,
		PerMsgPrice: perMsg,
	}, nil
}

// GetOrCreate returns the price row for a model, creating it on first sight.
// A variant is seeded from its base model's prices, everything else from the
// defaults. Creation retries once on a transient disconnect.
func (p *Pricing) GetOrCreate(ctx context.Context, modelID, name, baseModelID string) (*models.ModelPrice, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, ErrUnpriceableModel
	}
	if strings.TrimSpace(name) == "" {
		name = modelID
	}

	var price models.ModelPrice
	errFind := p.db.WithContext(ctx).Take(&price, "id = ?", modelID).Error
	if errFind == nil {
		return &price, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	var input, output, perMsg decimal.Decimal
	seeded := false
	if baseModelID = strings.TrimSpace(baseModelID); baseModelID != "" {
		var base models.ModelPrice
		if errBase := p.db.WithContext(ctx).Take(&base, "id = ?", baseModelID).Error; errBase == nil {
			input, output, perMsg = base.InputPrice, base.OutputPrice, base.PerMsgPrice
			seeded = true
		}
	}
	if !seeded {
		var ok bool
		input, output, perMsg, ok = p.defaults()
		if !ok {
			return nil, ErrUnpriceableModel
		}
	}

	price = models.ModelPrice{
		ID:          modelID,
		Name:        name,
		BaseModelID: baseModelID,
		InputPrice:  input,
		OutputPrice: output,
		PerMsgPrice: perMsg,
	}
	errCreate := p.createPrice(ctx, &price)
	if errCreate != nil && isTransient(errCreate) {
		log.WithError(errCreate).Warn("pricing: transient error creating price row, retrying once")
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		errCreate = p.createPrice(ctx, &price)
	}
	if errCreate != nil {
		return nil, errCreate
	}
	return &price, nil
}

// createPrice inserts a price row, tolerating a concurrent insert of the
// same model by re-reading on conflict.
func (p *Pricing) createPrice(ctx context.Context, price *models.ModelPrice) error {
	errCreate := p.db.WithContext(ctx).Create(price).Error
	if errCreate == nil {
		return nil
	}
	if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
		return p.db.WithContext(ctx).Take(price, "id = ?", price.ID).Error
	}
	return errCreate
}

// Surcharge returns the flat admission cost for a model, zero for unknown
// models.
func (p *Pricing) Surcharge(modelID string) decimal.Decimal {
	return p.cfg.Current().SurchargeFor(modelID)
}

// defaults resolves the fallback prices: DB settings override the config
// file, and negative token rates make the defaults unusable.
func (p *Pricing) defaults() (input, output, perMsg decimal.Decimal, ok bool) {
	input, output, perMsg, ok = p.cfg.Current().DefaultPrices()

	overrodeInput, overrodeOutput := false, false
	if override, found := settings.DecimalValue(settings.DefaultInputPriceKey); found {
		input, overrodeInput = override, true
	}
	if override, found := settings.DecimalValue(settings.DefaultOutputPriceKey); found {
		output, overrodeOutput = override, true
	}
	if override, found := settings.DecimalValue(settings.DefaultPerMsgPriceKey); found {
		perMsg = override
	}

	if !ok && !(overrodeInput && overrodeOutput) {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	if input.IsNegative() || output.IsNegative() {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	return input, output, perMsg, true
}

// isTransient reports whether an error looks like a dropped connection.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof")
}
