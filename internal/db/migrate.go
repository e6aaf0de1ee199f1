package db

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/metergate/metergate/internal/models"
)

// Migrate creates or updates the schema and seeds required rows.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errMigrate := conn.AutoMigrate(
		&models.Account{},
		&models.Group{},
		&models.GroupMembership{},
		&models.ModelPrice{},
		&models.Transaction{},
		&models.UsageRecord{},
		&models.Topup{},
		&models.SystemStat{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}

	return seedGlobalUsageStat(conn)
}

// seedGlobalUsageStat initializes the cumulative spend counter from the
// usage-record log when the row does not exist yet. An existing row is left
// untouched; reconciliation owns later corrections.
func seedGlobalUsageStat(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.SystemStat{}).
		Where("key = ?", models.StatKeyGlobalUsage).
		Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: seed stats: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	var total decimal.Decimal
	if errSum := conn.Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(cost), 0)").
		Scan(&total).Error; errSum != nil {
		return fmt.Errorf("db: seed stats: %w", errSum)
	}

	row := models.SystemStat{Key: models.StatKeyGlobalUsage, ValueDecimal: total}
	if errCreate := conn.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; errCreate != nil {
		return fmt.Errorf("db: seed stats: %w", errCreate)
	}
	return nil
}
