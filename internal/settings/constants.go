package settings

// DB config keys for admin-tunable settings.
const (
	// SiteNameKey is the DB config key for the panel site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback panel site name.
	DefaultSiteName = "Metergate"
	// DefaultInputPriceKey overrides the configured default input token price.
	DefaultInputPriceKey = "DEFAULT_MODEL_INPUT_PRICE"
	// DefaultOutputPriceKey overrides the configured default output token price.
	DefaultOutputPriceKey = "DEFAULT_MODEL_OUTPUT_PRICE"
	// DefaultPerMsgPriceKey overrides the configured default per-message price.
	DefaultPerMsgPriceKey = "DEFAULT_MODEL_PER_MSG_PRICE"
	// RecordsRetentionDaysKey bounds how long usage records are kept.
	// Zero or absent disables retention cleanup.
	RecordsRetentionDaysKey = "USAGE_RECORDS_RETENTION_DAYS"
)
