package domain

// Default business values
const (
	DefaultVATRate               = "0.15"
	DefaultCurrency              = "SAR"
	DefaultQuotationExpiryHours  = 168 // 7 days
	DefaultWalletHistoryLimit    = 50
	MaxWalletHistoryLimit        = 200
	DefaultWebhookMaxAttempts    = 5
	DefaultGatewayTimeoutSeconds = 10
)

// Business validation constants
const (
	MaxNotesLength              = 500
	MaxCancellationReasonLength = 500
	MaxRefundReasonLength       = 500
	MaxQuotationLineItems       = 50
	MaxQuotationExpiryHours     = 720 // 30 days
)

// Time format constants
const (
	TimeFormat = "15:04"      // HH:MM
	DateFormat = "2006-01-02" // YYYY-MM-DD
)
