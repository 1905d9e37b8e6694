package credit_wallet

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet/models"
)

type WalletService interface {
	AdminCredit(ctx context.Context, req *models.CreditRequest) (*models.TransactionResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
