package get_wallet

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet/models"
)

type WalletService interface {
	GetWallet(ctx context.Context, req *models.GetWalletRequest) (*models.WalletResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
