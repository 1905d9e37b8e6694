package receive_webhook

import (
	"context"
	"net/http"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/webhooks/models"
)

type WebhookService interface {
	Signature(provider string, header http.Header) (string, error)
	Receive(ctx context.Context, provider string, payload []byte, signature string) (*models.ReceiveResult, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
