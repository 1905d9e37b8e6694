package audit

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// Repository интерфейс журнала аудита
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
