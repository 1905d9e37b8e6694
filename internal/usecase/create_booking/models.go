package create_booking

import (
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/types"
)

// Request модель запроса на создание бронирования
type Request struct {
	CustomerID int64            // ID клиента (из X-User-ID)
	Role       domain.Role      // Роль вызывающего
	ServiceID  int64            // ID услуги в каталоге
	Date       time.Time        // Дата визита (без времени)
	StartTime  types.TimeString // Время начала, например "10:00"
	Notes      *string          // Заметки для техника (опционально)
}
