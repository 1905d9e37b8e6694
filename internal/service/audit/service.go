package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// Service пишет журнал аудита
type Service struct {
	repo Repository
}

// NewService создает новый экземпляр сервиса аудита
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record добавляет запись аудита.
// Должен вызываться внутри транзакции изменения: ошибка записи откатывает изменение.
func (s *Service) Record(
	ctx context.Context,
	actorID int64,
	action string,
	resourceType string,
	resourceID int64,
	oldValues interface{},
	newValues interface{},
) error {
	oldJSON, err := marshalValues(oldValues)
	if err != nil {
		return fmt.Errorf("%w: Record - old values of %s %d: %v", ErrMarshalValues, resourceType, resourceID, err)
	}

	newJSON, err := marshalValues(newValues)
	if err != nil {
		return fmt.Errorf("%w: Record - new values of %s %d: %v", ErrMarshalValues, resourceType, resourceID, err)
	}

	entry := &domain.AuditLog{
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    oldJSON,
		NewValues:    newJSON,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("%w: Record - %s on %s %d: %v", ErrInternal, action, resourceType, resourceID, err)
	}

	return nil
}

func marshalValues(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
