package webhookevent

import "errors"

var (
	// ErrEventNotFound возвращается, когда событие не найдено
	ErrEventNotFound = errors.New("webhookevent.repository: event not found")

	// ErrEventLocked возвращается, когда событие уже обработано или обрабатывается другим обработчиком
	ErrEventLocked = errors.New("webhookevent.repository: event already processed or locked")

	// ErrBuildQuery возвращается при ошибке построения SQL запроса
	ErrBuildQuery = errors.New("webhookevent.repository: failed to build query")

	// ErrExecQuery возвращается при ошибке выполнения SQL запроса
	ErrExecQuery = errors.New("webhookevent.repository: failed to execute query")

	// ErrScanRow возвращается при ошибке сканирования результата запроса
	ErrScanRow = errors.New("webhookevent.repository: failed to scan row")
)
