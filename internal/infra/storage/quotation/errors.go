package quotation

import "errors"

var (
	// ErrQuotationNotFound возвращается, когда квотация не найдена
	ErrQuotationNotFound = errors.New("quotation.repository: quotation not found")

	// ErrPendingQuotationExists возвращается при попытке создать вторую pending квотацию
	ErrPendingQuotationExists = errors.New("quotation.repository: pending quotation already exists")

	// ErrQuotationNotPending возвращается, когда квотация уже переведена в итоговый статус
	ErrQuotationNotPending = errors.New("quotation.repository: quotation is not pending")

	// ErrBuildQuery возвращается при ошибке построения SQL запроса
	ErrBuildQuery = errors.New("quotation.repository: failed to build query")

	// ErrExecQuery возвращается при ошибке выполнения SQL запроса
	ErrExecQuery = errors.New("quotation.repository: failed to execute query")

	// ErrScanRow возвращается при ошибке сканирования результата запроса
	ErrScanRow = errors.New("quotation.repository: failed to scan row")
)
