package quotations

import "errors"

var (
	// ErrQuotationNotFound возвращается, когда квотация не найдена
	ErrQuotationNotFound = errors.New("quotations: quotation not found")

	// ErrBookingNotFound возвращается, когда бронирование не найдено
	ErrBookingNotFound = errors.New("quotations: booking not found")

	// ErrAccessDenied возвращается, когда у пользователя нет прав доступа
	ErrAccessDenied = errors.New("quotations: access denied")

	// ErrQuotationAlreadyPending возвращается, когда у бронирования уже есть pending квотация
	ErrQuotationAlreadyPending = errors.New("quotations: booking already has a pending quotation")

	// ErrAlreadyProcessed возвращается при решении по уже закрытой квотации
	ErrAlreadyProcessed = errors.New("quotations: quotation already processed")

	// ErrQuotationExpired возвращается при решении по просроченной квотации
	ErrQuotationExpired = errors.New("quotations: quotation expired")

	// ErrInvalidTransition возвращается, когда бронирование не может перейти в нужный статус
	ErrInvalidTransition = errors.New("quotations: invalid booking status transition")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("quotations: invalid input data")

	// ErrInternal возвращается при внутренних ошибках сервиса
	ErrInternal = errors.New("quotations: internal error")
)
