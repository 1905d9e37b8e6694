package payments

import "errors"

var (
	// ErrBookingNotFound возвращается, когда бронирование не найдено
	ErrBookingNotFound = errors.New("payments: booking not found")

	// ErrPaymentNotFound возвращается, когда платеж не найден
	ErrPaymentNotFound = errors.New("payments: payment not found")

	// ErrAccessDenied возвращается, когда у пользователя нет прав доступа
	ErrAccessDenied = errors.New("payments: access denied")

	// ErrInvalidAmount возвращается при отрицательных или нулевых суммах
	ErrInvalidAmount = errors.New("payments: invalid amount")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("payments: invalid input data")

	// ErrAmountMismatch возвращается, когда сумма частей не равна остатку к оплате
	ErrAmountMismatch = errors.New("payments: amount does not match outstanding amount")

	// ErrInsufficientBalance возвращается, когда на кошельке недостаточно средств
	ErrInsufficientBalance = errors.New("payments: insufficient wallet balance")

	// ErrPaymentNotRefundable возвращается, когда платеж нельзя вернуть
	ErrPaymentNotRefundable = errors.New("payments: payment is not refundable")

	// ErrGatewayTimeout возвращается, когда шлюз не ответил вовремя; платеж остается pending
	ErrGatewayTimeout = errors.New("payments: gateway did not respond, payment left pending")

	// ErrInternal возвращается при внутренних ошибках сервиса
	ErrInternal = errors.New("payments: internal error")
)
