package webhooks

import "errors"

var (
	// ErrUnknownProvider возвращается для неизвестного провайдера
	ErrUnknownProvider = errors.New("webhooks: unknown provider")

	// ErrInvalidSignature возвращается, когда подпись не прошла проверку
	ErrInvalidSignature = errors.New("webhooks: invalid signature")

	// ErrInvalidPayload возвращается, когда тело события не разбирается
	ErrInvalidPayload = errors.New("webhooks: invalid payload")

	// ErrInternal возвращается при внутренних ошибках сервиса
	ErrInternal = errors.New("webhooks: internal error")
)
