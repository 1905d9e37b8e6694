package omisegateway

import "errors"

var (
	// ErrRequest возвращается при ошибке обращения к Omise
	ErrRequest = errors.New("omise gateway: request failed")

	// ErrSignature возвращается, когда подпись вебхука не совпала
	ErrSignature = errors.New("omise gateway: signature mismatch")

	// ErrPayload возвращается, когда тело события не разбирается
	ErrPayload = errors.New("omise gateway: malformed payload")
)
