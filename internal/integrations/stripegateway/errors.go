package stripegateway

import "errors"

var (
	// ErrRequest возвращается при ошибке обращения к Stripe
	ErrRequest = errors.New("stripe gateway: request failed")

	// ErrSignature возвращается, когда подпись вебхука не совпала
	ErrSignature = errors.New("stripe gateway: signature mismatch")

	// ErrPayload возвращается, когда тело события не разбирается
	ErrPayload = errors.New("stripe gateway: malformed payload")
)
