package notificationservice

import "errors"

var (
	// ErrRejected возвращается, когда сервис отклонил уведомление
	ErrRejected = errors.New("notification client: notification rejected")

	// ErrInternal возвращается при внутренних ошибках клиента
	ErrInternal = errors.New("notification client: internal error")

	// ErrInvalidResponse возвращается при некорректном ответе от сервиса
	ErrInvalidResponse = errors.New("notification client: invalid response")
)
