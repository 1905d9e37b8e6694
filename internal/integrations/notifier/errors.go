package notifier

import "errors"

var (
	// ErrConnect возвращается, когда не удалось подключиться к брокеру
	ErrConnect = errors.New("notifier: broker connection failed")

	// ErrPublish возвращается, когда сообщение не опубликовано
	ErrPublish = errors.New("notifier: publish failed")
)
