package audit

import "errors"

var (
	// ErrMarshalValues возвращается, когда значения не удалось сериализовать в JSON
	ErrMarshalValues = errors.New("audit: failed to marshal values")

	// ErrInternal возвращается при ошибке записи
	ErrInternal = errors.New("audit: internal error")
)
