package dedup

import "errors"

// ErrUnavailable возвращается, когда redis недоступен
var ErrUnavailable = errors.New("dedup: redis unavailable")
