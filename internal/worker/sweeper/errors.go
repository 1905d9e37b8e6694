package sweeper

import "errors"

var (
	// ErrInvalidSchedule возвращается при некорректном cron расписании
	ErrInvalidSchedule = errors.New("sweeper: invalid schedule")
)
