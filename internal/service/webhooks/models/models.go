package models

// ReceiveResult результат приема вебхука
type ReceiveResult struct {
	EventID   string `json:"eventId"`
	Duplicate bool   `json:"duplicate"`
	Status    string `json:"status"`
}
