package notificationservice

// NotificationRequest тело запроса на отправку уведомления
type NotificationRequest struct {
	UserID      int64                  `json:"userId"`
	TemplateKey string                 `json:"templateKey"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}
