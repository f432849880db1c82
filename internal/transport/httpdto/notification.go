package httpdto

type UpdatePreferencesRequest struct {
	EmailNotifications *bool  `json:"email_notifications"`
	PushNotifications  *bool  `json:"push_notifications"`
	SMSNotifications   *bool  `json:"sms_notifications"`
	QuietHoursStart    string `json:"quiet_hours_start"`
	QuietHoursEnd      string `json:"quiet_hours_end"`
}
