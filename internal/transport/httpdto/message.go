package httpdto

type SendMessageRequest struct {
	ThreadID    string              `json:"thread_id" binding:"required"`
	Content     string              `json:"content"`
	MessageType string              `json:"message_type"`
	Priority    string              `json:"priority"`
	Attachments []AttachmentRequest `json:"attachments"`
}

type AttachmentRequest struct {
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	SizeBytes  int64  `json:"size_bytes"`
	StorageKey string `json:"storage_key"`
}

type SearchMessagesRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}
