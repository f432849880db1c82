package httpdto

type PrepareUploadRequest struct {
	ThreadID    string `json:"thread_id" binding:"required"`
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	SizeBytes   int64  `json:"size_bytes" binding:"required"`
}
