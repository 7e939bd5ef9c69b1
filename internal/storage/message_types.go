package storage

import "time"

// CVUploadedMessage cv.uploaded 事件载荷
type CVUploadedMessage struct {
	CVID             uint64    `json:"cv_id"`
	UserID           uint64    `json:"user_id"`
	FileKey          string    `json:"file_key"`
	OriginalFilename string    `json:"original_filename"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// CompanyRegisteredMessage company.registered 事件载荷
type CompanyRegisteredMessage struct {
	CompanyID    uint64    `json:"company_id"`
	OwnerID      uint64    `json:"owner_id"`
	Name         string    `json:"name"`
	OwnerEmail   string    `json:"owner_email"`
	RegisteredAt time.Time `json:"registered_at"`
}
