package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/NamanBalaji/vbridge/internal/status"
)

// Record is the persisted summary of one transfer operation.
type Record struct {
	ID        uuid.UUID     `json:"id"`
	Source    string        `json:"source"`
	FileID    string        `json:"fileId"`
	PageID    string        `json:"pageId"`
	VideoURL  string        `json:"videoUrl,omitempty"`
	Status    status.Status `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime,omitempty"`
}
