package queue

import (
	"github.com/nikhilbhutani/docconvert/internal/models"
)

const (
	TypeDocumentConvert = "document:convert"
	TypeStorePurge      = "store:purge"
)

// ConvertPayload is the job envelope. The attempt count is not carried here;
// it comes from the queue's retry counter.
type ConvertPayload struct {
	Task models.Task `json:"task"`
}

type PurgePayload struct {
	OlderThanSeconds int64 `json:"older_than_seconds"`
}
