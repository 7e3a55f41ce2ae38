package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func prepare(entry Entry, now time.Time) (Entry, error) {
	entry.ObservableID = strings.TrimSpace(entry.ObservableID)
	if entry.ObservableID == "" {
		return Entry{}, fmt.Errorf("observable_id is required")
	}
	if entry.Operation == "" {
		return Entry{}, fmt.Errorf("operation is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}
