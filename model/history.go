package model

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one answered question in the chat history
type HistoryEntry struct {
	ID        int64       `json:"id"`
	RID       uuid.UUID   `json:"rid"`
	Question  string      `json:"question"`
	Result    QueryResult `json:"result"`
	CreatedAt time.Time   `json:"created_at"`
}
