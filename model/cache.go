package model

import "time"

// CacheEntry is a stored answer keyed by the normalized question hash
type CacheEntry struct {
	Key       string      `json:"key"`
	Query     string      `json:"query"`
	Result    QueryResult `json:"result"`
	Timestamp time.Time   `json:"timestamp"`
}
