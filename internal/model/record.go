// Package model defines the core document data types.
package model

import (
	"fmt"
	"time"
)

// Record is a current document as stored and retrieved.
type Record struct {
	ID          string            `json:"id"`
	Collection  string            `json:"collection"`
	Summary     string            `json:"summary"`
	Tags        map[string]string `json:"tags,omitempty"`
	ContentHash string            `json:"content_hash"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	AccessedAt  time.Time         `json:"accessed_at"`
	Score       float64           `json:"score,omitempty"`
}

// Version is a frozen prior state of a document. CreatedAt is the moment
// this state ceased to be current.
type Version struct {
	ID          string            `json:"id"`
	Collection  string            `json:"collection"`
	Version     int               `json:"version"`
	Summary     string            `json:"summary"`
	Tags        map[string]string `json:"tags,omitempty"`
	ContentHash string            `json:"content_hash"`
	CreatedAt   time.Time         `json:"created_at"`
}

// VersionNav holds archived versions on either side of a point in a
// document's history, for navigation display.
type VersionNav struct {
	Prev []Version `json:"prev"`
	Next []Version `json:"next"`
}

// PendingItem is a queued request for background summarization.
type PendingItem struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Content    string    `json:"content"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// EmbeddingIdentity pins the store to the embedding provider that produced
// its vectors. Recorded on first write, validated on every load.
type EmbeddingIdentity struct {
	Provider  string `json:"provider" toml:"provider"`
	Model     string `json:"model" toml:"model"`
	Dimension int    `json:"dimension" toml:"dimension"`
}

// Equal reports whether two identities describe the same provider, model
// and dimension.
func (e EmbeddingIdentity) Equal(other EmbeddingIdentity) bool {
	return e.Provider == other.Provider && e.Model == other.Model && e.Dimension == other.Dimension
}

// String renders the identity as provider/model (dims).
func (e EmbeddingIdentity) String() string {
	return fmt.Sprintf("%s/%s (%d dims)", e.Provider, e.Model, e.Dimension)
}
