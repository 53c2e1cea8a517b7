package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist for the user.
var ErrNotFound = errors.New("run not found")

// Run records the metadata of one completed analysis. The generated text
// itself is not stored.
type Run struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"-"`
	Model                 string    `json:"model"`
	ModelClass            string    `json:"modelClass"`
	FileIDs               []string  `json:"fileIds"`
	Prompt                string    `json:"prompt"`
	ArtifactKind          string    `json:"artifactKind,omitempty"`
	ProcessingTimeSeconds float64   `json:"processingTimeSeconds"`
	InputTokens           int       `json:"inputTokens"`
	OutputTokens          int       `json:"outputTokens"`
	ReasoningTokens       int       `json:"reasoningTokens"`
	TotalTokens           int       `json:"totalTokens"`
	CreatedAt             time.Time `json:"createdAt"`
}

// Repo persists runs.
type Repo interface {
	Create(ctx context.Context, run Run) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error)
	GetByID(ctx context.Context, userID, runID string) (Run, error)
}
