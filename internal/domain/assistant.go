package domain

import (
	"context"
	"time"
)

// LLMTransport sends one completion request to a language model
type LLMTransport interface {
	// Complete returns the raw model text for a system prompt, a user query
	// and optional images
	Complete(ctx context.Context, systemPrompt, userQuery string, images [][]byte) (string, error)
}

// AssistantResponse is the result of one consult
type AssistantResponse struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	Commands      []PlanCommand `json:"commands"`
	ActionSummary string        `json:"action_summary,omitempty"`
	Degraded      bool          `json:"degraded"` // transport failed, Text is the fallback message
	CreatedAt     time.Time     `json:"created_at"`
}

// Consultation is the persisted history entry of a consult
type Consultation struct {
	ID            string        `bson:"_id" json:"id"`
	UserID        string        `bson:"user_id" json:"user_id"`
	Query         string        `bson:"query" json:"query"`
	Response      string        `bson:"response" json:"response"`
	Commands      []PlanCommand `bson:"commands" json:"commands"`
	ActionSummary string        `bson:"action_summary,omitempty" json:"action_summary,omitempty"`
	Degraded      bool          `bson:"degraded" json:"degraded"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
}

// ConsultationRepository stores the assistant history
type ConsultationRepository interface {
	Create(ctx context.Context, c *Consultation) error

	// ListByUser returns the latest consultations first
	ListByUser(ctx context.Context, userID string, limit int64) ([]*Consultation, error)

	DeleteByUser(ctx context.Context, userID string) error
}
