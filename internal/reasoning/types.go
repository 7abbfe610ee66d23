// Package reasoning talks to the external reasoning service that produces
// interviewer replies. Every request and response crosses the network
// sealed in an envelope.
package reasoning

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned when the service answers with no text
var ErrEmptyReply = errors.New("reasoning service returned an empty reply")

// Role tags a turn in the conversation history
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one immutable message of the conversation history
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the decoded request payload
type Request struct {
	History      []Turn `json:"history"`
	SystemPrompt string `json:"systemPrompt"`
}

// Response is the decoded response payload
type Response struct {
	Reply string `json:"reply"`
}

// Client performs one reasoning round-trip
type Client interface {
	Reply(ctx context.Context, req Request) (Response, error)
	HealthCheck(ctx context.Context) (bool, error)
	Close() error
}
