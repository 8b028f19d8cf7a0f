package llm

import (
	"context"
	"encoding/json"
	"net/http"

	"ai-shopping-assistant-be/pkg/shopping"
)

// EmbeddingDimensions is the width of every vector stored in the catalog.
const EmbeddingDimensions = 1536

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Action types a provider may propose.
const (
	ActionSuggestCarts = "suggest_carts"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant"
	Content string
	// TurnRef is the continuity handle stored with an assistant reply, if any.
	TurnRef *string
}

type TurnRequest struct {
	Message string
	// PriorTurnRef is the continuity handle of the latest assistant turn, if any.
	PriorTurnRef *string
	// History is every earlier message of the session in creation order,
	// excluding Message itself.
	History []Message
}

type ProposedAction struct {
	Type    string
	Payload json.RawMessage
}

type TurnResult struct {
	Reply   string
	Action  *ProposedAction
	TurnRef string
}

// Provider is the contract every language-model backend satisfies.
// Implementations receive both the continuity handle and the full history and
// use whichever they need.
type Provider interface {
	Name() string

	CompleteTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)

	// Embed returns a vector of exactly EmbeddingDimensions values.
	Embed(ctx context.Context, text string) ([]float32, error)

	// AssembleCarts only returns stores and products present in candidates.
	AssembleCarts(ctx context.Context, candidates shopping.CandidatesByStore, input string) ([]shopping.CartProposal, error)

	// SubmitBatchEmbedding registers an asynchronous embedding job and returns
	// once the job is accepted.
	SubmitBatchEmbedding(ctx context.Context, products []shopping.ProductText) error

	// IngestBatchResult unwraps a batch-completion notification. It returns
	// (nil, nil) when the notification is not a completion event for this
	// provider or cannot be matched to a job.
	IngestBatchResult(ctx context.Context, payload []byte, headers http.Header) ([]shopping.EmbeddingRecord, error)
}
