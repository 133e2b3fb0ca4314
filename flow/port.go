package flow

import (
	"context"
	"time"

	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// FlowRepository persistencia de flows
type FlowRepository interface {
	Save(ctx context.Context, f Flow) error
	FindByID(ctx context.Context, id kernel.FlowID) (*Flow, error)
	FindMainByChannel(ctx context.Context, tenantID kernel.TenantID, channelID kernel.ChannelID) (*Flow, error)
	FindFallback(ctx context.Context, tenantID kernel.TenantID, chatbotID kernel.ChatbotID) (*Flow, error)
	FindByChatbot(ctx context.Context, tenantID kernel.TenantID, chatbotID kernel.ChatbotID) ([]*Flow, error)
	Delete(ctx context.Context, id kernel.FlowID, tenantID kernel.TenantID) error
	List(ctx context.Context, req FlowListRequest) (FlowListResponse, error)
}

// ConversationRepository persistencia del puntero de ejecución y contexto.
// Implementations must serialize writes per conversation id; the engine
// assumes at most one concurrent tick per conversation.
type ConversationRepository interface {
	Save(ctx context.Context, conv Conversation) error
	FindByID(ctx context.Context, id kernel.ConversationID) (*Conversation, error)
	FindByChannelAndContact(ctx context.Context, channelID kernel.ChannelID, contactID string) (*Conversation, error)
	// FindAwaitingBefore returns conversations whose pending question answer
	// predates the cutoff, for the timeout sweeper.
	FindAwaitingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Conversation, error)
	Delete(ctx context.Context, id kernel.ConversationID) error
}

// MessageRepository persistencia de mensajes del engine
type MessageRepository interface {
	SaveInbound(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, msg InboundMessage) error
	CreateOutboundRecord(ctx context.Context, rec OutboundRecord) error
	CountOutboundByConversation(ctx context.Context, conversationID kernel.ConversationID) (int, error)
}

// ContactUpdater writes contact fields collected during a flow run back to
// the CRM layer. Unknown fields land in the custom-fields bag.
type ContactUpdater interface {
	UpdateContact(ctx context.Context, tenantID kernel.TenantID, contactID string, fields map[string]any, custom map[string]any) error
}

// ============================================================================
// Handler Interface
// ============================================================================

// NodeHandler executes one node type. Handlers mutate the Execution value and
// report what the runner should do next; they never persist state themselves.
type NodeHandler interface {
	Execute(ctx context.Context, exec *Execution, node Node, inbound *InboundMessage) (Outcome, error)
	SupportsType(nodeType NodeType) bool
	ValidateConfig(data map[string]any) error
}

// ============================================================================
// External Collaborator Interfaces
// ============================================================================

// AIProvider is the narrow chat-completion contract the ai_prompt node needs.
type AIProvider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// ChatRequest parámetros de una llamada chat-completion
type ChatRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  *float32
	MaxTokens    *int
	APIKey       string // per-node override; providers fall back to their own key
	Endpoint     string // custom provider only
}

// DatabaseBackend executes one query against a given connection string and
// returns a uniform list-of-row-objects shape.
type DatabaseBackend interface {
	Type() string
	Query(ctx context.Context, connectionString, query string, params []any) ([]map[string]any, error)
}

// ============================================================================
// Scheduling & Locking
// ============================================================================

// Continuation is a persisted "resume here later" record for scheduled
// delays; the worker re-invokes the runner from it.
type Continuation struct {
	ID             string                `json:"id"`
	TenantID       kernel.TenantID       `json:"tenant_id"`
	ConversationID kernel.ConversationID `json:"conversation_id"`
	FlowID         kernel.FlowID         `json:"flow_id"`
	ResumeNodeID   string                `json:"resume_node_id"`
	ScheduledFor   time.Time             `json:"scheduled_for"`
	CreatedAt      time.Time             `json:"created_at"`
}

// ContinuationHandler is invoked by the scheduler worker when a continuation
// comes due.
type ContinuationHandler func(ctx context.Context, c *Continuation) error

// DelayScheduler schedules out-of-process resumes for long delays.
type DelayScheduler interface {
	Schedule(ctx context.Context, c *Continuation, delay time.Duration) error
	ShouldUseAsync(d time.Duration) bool
	Cancel(ctx context.Context, id string) error
}

// ConversationLocker serializes ticks per conversation id. Acquire returns a
// release func, or an error when another tick holds the lock.
type ConversationLocker interface {
	Acquire(ctx context.Context, id kernel.ConversationID) (release func(), err error)
}
