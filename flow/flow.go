package flow

import (
	"time"

	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// ============================================================================
// Flow Entity
// ============================================================================

// Flow is one chatbot behavior: an immutable-per-version directed graph of
// typed nodes. Exactly one flow per chatbot is the main entry; at most one is
// the fallback (enforced by the CRUD layer, consumed as invariant here).
type Flow struct {
	ID         kernel.FlowID    `db:"id" json:"id"`
	TenantID   kernel.TenantID  `db:"tenant_id" json:"tenant_id"`
	ChatbotID  kernel.ChatbotID `db:"chatbot_id" json:"chatbot_id"`
	Name       string           `db:"name" json:"name"`
	Nodes      []Node           `db:"nodes" json:"nodes"`
	Edges      []Edge           `db:"edges" json:"edges"`
	IsMain     bool             `db:"is_main" json:"is_main"`
	IsFallback bool             `db:"is_fallback" json:"is_fallback"`
	IsActive   bool             `db:"is_active" json:"is_active"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// Node is a pure template: it never references conversation state.
type Node struct {
	ID    string         `json:"id"`
	Type  NodeType       `json:"type"`
	Label string         `json:"label,omitempty"`
	Data  map[string]any `json:"data"`
}

// Edge connects two nodes. Label is free text used only for branch matching.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// NodeType tipo de nodo (closed set)
type NodeType string

const (
	NodeTypeStart         NodeType = "start"
	NodeTypeMessage       NodeType = "message"
	NodeTypeQuestion      NodeType = "question"
	NodeTypeCondition     NodeType = "condition"
	NodeTypeDelay         NodeType = "delay"
	NodeTypeJump          NodeType = "jump"
	NodeTypeAction        NodeType = "action"
	NodeTypeAPICall       NodeType = "api_call"
	NodeTypeAIPrompt      NodeType = "ai_prompt"
	NodeTypeDatabaseQuery NodeType = "database_query"
	NodeTypeScript        NodeType = "script"
	NodeTypeSetVariable   NodeType = "set_variable"
	NodeTypeRandom        NodeType = "random"
	NodeTypeDatetime      NodeType = "datetime"
	NodeTypeHandoff       NodeType = "handoff"
	NodeTypeTemplate      NodeType = "whatsapp_template"
	NodeTypeButtons       NodeType = "interactive_buttons"
	NodeTypeList          NodeType = "interactive_list"
	NodeTypeEnd           NodeType = "end"
)

// AllNodeTypes is the closed set handlers can register against.
var AllNodeTypes = []NodeType{
	NodeTypeStart, NodeTypeMessage, NodeTypeQuestion, NodeTypeCondition,
	NodeTypeDelay, NodeTypeJump, NodeTypeAction, NodeTypeAPICall,
	NodeTypeAIPrompt, NodeTypeDatabaseQuery, NodeTypeScript,
	NodeTypeSetVariable, NodeTypeRandom, NodeTypeDatetime, NodeTypeHandoff,
	NodeTypeTemplate, NodeTypeButtons, NodeTypeList, NodeTypeEnd,
}

// ============================================================================
// Domain Methods - Flow
// ============================================================================

// GetNode obtiene un nodo por ID
func (f *Flow) GetNode(nodeID string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == nodeID {
			return &f.Nodes[i]
		}
	}
	return nil
}

// StartNode returns the flow's start node, or nil when the graph has none.
func (f *Flow) StartNode() *Node {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeTypeStart {
			return &f.Nodes[i]
		}
	}
	return nil
}

// EdgesFrom returns the outgoing edges of a node in declaration order.
func (f *Flow) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IsValid verifica si el flow es válido
func (f *Flow) IsValid() bool {
	return f.Name != "" && len(f.Nodes) > 0 && !f.TenantID.IsEmpty()
}

// Validate checks structural invariants of the graph: a single start node,
// unique node ids and edges whose endpoints exist.
func (f *Flow) Validate() error {
	if !f.IsValid() {
		return ErrInvalidFlowGraph().WithDetail("reason", "flow is not valid")
	}

	nodeIDs := make(map[string]bool)
	startCount := 0
	for _, node := range f.Nodes {
		if node.ID == "" {
			return ErrInvalidFlowNode().WithDetail("reason", "node has no ID")
		}
		if nodeIDs[node.ID] {
			return ErrInvalidFlowNode().
				WithDetail("node_id", node.ID).
				WithDetail("reason", "duplicate node ID")
		}
		nodeIDs[node.ID] = true
		if node.Type == NodeTypeStart {
			startCount++
		}
	}
	if startCount != 1 {
		return ErrInvalidFlowGraph().WithDetail("reason", "flow must have exactly one start node")
	}

	for _, edge := range f.Edges {
		if !nodeIDs[edge.Source] {
			return ErrInvalidFlowGraph().
				WithDetail("edge_source", edge.Source).
				WithDetail("reason", "edge source references non-existent node")
		}
		if !nodeIDs[edge.Target] {
			return ErrInvalidFlowGraph().
				WithDetail("edge_target", edge.Target).
				WithDetail("reason", "edge target references non-existent node")
		}
	}

	return nil
}

// ============================================================================
// Conversation Entity
// ============================================================================

// ConversationStatus estado de la conversación
type ConversationStatus string

const (
	ConversationStatusActive ConversationStatus = "ACTIVE"
	ConversationStatusQueued ConversationStatus = "QUEUED"
	ConversationStatusClosed ConversationStatus = "CLOSED"
)

// Priority prioridad de atención humana
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Conversation carries the execution pointer and context of one contact's
// chat. The pointer plus Context is the entire persisted state required to
// resume after a process restart.
type Conversation struct {
	ID            kernel.ConversationID
	TenantID      kernel.TenantID
	ChannelID     kernel.ChannelID
	ContactID     string // WhatsApp number of the contact
	ActiveFlowID  kernel.FlowID
	CurrentNodeID *string
	Context       ExecutionContext
	IsBotActive   bool
	Status        ConversationStatus
	QueueID       kernel.QueueID
	Priority      Priority
	AwaitingSince *time.Time // set while a question waits for an answer
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsValid verifica si la conversación es válida
func (c *Conversation) IsValid() bool {
	return !c.ID.IsEmpty() && !c.ChannelID.IsEmpty() && c.ContactID != ""
}

// PointTo moves the execution pointer to a node.
func (c *Conversation) PointTo(nodeID string) {
	c.CurrentNodeID = &nodeID
	c.UpdatedAt = time.Now()
}

// ClearPointer leaves the conversation "between runs".
func (c *Conversation) ClearPointer() {
	c.CurrentNodeID = nil
	c.UpdatedAt = time.Now()
}

// CurrentNode returns the pointer value, "" when unset.
func (c *Conversation) CurrentNode() string {
	if c.CurrentNodeID == nil {
		return ""
	}
	return *c.CurrentNodeID
}

// Complete ends the flow run normally: bot off, pointer cleared.
func (c *Conversation) Complete() {
	c.ClearPointer()
	c.IsBotActive = false
	c.AwaitingSince = nil
	c.UpdatedAt = time.Now()
}

// HandOff queues the conversation for a human agent and deactivates the bot.
func (c *Conversation) HandOff(queueID kernel.QueueID, priority Priority) {
	c.ClearPointer()
	c.IsBotActive = false
	c.Status = ConversationStatusQueued
	c.QueueID = queueID
	if priority == "" {
		priority = PriorityMedium
	}
	c.Priority = priority
	c.AwaitingSince = nil
	c.UpdatedAt = time.Now()
}

// Reset returns the conversation to "no active node"; the next inbound
// message re-enters at the flow's start node.
func (c *Conversation) Reset() {
	c.ClearPointer()
	c.IsBotActive = true
	c.Status = ConversationStatusActive
	c.Context = NewExecutionContext()
	c.AwaitingSince = nil
	c.UpdatedAt = time.Now()
}

// MarkAwaiting records when a question prompt was sent.
func (c *Conversation) MarkAwaiting() {
	now := time.Now()
	c.AwaitingSince = &now
	c.UpdatedAt = now
}

// ClearAwaiting clears the pending-answer window.
func (c *Conversation) ClearAwaiting() {
	c.AwaitingSince = nil
	c.UpdatedAt = time.Now()
}

// ============================================================================
// Message Entities
// ============================================================================

// InboundMessage is a normalized message received from the channel.
type InboundMessage struct {
	ID        kernel.MessageID `json:"id"`
	ChannelID kernel.ChannelID `json:"channel_id"`
	From      string           `json:"from"`
	Type      string           `json:"type"` // text, image, audio, interactive...
	Text      string           `json:"text,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// OutboundRecord is the persisted trace of a message the engine sent.
type OutboundRecord struct {
	ID             kernel.MessageID      `db:"id" json:"id"`
	TenantID       kernel.TenantID       `db:"tenant_id" json:"tenant_id"`
	ConversationID kernel.ConversationID `db:"conversation_id" json:"conversation_id"`
	NodeID         string                `db:"node_id" json:"node_id"`
	Kind           string                `db:"kind" json:"kind"` // text, media, buttons, list, template
	Body           string                `db:"body" json:"body"`
	ProviderMsgID  string                `db:"provider_msg_id" json:"provider_msg_id,omitempty"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
}

// ============================================================================
// Tick Outcome
// ============================================================================

// OutcomeKind says what the runner should do after a handler executes.
type OutcomeKind int

const (
	// OutcomeAdvance follows the node's first outgoing edge.
	OutcomeAdvance OutcomeKind = iota
	// OutcomeBranch follows the edge whose label matches the boolean result.
	OutcomeBranch
	// OutcomeJump moves the pointer directly, bypassing edge-following.
	OutcomeJump
	// OutcomeSuspend stops the tick with the pointer left on this node.
	OutcomeSuspend
	// OutcomeTerminate ends the flow run; the handler already updated the
	// conversation (handoff or completion).
	OutcomeTerminate
)

// Outcome is the uniform result of one node handler execution.
type Outcome struct {
	Kind         OutcomeKind
	Branch       bool          // valid when Kind == OutcomeBranch
	TargetNodeID string        // valid when Kind == OutcomeJump
	TargetFlowID kernel.FlowID // non-empty on cross-flow jumps
}

func Advance() Outcome             { return Outcome{Kind: OutcomeAdvance} }
func BranchTo(result bool) Outcome { return Outcome{Kind: OutcomeBranch, Branch: result} }
func Suspend() Outcome             { return Outcome{Kind: OutcomeSuspend} }
func Terminate() Outcome           { return Outcome{Kind: OutcomeTerminate} }

func JumpTo(nodeID string) Outcome {
	return Outcome{Kind: OutcomeJump, TargetNodeID: nodeID}
}

func JumpToFlow(flowID kernel.FlowID, nodeID string) Outcome {
	return Outcome{Kind: OutcomeJump, TargetFlowID: flowID, TargetNodeID: nodeID}
}

// Execution is the mutable state threaded through every handler call within
// one tick. Handlers mutate Conversation (variables, pointer markers) and the
// runner writes it back once at the end of the tick.
type Execution struct {
	Conversation *Conversation
	Flow         *Flow
}
