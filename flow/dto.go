package flow

import (
	"encoding/json"

	"github.com/Abraxas-365/craftable/storex"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// ============================================================================
// Flow Graph DTOs
// ============================================================================

// GraphDocument is the wire form of a flow graph as produced by the visual
// builder: {nodes: [{id, type, data, label}], edges: [{source, target, label?}]}.
type GraphDocument struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ParseGraph decodes a graph document and rejects unknown node types up
// front, so a bad editor payload never reaches the runner.
func ParseGraph(raw []byte) (*GraphDocument, error) {
	var doc GraphDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ErrInvalidFlowGraph().WithDetail("reason", err.Error())
	}
	known := make(map[NodeType]bool, len(AllNodeTypes))
	for _, t := range AllNodeTypes {
		known[t] = true
	}
	for _, n := range doc.Nodes {
		if !known[n.Type] {
			return nil, ErrUnknownNodeType().
				WithDetail("node_id", n.ID).
				WithDetail("node_type", string(n.Type))
		}
	}
	return &doc, nil
}

// ============================================================================
// List DTOs
// ============================================================================

type FlowListRequest struct {
	storex.PaginationOptions
	TenantID  kernel.TenantID  `json:"tenant_id" validate:"required"`
	ChatbotID kernel.ChatbotID `json:"chatbot_id,omitempty"`
	IsActive  *bool            `json:"is_active,omitempty"`
	Search    string           `json:"search,omitempty"`
}

func (r FlowListRequest) GetOffset() int {
	return (r.Page - 1) * r.PageSize
}

type FlowListResponse = storex.Paginated[Flow]

// ============================================================================
// Simple DTOs
// ============================================================================

type FlowDetailsDTO struct {
	ID        kernel.FlowID `json:"id"`
	Name      string        `json:"name"`
	IsMain    bool          `json:"is_main"`
	IsActive  bool          `json:"is_active"`
	NodeCount int           `json:"node_count"`
}

func (f *Flow) ToDTO() FlowDetailsDTO {
	return FlowDetailsDTO{
		ID:        f.ID,
		Name:      f.Name,
		IsMain:    f.IsMain,
		IsActive:  f.IsActive,
		NodeCount: len(f.Nodes),
	}
}

// ConversationStateDTO is what operators see about a parked conversation.
type ConversationStateDTO struct {
	ID            kernel.ConversationID `json:"id"`
	ActiveFlowID  kernel.FlowID         `json:"active_flow_id"`
	CurrentNodeID *string               `json:"current_node_id"`
	IsBotActive   bool                  `json:"is_bot_active"`
	Status        ConversationStatus    `json:"status"`
	Priority      Priority              `json:"priority,omitempty"`
}

func (c *Conversation) ToDTO() ConversationStateDTO {
	return ConversationStateDTO{
		ID:            c.ID,
		ActiveFlowID:  c.ActiveFlowID,
		CurrentNodeID: c.CurrentNodeID,
		IsBotActive:   c.IsBotActive,
		Status:        c.Status,
		Priority:      c.Priority,
	}
}
