package nodeexec

import (
	"context"
	"math/rand"

	"github.com/xkayo32/pytake-flow/flow"
)

// RandomHandler elige un camino por sorteo ponderado (teste A/B).
type RandomHandler struct{}

var _ flow.NodeHandler = (*RandomHandler)(nil)

func NewRandomHandler() *RandomHandler {
	return &RandomHandler{}
}

func (h *RandomHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractRandomConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	chosen := pickPath(cfg)

	if cfg.SaveToVariable != "" {
		label := chosen.Label
		if label == "" {
			label = chosen.ID
		}
		exec.Conversation.Context.Set(cfg.SaveToVariable, label)
	}

	if exec.Flow.GetNode(chosen.TargetNodeID) == nil {
		return flow.Outcome{}, flow.ErrNodeNotFound().
			WithDetail("node_id", chosen.TargetNodeID).
			WithDetail("flow_id", exec.Flow.ID.String())
	}
	return flow.JumpTo(chosen.TargetNodeID), nil
}

// pickPath draws one path proportionally to its weight; with all weights at
// zero every path is equally likely. A fixed seed gives reproducible draws.
func pickPath(cfg *flow.RandomConfig) flow.RandomPath {
	rng := rand.New(rand.NewSource(rand.Int63()))
	if cfg.Seed != nil {
		rng = rand.New(rand.NewSource(*cfg.Seed))
	}

	total := 0.0
	for _, p := range cfg.Paths {
		total += p.Weight
	}

	if total == 0 {
		return cfg.Paths[rng.Intn(len(cfg.Paths))]
	}

	draw := rng.Float64() * total
	acc := 0.0
	for _, p := range cfg.Paths {
		acc += p.Weight
		if draw < acc {
			return p
		}
	}
	return cfg.Paths[len(cfg.Paths)-1]
}

func (h *RandomHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeRandom
}

func (h *RandomHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractRandomConfig(data)
	return err
}
