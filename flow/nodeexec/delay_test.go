package nodeexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
)

// fakeScheduler captura la continuación agendada.
type fakeScheduler struct {
	threshold time.Duration
	scheduled []*flow.Continuation
}

func (s *fakeScheduler) Schedule(ctx context.Context, c *flow.Continuation, delay time.Duration) error {
	s.scheduled = append(s.scheduled, c)
	return nil
}

func (s *fakeScheduler) ShouldUseAsync(d time.Duration) bool { return d > s.threshold }

func (s *fakeScheduler) Cancel(ctx context.Context, id string) error { return nil }

func TestDelayShortSleepsAndAdvances(t *testing.T) {
	sender, _, _ := newTestSender()
	scheduler := &fakeScheduler{threshold: 15 * time.Second}
	h := NewDelayHandler(sender, scheduler)

	node := flow.Node{ID: "d1", Type: flow.NodeTypeDelay, Data: map[string]any{
		"delaySeconds": 0.01,
	}}
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Empty(t, scheduler.scheduled)
}

func TestDelayLongSchedulesContinuationAndSuspends(t *testing.T) {
	sender, manager, _ := newTestSender()
	scheduler := &fakeScheduler{threshold: 15 * time.Second}
	h := NewDelayHandler(sender, scheduler)

	node := flow.Node{ID: "d1", Type: flow.NodeTypeDelay, Data: map[string]any{
		"delaySeconds": 30,
		"message":      "Só um instante...",
	}}
	next := flow.Node{ID: "msg1", Type: flow.NodeTypeMessage}
	exec := newTestExecution(node, next)
	exec.Flow.Edges = []flow.Edge{{Source: "d1", Target: "msg1"}}

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeSuspend, outcome.Kind)
	require.Len(t, scheduler.scheduled, 1)
	c := scheduler.scheduled[0]
	assert.Equal(t, exec.Conversation.ID, c.ConversationID)
	assert.Equal(t, exec.Flow.ID, c.FlowID)
	assert.Equal(t, "msg1", c.ResumeNodeID)

	// el aviso opcional sale antes de dormir
	require.Len(t, manager.sent, 1)
	assert.Equal(t, "Só um instante...", manager.sent[0].Content.Text)
}

func TestDelayLongWithoutNextNodeFails(t *testing.T) {
	sender, _, _ := newTestSender()
	scheduler := &fakeScheduler{threshold: 15 * time.Second}
	h := NewDelayHandler(sender, scheduler)

	node := flow.Node{ID: "d1", Type: flow.NodeTypeDelay, Data: map[string]any{
		"delaySeconds": 30,
	}}
	exec := newTestExecution(node)

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.Error(t, err)
	assert.Empty(t, scheduler.scheduled)
}

func TestDelayZeroAdvancesImmediately(t *testing.T) {
	sender, _, _ := newTestSender()
	h := NewDelayHandler(sender, &fakeScheduler{threshold: 15 * time.Second})

	node := flow.Node{ID: "d1", Type: flow.NodeTypeDelay, Data: map[string]any{
		"delaySeconds": 0,
	}}
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
}
