package msgprocessor

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/google/uuid"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/flow/flowexec"
	"github.com/xkayo32/pytake-flow/flow/nodeexec"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// aviso enviado cuando una pregunta queda sin respuesta y el run pasa a un humano
const timeoutTransferNotice = "Como não tivemos retorno, vou te passar para um de nossos atendentes. 🙏"

const (
	defaultQuestionTimeout = 1 * time.Hour
	sweepInterval          = 1 * time.Minute
	sweepBatchSize         = 50
)

// Processor orquesta un tick de conversación por mensaje entrante: resuelve
// la conversación y el flow, toma el lock, persiste el mensaje y delega en el
// runner. Es el único punto de entrada al engine desde los webhooks y el
// scheduler.
type Processor struct {
	convRepo        flow.ConversationRepository
	flowRepo        flow.FlowRepository
	msgRepo         flow.MessageRepository
	locker          flow.ConversationLocker
	runner          *flowexec.Runner
	sender          *nodeexec.MessageSender
	questionTimeout time.Duration

	sweeperStop chan struct{}
}

func NewProcessor(
	convRepo flow.ConversationRepository,
	flowRepo flow.FlowRepository,
	msgRepo flow.MessageRepository,
	locker flow.ConversationLocker,
	runner *flowexec.Runner,
	sender *nodeexec.MessageSender,
	questionTimeout time.Duration,
) *Processor {
	if questionTimeout <= 0 {
		questionTimeout = defaultQuestionTimeout
	}
	return &Processor{
		convRepo:        convRepo,
		flowRepo:        flowRepo,
		msgRepo:         msgRepo,
		locker:          locker,
		runner:          runner,
		sender:          sender,
		questionTimeout: questionTimeout,
		sweeperStop:     make(chan struct{}),
	}
}

// ProcessInbound handles one normalized inbound message end to end.
func (p *Processor) ProcessInbound(ctx context.Context, channel *channels.Channel, inbound flow.InboundMessage) error {
	conv, err := p.resolveConversation(ctx, channel, inbound.From)
	if err != nil {
		return err
	}

	release, err := p.locker.Acquire(ctx, conv.ID)
	if err != nil {
		if errx.IsType(err, errx.TypeConflict) {
			logx.Info("⚠️ Conversation %s is locked, dropping message %s", conv.ID.String(), inbound.ID.String())
		}
		return err
	}
	defer release()

	if err := p.msgRepo.SaveInbound(ctx, conv.TenantID, conv.ID, inbound); err != nil {
		logx.Error("failed to persist inbound message: %v", err)
	}

	// bot apagado: un humano atiende, el engine sólo registra el mensaje
	if !conv.IsBotActive {
		return nil
	}

	f, err := p.resolveFlow(ctx, channel, conv)
	if err != nil {
		logx.Error("❌ No runnable flow for conversation %s: %v", conv.ID.String(), err)
		return err
	}

	if conv.ActiveFlowID != f.ID {
		// flow nuevo o cambiado: el run anterior quedó obsoleto
		conv.ActiveFlowID = f.ID
		conv.ClearPointer()
		conv.Context.ClearPath()
	}

	return p.runner.Resume(ctx, conv, f, &inbound)
}

// ResumeContinuation reanuda una conversación suspendida por un delay largo.
func (p *Processor) ResumeContinuation(ctx context.Context, c *flow.Continuation) error {
	release, err := p.locker.Acquire(ctx, c.ConversationID)
	if err != nil {
		return err
	}
	defer release()

	conv, err := p.convRepo.FindByID(ctx, c.ConversationID)
	if err != nil {
		return err
	}

	// la conversación pudo cerrarse o pasar a un humano mientras dormía
	if !conv.IsBotActive || conv.Status != flow.ConversationStatusActive {
		logx.Info("⏭️ Skipping continuation %s: conversation %s no longer active", c.ID, conv.ID.String())
		return nil
	}

	f, err := p.flowRepo.FindByID(ctx, c.FlowID)
	if err != nil {
		return err
	}
	if !f.IsActive {
		logx.Info("⏭️ Skipping continuation %s: flow %s no longer active", c.ID, f.ID.String())
		conv.Reset()
		return p.convRepo.Save(ctx, *conv)
	}

	conv.PointTo(c.ResumeNodeID)
	return p.runner.Resume(ctx, conv, f, nil)
}

// resolveConversation finds the open conversation for the contact or creates
// a fresh one.
func (p *Processor) resolveConversation(ctx context.Context, channel *channels.Channel, contactID string) (*flow.Conversation, error) {
	conv, err := p.convRepo.FindByChannelAndContact(ctx, channel.ID, contactID)
	if err == nil {
		return conv, nil
	}
	if !errx.IsType(err, errx.TypeNotFound) {
		return nil, err
	}

	now := time.Now()
	conv = &flow.Conversation{
		ID:          kernel.NewConversationID(uuid.New().String()),
		TenantID:    channel.TenantID,
		ChannelID:   channel.ID,
		ContactID:   contactID,
		Context:     flow.NewExecutionContext(),
		IsBotActive: true,
		Status:      flow.ConversationStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := p.convRepo.Save(ctx, *conv); err != nil {
		return nil, err
	}

	logx.Info("💬 New conversation %s for contact %s on channel %s",
		conv.ID.String(), contactID, channel.ID.String())
	return conv, nil
}

// resolveFlow returns the flow to run: the conversation's active flow while a
// run is in progress, otherwise the channel's main flow, otherwise the
// chatbot's fallback.
func (p *Processor) resolveFlow(ctx context.Context, channel *channels.Channel, conv *flow.Conversation) (*flow.Flow, error) {
	if conv.CurrentNodeID != nil && !conv.ActiveFlowID.IsEmpty() {
		f, err := p.flowRepo.FindByID(ctx, conv.ActiveFlowID)
		if err == nil && f.IsActive {
			return f, nil
		}
		// el flow del run en curso desapareció: se arranca de nuevo
		logx.Info("⚠️ Active flow %s unavailable for conversation %s, restarting",
			conv.ActiveFlowID.String(), conv.ID.String())
	}

	f, err := p.flowRepo.FindMainByChannel(ctx, channel.TenantID, channel.ID)
	if err == nil {
		return f, nil
	}
	if !errx.IsType(err, errx.TypeNotFound) {
		return nil, err
	}

	return p.flowRepo.FindFallback(ctx, channel.TenantID, channel.ChatbotID)
}

// ============================================================================
// Question timeout sweeper
// ============================================================================

// StartSweeper arranca el barrido periódico de preguntas sin respuesta.
func (p *Processor) StartSweeper(ctx context.Context) {
	logx.Info("🚀 Starting question timeout sweeper (timeout: %v)", p.questionTimeout)

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.sweeperStop:
				return
			case <-ticker.C:
				if err := p.SweepQuestionTimeouts(ctx); err != nil {
					logx.Error("❌ Question timeout sweep failed: %v", err)
				}
			}
		}
	}()
}

// StopSweeper stops the background sweeper.
func (p *Processor) StopSweeper() {
	close(p.sweeperStop)
}

// SweepQuestionTimeouts hands off runs whose question went unanswered past
// the timeout: the contact went silent mid-flow, a human decides what happens
// next.
func (p *Processor) SweepQuestionTimeouts(ctx context.Context) error {
	cutoff := time.Now().Add(-p.questionTimeout)

	stale, err := p.convRepo.FindAwaitingBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}

	for _, conv := range stale {
		release, err := p.locker.Acquire(ctx, conv.ID)
		if err != nil {
			continue // un tick en vuelo ya la está atendiendo
		}

		// aviso best-effort antes de transferir
		execution := &flow.Execution{Conversation: conv}
		if err := p.sender.SendText(ctx, execution, "", timeoutTransferNotice); err != nil {
			logx.Error("failed to send timeout notice for conversation %s: %v", conv.ID.String(), err)
		}

		conv.HandOff("", flow.PriorityLow)
		if err := p.convRepo.Save(ctx, *conv); err != nil {
			logx.Error("failed to persist timed-out conversation %s: %v", conv.ID.String(), err)
		} else {
			logx.Info("⏰ Question timed out, conversation %s handed off", conv.ID.String())
		}

		release()
	}

	return nil
}
