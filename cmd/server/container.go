package main

import (
	"context"
	"log"

	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/channels/channelapi"
	"github.com/xkayo32/pytake-flow/channels/channelmanager"
	"github.com/xkayo32/pytake-flow/channels/channelsinfra"

	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/flow/aiproviders"
	"github.com/xkayo32/pytake-flow/flow/dbquery"
	"github.com/xkayo32/pytake-flow/flow/delayscheduler"
	"github.com/xkayo32/pytake-flow/flow/flowapi"
	"github.com/xkayo32/pytake-flow/flow/flowexec"
	"github.com/xkayo32/pytake-flow/flow/flowinfra"
	"github.com/xkayo32/pytake-flow/flow/msgprocessor"
	"github.com/xkayo32/pytake-flow/flow/nodeexec"
	"github.com/xkayo32/pytake-flow/flow/webhooktrigger"

	"github.com/xkayo32/pytake-flow/pkg/config"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
)

// Container contains all application dependencies
type Container struct {
	// =================================================================
	// CONFIGURATION & INFRASTRUCTURE
	// =================================================================
	Config      *config.Config
	DB          *sqlx.DB
	RedisClient *redis.Client

	// =================================================================
	// CHANNELS 📡
	// =================================================================
	ChannelRepo    channels.ChannelRepository
	ChannelManager *channelmanager.DefaultChannelManager
	ChannelHandler *channelapi.ChannelHandler

	// =================================================================
	// FLOW ENGINE ⚙️
	// =================================================================
	FlowRepo       flow.FlowRepository
	ConvRepo       flow.ConversationRepository
	MsgRepo        flow.MessageRepository
	ContactUpdater flow.ContactUpdater
	Locker         flow.ConversationLocker
	Interpolator   *flow.Interpolator
	Sender         *nodeexec.MessageSender
	Runner         *flowexec.Runner
	DelayScheduler *delayscheduler.RedisDelayScheduler
	Processor      *msgprocessor.Processor

	// External backends for flow nodes
	SQLBackends  []*dbquery.SQLBackend
	MongoBackend *dbquery.MongoBackend

	// =================================================================
	// API SURFACES 🌐
	// =================================================================
	FlowHandler    *flowapi.FlowHandler
	WebhookHandler *webhooktrigger.WebhookHandler
}

// NewContainer creates a new dependency container
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) *Container {
	c := &Container{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
	}

	log.Println("📦 Initializing dependency container...")

	c.initChannelComponents()
	c.initFlowComponents()
	c.initAPIHandlers()

	log.Println("✅ Dependency container initialized successfully")

	return c
}

// =================================================================
// CHANNELS INITIALIZATION 📡 (BEFORE ENGINE)
// =================================================================

func (c *Container) initChannelComponents() {
	log.Println("  📡 Initializing channel components...")

	c.ChannelRepo = channelsinfra.NewPostgresChannelRepository(c.DB)
	log.Println("    ✅ Channel repository initialized")

	c.ChannelManager = channelmanager.NewDefaultChannelManager(c.ChannelRepo)
	log.Println("    ✅ Channel manager initialized")
}

// =================================================================
// FLOW ENGINE INITIALIZATION ⚙️ (AFTER CHANNELS)
// =================================================================

func (c *Container) initFlowComponents() {
	log.Println("  ⚙️  Initializing flow engine components...")

	// Repositories
	c.FlowRepo = flowinfra.NewPostgresFlowRepository(c.DB)
	c.ConvRepo = flowinfra.NewPostgresConversationRepository(c.DB)
	c.MsgRepo = flowinfra.NewPostgresMessageRepository(c.DB)
	c.ContactUpdater = flowinfra.NewPostgresContactUpdater(c.DB)
	log.Println("    ✅ Flow repositories initialized")

	// Per-conversation tick lock
	c.Locker = flowinfra.NewRedisConversationLock(c.RedisClient, c.Config.Engine.LockTTL)
	log.Println("    ✅ Conversation lock initialized")

	// Interpolator + sender
	c.Interpolator = flow.NewInterpolator()
	c.Sender = nodeexec.NewMessageSender(c.ChannelManager, c.MsgRepo, c.Interpolator)

	// Delay scheduler: the continuation handler is late-bound through the
	// container because it needs the processor, built below
	c.DelayScheduler = delayscheduler.NewRedisDelayScheduler(c.RedisClient, c.handleContinuation)
	log.Println("    ✅ Delay scheduler initialized")

	// External backends for ai_prompt and database_query nodes
	openai := aiproviders.NewOpenAIProvider(c.Config.AI.OpenAIAPIKey)
	anthropic := aiproviders.NewAnthropicProvider(c.Config.AI.AnthropicAPIKey)
	custom := aiproviders.NewCustomProvider()

	postgresBackend := dbquery.NewPostgresBackend()
	mysqlBackend := dbquery.NewMySQLBackend()
	sqliteBackend := dbquery.NewSQLiteBackend()
	c.SQLBackends = []*dbquery.SQLBackend{postgresBackend, mysqlBackend, sqliteBackend}
	c.MongoBackend = dbquery.NewMongoBackend()
	log.Println("    ✅ AI providers and database backends initialized")

	// Runner with every node handler registered
	c.Runner = flowexec.NewRunner(
		c.FlowRepo,
		c.ConvRepo,
		c.Sender,
		nodeexec.NewStartHandler(),
		nodeexec.NewMessageHandler(c.Sender),
		nodeexec.NewQuestionHandler(c.Sender),
		nodeexec.NewConditionHandler(c.Interpolator),
		nodeexec.NewDelayHandler(c.Sender, c.DelayScheduler),
		nodeexec.NewJumpHandler(),
		nodeexec.NewActionHandler(c.Interpolator, c.ContactUpdater),
		nodeexec.NewAPICallHandler(c.Interpolator),
		nodeexec.NewAIPromptHandler(c.Interpolator, openai, anthropic, custom),
		nodeexec.NewDatabaseQueryHandler(c.Interpolator, postgresBackend, mysqlBackend, sqliteBackend, c.MongoBackend),
		nodeexec.NewScriptHandler(),
		nodeexec.NewSetVariableHandler(c.Interpolator),
		nodeexec.NewRandomHandler(),
		nodeexec.NewDatetimeHandler(c.Interpolator),
		nodeexec.NewHandoffHandler(c.Sender),
		nodeexec.NewTemplateHandler(c.Sender),
		nodeexec.NewButtonsHandler(c.Sender),
		nodeexec.NewListHandler(c.Sender),
		nodeexec.NewEndHandler(c.Sender),
	)
	log.Println("    ✅ Flow runner initialized")

	// Message processor
	c.Processor = msgprocessor.NewProcessor(
		c.ConvRepo,
		c.FlowRepo,
		c.MsgRepo,
		c.Locker,
		c.Runner,
		c.Sender,
		c.Config.Engine.QuestionTimeout,
	)
	log.Println("    ✅ Message processor initialized")

	// Background workers
	ctx := context.Background()
	c.DelayScheduler.StartWorker(ctx)
	c.Processor.StartSweeper(ctx)
	log.Println("    ✅ Background workers started")

	log.Println("  ✅ Flow engine components initialized")
}

// =================================================================
// API HANDLERS 🌐
// =================================================================

func (c *Container) initAPIHandlers() {
	log.Println("  🌐 Initializing API handlers...")

	c.ChannelHandler = channelapi.NewChannelHandler(c.ChannelRepo, c.ChannelManager)
	c.FlowHandler = flowapi.NewFlowHandler(c.FlowRepo, c.ConvRepo, c.Runner)
	c.WebhookHandler = webhooktrigger.NewWebhookHandler(
		c.ChannelManager,
		c.Processor,
		c.Config.WhatsApp.VerifyToken,
	)

	log.Println("  ✅ API handlers initialized")
}

// =================================================================
// CONTINUATION HANDLER
// =================================================================

// handleContinuation is invoked by the delay scheduler worker when a
// scheduled resume comes due.
func (c *Container) handleContinuation(ctx context.Context, continuation *flow.Continuation) error {
	log.Printf("🔄 Resuming conversation %s at node %s",
		continuation.ConversationID.String(), continuation.ResumeNodeID)
	return c.Processor.ResumeContinuation(ctx, continuation)
}

// =================================================================
// UTILITY METHODS
// =================================================================

func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.DelayScheduler != nil {
		log.Println("  ⏰ Stopping delay scheduler...")
		c.DelayScheduler.StopWorker()
	}

	if c.Processor != nil {
		log.Println("  ⏰ Stopping question timeout sweeper...")
		c.Processor.StopSweeper()
	}

	for _, backend := range c.SQLBackends {
		if err := backend.Close(); err != nil {
			log.Printf("  ⚠️ Failed to close %s backend: %v", backend.Type(), err)
		}
	}
	if c.MongoBackend != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := c.MongoBackend.Close(ctx); err != nil {
			log.Printf("  ⚠️ Failed to close mongodb backend: %v", err)
		}
	}

	if c.DB != nil {
		log.Println("  🗄️  Closing database connections...")
		c.DB.Close()
	}

	if c.RedisClient != nil {
		log.Println("  🔴 Closing Redis connections...")
		c.RedisClient.Close()
	}

	log.Println("✅ Container cleanup complete")
}

func (c *Container) HealthCheck() map[string]bool {
	health := make(map[string]bool)

	if c.DB != nil {
		health["database"] = c.DB.Ping() == nil
	} else {
		health["database"] = false
	}

	if c.RedisClient != nil {
		health["redis"] = c.RedisClient.Ping(c.RedisClient.Context()).Err() == nil
	} else {
		health["redis"] = false
	}

	health["channel_manager"] = c.ChannelManager != nil
	health["flow_runner"] = c.Runner != nil
	health["message_processor"] = c.Processor != nil
	health["delay_scheduler"] = c.DelayScheduler != nil

	return health
}

func (c *Container) GetServiceNames() []string {
	return []string{
		"ChannelManager",
		"FlowRunner",
		"MessageProcessor",
		"DelayScheduler",
		"ConversationLocker",
	}
}

func (c *Container) GetRepositoryNames() []string {
	return []string{
		"ChannelRepo",
		"FlowRepo",
		"ConvRepo",
		"MsgRepo",
	}
}

// GetDelaySchedulerMetrics returns how many resumes are still pending.
func (c *Container) GetDelaySchedulerMetrics(ctx context.Context) (int64, error) {
	return c.DelayScheduler.GetPendingCount(ctx)
}
