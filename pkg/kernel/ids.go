package kernel

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

type ChatbotID string

func NewChatbotID(id string) ChatbotID { return ChatbotID(id) }
func (c ChatbotID) String() string     { return string(c) }
func (c ChatbotID) IsEmpty() bool      { return string(c) == "" }

type FlowID string

func NewFlowID(id string) FlowID { return FlowID(id) }
func (f FlowID) String() string  { return string(f) }
func (f FlowID) IsEmpty() bool   { return string(f) == "" }

type ConversationID string

func NewConversationID(id string) ConversationID { return ConversationID(id) }
func (c ConversationID) String() string          { return string(c) }
func (c ConversationID) IsEmpty() bool           { return string(c) == "" }

type ChannelID string

func NewChannelID(id string) ChannelID { return ChannelID(id) }
func (c ChannelID) String() string     { return string(c) }
func (c ChannelID) IsEmpty() bool      { return string(c) == "" }

type MessageID string

func NewMessageID(id string) MessageID { return MessageID(id) }
func (m MessageID) String() string     { return string(m) }
func (m MessageID) IsEmpty() bool      { return string(m) == "" }

type QueueID string

func NewQueueID(id string) QueueID { return QueueID(id) }
func (q QueueID) String() string   { return string(q) }
func (q QueueID) IsEmpty() bool    { return string(q) == "" }
