package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Abraxas-365/craftable/ptrx"
)

// Node data keeps the camelCase keys the visual builder emits; these configs
// are the typed view the handlers work with.

// ============================================================================
// Node Config Interface
// ============================================================================

// NodeConfig interface that all node configs implement
type NodeConfig interface {
	Validate() error
	GetType() NodeType
}

// ErrorHandling is the shared external-call failure contract of api_call,
// ai_prompt, database_query and script nodes.
type ErrorHandling struct {
	OnError       string `json:"onError,omitempty"` // stop | continue
	MaxRetries    *int   `json:"maxRetries,omitempty"`
	RetryDelay    *int   `json:"retryDelay,omitempty"` // seconds, fixed between attempts
	FallbackValue any    `json:"fallbackValue,omitempty"`
}

func (e ErrorHandling) ShouldStop() bool {
	return strings.EqualFold(e.OnError, "stop")
}

func (e ErrorHandling) GetMaxRetries() int {
	return ptrx.IntValueOr(e.MaxRetries, 0)
}

func (e ErrorHandling) GetRetryDelaySeconds() int {
	return ptrx.IntValueOr(e.RetryDelay, 1)
}

// ============================================================================
// Message Config
// ============================================================================

type MessageConfig struct {
	Text      string `json:"text,omitempty"`
	MediaType string `json:"mediaType,omitempty"` // image, audio, video, document
	MediaURL  string `json:"mediaUrl,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

func (c MessageConfig) Validate() error {
	if c.Text == "" && c.MediaURL == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "message needs text or a media reference")
	}
	if c.MediaURL != "" && c.MediaType == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "mediaType is required with mediaUrl")
	}
	return nil
}

func (c MessageConfig) GetType() NodeType { return NodeTypeMessage }

// ============================================================================
// Question Config
// ============================================================================

type QuestionValidation struct {
	Required     bool   `json:"required,omitempty"`
	MaxAttempts  *int   `json:"maxAttempts,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type QuestionConfig struct {
	Text           string             `json:"text"`
	ResponseType   string             `json:"responseType,omitempty"` // text, number, email, phone, options
	Options        []string           `json:"options,omitempty"`
	Validation     QuestionValidation `json:"validation,omitempty"`
	OutputVariable string             `json:"outputVariable"`
}

const DefaultMaxAttempts = 3

var questionResponseTypes = map[string]bool{
	"": true, "text": true, "number": true, "email": true, "phone": true, "options": true,
}

func (c QuestionConfig) Validate() error {
	if c.Text == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "question text is required")
	}
	if c.OutputVariable == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "outputVariable is required")
	}
	if !questionResponseTypes[c.ResponseType] {
		return ErrInvalidFlowNode().WithDetail("reason", "unknown responseType: "+c.ResponseType)
	}
	if c.ResponseType == "options" && len(c.Options) == 0 {
		return ErrInvalidFlowNode().WithDetail("reason", "options responseType needs options")
	}
	return nil
}

func (c QuestionConfig) GetType() NodeType { return NodeTypeQuestion }

func (c QuestionConfig) GetResponseType() string {
	if c.ResponseType == "" {
		return "text"
	}
	return c.ResponseType
}

func (c QuestionConfig) GetMaxAttempts() int {
	n := ptrx.IntValueOr(c.Validation.MaxAttempts, DefaultMaxAttempts)
	if n <= 0 {
		n = DefaultMaxAttempts
	}
	return n
}

// ============================================================================
// Condition Config
// ============================================================================

type Predicate struct {
	Variable string `json:"variable"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type ConditionConfig struct {
	Conditions    []Predicate `json:"conditions"`
	LogicOperator string      `json:"logicOperator,omitempty"` // AND | OR
}

var conditionOperators = map[string]bool{
	"==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true, "contains": true,
}

func (c ConditionConfig) Validate() error {
	if len(c.Conditions) == 0 {
		return ErrInvalidFlowNode().WithDetail("reason", "condition needs at least one predicate")
	}
	for _, p := range c.Conditions {
		if p.Variable == "" {
			return ErrInvalidFlowNode().WithDetail("reason", "predicate variable is required")
		}
		if !conditionOperators[p.Operator] {
			return ErrInvalidFlowNode().WithDetail("reason", "unknown operator: "+p.Operator)
		}
	}
	switch strings.ToUpper(c.LogicOperator) {
	case "", "AND", "OR":
	default:
		return ErrInvalidFlowNode().WithDetail("reason", "logicOperator must be AND or OR")
	}
	return nil
}

func (c ConditionConfig) GetType() NodeType { return NodeTypeCondition }

func (c ConditionConfig) GetLogicOperator() string {
	if strings.EqualFold(c.LogicOperator, "OR") {
		return "OR"
	}
	return "AND"
}

// ============================================================================
// Delay Config
// ============================================================================

// MaxDelaySeconds is the channel-facing cap on a single delay node.
const MaxDelaySeconds = 60

type DelayConfig struct {
	DelaySeconds float64 `json:"delaySeconds"`
	Message      string  `json:"message,omitempty"`
}

func (c DelayConfig) Validate() error {
	if c.DelaySeconds < 0 {
		return ErrInvalidFlowNode().WithDetail("reason", "delaySeconds cannot be negative")
	}
	return nil
}

func (c DelayConfig) GetType() NodeType { return NodeTypeDelay }

// GetDelaySeconds clamps to the cap.
func (c DelayConfig) GetDelaySeconds() float64 {
	if c.DelaySeconds > MaxDelaySeconds {
		return MaxDelaySeconds
	}
	return c.DelaySeconds
}

// ============================================================================
// Jump Config
// ============================================================================

type JumpConfig struct {
	JumpType     string `json:"jumpType"` // node | flow
	TargetNodeID string `json:"targetNodeId,omitempty"`
	TargetFlowID string `json:"targetFlowId,omitempty"`
}

func (c JumpConfig) Validate() error {
	switch c.JumpType {
	case "node":
		if c.TargetNodeID == "" {
			return ErrInvalidFlowNode().WithDetail("reason", "targetNodeId is required for node jump")
		}
	case "flow":
		if c.TargetFlowID == "" {
			return ErrInvalidFlowNode().WithDetail("reason", "targetFlowId is required for flow jump")
		}
	default:
		return ErrInvalidFlowNode().WithDetail("reason", "jumpType must be node or flow")
	}
	return nil
}

func (c JumpConfig) GetType() NodeType { return NodeTypeJump }

// ============================================================================
// Action Config
// ============================================================================

type ActionItem struct {
	Type   string         `json:"type"` // webhook | save_contact | update_variable
	Config map[string]any `json:"config"`
}

type ActionConfig struct {
	Actions []ActionItem `json:"actions"`
}

var actionTypes = map[string]bool{"webhook": true, "save_contact": true, "update_variable": true}

func (c ActionConfig) Validate() error {
	if len(c.Actions) == 0 {
		return ErrInvalidFlowNode().WithDetail("reason", "action node needs at least one action")
	}
	for _, a := range c.Actions {
		if !actionTypes[a.Type] {
			return ErrInvalidFlowNode().WithDetail("reason", "unknown action type: "+a.Type)
		}
	}
	return nil
}

func (c ActionConfig) GetType() NodeType { return NodeTypeAction }

// ============================================================================
// API Call Config
// ============================================================================

type APICallConfig struct {
	URL              string            `json:"url"`
	Method           string            `json:"method,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	QueryParams      map[string]string `json:"queryParams,omitempty"`
	Body             map[string]any    `json:"body,omitempty"`
	Timeout          *int              `json:"timeout,omitempty"` // seconds
	ResponseVariable string            `json:"responseVariable,omitempty"`
	ErrorHandling    ErrorHandling     `json:"errorHandling,omitempty"`
}

func (c APICallConfig) Validate() error {
	if c.URL == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "url is required")
	}
	switch c.GetMethod() {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
	default:
		return ErrInvalidFlowNode().WithDetail("reason", "invalid HTTP method: "+c.Method)
	}
	return nil
}

func (c APICallConfig) GetType() NodeType { return NodeTypeAPICall }

func (c APICallConfig) GetMethod() string {
	if c.Method == "" {
		return "GET"
	}
	return strings.ToUpper(c.Method)
}

func (c APICallConfig) GetTimeoutSeconds() int {
	return ptrx.IntValueOr(c.Timeout, 30)
}

// ============================================================================
// AI Prompt Config
// ============================================================================

type AIPromptConfig struct {
	Provider         string        `json:"provider"` // openai | anthropic | custom
	Model            string        `json:"model"`
	Prompt           string        `json:"prompt"`
	SystemPrompt     string        `json:"systemPrompt,omitempty"`
	Temperature      *float32      `json:"temperature,omitempty"`
	MaxTokens        *int          `json:"maxTokens,omitempty"`
	APIKey           string        `json:"apiKey,omitempty"`
	Endpoint         string        `json:"endpoint,omitempty"` // custom provider only
	ResponseVariable string        `json:"responseVariable"`
	ErrorHandling    ErrorHandling `json:"errorHandling,omitempty"`
}

var aiProviders = map[string]bool{"openai": true, "anthropic": true, "custom": true}

func (c AIPromptConfig) Validate() error {
	if !aiProviders[c.Provider] {
		return ErrInvalidFlowNode().WithDetail("reason", "unknown provider: "+c.Provider)
	}
	if c.Model == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "model is required")
	}
	if c.Prompt == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "prompt is required")
	}
	if c.ResponseVariable == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "responseVariable is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return ErrInvalidFlowNode().WithDetail("reason", "temperature must be between 0 and 2")
	}
	return nil
}

func (c AIPromptConfig) GetType() NodeType { return NodeTypeAIPrompt }

// ============================================================================
// Database Query Config
// ============================================================================

type DatabaseQueryConfig struct {
	DatabaseType     string        `json:"databaseType"` // postgresql | mysql | mongodb | sqlite
	ConnectionString string        `json:"connectionString"`
	Query            string        `json:"query"`
	Parameters       []any         `json:"parameters,omitempty"`
	ResultVariable   string        `json:"resultVariable"`
	ResultFormat     string        `json:"resultFormat,omitempty"` // list | first | count | scalar
	Timeout          *int          `json:"timeout,omitempty"`
	ErrorHandling    ErrorHandling `json:"errorHandling,omitempty"`
}

var databaseTypes = map[string]bool{"postgresql": true, "mysql": true, "mongodb": true, "sqlite": true}
var resultFormats = map[string]bool{"": true, "list": true, "first": true, "count": true, "scalar": true}

func (c DatabaseQueryConfig) Validate() error {
	if !databaseTypes[c.DatabaseType] {
		return ErrInvalidFlowNode().WithDetail("reason", "unknown databaseType: "+c.DatabaseType)
	}
	if c.ConnectionString == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "connectionString is required")
	}
	if c.Query == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "query is required")
	}
	if c.ResultVariable == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "resultVariable is required")
	}
	if !resultFormats[c.ResultFormat] {
		return ErrInvalidFlowNode().WithDetail("reason", "unknown resultFormat: "+c.ResultFormat)
	}
	return nil
}

func (c DatabaseQueryConfig) GetType() NodeType { return NodeTypeDatabaseQuery }

func (c DatabaseQueryConfig) GetResultFormat() string {
	if c.ResultFormat == "" {
		return "list"
	}
	return c.ResultFormat
}

func (c DatabaseQueryConfig) GetTimeoutSeconds() int {
	return ptrx.IntValueOr(c.Timeout, 10)
}

// ============================================================================
// Script Config
// ============================================================================

type ScriptConfig struct {
	Language       string        `json:"language,omitempty"` // javascript (the sandboxed engine)
	Code           string        `json:"code"`
	OutputVariable string        `json:"outputVariable,omitempty"`
	Timeout        *int          `json:"timeout,omitempty"` // seconds, wall clock
	ErrorHandling  ErrorHandling `json:"errorHandling,omitempty"`
}

func (c ScriptConfig) Validate() error {
	if c.Code == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "code is required")
	}
	switch strings.ToLower(c.Language) {
	case "", "javascript", "js":
	default:
		return ErrInvalidFlowNode().WithDetail("reason", "unsupported script language: "+c.Language)
	}
	return nil
}

func (c ScriptConfig) GetType() NodeType { return NodeTypeScript }

func (c ScriptConfig) GetTimeoutSeconds() int {
	n := ptrx.IntValueOr(c.Timeout, 5)
	if n <= 0 || n > 30 {
		n = 5
	}
	return n
}

// ============================================================================
// Set Variable Config
// ============================================================================

type VariableSpec struct {
	Name           string `json:"name"`
	ValueType      string `json:"valueType"` // static | variable | expression
	Value          any    `json:"value,omitempty"`
	VariableSource string `json:"variableSource,omitempty"`
	Expression     string `json:"expression,omitempty"`
}

type SetVariableConfig struct {
	Variables []VariableSpec `json:"variables"`
}

func (c SetVariableConfig) Validate() error {
	if len(c.Variables) == 0 {
		return ErrInvalidFlowNode().WithDetail("reason", "set_variable needs at least one variable")
	}
	for _, v := range c.Variables {
		if v.Name == "" {
			return ErrInvalidFlowNode().WithDetail("reason", "variable name is required")
		}
		switch v.ValueType {
		case "static", "variable", "expression":
		default:
			return ErrInvalidFlowNode().WithDetail("reason", "valueType must be static, variable or expression")
		}
	}
	return nil
}

func (c SetVariableConfig) GetType() NodeType { return NodeTypeSetVariable }

// ============================================================================
// Random Config
// ============================================================================

type RandomPath struct {
	ID           string  `json:"id"`
	Label        string  `json:"label,omitempty"`
	Weight       float64 `json:"weight"`
	TargetNodeID string  `json:"targetNodeId"`
}

type RandomConfig struct {
	Paths          []RandomPath `json:"paths"`
	SaveToVariable string       `json:"saveToVariable,omitempty"`
	Seed           *int64       `json:"seed,omitempty"`
}

func (c RandomConfig) Validate() error {
	if len(c.Paths) == 0 {
		return ErrInvalidFlowNode().WithDetail("reason", "random node needs at least one path")
	}
	for _, p := range c.Paths {
		if p.TargetNodeID == "" {
			return ErrInvalidFlowNode().WithDetail("reason", "random path needs targetNodeId")
		}
		if p.Weight < 0 {
			return ErrInvalidFlowNode().WithDetail("reason", "random path weight cannot be negative")
		}
	}
	return nil
}

func (c RandomConfig) GetType() NodeType { return NodeTypeRandom }

// ============================================================================
// Datetime Config
// ============================================================================

type DatetimeConfig struct {
	Operation      string `json:"operation"` // get_current | format | add | compare | parse
	Timezone       string `json:"timezone,omitempty"`
	Format         string `json:"format,omitempty"`       // parse layout
	OutputFormat   string `json:"outputFormat,omitempty"` // render layout
	SourceVariable string `json:"sourceVariable,omitempty"`
	CompareWith    string `json:"compareWith,omitempty"`
	AddAmount      int    `json:"addAmount,omitempty"`
	AddUnit        string `json:"addUnit,omitempty"` // minutes | hours | days | months
	OutputVariable string `json:"outputVariable"`
}

var datetimeOperations = map[string]bool{
	"get_current": true, "format": true, "add": true, "compare": true, "parse": true,
}

func (c DatetimeConfig) Validate() error {
	if !datetimeOperations[c.Operation] {
		return ErrInvalidFlowNode().WithDetail("reason", "unknown datetime operation: "+c.Operation)
	}
	if c.OutputVariable == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "outputVariable is required")
	}
	return nil
}

func (c DatetimeConfig) GetType() NodeType { return NodeTypeDatetime }

// ============================================================================
// Handoff Config
// ============================================================================

type HandoffConfig struct {
	TransferMessage     string `json:"transferMessage,omitempty"`
	SendTransferMessage bool   `json:"sendTransferMessage,omitempty"`
	QueueID             string `json:"queueId,omitempty"`
	Priority            string `json:"priority,omitempty"` // low | medium | high
}

func (c HandoffConfig) Validate() error {
	switch c.Priority {
	case "", "low", "medium", "high":
	default:
		return ErrInvalidFlowNode().WithDetail("reason", "priority must be low, medium or high")
	}
	return nil
}

func (c HandoffConfig) GetType() NodeType { return NodeTypeHandoff }

func (c HandoffConfig) GetPriority() Priority {
	if c.Priority == "" {
		return PriorityMedium
	}
	return Priority(c.Priority)
}

// ============================================================================
// Template / Interactive Configs
// ============================================================================

type TemplateConfig struct {
	TemplateName string   `json:"templateName"`
	Language     string   `json:"language,omitempty"`
	Variables    []string `json:"variables,omitempty"` // body parameters, in order
}

func (c TemplateConfig) Validate() error {
	if c.TemplateName == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "templateName is required")
	}
	return nil
}

func (c TemplateConfig) GetType() NodeType { return NodeTypeTemplate }

func (c TemplateConfig) GetLanguage() string {
	if c.Language == "" {
		return "pt_BR"
	}
	return c.Language
}

// ButtonLimit is the channel cap on reply buttons per message.
const ButtonLimit = 3

type ButtonSpec struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ButtonsConfig struct {
	Text           string       `json:"text"`
	Header         string       `json:"header,omitempty"`
	Footer         string       `json:"footer,omitempty"`
	Buttons        []ButtonSpec `json:"buttons"`
	OutputVariable string       `json:"outputVariable,omitempty"`
}

func (c ButtonsConfig) Validate() error {
	if c.Text == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "text is required")
	}
	if len(c.Buttons) == 0 {
		return ErrInvalidFlowNode().WithDetail("reason", "at least one button is required")
	}
	return nil
}

func (c ButtonsConfig) GetType() NodeType { return NodeTypeButtons }

// CappedButtons applies the channel constraint.
func (c ButtonsConfig) CappedButtons() []ButtonSpec {
	if len(c.Buttons) > ButtonLimit {
		return c.Buttons[:ButtonLimit]
	}
	return c.Buttons
}

type ListItemSpec struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ListSectionSpec struct {
	Title string         `json:"title,omitempty"`
	Items []ListItemSpec `json:"items"`
}

type ListConfig struct {
	Text           string            `json:"text"`
	ButtonText     string            `json:"buttonText,omitempty"`
	Sections       []ListSectionSpec `json:"sections"`
	OutputVariable string            `json:"outputVariable,omitempty"`
}

func (c ListConfig) Validate() error {
	if c.Text == "" {
		return ErrInvalidFlowNode().WithDetail("reason", "text is required")
	}
	if len(c.Sections) == 0 {
		return ErrInvalidFlowNode().WithDetail("reason", "at least one section is required")
	}
	return nil
}

func (c ListConfig) GetType() NodeType { return NodeTypeList }

func (c ListConfig) GetButtonText() string {
	if c.ButtonText == "" {
		return "Ver opções"
	}
	return c.ButtonText
}

type EndConfig struct {
	Text string `json:"text,omitempty"` // optional farewell
}

func (c EndConfig) Validate() error   { return nil }
func (c EndConfig) GetType() NodeType { return NodeTypeEnd }

// ============================================================================
// Config Extraction
// ============================================================================

func decodeConfig[T NodeConfig](data map[string]any) (*T, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node data: %w", err)
	}
	var cfg T
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ExtractMessageConfig(data map[string]any) (*MessageConfig, error) {
	return decodeConfig[MessageConfig](data)
}

func ExtractQuestionConfig(data map[string]any) (*QuestionConfig, error) {
	return decodeConfig[QuestionConfig](data)
}

func ExtractConditionConfig(data map[string]any) (*ConditionConfig, error) {
	return decodeConfig[ConditionConfig](data)
}

func ExtractDelayConfig(data map[string]any) (*DelayConfig, error) {
	return decodeConfig[DelayConfig](data)
}

func ExtractJumpConfig(data map[string]any) (*JumpConfig, error) {
	return decodeConfig[JumpConfig](data)
}

func ExtractActionConfig(data map[string]any) (*ActionConfig, error) {
	return decodeConfig[ActionConfig](data)
}

func ExtractAPICallConfig(data map[string]any) (*APICallConfig, error) {
	return decodeConfig[APICallConfig](data)
}

func ExtractAIPromptConfig(data map[string]any) (*AIPromptConfig, error) {
	return decodeConfig[AIPromptConfig](data)
}

func ExtractDatabaseQueryConfig(data map[string]any) (*DatabaseQueryConfig, error) {
	return decodeConfig[DatabaseQueryConfig](data)
}

func ExtractScriptConfig(data map[string]any) (*ScriptConfig, error) {
	return decodeConfig[ScriptConfig](data)
}

func ExtractSetVariableConfig(data map[string]any) (*SetVariableConfig, error) {
	return decodeConfig[SetVariableConfig](data)
}

func ExtractRandomConfig(data map[string]any) (*RandomConfig, error) {
	return decodeConfig[RandomConfig](data)
}

func ExtractDatetimeConfig(data map[string]any) (*DatetimeConfig, error) {
	return decodeConfig[DatetimeConfig](data)
}

func ExtractHandoffConfig(data map[string]any) (*HandoffConfig, error) {
	return decodeConfig[HandoffConfig](data)
}

func ExtractTemplateConfig(data map[string]any) (*TemplateConfig, error) {
	return decodeConfig[TemplateConfig](data)
}

func ExtractButtonsConfig(data map[string]any) (*ButtonsConfig, error) {
	return decodeConfig[ButtonsConfig](data)
}

func ExtractListConfig(data map[string]any) (*ListConfig, error) {
	return decodeConfig[ListConfig](data)
}

func ExtractEndConfig(data map[string]any) (*EndConfig, error) {
	return decodeConfig[EndConfig](data)
}
