package flow

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("FLOW")

var (
	// Graph errors
	CodeFlowNotFound     = ErrRegistry.Register("FLOW_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Flow not found")
	CodeNodeNotFound     = ErrRegistry.Register("NODE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Node not found")
	CodeInvalidFlowGraph = ErrRegistry.Register("INVALID_FLOW_GRAPH", errx.TypeValidation, http.StatusBadRequest, "Invalid flow graph")
	CodeInvalidFlowNode  = ErrRegistry.Register("INVALID_FLOW_NODE", errx.TypeValidation, http.StatusBadRequest, "Invalid flow node")
	CodeUnknownNodeType  = ErrRegistry.Register("UNKNOWN_NODE_TYPE", errx.TypeValidation, http.StatusBadRequest, "Unknown node type")

	// Edge resolution errors
	CodeNoBranchMatch = ErrRegistry.Register("NO_BRANCH_MATCH", errx.TypeBusiness, http.StatusConflict, "No edge matches branch outcome")
	CodeDeadEnd       = ErrRegistry.Register("DEAD_END", errx.TypeBusiness, http.StatusConflict, "Node has no outgoing edges")

	// Execution errors
	CodeNodeExecutionFailed   = ErrRegistry.Register("NODE_EXECUTION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Node execution failed")
	CodeLoopDetected          = ErrRegistry.Register("LOOP_DETECTED", errx.TypeBusiness, http.StatusConflict, "Execution loop detected")
	CodeConversationNotFound  = ErrRegistry.Register("CONVERSATION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Conversation not found")
	CodeConversationLocked    = ErrRegistry.Register("CONVERSATION_LOCKED", errx.TypeConflict, http.StatusConflict, "Conversation tick already in progress")
	CodeProviderNotFound      = ErrRegistry.Register("PROVIDER_NOT_FOUND", errx.TypeValidation, http.StatusBadRequest, "AI provider not registered")
	CodeBackendNotFound       = ErrRegistry.Register("BACKEND_NOT_FOUND", errx.TypeValidation, http.StatusBadRequest, "Database backend not registered")
	CodeScriptTimeout         = ErrRegistry.Register("SCRIPT_TIMEOUT", errx.TypeInternal, http.StatusRequestTimeout, "Script exceeded its time budget")
	CodeExternalCallExhausted = ErrRegistry.Register("EXTERNAL_CALL_EXHAUSTED", errx.TypeInternal, http.StatusBadGateway, "External call retries exhausted")
)

// Error constructor functions
func ErrFlowNotFound() *errx.Error {
	return ErrRegistry.New(CodeFlowNotFound)
}

func ErrNodeNotFound() *errx.Error {
	return ErrRegistry.New(CodeNodeNotFound)
}

func ErrInvalidFlowGraph() *errx.Error {
	return ErrRegistry.New(CodeInvalidFlowGraph)
}

func ErrInvalidFlowNode() *errx.Error {
	return ErrRegistry.New(CodeInvalidFlowNode)
}

func ErrUnknownNodeType() *errx.Error {
	return ErrRegistry.New(CodeUnknownNodeType)
}

func ErrNoBranchMatch() *errx.Error {
	return ErrRegistry.New(CodeNoBranchMatch)
}

func ErrDeadEnd() *errx.Error {
	return ErrRegistry.New(CodeDeadEnd)
}

func ErrNodeExecutionFailed() *errx.Error {
	return ErrRegistry.New(CodeNodeExecutionFailed)
}

func ErrLoopDetected() *errx.Error {
	return ErrRegistry.New(CodeLoopDetected)
}

func ErrConversationNotFound() *errx.Error {
	return ErrRegistry.New(CodeConversationNotFound)
}

func ErrConversationLocked() *errx.Error {
	return ErrRegistry.New(CodeConversationLocked)
}

func ErrProviderNotFound() *errx.Error {
	return ErrRegistry.New(CodeProviderNotFound)
}

func ErrBackendNotFound() *errx.Error {
	return ErrRegistry.New(CodeBackendNotFound)
}

func ErrScriptTimeout() *errx.Error {
	return ErrRegistry.New(CodeScriptTimeout)
}

func ErrExternalCallExhausted() *errx.Error {
	return ErrRegistry.New(CodeExternalCallExhausted)
}
