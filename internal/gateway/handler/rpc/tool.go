package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"ctibridge/internal/gateway/middleware"
	"ctibridge/internal/gateway/service/observables"
	"ctibridge/internal/mcp"

	"connectrpc.com/connect"
)

// CallToolProcedure is the connect procedure path for ToolService.CallTool.
const CallToolProcedure = "/ctibridge.v1.ToolService/CallTool"

// CategoryHeader carries the error category on failed calls.
const CategoryHeader = "Ctibridge-Error-Category"

type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type CallToolResponse struct {
	Output json.RawMessage `json:"output"`
}

type ToolHandler struct {
	registry *mcp.Registry
	logger   *log.Logger
}

func NewToolHandler(registry *mcp.Registry, logger *log.Logger) *ToolHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &ToolHandler{registry: registry, logger: logger}
}

// Handler returns the connect route for CallTool.
func (h *ToolHandler) Handler() (string, http.Handler) {
	return CallToolProcedure, connect.NewUnaryHandler(
		CallToolProcedure,
		h.CallTool,
		connect.WithCodec(jsonCodec{}),
	)
}

func (h *ToolHandler) CallTool(ctx context.Context, req *connect.Request[CallToolRequest]) (*connect.Response[CallToolResponse], error) {
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}
	args := req.Msg.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	out, err := h.registry.Call(ctx, name, args)
	if err != nil {
		info := mcp.Classify(err)
		h.logger.Printf("rpc: tool %s failed request_id=%s category=%s: %v",
			name, middleware.RequestIDFrom(ctx), info.Category, err)
		cerr := connect.NewError(codeFor(info), err)
		cerr.Meta().Set(CategoryHeader, info.Category)
		return nil, cerr
	}
	return connect.NewResponse(&CallToolResponse{Output: out}), nil
}

// ListTools serves the registry's tool specs as JSON.
func (h *ToolHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"tools": h.registry.Specs()}); err != nil {
		h.logger.Printf("rpc: encode tool list: %v", err)
	}
}

func codeFor(info mcp.ErrorInfo) connect.Code {
	switch info.Category {
	case string(observables.CategoryInvalidInput),
		string(observables.CategoryAmbiguousInput),
		string(observables.CategoryInvalidHashLength):
		return connect.CodeInvalidArgument
	case string(observables.CategoryNotFound):
		return connect.CodeNotFound
	case string(observables.CategoryRemote):
		if info.Retryable {
			return connect.CodeDeadlineExceeded
		}
		return connect.CodeUnavailable
	default:
		return connect.CodeInternal
	}
}
