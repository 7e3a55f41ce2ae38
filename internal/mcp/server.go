package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
)

// Server exposes a Registry over JSON-RPC 2.0 on newline-delimited stdio.
type Server struct {
	registry    *Registry
	logger      *log.Logger
	name        string
	version     string
	initialized bool
}

// ServerOption configures optional server behavior.
type ServerOption func(*Server)

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithServerLogger routes protocol diagnostics to logger. It must not
// write to the protocol output.
func WithServerLogger(logger *log.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(registry *Registry, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		logger:   log.Default(),
		name:     "ctibridge",
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes requests from input until EOF or ctx is done. Each request
// occupies one line.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	encoder := json.NewEncoder(output)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if werr := writeError(encoder, json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); werr != nil {
				return fmt.Errorf("mcp: write parse error: %w", werr)
			}
			continue
		}
		if req.JSONRPC != "2.0" {
			if !req.isNotification() {
				if werr := writeError(encoder, req.ID, codeInvalidRequest, "unsupported JSON-RPC version"); werr != nil {
					return fmt.Errorf("mcp: write version error: %w", werr)
				}
			}
			continue
		}
		if req.isNotification() {
			continue
		}
		if err := s.dispatch(ctx, encoder, &req); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, encoder *json.Encoder, req *request) error {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(encoder, req)
	case "ping":
		return writeResult(encoder, req.ID, map[string]any{})
	case "tools/list":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsList(encoder, req)
	case "tools/call":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsCall(ctx, encoder, req)
	default:
		return writeError(encoder, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleInitialize(encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for initialize")
	}
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
	}
	s.initialized = true
	s.logger.Printf("mcp: initialized by %s %s (protocol %s)", params.ClientInfo.Name, params.ClientInfo.Version, params.ProtocolVersion)

	return writeResult(encoder, req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    serverCapabilities{Tools: &toolCapability{}},
		ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		Instructions:    "Fetches intelligence data from an OpenCTI instance and manages observables.",
	})
}

func (s *Server) handleToolsList(encoder *json.Encoder, req *request) error {
	specs := s.registry.Specs()
	tools := make([]toolDescription, 0, len(specs))
	for _, spec := range specs {
		d := toolDescription{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema,
		}
		if len(d.InputSchema) == 0 {
			d.InputSchema = objectSchema()
		}
		if spec.ReadOnly {
			d.Annotations = &toolAnnotations{ReadOnlyHint: true}
		}
		tools = append(tools, d)
	}
	return writeResult(encoder, req.ID, toolsListResult{Tools: tools})
}

func (s *Server) handleToolsCall(ctx context.Context, encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for tools/call")
	}
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
	}
	if _, ok := s.registry.Lookup(params.Name); !ok {
		return writeError(encoder, req.ID, codeInvalidParams, "unknown tool: "+params.Name)
	}

	out, err := s.registry.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Printf("mcp: tool %s failed: %v", params.Name, err)
	}
	return writeResult(encoder, req.ID, BuildToolResult(out, err))
}

// BuildToolResult shapes a tool's output or error as a tools/call result.
func BuildToolResult(out json.RawMessage, err error) ToolResult {
	if err != nil {
		info := Classify(err)
		return ToolResult{
			Content:   []ContentBlock{{Type: "text", Text: err.Error()}},
			IsError:   true,
			ErrorInfo: &info,
		}
	}
	result := ToolResult{Content: []ContentBlock{{Type: "text", Text: string(out)}}}
	var obj map[string]any
	if json.Unmarshal(out, &obj) == nil && obj != nil {
		result.StructuredContent = obj
	}
	return result
}

func writeResult(encoder *json.Encoder, id json.RawMessage, result any) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(encoder *json.Encoder, id json.RawMessage, code int, message string) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
