package mcp

import (
	"context"
	"encoding/json"
)

// --------------------- execute_graphql ---------------------

type executeGraphQLTool struct{ host Host }

func newExecuteGraphQLTool(h Host) *executeGraphQLTool { return &executeGraphQLTool{host: h} }

func (t *executeGraphQLTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "execute_graphql",
		Description: "Run a raw GraphQL query or mutation against OpenCTI and return its data payload.",
		InputSchema: objectSchema(
			param{name: "query", typ: "string", desc: "GraphQL document.", required: true},
			param{name: "variables", typ: "object", desc: "Variables for the document."},
		),
	}
}

type executeGraphQLInput struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (t *executeGraphQLTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in executeGraphQLInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	query, err := requireString("query", in.Query)
	if err != nil {
		return nil, err
	}
	return t.host.OpenCTI.Query(ctx, query, in.Variables)
}
