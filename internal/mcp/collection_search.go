package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ctibridge/internal/opencti/queries"
)

// --------------------- search_<collection> ---------------------

const defaultCollectionLimit = 25

type collectionTool struct {
	host Host
	coll queries.Collection
}

func newCollectionTools(h Host) ([]*collectionTool, error) {
	colls, err := queries.Collections()
	if err != nil {
		return nil, fmt.Errorf("mcp: load collection queries: %w", err)
	}
	out := make([]*collectionTool, 0, len(colls))
	for _, c := range colls {
		out = append(out, &collectionTool{host: h, coll: c})
	}
	return out, nil
}

func (t *collectionTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        t.coll.ToolName(),
		Description: t.coll.Description,
		InputSchema: objectSchema(
			param{name: "search", typ: "string", desc: "Keyword filter; omit to list the most recent entries."},
			limitParam(defaultCollectionLimit),
		),
		ReadOnly: true,
	}
}

type collectionInput struct {
	Search string `json:"search"`
	Limit  *int   `json:"limit"`
}

func (t *collectionTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in collectionInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	limit, err := resolveLimit(in.Limit, defaultCollectionLimit)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{"first": limit}
	if s := strings.TrimSpace(in.Search); s != "" {
		vars["search"] = s
	}
	data, err := t.host.OpenCTI.Query(ctx, t.coll.Query, vars)
	if err != nil {
		return nil, err
	}
	return field(data, t.coll.ResultKey)
}

// field extracts key from a GraphQL data object. A missing key means the
// response did not have the expected shape.
func field(data json.RawMessage, key string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, &ToolError{Category: CategoryRemote, Message: fmt.Sprintf("unexpected OpenCTI response: %v", err)}
	}
	v, ok := obj[key]
	if !ok {
		return nil, &ToolError{Category: CategoryRemote, Message: fmt.Sprintf("unexpected OpenCTI response: missing '%s'", key)}
	}
	return v, nil
}
