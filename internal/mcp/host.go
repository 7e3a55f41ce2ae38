package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	entitycache "ctibridge/internal/cache/entity"
	"ctibridge/internal/gateway/repository/audit"
	"ctibridge/internal/gateway/service/observables"
)

// Querier runs GraphQL documents against OpenCTI.
type Querier interface {
	Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
}

// Host wires OpenCTI access for tools.
type Host struct {
	OpenCTI     Querier
	Observables *observables.Service
	Entities    *entitycache.Cache
	Journal     audit.Store
}

// RegisterDefaultTools installs the default tool set into a registry.
func RegisterDefaultTools(r *Registry, h Host) error {
	if r == nil {
		return fmt.Errorf("mcp: registry is nil")
	}
	if h.OpenCTI == nil {
		return fmt.Errorf("mcp: OpenCTI querier is required")
	}
	collections, err := newCollectionTools(h)
	if err != nil {
		return err
	}
	for _, t := range collections {
		r.Register(t)
	}
	if h.Observables != nil {
		r.Register(newCreateObservableTool(h))
		r.Register(newAskEnrichmentTool(h))
	}
	if h.Journal != nil {
		r.Register(newObservableHistoryTool(h))
	}
	r.Register(newGetEntityTool(h))
	r.Register(newExecuteGraphQLTool(h))
	for _, t := range newEntityScopedTools(h) {
		r.Register(t)
	}
	r.Register(newSearchByStixIDTool(h))
	r.Register(newListConnectorsTool(h))
	r.Register(newMalwareAnalysisTool(h))
	return nil
}
