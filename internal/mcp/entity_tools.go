package mcp

import (
	"context"
	"encoding/json"

	"ctibridge/internal/opencti/queries"
)

// --------------------- get_entity ---------------------

type getEntityTool struct{ host Host }

func newGetEntityTool(h Host) *getEntityTool { return &getEntityTool{host: h} }

func (t *getEntityTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "get_entity",
		Description: "Fetch a single entity, relationship or observable by OpenCTI id.",
		InputSchema: objectSchema(
			param{name: "entity_id", typ: "string", desc: "OpenCTI internal id.", required: true},
			param{name: "entity_type", typ: "string", desc: "Expected entity_type; records of another type are skipped."},
		),
		ReadOnly: true,
	}
}

type getEntityInput struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// entityLookups are tried in order until one returns a record.
var entityLookups = []struct {
	key string
	doc string
}{
	{"stixCoreObject", queries.CoreObject},
	{"stixCoreRelationship", queries.CoreRelationship},
	{"stixCyberObservable", queries.CyberObservable},
}

type entityHeader struct {
	EntityType string `json:"entity_type"`
}

func (t *getEntityTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in getEntityInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	id, err := requireString("entity_id", in.EntityID)
	if err != nil {
		return nil, err
	}
	if cached, ok := t.host.Entities.Get(id); ok && typeMatches(cached, in.EntityType) {
		return cached, nil
	}
	for _, lookup := range entityLookups {
		doc, err := queries.Document(lookup.doc)
		if err != nil {
			return nil, err
		}
		data, err := t.host.OpenCTI.Query(ctx, doc, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		raw, err := field(data, lookup.key)
		if err != nil || isNull(raw) {
			continue
		}
		if !typeMatches(raw, in.EntityType) {
			continue
		}
		t.host.Entities.Set(id, raw)
		return raw, nil
	}
	return nil, notFound("no entity found with id '%s'", id)
}

func typeMatches(raw json.RawMessage, want string) bool {
	if want == "" {
		return true
	}
	var h entityHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return false
	}
	return h.EntityType == "" || h.EntityType == want
}

// --------------------- entity-scoped listings ---------------------

type entityScopedTool struct {
	host     Host
	name     string
	desc     string
	doc      string
	defLimit int
}

func newEntityScopedTools(h Host) []*entityScopedTool {
	return []*entityScopedTool{
		{host: h, name: "get_entity_relationships", doc: queries.EntityRelationships, defLimit: 50,
			desc: "List the relationships of an entity."},
		{host: h, name: "get_indicators_by_entity", doc: queries.EntityIndicators, defLimit: 25,
			desc: "List indicators related to an entity such as a threat actor or malware."},
		{host: h, name: "get_attack_patterns_by_entity", doc: queries.EntityAttackPatterns, defLimit: 25,
			desc: "List attack patterns (TTPs) used by an entity."},
		{host: h, name: "get_entity_observables", doc: queries.EntityObservables, defLimit: 25,
			desc: "List observables (IPs, domains, hashes) related to an entity."},
		{host: h, name: "get_entity_notes", doc: queries.EntityNotes, defLimit: 10,
			desc: "List analysis notes attached to an entity."},
	}
}

func (t *entityScopedTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        t.name,
		Description: t.desc,
		InputSchema: objectSchema(
			param{name: "entity_id", typ: "string", desc: "OpenCTI internal id.", required: true},
			limitParam(t.defLimit),
		),
		ReadOnly: true,
	}
}

type entityScopedInput struct {
	EntityID string `json:"entity_id"`
	Limit    *int   `json:"limit"`
}

func (t *entityScopedTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in entityScopedInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	limit, err := resolveLimit(in.Limit, t.defLimit)
	if err != nil {
		return nil, err
	}
	id, err := requireString("entity_id", in.EntityID)
	if err != nil {
		return nil, err
	}
	doc, err := queries.Document(t.doc)
	if err != nil {
		return nil, err
	}
	data, err := t.host.OpenCTI.Query(ctx, doc, map[string]any{"id": id, "first": limit})
	if err != nil {
		return nil, err
	}
	return single(data, "stixCoreObject", "no entity found with id '%s'", id)
}

// single returns data[key], turning a missing or null record into not_found.
func single(data json.RawMessage, key, format string, args ...any) (json.RawMessage, error) {
	raw, err := field(data, key)
	if err != nil || isNull(raw) {
		return nil, notFound(format, args...)
	}
	return raw, nil
}

// --------------------- search_by_stix_id ---------------------

type searchByStixIDTool struct{ host Host }

func newSearchByStixIDTool(h Host) *searchByStixIDTool { return &searchByStixIDTool{host: h} }

func (t *searchByStixIDTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "search_by_stix_id",
		Description: "Fetch a domain object by STIX id (e.g. threat-actor--...).",
		InputSchema: objectSchema(
			param{name: "stix_id", typ: "string", desc: "STIX identifier.", required: true},
		),
		ReadOnly: true,
	}
}

type stixIDInput struct {
	StixID string `json:"stix_id"`
}

func (t *searchByStixIDTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in stixIDInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	id, err := requireString("stix_id", in.StixID)
	if err != nil {
		return nil, err
	}
	data, err := t.host.OpenCTI.Query(ctx, queries.MustDocument(queries.StixID), map[string]any{"stixId": id})
	if err != nil {
		return nil, err
	}
	return single(data, "stixDomainObject", "no entity found with STIX id '%s'", id)
}

// --------------------- list_connectors ---------------------

type listConnectorsTool struct{ host Host }

func newListConnectorsTool(h Host) *listConnectorsTool { return &listConnectorsTool{host: h} }

func (t *listConnectorsTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "list_connectors",
		Description: "List the connectors registered in OpenCTI, including enrichment connectors and their ids.",
		InputSchema: objectSchema(),
		ReadOnly:    true,
	}
}

func (t *listConnectorsTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	if err := decodeArgs(input, &struct{}{}); err != nil {
		return nil, err
	}
	return t.host.OpenCTI.Query(ctx, queries.MustDocument(queries.Connectors), nil)
}

// --------------------- get_malware_analysis ---------------------

type malwareAnalysisTool struct{ host Host }

func newMalwareAnalysisTool(h Host) *malwareAnalysisTool { return &malwareAnalysisTool{host: h} }

func (t *malwareAnalysisTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "get_malware_analysis",
		Description: "Fetch a malware family with its kill chain phases and relationships.",
		InputSchema: objectSchema(
			param{name: "malware_id", typ: "string", desc: "OpenCTI internal id of the malware.", required: true},
		),
		ReadOnly: true,
	}
}

type malwareInput struct {
	MalwareID string `json:"malware_id"`
}

func (t *malwareAnalysisTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in malwareInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	id, err := requireString("malware_id", in.MalwareID)
	if err != nil {
		return nil, err
	}
	data, err := t.host.OpenCTI.Query(ctx, queries.MustDocument(queries.MalwareAnalysis), map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return single(data, "malware", "no malware found with id '%s'", id)
}
