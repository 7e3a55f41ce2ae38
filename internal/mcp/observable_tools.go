package mcp

import (
	"context"
	"encoding/json"

	"ctibridge/internal/observable"
)

var kindParam = param{
	name: "value_type",
	typ:  "string",
	desc: "Observable kind. Inferred from the value when omitted.",
	enum: []string{string(observable.KindIP), string(observable.KindDomain), string(observable.KindHash)},
}

type observableInput struct {
	Value     string `json:"value"`
	ValueType string `json:"value_type"`
}

// --------------------- create_observable ---------------------

type createObservableTool struct{ host Host }

func newCreateObservableTool(h Host) *createObservableTool { return &createObservableTool{host: h} }

func (t *createObservableTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "create_observable",
		Description: "Return the OpenCTI observable for an IP address, domain or file hash, creating it when none exists.",
		InputSchema: objectSchema(
			param{name: "value", typ: "string", desc: "IP address, domain name or hex hash.", required: true},
			kindParam,
		),
	}
}

func (t *createObservableTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in observableInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	res, err := t.host.Observables.GetOrCreate(ctx, in.Value, in.ValueType)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// --------------------- ask_enrichment ---------------------

type askEnrichmentTool struct{ host Host }

func newAskEnrichmentTool(h Host) *askEnrichmentTool { return &askEnrichmentTool{host: h} }

func (t *askEnrichmentTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "ask_enrichment",
		Description: "Queue an enrichment job (e.g. VirusTotal) for an existing observable.",
		InputSchema: objectSchema(
			param{name: "value", typ: "string", desc: "IP address, domain name or hex hash.", required: true},
			kindParam,
		),
	}
}

func (t *askEnrichmentTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in observableInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	res, err := t.host.Observables.AskEnrichment(ctx, in.Value, in.ValueType)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// --------------------- list_observable_history ---------------------

const defaultHistoryLimit = 25

type observableHistoryTool struct{ host Host }

func newObservableHistoryTool(h Host) *observableHistoryTool {
	return &observableHistoryTool{host: h}
}

func (t *observableHistoryTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "list_observable_history",
		Description: "List recent observable lookups, creations and enrichment requests made through this server.",
		InputSchema: objectSchema(limitParam(defaultHistoryLimit)),
		ReadOnly:    true,
	}
}

type historyInput struct {
	Limit *int `json:"limit"`
}

type historyOutput struct {
	Entries any `json:"entries"`
}

func (t *observableHistoryTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in historyInput
	if err := decodeArgs(input, &in); err != nil {
		return nil, err
	}
	limit, err := resolveLimit(in.Limit, defaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	entries, err := t.host.Journal.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		return json.Marshal(historyOutput{Entries: []any{}})
	}
	return json.Marshal(historyOutput{Entries: entries})
}
