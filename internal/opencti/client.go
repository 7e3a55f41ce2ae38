// Package opencti is the GraphQL transport to an OpenCTI instance: the search
// and mutation executors used by the observable gateway, and a raw query
// passthrough for the mechanical tools.
package opencti

import (
	"context"
	"encoding/json"
	"fmt"

	"ctibridge/internal/observable"
)

// Client issues typed requests over a Transport.
type Client struct {
	t Transport
}

func NewClient(t Transport) *Client {
	return &Client{t: t}
}

// Query runs an arbitrary GraphQL document and returns its data payload.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	return c.t.GraphQL(ctx, query, variables)
}

// QueryInto runs query and decodes the data payload into out.
func (c *Client) QueryInto(ctx context.Context, query string, variables map[string]any, out any) error {
	data, err := c.t.GraphQL(ctx, query, variables)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return remoteErr(OperationName(query), "malformed response", err)
	}
	return nil
}

type observableSearchData struct {
	StixCyberObservables *struct {
		Edges []struct {
			Node *observable.Candidate `json:"node"`
		} `json:"edges"`
	} `json:"stixCyberObservables"`
}

// SearchObservables returns up to limit cyber observables of the given types
// matching term, in the order OpenCTI returned them.
func (c *Client) SearchObservables(ctx context.Context, term string, types []string, limit int) ([]observable.Candidate, error) {
	var data observableSearchData
	vars := map[string]any{
		"search": term,
		"types":  types,
		"first":  limit,
	}
	if err := c.QueryInto(ctx, findObservablesQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.StixCyberObservables == nil {
		return nil, nil
	}
	out := make([]observable.Candidate, 0, len(data.StixCyberObservables.Edges))
	for _, edge := range data.StixCyberObservables.Edges {
		if edge.Node == nil {
			continue
		}
		out = append(out, *edge.Node)
	}
	return out, nil
}

type createArgs struct {
	field     string
	inputType string
}

var createShapes = map[string]createArgs{
	observable.TypeDomain:   {field: "DomainName", inputType: "DomainNameAddInput"},
	observable.TypeIPv4:     {field: "IPv4Addr", inputType: "IPv4AddrAddInput"},
	observable.TypeIPv6:     {field: "IPv6Addr", inputType: "IPv6AddrAddInput"},
	observable.TypeArtifact: {field: "Artifact", inputType: "ArtifactAddInput"},
}

// CreateObservable adds a cyber observable of recordType. A response without
// a record yields a zero Candidate; callers decide whether that is an error.
func (c *Client) CreateObservable(ctx context.Context, recordType string, input map[string]any) (observable.Candidate, error) {
	shape, ok := createShapes[recordType]
	if !ok {
		return observable.Candidate{}, fmt.Errorf("opencti: unsupported observable type %q", recordType)
	}
	mutation := fmt.Sprintf(createObservableMutation, shape.field, shape.inputType)
	var data struct {
		Created *observable.Candidate `json:"stixCyberObservableAdd"`
	}
	vars := map[string]any{"type": recordType, "input": input}
	if err := c.QueryInto(ctx, mutation, vars, &data); err != nil {
		return observable.Candidate{}, err
	}
	if data.Created == nil {
		return observable.Candidate{}, nil
	}
	return *data.Created, nil
}

// AskEnrichment queues an enrichment job for entityID on connectorID and
// returns the work id.
func (c *Client) AskEnrichment(ctx context.Context, entityID, connectorID string) (string, error) {
	var data struct {
		Edit *struct {
			AskEnrichment *struct {
				ID string `json:"id"`
			} `json:"askEnrichment"`
		} `json:"stixCoreObjectEdit"`
	}
	vars := map[string]any{"id": entityID, "connectorId": connectorID}
	if err := c.QueryInto(ctx, askEnrichmentMutation, vars, &data); err != nil {
		return "", err
	}
	if data.Edit == nil || data.Edit.AskEnrichment == nil || data.Edit.AskEnrichment.ID == "" {
		return "", remoteErr("AskEnrichment", "failed to request enrichment for the observable", nil)
	}
	return data.Edit.AskEnrichment.ID, nil
}
