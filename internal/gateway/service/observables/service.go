// Package observables resolves raw observable values against OpenCTI:
// look an existing record up, create one when none matches, or queue an
// enrichment job for a match.
package observables

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"ctibridge/internal/gateway/repository/audit"
	"ctibridge/internal/observable"

	"golang.org/x/sync/singleflight"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Searcher,Mutator,Outcomes

// searchLimit caps how many candidates one lookup inspects.
const searchLimit = 10

// Searcher finds cyber observables of the given record types.
type Searcher interface {
	SearchObservables(ctx context.Context, term string, types []string, limit int) ([]observable.Candidate, error)
}

// Mutator creates observables and queues enrichment jobs.
type Mutator interface {
	CreateObservable(ctx context.Context, recordType string, input map[string]any) (observable.Candidate, error)
	AskEnrichment(ctx context.Context, entityID, connectorID string) (string, error)
}

// Outcomes is told how each operation ended. status is "exists",
// "created", "enriched" or an error category.
type Outcomes interface {
	ObserveOutcome(operation, status string)
}

// Status values of a Result.
const (
	StatusExists  = "exists"
	StatusCreated = "created"
)

// Observable is the projection handed back to callers.
type Observable struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	Value      string `json:"value"`
}

// Result is the outcome of GetOrCreate.
type Result struct {
	Status     string     `json:"status"`
	Observable Observable `json:"observable"`
}

// EnrichmentResult is the outcome of AskEnrichment.
type EnrichmentResult struct {
	WorkID      string     `json:"work_id"`
	ConnectorID string     `json:"connector_id"`
	Observable  Observable `json:"observable"`
}

// Resolved is a successful Lookup.
type Resolved struct {
	Kind      observable.Kind
	Value     string
	Candidate observable.Candidate
}

// Service implements the observable gateway.
type Service struct {
	search      Searcher
	mutate      Mutator
	connectorID string
	journal     audit.Store
	outcomes    Outcomes
	logger      *log.Logger
	flight      *singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithConnectorID enables AskEnrichment against connector id.
func WithConnectorID(id string) Option {
	return func(s *Service) { s.connectorID = strings.TrimSpace(id) }
}

// WithJournal records every successful resolution in store.
func WithJournal(store audit.Store) Option {
	return func(s *Service) { s.journal = store }
}

func WithOutcomes(o Outcomes) Option {
	return func(s *Service) { s.outcomes = o }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSingleFlight makes concurrent GetOrCreate calls for the same kind and
// value share one search and at most one create.
func WithSingleFlight() Option {
	return func(s *Service) { s.flight = &singleflight.Group{} }
}

func New(search Searcher, mutate Mutator, opts ...Option) (*Service, error) {
	if search == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if mutate == nil {
		return nil, fmt.Errorf("mutator is required")
	}
	s := &Service{search: search, mutate: mutate, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnrichmentEnabled reports whether a connector id was configured.
func (s *Service) EnrichmentEnabled() bool {
	return s.connectorID != ""
}

// Lookup classifies value (unless kind is given), searches the record types
// of that kind and returns the first candidate matching value. A miss is an
// *Error with CategoryNotFound.
func (s *Service) Lookup(ctx context.Context, value, kind string) (Resolved, error) {
	v, k, err := s.resolve(value, kind)
	if err != nil {
		return Resolved{}, err
	}
	return s.lookup(ctx, v, k)
}

func (s *Service) resolve(value, kind string) (string, observable.Kind, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", "", newError(CategoryInvalidInput, ErrInvalidInput, "value must be a non-empty string")
	}
	if strings.TrimSpace(kind) != "" {
		k, err := observable.ParseKind(kind)
		if err != nil {
			return "", "", &Error{Category: CategoryInvalidInput, Message: err.Error(), Err: errors.Join(ErrInvalidInput, err)}
		}
		return v, k, nil
	}
	k, ok := observable.Classify(v)
	if !ok {
		return "", "", newError(CategoryAmbiguousInput, ErrAmbiguousInput,
			"unable to infer observable type for %q; pass kind as one of ip, domain, hash", v)
	}
	return v, k, nil
}

func (s *Service) lookup(ctx context.Context, v string, k observable.Kind) (Resolved, error) {
	candidates, err := s.search.SearchObservables(ctx, v, k.RecordTypes(), searchLimit)
	if err != nil {
		return Resolved{}, remoteError("failed to search for observable in OpenCTI", err)
	}
	match, ok := observable.FindMatch(candidates, v)
	if !ok {
		return Resolved{Kind: k, Value: v}, newError(CategoryNotFound, ErrNotFound,
			"no observable found matching value %q for type %q", v, k)
	}
	return Resolved{Kind: k, Value: v, Candidate: match}, nil
}

// GetOrCreate returns the existing record matching value or creates one.
func (s *Service) GetOrCreate(ctx context.Context, value, kind string) (Result, error) {
	res, err := s.getOrCreate(ctx, value, kind)
	if err != nil {
		s.observe("get_or_create", string(CategoryOf(err)))
		return Result{}, err
	}
	s.observe("get_or_create", res.Status)
	return res, nil
}

func (s *Service) getOrCreate(ctx context.Context, value, kind string) (Result, error) {
	v, k, err := s.resolve(value, kind)
	if err != nil {
		return Result{}, err
	}
	if s.flight == nil {
		return s.findOrCreate(ctx, v, k)
	}
	// The shared call outlives any single caller; transport timeouts still
	// bound it. Each caller stops waiting when its own ctx is done.
	key := string(k) + "\x00" + strings.ToLower(v)
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.findOrCreate(context.WithoutCancel(ctx), v, k)
	})
	select {
	case <-ctx.Done():
		return Result{}, remoteError("gave up waiting for observable resolution", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

func (s *Service) findOrCreate(ctx context.Context, v string, k observable.Kind) (Result, error) {
	found, err := s.lookup(ctx, v, k)
	if err == nil {
		res := Result{Status: StatusExists, Observable: project(found.Candidate, v)}
		s.record(ctx, audit.OperationGetOrCreate, k, v, res.Status, res.Observable, "")
		return res, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}

	recordType, input, err := creationPayload(k, v)
	if err != nil {
		return Result{}, err
	}
	s.logger.Printf("observables: creating %s %s", recordType, v)
	created, err := s.mutate.CreateObservable(ctx, recordType, input)
	if err != nil {
		return Result{}, remoteError("failed to create observable in OpenCTI", err)
	}
	if created.ID == "" {
		return Result{}, newError(CategoryCreationFailed, ErrCreationFailed,
			"OpenCTI did not return an identifier for the created %s observable", recordType)
	}
	res := Result{Status: StatusCreated, Observable: project(created, v)}
	s.record(ctx, audit.OperationGetOrCreate, k, v, res.Status, res.Observable, "")
	return res, nil
}

// creationPayload picks the record type and input for a new observable.
func creationPayload(k observable.Kind, v string) (string, map[string]any, error) {
	switch k {
	case observable.KindDomain:
		return observable.TypeDomain, map[string]any{"value": v}, nil
	case observable.KindIP:
		addr, ok := observable.ParseIP(v)
		if !ok {
			return "", nil, newError(CategoryCreationFailed, ErrCreationFailed, "invalid IP address value: %s", v)
		}
		if addr.Is4() {
			return observable.TypeIPv4, map[string]any{"value": v}, nil
		}
		return observable.TypeIPv6, map[string]any{"value": v}, nil
	case observable.KindHash:
		alg, err := observable.ResolveAlgorithm(v)
		if err != nil {
			return "", nil, hashLengthError(err)
		}
		return observable.TypeArtifact, map[string]any{
			"hashes": []map[string]any{{"algorithm": string(alg), "hash": v}},
		}, nil
	}
	return "", nil, newError(CategoryInvalidInput, ErrInvalidInput, "unsupported observable kind %q", k)
}

// AskEnrichment queues an enrichment job for the record matching value.
func (s *Service) AskEnrichment(ctx context.Context, value, kind string) (EnrichmentResult, error) {
	res, err := s.askEnrichment(ctx, value, kind)
	if err != nil {
		s.observe("ask_enrichment", string(CategoryOf(err)))
		return EnrichmentResult{}, err
	}
	s.observe("ask_enrichment", "enriched")
	return res, nil
}

func (s *Service) askEnrichment(ctx context.Context, value, kind string) (EnrichmentResult, error) {
	if strings.TrimSpace(value) == "" {
		return EnrichmentResult{}, newError(CategoryInvalidInput, ErrInvalidInput, "value must be a non-empty string")
	}
	if !s.EnrichmentEnabled() {
		return EnrichmentResult{}, newError(CategoryInvalidInput, ErrEnrichmentDisabled,
			"enrichment connector not configured; set OPENCTI_ENRICHMENT_CONNECTOR_ID")
	}
	found, err := s.Lookup(ctx, value, kind)
	if err != nil {
		return EnrichmentResult{}, err
	}
	workID, err := s.mutate.AskEnrichment(ctx, found.Candidate.ID, s.connectorID)
	if err != nil {
		return EnrichmentResult{}, remoteError("failed to request enrichment from OpenCTI", err)
	}
	res := EnrichmentResult{
		WorkID:      workID,
		ConnectorID: s.connectorID,
		Observable:  project(found.Candidate, found.Value),
	}
	s.record(ctx, audit.OperationAskEnrichment, found.Kind, found.Value, "enriched", res.Observable, workID)
	return res, nil
}

func project(c observable.Candidate, input string) Observable {
	return Observable{ID: c.ID, EntityType: c.EntityType, Value: c.DisplayValue(input)}
}

func (s *Service) observe(op, status string) {
	if s.outcomes != nil {
		s.outcomes.ObserveOutcome(op, status)
	}
}

// record appends to the journal. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, op audit.Operation, k observable.Kind, v, status string, obs Observable, workID string) {
	if s.journal == nil {
		return
	}
	entry := audit.Entry{
		Operation:    op,
		Status:       status,
		Kind:         string(k),
		Value:        v,
		ObservableID: obs.ID,
		EntityType:   obs.EntityType,
		WorkID:       workID,
	}
	if workID != "" {
		entry.ConnectorID = s.connectorID
	}
	if _, err := s.journal.Append(ctx, entry); err != nil {
		s.logger.Printf("observables: audit append failed: %v", err)
	}
}
