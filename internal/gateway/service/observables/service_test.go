package observables

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ctibridge/internal/gateway/repository/audit"
	"ctibridge/internal/gateway/service/observables/mocks"
	"ctibridge/internal/observable"
	"ctibridge/internal/opencti"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	searcher *mocks.MockSearcher
	mutator  *mocks.MockMutator
	journal  *audit.MemoryStore
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.searcher = mocks.NewMockSearcher(s.ctrl)
	s.mutator = mocks.NewMockMutator(s.ctrl)
	s.journal = audit.NewMemoryStore(16)
	s.service = s.newService(WithConnectorID("vt-connector"))
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	base := []Option{WithJournal(s.journal), WithLogger(log.New(io.Discard, "", 0))}
	svc, err := New(s.searcher, s.mutator, append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

func str(v string) *string { return &v }

func (s *ServiceSuite) requireCategory(err error, cat Category, sentinel error) {
	s.Require().Error(err)
	s.Equal(cat, CategoryOf(err))
	s.ErrorIs(err, sentinel)
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil searcher", func() {
		_, err := New(nil, s.mutator)
		s.EqualError(err, "searcher is required")
	})
	s.Run("nil mutator", func() {
		_, err := New(s.searcher, nil)
		s.EqualError(err, "mutator is required")
	})
	s.Run("enrichment disabled without connector", func() {
		svc, err := New(s.searcher, s.mutator, WithConnectorID("  "))
		s.NoError(err)
		s.False(svc.EnrichmentEnabled())
	})
}

func (s *ServiceSuite) TestGetOrCreateCreatesIPv4WhenNothingMatches() {
	ctx := context.Background()
	s.searcher.EXPECT().
		SearchObservables(ctx, "8.8.8.8", []string{"IPv4-Addr", "IPv6-Addr"}, 10).
		Return(nil, nil)
	s.mutator.EXPECT().
		CreateObservable(ctx, "IPv4-Addr", map[string]any{"value": "8.8.8.8"}).
		Return(observable.Candidate{ID: "ipv4--1", EntityType: "IPv4-Addr", ObservableValue: str("8.8.8.8")}, nil)

	got, err := s.service.GetOrCreate(ctx, "8.8.8.8", "")
	s.Require().NoError(err)
	s.Equal(Result{
		Status:     StatusCreated,
		Observable: Observable{ID: "ipv4--1", EntityType: "IPv4-Addr", Value: "8.8.8.8"},
	}, got)

	entries, err := s.journal.List(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.OperationGetOrCreate, entries[0].Operation)
	s.Equal("created", entries[0].Status)
	s.Equal("ip", entries[0].Kind)
}

func (s *ServiceSuite) TestGetOrCreateReturnsExistingWithoutCreating() {
	ctx := context.Background()
	s.searcher.EXPECT().
		SearchObservables(ctx, "example.com", []string{"Domain-Name"}, 10).
		Return([]observable.Candidate{
			{ID: "other", EntityType: "Domain-Name", ObservableValue: str("example.org")},
			{ID: "dom-1", EntityType: "Domain-Name", ObservableValue: str("EXAMPLE.com")},
		}, nil)

	got, err := s.service.GetOrCreate(ctx, "  example.com ", "")
	s.Require().NoError(err)
	s.Equal(StatusExists, got.Status)
	s.Equal(Observable{ID: "dom-1", EntityType: "Domain-Name", Value: "EXAMPLE.com"}, got.Observable)
}

func (s *ServiceSuite) TestGetOrCreateRejectsBeforeRemoteCalls() {
	cases := []struct {
		name     string
		value    string
		kind     string
		cat      Category
		sentinel error
	}{
		{"ambiguous", "not a value!!", "", CategoryAmbiguousInput, ErrAmbiguousInput},
		{"empty", "   ", "", CategoryInvalidInput, ErrInvalidInput},
		{"unknown kind", "example.com", "url", CategoryInvalidInput, ErrInvalidInput},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.GetOrCreate(context.Background(), tc.value, tc.kind)
			s.requireCategory(err, tc.cat, tc.sentinel)
		})
	}
}

func (s *ServiceSuite) TestGetOrCreateExplicitKindSkipsClassification() {
	ctx := context.Background()
	s.searcher.EXPECT().
		SearchObservables(ctx, "example.com", []string{"Artifact", "StixFile"}, 10).
		Return(nil, nil)

	_, err := s.service.GetOrCreate(ctx, "example.com", "HASH")
	s.requireCategory(err, CategoryInvalidHashLength, ErrCreationFailed)
	s.ErrorIs(err, observable.ErrInvalidHashLength)
}

func (s *ServiceSuite) TestGetOrCreateHashBuildsArtifact() {
	ctx := context.Background()
	md5 := "d41d8cd98f00b204e9800998ecf8427e"
	s.searcher.EXPECT().
		SearchObservables(ctx, md5, []string{"Artifact", "StixFile"}, 10).
		Return([]observable.Candidate{{ID: "file-1", EntityType: "StixFile", Hashes: []observable.Hash{{Algorithm: "SHA-1", Hash: "abc"}}}}, nil)
	s.mutator.EXPECT().
		CreateObservable(ctx, "Artifact", map[string]any{
			"hashes": []map[string]any{{"algorithm": "MD5", "hash": md5}},
		}).
		Return(observable.Candidate{ID: "artifact-1", EntityType: "Artifact"}, nil)

	got, err := s.service.GetOrCreate(ctx, md5, "")
	s.Require().NoError(err)
	s.Equal(StatusCreated, got.Status)
	s.Equal(md5, got.Observable.Value, "projection falls back to the input")
}

func (s *ServiceSuite) TestGetOrCreateMatchesHashEntry() {
	ctx := context.Background()
	sha1 := "da39a3ee5e6b4b0d3255bfef95601890afd80709"
	s.searcher.EXPECT().
		SearchObservables(ctx, sha1, gomock.Any(), 10).
		Return([]observable.Candidate{{
			ID:         "file-1",
			EntityType: "StixFile",
			Name:       str("payload.bin"),
			Hashes:     []observable.Hash{{Algorithm: "SHA-1", Hash: "DA39A3EE5E6B4B0D3255BFEF95601890AFD80709"}},
		}}, nil)

	got, err := s.service.GetOrCreate(ctx, sha1, "")
	s.Require().NoError(err)
	s.Equal(Result{Status: StatusExists, Observable: Observable{ID: "file-1", EntityType: "StixFile", Value: "payload.bin"}}, got)
}

func (s *ServiceSuite) TestGetOrCreateIPv6() {
	ctx := context.Background()
	s.searcher.EXPECT().SearchObservables(ctx, "2001:db8::1", gomock.Any(), 10).Return(nil, nil)
	s.mutator.EXPECT().
		CreateObservable(ctx, "IPv6-Addr", map[string]any{"value": "2001:db8::1"}).
		Return(observable.Candidate{ID: "ipv6--1", EntityType: "IPv6-Addr", Value: str("2001:db8::1")}, nil)

	got, err := s.service.GetOrCreate(ctx, "2001:db8::1", "")
	s.Require().NoError(err)
	s.Equal("2001:db8::1", got.Observable.Value)
}

func (s *ServiceSuite) TestGetOrCreateExplicitIPKindWithBadValue() {
	ctx := context.Background()
	s.searcher.EXPECT().SearchObservables(ctx, "example.com", []string{"IPv4-Addr", "IPv6-Addr"}, 10).Return(nil, nil)

	_, err := s.service.GetOrCreate(ctx, "example.com", "ip")
	s.requireCategory(err, CategoryCreationFailed, ErrCreationFailed)
}

func (s *ServiceSuite) TestGetOrCreateMissingIdentifier() {
	ctx := context.Background()
	s.searcher.EXPECT().SearchObservables(ctx, "example.com", gomock.Any(), 10).Return(nil, nil)
	s.mutator.EXPECT().CreateObservable(ctx, "Domain-Name", gomock.Any()).Return(observable.Candidate{}, nil)

	_, err := s.service.GetOrCreate(ctx, "example.com", "")
	s.requireCategory(err, CategoryCreationFailed, ErrCreationFailed)

	entries, _ := s.journal.List(ctx, 10)
	s.Empty(entries)
}

func (s *ServiceSuite) TestRemoteFailures() {
	ctx := context.Background()
	s.Run("search", func() {
		cause := &opencti.RemoteError{Op: "FindObservables", Message: "boom"}
		s.searcher.EXPECT().SearchObservables(ctx, "example.com", gomock.Any(), 10).Return(nil, cause)
		_, err := s.service.GetOrCreate(ctx, "example.com", "")
		s.requireCategory(err, CategoryRemote, ErrRemote)
		var re *opencti.RemoteError
		s.True(errors.As(err, &re))
		s.False(Retryable(err))
	})
	s.Run("search timeout is retryable", func() {
		cause := &opencti.RemoteError{Op: "FindObservables", Err: context.DeadlineExceeded}
		s.searcher.EXPECT().SearchObservables(ctx, "example.com", gomock.Any(), 10).Return(nil, cause)
		_, err := s.service.GetOrCreate(ctx, "example.com", "")
		s.True(Retryable(err))
	})
	s.Run("create", func() {
		s.searcher.EXPECT().SearchObservables(ctx, "example.com", gomock.Any(), 10).Return(nil, nil)
		s.mutator.EXPECT().CreateObservable(ctx, "Domain-Name", gomock.Any()).Return(observable.Candidate{}, errors.New("dial tcp: refused"))
		_, err := s.service.GetOrCreate(ctx, "example.com", "")
		s.requireCategory(err, CategoryRemote, ErrRemote)
	})
}

func (s *ServiceSuite) TestAskEnrichmentNotFoundSkipsEnrichment() {
	ctx := context.Background()
	s.searcher.EXPECT().SearchObservables(ctx, "example.com", gomock.Any(), 10).
		Return([]observable.Candidate{{ID: "x", ObservableValue: str("example.org")}}, nil)

	_, err := s.service.AskEnrichment(ctx, "example.com", "")
	s.requireCategory(err, CategoryNotFound, ErrNotFound)
}

func (s *ServiceSuite) TestAskEnrichment() {
	ctx := context.Background()
	s.searcher.EXPECT().SearchObservables(ctx, "8.8.8.8", gomock.Any(), 10).
		Return([]observable.Candidate{{ID: "ipv4--1", EntityType: "IPv4-Addr", Value: str("8.8.8.8")}}, nil)
	s.mutator.EXPECT().AskEnrichment(ctx, "ipv4--1", "vt-connector").Return("work-9", nil)

	got, err := s.service.AskEnrichment(ctx, "8.8.8.8", "ip")
	s.Require().NoError(err)
	s.Equal(EnrichmentResult{
		WorkID:      "work-9",
		ConnectorID: "vt-connector",
		Observable:  Observable{ID: "ipv4--1", EntityType: "IPv4-Addr", Value: "8.8.8.8"},
	}, got)

	entries, _ := s.journal.List(ctx, 1)
	s.Require().Len(entries, 1)
	s.Equal("work-9", entries[0].WorkID)
	s.Equal("vt-connector", entries[0].ConnectorID)
}

func (s *ServiceSuite) TestAskEnrichmentDisabled() {
	svc := s.newService()
	_, err := svc.AskEnrichment(context.Background(), "8.8.8.8", "")
	s.requireCategory(err, CategoryInvalidInput, ErrEnrichmentDisabled)

	_, err = svc.AskEnrichment(context.Background(), " ", "")
	s.requireCategory(err, CategoryInvalidInput, ErrInvalidInput)
}

func (s *ServiceSuite) TestLookupReportsMiss() {
	ctx := context.Background()
	s.searcher.EXPECT().SearchObservables(ctx, "example.com", gomock.Any(), 10).Return(nil, nil)
	got, err := s.service.Lookup(ctx, "example.com", "")
	s.requireCategory(err, CategoryNotFound, ErrNotFound)
	s.Equal(observable.KindDomain, got.Kind)
}

type failingJournal struct{}

func (failingJournal) Append(context.Context, audit.Entry) (audit.Entry, error) {
	return audit.Entry{}, errors.New("db down")
}

func (failingJournal) List(context.Context, int) ([]audit.Entry, error) { return nil, nil }

func (s *ServiceSuite) TestJournalFailureDoesNotFailResolution() {
	ctx := context.Background()
	svc := s.newService(WithJournal(failingJournal{}))
	s.searcher.EXPECT().SearchObservables(ctx, "example.com", gomock.Any(), 10).
		Return([]observable.Candidate{{ID: "dom-1", ObservableValue: str("example.com")}}, nil)

	_, err := svc.GetOrCreate(ctx, "example.com", "")
	s.NoError(err)
}

func (s *ServiceSuite) TestOutcomesObserved() {
	ctx := context.Background()
	outcomes := mocks.NewMockOutcomes(s.ctrl)
	svc := s.newService(WithOutcomes(outcomes))

	outcomes.EXPECT().ObserveOutcome("get_or_create", "ambiguous_input")
	_, _ = svc.GetOrCreate(ctx, "??", "")

	s.searcher.EXPECT().SearchObservables(ctx, "example.com", gomock.Any(), 10).
		Return([]observable.Candidate{{ID: "dom-1", ObservableValue: str("example.com")}}, nil)
	outcomes.EXPECT().ObserveOutcome("get_or_create", "exists")
	_, err := svc.GetOrCreate(ctx, "example.com", "")
	s.NoError(err)

	outcomes.EXPECT().ObserveOutcome("ask_enrichment", "invalid_input")
	_, _ = svc.AskEnrichment(ctx, "example.com", "")
}

// singleFlightSearch blocks the first search until release is closed and
// reports the created record to every later search.
func (s *ServiceSuite) singleFlightSearch(started chan<- struct{}, release <-chan struct{}) {
	var calls atomic.Int32
	s.searcher.EXPECT().SearchObservables(gomock.Any(), "Example.com", gomock.Any(), 10).
		DoAndReturn(func(ctx context.Context, _ string, _ []string, _ int) ([]observable.Candidate, error) {
			if calls.Add(1) > 1 {
				return []observable.Candidate{{ID: "dom-1", EntityType: "Domain-Name", ObservableValue: str("example.com")}}, nil
			}
			close(started)
			select {
			case <-release:
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}).MinTimes(1)
	s.mutator.EXPECT().CreateObservable(gomock.Any(), "Domain-Name", gomock.Any()).
		Return(observable.Candidate{ID: "dom-1", EntityType: "Domain-Name"}, nil).Times(1)
}

func (s *ServiceSuite) TestSingleFlightSharesCreate() {
	ctx := context.Background()
	svc := s.newService(WithSingleFlight())
	started := make(chan struct{})
	release := make(chan struct{})
	s.singleFlightSearch(started, release)

	const callers = 4
	var wg sync.WaitGroup
	results := make([]Result, callers)
	errs := make([]error, callers)
	call := func(i int) {
		defer wg.Done()
		results[i], errs[i] = svc.GetOrCreate(ctx, "Example.com", "")
	}
	wg.Add(1)
	go call(0)
	<-started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go call(i)
	}
	close(release)
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		s.Require().NoError(errs[i])
		s.Equal("dom-1", results[i].Observable.ID)
		if results[i].Status == StatusCreated {
			created++
		}
	}
	s.Equal(1, created)
}

func (s *ServiceSuite) TestSingleFlightSurvivesCancelledCaller() {
	svc := s.newService(WithSingleFlight())
	started := make(chan struct{})
	release := make(chan struct{})
	s.singleFlightSearch(started, release)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.GetOrCreate(leaderCtx, "Example.com", "")
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		res Result
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := svc.GetOrCreate(context.Background(), "Example.com", "")
		follower <- outcome{res, err}
	}()

	cancel()
	err := <-leaderErr
	s.requireCategory(err, CategoryRemote, ErrRemote)
	s.ErrorIs(err, context.Canceled)

	close(release)
	got := <-follower
	s.Require().NoError(got.err)
	s.Equal("dom-1", got.res.Observable.ID)
}
