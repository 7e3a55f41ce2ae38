package opencti

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type transportFunc func(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)

func (f transportFunc) GraphQL(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	return f(ctx, query, variables)
}

// WithTimeout bounds every call by d. Calls are never retried here.
func WithTimeout(d time.Duration) Middleware {
	return func(next Transport) Transport {
		if d <= 0 {
			return next
		}
		return transportFunc(func(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.GraphQL(ctx, query, variables)
		})
	}
}

// WithRateLimit throttles outbound calls. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Middleware {
	return func(next Transport) Transport {
		if rps <= 0 {
			return next
		}
		if burst <= 0 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		return transportFunc(func(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
			if err := limiter.Wait(ctx); err != nil {
				// Wait fails early when the deadline would pass before a token frees up.
				if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
					err = errors.Join(context.DeadlineExceeded, err)
				}
				return nil, remoteErr(OperationName(query), "rate limiter", err)
			}
			return next.GraphQL(ctx, query, variables)
		})
	}
}

// WithLogging logs each operation and its outcome. Variables are not logged.
// Provide a custom logger or nil to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next Transport) Transport {
		return transportFunc(func(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
			op := OperationName(query)
			start := time.Now()
			data, err := next.GraphQL(ctx, query, variables)
			if err != nil {
				logger.Printf("opencti %s failed after %s: %v", op, time.Since(start).Round(time.Millisecond), err)
				return nil, err
			}
			logger.Printf("opencti %s ok (%d bytes, %s)", op, len(data), time.Since(start).Round(time.Millisecond))
			return data, nil
		})
	}
}

// WithTracing opens a client span per operation. A nil tracer uses the
// global provider, which is a no-op unless one has been installed.
func WithTracing(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("ctibridge/opencti")
	}
	return func(next Transport) Transport {
		return transportFunc(func(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
			op := OperationName(query)
			ctx, span := tracer.Start(ctx, "opencti."+op,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(attribute.String("graphql.operation.name", op)),
			)
			defer span.End()
			data, err := next.GraphQL(ctx, query, variables)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return data, err
		})
	}
}

// CallObserver receives the duration and outcome of every remote call.
type CallObserver interface {
	ObserveRemoteCall(operation string, elapsed time.Duration, err error)
}

// WithObserver reports each call to obs; a nil observer is skipped.
func WithObserver(obs CallObserver) Middleware {
	return func(next Transport) Transport {
		if obs == nil {
			return next
		}
		return transportFunc(func(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
			start := time.Now()
			data, err := next.GraphQL(ctx, query, variables)
			obs.ObserveRemoteCall(OperationName(query), time.Since(start), err)
			return data, err
		})
	}
}
