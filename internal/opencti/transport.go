package opencti

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Transport executes GraphQL documents against OpenCTI and returns the
// "data" member of the response.
type Transport interface {
	GraphQL(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
}

// Middleware decorates a Transport with a cross-cutting concern.
type Middleware func(Transport) Transport

// Wrap applies middlewares in left-to-right order: Wrap(t, A, B) => A(B(t)).
func Wrap(inner Transport, mws ...Middleware) Transport {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// HTTPTransport posts GraphQL requests to {BaseURL}/graphql with a bearer token.
type HTTPTransport struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewHTTPTransport creates a transport. Deadlines come from the caller's
// context (see WithTimeout), not from the http.Client.
func NewHTTPTransport(baseURL, token string, verifySSL bool) *HTTPTransport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if !verifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via OPENCTI_VERIFY_SSL
	}
	return &HTTPTransport{
		http:    &http.Client{Transport: tr},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage   `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

func (t *HTTPTransport) GraphQL(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	op := OperationName(query)
	if variables == nil {
		variables = map[string]any{}
	}
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, remoteErr(op, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, remoteErr(op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, remoteErr(op, "request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, remoteErr(op, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected status %s: %s", resp.Status, truncate(string(raw), 200)),
		}
	}

	var out graphQLResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, remoteErr(op, "invalid JSON response from OpenCTI GraphQL API: "+truncate(string(raw), 200), nil)
	}
	if len(out.Errors) > 0 {
		return nil, remoteErr(op, "GraphQL error: "+joinErrors(out.Errors), nil)
	}
	if len(out.Data) == 0 || string(out.Data) == "null" {
		return json.RawMessage("{}"), nil
	}
	return out.Data, nil
}

// OperationName extracts the operation name of a GraphQL document, or
// "anonymous" when it has none.
func OperationName(query string) string {
	s := strings.TrimSpace(query)
	for _, kw := range []string{"query", "mutation"} {
		if !strings.HasPrefix(s, kw) {
			continue
		}
		rest := strings.TrimLeft(s[len(kw):], " \t\r\n")
		end := strings.IndexAny(rest, " \t\r\n({")
		if end <= 0 {
			return "anonymous"
		}
		return rest[:end]
	}
	return "anonymous"
}

func joinErrors(errs []json.RawMessage) string {
	msgs := make([]string, 0, len(errs))
	for _, raw := range errs {
		var e struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &e); err == nil && e.Message != "" {
			msgs = append(msgs, e.Message)
			continue
		}
		msgs = append(msgs, string(raw))
	}
	return strings.Join(msgs, "; ")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
