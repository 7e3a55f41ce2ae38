package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcReply struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// runSession feeds lines to a fresh server and returns one reply per
// response line.
func runSession(t *testing.T, r *Registry, lines ...string) []rpcReply {
	t.Helper()
	srv := NewServer(r, WithServerInfo("ctibridge-test", "0.0.1"), WithServerLogger(log.New(io.Discard, "", 0)))
	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"), &out))

	var replies []rpcReply
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rep rpcReply
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rep), sc.Text())
		replies = append(replies, rep)
	}
	return replies
}

const initLine = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test"}}}`

func TestServerSession(t *testing.T) {
	fake := newFakeOpenCTI(map[string]string{
		"Tools": `{"tools":{"edges":[{"node":{"id":"tool-1","name":"Cobalt Strike"}}]}}`,
	})
	r := newTestRegistry(t, newTestHost(t, fake))

	replies := runSession(t, r,
		initLine,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"search_tools","arguments":{"search":"cobalt"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	)
	require.Len(t, replies, 4)

	var init initializeResult
	require.NoError(t, json.Unmarshal(replies[0].Result, &init))
	assert.Equal(t, protocolVersion, init.ProtocolVersion)
	assert.Equal(t, "ctibridge-test", init.ServerInfo.Name)
	assert.NotNil(t, init.Capabilities.Tools)

	var list toolsListResult
	require.NoError(t, json.Unmarshal(replies[1].Result, &list))
	assert.Len(t, list.Tools, 24)
	assert.Equal(t, "ask_enrichment", list.Tools[0].Name)
	for _, tool := range list.Tools {
		if tool.Name == "search_tools" {
			require.NotNil(t, tool.Annotations)
			assert.True(t, tool.Annotations.ReadOnlyHint)
		}
		if tool.Name == "create_observable" {
			assert.Nil(t, tool.Annotations)
		}
	}

	var res ToolResult
	require.NoError(t, json.Unmarshal(replies[2].Result, &res))
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Contains(t, res.Content[0].Text, "Cobalt Strike")
	assert.NotNil(t, res.StructuredContent)

	assert.JSONEq(t, `4`, string(replies[3].ID))
	assert.JSONEq(t, `{}`, string(replies[3].Result))
}

func TestServerToolErrorsAreResults(t *testing.T) {
	r := newTestRegistry(t, newTestHost(t, newFakeOpenCTI(nil)))
	replies := runSession(t, r,
		initLine,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"create_observable","arguments":{"value":"???"}}}`,
	)
	require.Len(t, replies, 2)
	require.Nil(t, replies[1].Error)

	var res ToolResult
	require.NoError(t, json.Unmarshal(replies[1].Result, &res))
	assert.True(t, res.IsError)
	require.NotNil(t, res.ErrorInfo)
	assert.Equal(t, ErrorInfo{Category: "ambiguous_input", Retryable: false}, *res.ErrorInfo)
	assert.Contains(t, res.Content[0].Text, "unable to infer observable type")
}

func TestServerProtocolErrors(t *testing.T) {
	r := newTestRegistry(t, newTestHost(t, newFakeOpenCTI(nil)))
	replies := runSession(t, r,
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		`{not json`,
		`{"jsonrpc":"1.0","id":2,"method":"ping"}`,
		initLine,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope"}}`,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call"}`,
		`{"jsonrpc":"2.0","id":6,"method":"initialize"}`,
	)
	require.Len(t, replies, 8)

	codes := []int{}
	for _, rep := range replies {
		if rep.Error != nil {
			codes = append(codes, rep.Error.Code)
		}
	}
	assert.Equal(t, []int{
		codeInvalidRequest,
		codeParseError,
		codeInvalidRequest,
		codeMethodNotFound,
		codeInvalidParams,
		codeInvalidParams,
		codeInvalidParams,
	}, codes)
	assert.JSONEq(t, `null`, string(replies[1].ID))
}

func TestServerStopsOnCancelledContext(t *testing.T) {
	r := NewRegistry()
	srv := NewServer(r, WithServerLogger(log.New(io.Discard, "", 0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := srv.Run(ctx, strings.NewReader(initLine+"\n"), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildToolResultNonObjectOutput(t *testing.T) {
	res := BuildToolResult(json.RawMessage(`[1,2]`), nil)
	assert.Nil(t, res.StructuredContent)
	assert.Equal(t, "[1,2]", res.Content[0].Text)
}
