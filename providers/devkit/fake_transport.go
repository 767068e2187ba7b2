package devkit

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-gateways/core"
)

// TransportScript is one canned reply of a FakeTransportAdapter.
type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// Reply scripts a response with status and body.
func Reply(status int, body string) TransportScript {
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}}
}

// Failure scripts a transport error.
func Failure(err error) TransportScript {
	return TransportScript{Err: err}
}

// FakeTransportAdapter replays scripts in call order and records every request.
// Once the scripts run out the last one repeats; with no scripts at all every
// call gets an empty 200.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	scripts  []TransportScript
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: slices.Clone(scripts),
	}
}

// NewFakeREST is the usual fake for provider tests.
func NewFakeREST(scripts ...TransportScript) *FakeTransportAdapter {
	return NewFakeTransportAdapter("rest", scripts...)
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

// Do records req and replays the next script. Scripted bodies are echoed to
// the transcript in the context, if any, the way the REST recorder does.
func (a *FakeTransportAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	transcript, tracing := core.TranscriptFromContext(ctx)
	if tracing {
		transcript.WriteString(fmt.Sprintf("<- %q\n", req.Method+" "+req.URL))
		if len(req.Body) > 0 {
			transcript.WriteString(fmt.Sprintf("<- %q\n", string(req.Body)))
		}
	}

	script := a.record(req)
	if script.Err != nil {
		return core.TransportResponse{}, script.Err
	}
	if tracing {
		transcript.WriteString(fmt.Sprintf("-> %q\n", string(script.Response.Body)))
	}
	return cloneResponse(script.Response), nil
}

func (a *FakeTransportAdapter) record(req core.TransportRequest) TransportScript {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, cloneRequest(req))
	if len(a.scripts) == 0 {
		return TransportScript{Response: core.TransportResponse{StatusCode: 200}}
	}
	return a.scripts[min(len(a.requests), len(a.scripts))-1]
}

// Requests returns copies of every request seen so far.
func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.TransportRequest, len(a.requests))
	for i, req := range a.requests {
		out[i] = cloneRequest(req)
	}
	return out
}

// Request returns the index-th recorded request.
func (a *FakeTransportAdapter) Request(index int) (core.TransportRequest, bool) {
	requests := a.Requests()
	if index < 0 || index >= len(requests) {
		return core.TransportRequest{}, false
	}
	return requests[index], true
}

// Copies never share maps or bodies with the caller, and their maps are
// never nil.
func cloneRequest(in core.TransportRequest) core.TransportRequest {
	out := in
	out.Headers = orEmpty(maps.Clone(in.Headers))
	out.Query = orEmpty(maps.Clone(in.Query))
	out.Metadata = orEmpty(maps.Clone(in.Metadata))
	out.Body = slices.Clone(in.Body)
	return out
}

func cloneResponse(in core.TransportResponse) core.TransportResponse {
	out := in
	out.Headers = orEmpty(maps.Clone(in.Headers))
	out.Metadata = orEmpty(maps.Clone(in.Metadata))
	out.Body = slices.Clone(in.Body)
	return out
}

func orEmpty[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
