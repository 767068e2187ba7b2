package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-gateways/core"
)

// Recorder is an HTTPDoer that writes a wire transcript of every exchange into
// the transcript buffer carried by the request context. Requests without a
// buffer pass straight through.
//
// Lines follow the usual wire log shape: "<- " for bytes sent, "-> " for bytes
// received, each quoted with escapes so a transcript stays on one line per
// chunk.
//
// Response bodies are read up to the limit the REST adapter put on the request
// context, or MaxBodyBytes, plus one byte so the adapter can still detect the
// overflow. The transcript never holds more than the limit.
type Recorder struct {
	Client       HTTPDoer
	MaxBodyBytes int64
}

type bodyLimitKey struct{}

func withBodyLimit(ctx context.Context, limit int64) context.Context {
	return context.WithValue(ctx, bodyLimitKey{}, limit)
}

func (r *Recorder) bodyLimit(ctx context.Context) int64 {
	if limit, ok := ctx.Value(bodyLimitKey{}).(int64); ok && limit > 0 {
		return limit
	}
	if r.MaxBodyBytes > 0 {
		return r.MaxBodyBytes
	}
	return defaultRESTResponseBodyLimit
}

func NewRecorder(client HTTPDoer) *Recorder {
	return &Recorder{Client: client}
}

func (r *Recorder) Do(req *http.Request) (*http.Response, error) {
	if r == nil || r.Client == nil {
		return nil, fmt.Errorf("transport: recorder requires an http client")
	}
	transcript, ok := core.TranscriptFromContext(req.Context())
	if !ok {
		return r.Client.Do(req)
	}

	host := req.URL.Host
	if req.URL.Port() == "" {
		host = req.URL.Hostname() + ":" + defaultPort(req.URL.Scheme)
	}
	transcript.WriteString("opening connection to " + host + "...\n")
	transcript.WriteString("opened\n")
	transcript.WriteString(sent(requestHead(req)))
	if body := requestBody(req); len(body) > 0 {
		transcript.WriteString(sent(string(body)))
	}

	res, err := r.Client.Do(req)
	if err != nil {
		transcript.WriteString("Conn error: " + err.Error() + "\n")
		return nil, err
	}

	transcript.WriteString(received(res.Proto + " " + res.Status + "\r\n"))
	for _, line := range headerLines(res.Header) {
		transcript.WriteString(received(line))
	}
	transcript.WriteString(received("\r\n"))

	limit := r.bodyLimit(req.Context())
	body, readErr := io.ReadAll(io.LimitReader(res.Body, limit+1))
	_ = res.Body.Close()
	res.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		transcript.WriteString("Conn error: " + readErr.Error() + "\n")
		return nil, readErr
	}
	if int64(len(body)) > limit {
		transcript.WriteString(fmt.Sprintf("reading %d bytes...\n", limit))
		transcript.WriteString(received(string(body[:limit])))
		transcript.WriteString(fmt.Sprintf("body exceeds %d bytes, truncated\n", limit))
		transcript.WriteString("Conn close\n")
		return res, nil
	}
	transcript.WriteString(fmt.Sprintf("reading %d bytes...\n", len(body)))
	transcript.WriteString(received(string(body)))
	transcript.WriteString(fmt.Sprintf("read %d bytes\n", len(body)))
	transcript.WriteString("Conn close\n")
	return res, nil
}

func requestHead(req *http.Request) string {
	var head strings.Builder
	target := req.URL.RequestURI()
	head.WriteString(req.Method + " " + target + " HTTP/1.1\r\n")
	for _, line := range headerLines(req.Header) {
		head.WriteString(line)
	}
	head.WriteString("Host: " + req.URL.Host + "\r\n")
	if req.ContentLength > 0 {
		head.WriteString("Content-Length: " + strconv.FormatInt(req.ContentLength, 10) + "\r\n")
	}
	head.WriteString("\r\n")
	return head.String()
}

func requestBody(req *http.Request) []byte {
	if req.GetBody == nil {
		return nil
	}
	reader, err := req.GetBody()
	if err != nil {
		return nil
	}
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil
	}
	return body
}

func headerLines(headers http.Header) []string {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+": "+strings.Join(headers[key], ",")+"\r\n")
	}
	return lines
}

func sent(chunk string) string {
	return "<- " + strconv.Quote(chunk) + "\n"
}

func received(chunk string) string {
	return "-> " + strconv.Quote(chunk) + "\n"
}

func defaultPort(scheme string) string {
	if strings.EqualFold(scheme, "http") {
		return "80"
	}
	return "443"
}
