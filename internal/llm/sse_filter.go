package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// skipMalformedEvents filtra las respuestas SSE antes de que las lea el decoder
// del SDK, que termina el stream ante el primer evento que no es JSON.
func skipMalformedEvents(provider string, logger *zap.Logger) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		resp, err := next(req)
		if err != nil || resp == nil || resp.Body == nil || resp.StatusCode >= 400 {
			return resp, err
		}
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
			return resp, nil
		}
		resp.Body = newEventFilter(resp.Body, provider, logger)
		return resp, nil
	}
}

// eventFilter reemite el stream evento por evento y descarta los que no tienen
// datos o cuyo payload no es JSON ni [DONE].
type eventFilter struct {
	src      *bufio.Reader
	body     io.Closer
	out      bytes.Buffer
	err      error
	provider string
	logger   *zap.Logger
}

func newEventFilter(body io.ReadCloser, provider string, logger *zap.Logger) *eventFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &eventFilter{src: bufio.NewReader(body), body: body, provider: provider, logger: logger}
}

func (f *eventFilter) Read(p []byte) (int, error) {
	for f.out.Len() == 0 && f.err == nil {
		f.nextEvent()
	}
	if f.out.Len() > 0 {
		return f.out.Read(p)
	}
	return 0, f.err
}

func (f *eventFilter) Close() error { return f.body.Close() }

func (f *eventFilter) nextEvent() {
	var (
		block strings.Builder
		data  []string
	)
	for {
		line, err := f.src.ReadString('\n')
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			block.WriteString(trimmed)
			block.WriteByte('\n')
			if payload, ok := sseData(trimmed); ok {
				data = append(data, payload)
			}
		} else if line != "" && block.Len() > 0 {
			f.emit(block.String(), data)
			return
		}
		if err != nil {
			if block.Len() > 0 {
				f.emit(block.String(), data)
			}
			f.err = err
			return
		}
	}
}

func (f *eventFilter) emit(block string, data []string) {
	payload := strings.Join(data, "\n")
	switch {
	case payload == "":
		return
	case payload == "[DONE]", json.Valid([]byte(payload)):
		f.out.WriteString(block)
		f.out.WriteByte('\n')
	default:
		f.logger.Warn("skipping malformed stream chunk", zap.String("provider", f.provider), zap.String("raw_line", payload))
	}
}
