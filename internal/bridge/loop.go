package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// maxLineSize bounds a single request line; conversations can be large.
const maxLineSize = 16 * 1024 * 1024

// Loop reads newline-delimited JSON requests, dispatches them one at a
// time, and writes one response line per request. It terminates only on
// end of input or explicit cancellation; no request failure ends it.
type Loop struct {
	in         io.Reader
	out        *bufio.Writer
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewLoop creates a protocol loop over the given streams.
func NewLoop(in io.Reader, out io.Writer, d *Dispatcher, logger *slog.Logger) *Loop {
	return &Loop{
		in:         in,
		out:        bufio.NewWriter(out),
		dispatcher: d,
		logger:     logger,
	}
}

// Run processes requests until the input stream closes (clean termination,
// returns nil) or ctx is cancelled (the intentional shutdown path).
func (l *Loop) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := l.handleLine(ctx, line)
		if err := WriteResponse(l.out, resp); err != nil {
			l.logger.Error("write response", "error", err)
		}
		if err := l.out.Flush(); err != nil {
			l.logger.Error("flush response", "error", err)
		}
	}
	return scanner.Err()
}

// handleLine frames one request. Unparseable or non-object lines become
// error responses without an id; the structure of bad input cannot be
// assumed.
func (l *Loop) handleLine(ctx context.Context, line string) Response {
	var v any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		l.logger.Warn("malformed request line", "error", err)
		return Response{OK: false, Error: "bad request: invalid JSON: " + err.Error()}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return Response{OK: false, Error: "bad request: expected a JSON object"}
	}

	req := Request{ID: obj["id"]}
	req.Op, _ = obj["op"].(string)
	if p, ok := obj["payload"].(map[string]any); ok {
		req.Payload = p
	} else {
		req.Payload = map[string]any{}
	}

	return l.dispatcher.Handle(ctx, req)
}
