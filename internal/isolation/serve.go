package isolation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Serve is the worker process loop. It reads one JSON request per line from r,
// handles it, and writes one JSON response per line to w, until r is
// exhausted or ctx is cancelled.
func Serve(ctx context.Context, r io.Reader, w io.Writer, h *Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	in := bufio.NewScanner(r)
	in.Buffer(make([]byte, 64*1024), maxMessageSize)
	out := bufio.NewWriter(w)
	enc := json.NewEncoder(out)

	for in.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := in.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp Response
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("invalid request", zap.Error(err))
			resp = Response{Error: fmt.Sprintf("invalid request: %v", err)}
		} else {
			resp = h.Handle(ctx, req)
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("failed to flush response: %w", err)
		}
	}
	if err := in.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}
