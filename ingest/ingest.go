// Package ingest implements the intake boundary of spec.md §5: a
// background reader over a newline-delimited JSON telemetry stream,
// handing complete samples to the pipeline through a bounded,
// capacity-1 "newest wins" channel so the detector never falls
// arbitrarily behind. Grounded on the teacher's daemon-loop shape
// (engine/daemon.go RunDaemon) adapted from a polling ticker to a
// streaming reader, per spec.md §5 "Intake".
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/hostguardian/guardian/model"
)

// DroppedLineHandler is invoked once per malformed or out-of-order line,
// so the caller can record an audit event (spec.md §6 "malformed lines
// are dropped with an audit event").
type DroppedLineHandler func(reason string, line string)

// Reader consumes NDJSON telemetry from r and publishes the newest
// complete message to a capacity-1 channel.
type Reader struct {
	logger    *zap.Logger
	onDropped DroppedLineHandler
	lastTS    int64
	haveTS    bool
}

// NewReader creates a Reader. onDropped may be nil.
func NewReader(logger *zap.Logger, onDropped DroppedLineHandler) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger, onDropped: onDropped}
}

// Run reads newline-delimited JSON messages from r until ctx is canceled
// or r reaches EOF, sending each valid, in-order message to out. out must
// have capacity 1; Run performs the "newest wins" displacement itself so
// callers can use an unbuffered send loop without risking a stuck
// pipeline (spec.md §5 "an arriving sample displaces any older pending
// sample").
func (rd *Reader) Run(ctx context.Context, r io.Reader, out chan model.TelemetryMessage) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if len(line) == 0 {
			continue
		}

		var msg model.TelemetryMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			rd.drop("malformed_json", line)
			continue
		}

		if rd.haveTS && msg.Timestamp <= rd.lastTS {
			rd.drop("out_of_order", line)
			continue
		}
		rd.lastTS = msg.Timestamp
		rd.haveTS = true

		rd.send(ctx, out, msg)
	}
	return scanner.Err()
}

// send implements newest-wins backpressure: if out already holds an
// unconsumed message, it is drained and replaced.
func (rd *Reader) send(ctx context.Context, out chan model.TelemetryMessage, msg model.TelemetryMessage) {
	for {
		select {
		case out <- msg:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-out:
			rd.logger.Debug("intake displaced pending sample under load")
		default:
		}
	}
}

func (rd *Reader) drop(reason, line string) {
	rd.logger.Warn("dropping malformed telemetry line", zap.String("reason", reason))
	if rd.onDropped != nil {
		rd.onDropped(reason, line)
	}
}
