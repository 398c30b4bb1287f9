package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

// retrievalTask is a background retrieval awaited where ordering requires it.
type retrievalTask struct {
	cancel   context.CancelFunc
	done     chan struct{}
	memories []*recollection.Recollection
	err      error
	duration time.Duration
}

func startRetrieval(ctx context.Context, r Retriever, personaID, query string, limit int) *retrievalTask {
	ctx, cancel := context.WithCancel(ctx)
	t := &retrievalTask{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		start := time.Now()
		defer func() {
			t.duration = time.Since(start)
			if rec := recover(); rec != nil {
				slog.Error("Orchestrator: retrieval panicked", "panic", rec, "stack", string(debug.Stack()))
				t.err = fmt.Errorf("retrieval panicked: %v", rec)
			}
		}()
		t.memories, t.err = r.Retrieve(ctx, personaID, query, limit)
	}()
	return t
}

// Wait blocks until the retrieval finishes.
func (t *retrievalTask) Wait() ([]*recollection.Recollection, error) {
	<-t.done
	t.cancel()
	return t.memories, t.err
}

// Cancel stops the retrieval and waits for it to return, so no call is left in flight.
func (t *retrievalTask) Cancel() {
	t.cancel()
	<-t.done
}
