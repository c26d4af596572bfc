package sink

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/screening-server/internal/domain"
)

type stubAppender struct {
	calls atomic.Int32
	fn    func(ctx context.Context) error
}

func (s *stubAppender) AppendRow(ctx context.Context, _ domain.WideRow) error {
	s.calls.Add(1)
	return s.fn(ctx)
}

func (s *stubAppender) Name() string { return "stub" }

func TestResilient_Passthrough(t *testing.T) {
	stub := &stubAppender{fn: func(context.Context) error { return nil }}
	r := NewResilient(stub, ResilientConfig{}, quietLogger())

	assert.NoError(t, r.AppendRow(context.Background(), wideRow("a", "1")))
	assert.Equal(t, "stub", r.Name())
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestResilient_OpensAfterConsecutiveFailures(t *testing.T) {
	failure := errors.New("unreachable")
	stub := &stubAppender{fn: func(context.Context) error { return failure }}
	r := NewResilient(stub, ResilientConfig{MaxFailures: 2, OpenTimeout: time.Minute}, quietLogger())
	ctx := context.Background()

	assert.ErrorIs(t, r.AppendRow(ctx, wideRow("a", "1")), failure)
	assert.ErrorIs(t, r.AppendRow(ctx, wideRow("a", "1")), failure)
	assert.Equal(t, gobreaker.StateOpen, r.State())

	err := r.AppendRow(ctx, wideRow("a", "1"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), stub.calls.Load(), "an open breaker does not call the target")
}

func TestResilient_Timeout(t *testing.T) {
	stub := &stubAppender{fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	r := NewResilient(stub, ResilientConfig{Timeout: 20 * time.Millisecond}, quietLogger())

	start := time.Now()
	err := r.AppendRow(context.Background(), wideRow("a", "1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
