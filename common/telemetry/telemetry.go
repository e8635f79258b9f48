package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/appforge/gitsync/common/logger"
	rediscommon "github.com/appforge/gitsync/common/redis"
)

// Telemetry records best-effort analytics events. Recording never blocks the
// primary operation and never fails it: events ride a detached goroutine onto
// a redis stream and are dropped on error.
type Telemetry struct {
	redis     *rediscommon.Client
	stream    string
	enabled   bool
	log       *logger.Logger
	pprofAddr string
}

// Opts contains options for creating Telemetry
type Opts struct {
	Redis     *rediscommon.Client
	Stream    string
	Enabled   bool
	Logger    *logger.Logger
	PprofPort int
}

// New creates telemetry components
func New(opts *Opts) *Telemetry {
	return &Telemetry{
		redis:     opts.Redis,
		stream:    opts.Stream,
		enabled:   opts.Enabled,
		log:       opts.Logger,
		pprofAddr: fmt.Sprintf("localhost:%d", opts.PprofPort),
	}
}

// StartPprof starts the pprof endpoint
func (t *Telemetry) StartPprof() {
	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := http.ListenAndServe(t.pprofAddr, nil); err != nil {
			t.log.Error("pprof server error", "error", err)
		}
	}()
}

// RecordGitOperation records a success/failure event for a mutating git
// operation. Fire-and-forget: the caller's result is never affected.
func (t *Telemetry) RecordGitOperation(event string, success bool, attrs map[string]interface{}) {
	if !t.enabled || t.redis == nil {
		return
	}

	values := map[string]interface{}{
		"event":       event,
		"success":     fmt.Sprintf("%t", success),
		"recorded_at": time.Now().Unix(),
	}
	for k, v := range attrs {
		values[k] = fmt.Sprintf("%v", v)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if _, err := t.redis.AddToStream(ctx, t.stream, values); err != nil {
			t.log.Warn("failed to record telemetry event", "event", event, "error", err)
		}
	}()
}

// RecordDuration records operation duration
func (t *Telemetry) RecordDuration(operation string, start time.Time) {
	duration := time.Since(start)
	t.log.Debug("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}
