package flash

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Belphemur/flash/internal/bucket"
	"github.com/Belphemur/flash/internal/keys"
	"github.com/Belphemur/flash/internal/metrics"
	"github.com/Belphemur/flash/internal/store"
)

// failureValues holds what each operation returns when it fails.
var failureValues = map[string]any{
	metrics.CmdGetData:           nil,
	metrics.CmdSetData:           0,
	metrics.CmdJSONSet:           0,
	metrics.CmdJSONGet:           0,
	metrics.CmdZAdd:              0,
	metrics.CmdCheckIfKeyExists:  false,
	metrics.CmdAddArrayValues:    int64(0),
	metrics.CmdGetArrayValues:    []string(nil),
	metrics.CmdCheckValueInArray: false,
	metrics.CmdSPop:              []string{},
	metrics.CmdDeleteKey:         int64(0),
	metrics.CmdZRangeByScore:     []ScoredValue(nil),
	metrics.CmdZRemRangeByScore:  int64(0),
}

func failureValue[T any](command string) T {
	v, _ := failureValues[command].(T)
	return v
}

// PanicError is the failure recorded when an operation panics.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("flash: panic: %v", e.Value)
}

// ErrType implements the error classification used by metrics.
func (e *PanicError) ErrType() string { return "panic" }

// outcome is the result of an operation body.
type outcome[T any] struct {
	value      T
	status     metrics.Status
	err        error
	dataLength int
}

func success[T any](v T) outcome[T] {
	return outcome[T]{value: v, status: metrics.StatusSuccess}
}

func miss[T any](v T) outcome[T] {
	return outcome[T]{value: v, status: metrics.StatusMiss}
}

func failed[T any](err error) outcome[T] {
	return outcome[T]{status: metrics.StatusFailure, err: err}
}

// call describes one facade invocation.
type call struct {
	command string
	bucket  string
	key     string
	// payload names the value the operation requires besides the key, if any.
	payload *bucket.Field
}

// request is what an operation body works with once validation passed.
type request struct {
	cacheKey string
	bucket   string
	policy   *bucket.Policy
	adapter  *store.Adapter
}

// execute runs body inside the shared pipeline: key derivation, validation,
// then a single metrics capture on the way out. Any error or panic turns into
// the failure value of the command.
func execute[T any](ctx context.Context, c *Cache, cl call, body func(ctx context.Context, r request) outcome[T]) (result T) {
	start := time.Now()
	st, service := c.snapshot()
	cacheKey := keys.Form(cl.key, cl.bucket)

	var out outcome[T]
	defer func() {
		if r := recover(); r != nil {
			out = failed[T](&PanicError{Value: r, Stack: string(debug.Stack())})
		}
		c.capture(metrics.Event{
			Bucket:     cl.bucket,
			Command:    cl.command,
			Status:     out.status,
			Duration:   time.Since(start),
			CacheKey:   cacheKey,
			Service:    service,
			Err:        out.err,
			DataLength: out.dataLength,
		})
		if out.err != nil {
			result = failureValue[T](cl.command)
			return
		}
		result = out.value
	}()

	if st == nil {
		out = failed[T](ErrNotConnected)
		return
	}

	fields := []bucket.Field{bucket.Required("cacheKey", cacheKey)}
	if cl.payload != nil {
		fields = append(fields, *cl.payload)
	}
	fields = append(fields, bucket.Required("bucketName", cl.bucket))
	if err := st.policy.Validate(cl.bucket, service, fields...); err != nil {
		out = failed[T](err)
		return
	}

	out = body(ctx, request{
		cacheKey: cacheKey,
		bucket:   cl.bucket,
		policy:   st.policy,
		adapter:  st.adapter(cl.bucket),
	})
	return
}

// capture hands e to the recorder. Recorder panics are logged and dropped.
func (c *Cache) capture(e metrics.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.logger.Error().
				Str("error_type", "flash_metrics_capture_error").
				Str("event_type", e.Command).
				Str("error_message", fmt.Sprint(r)).
				Msg("Failed to capture cache metrics")
		}
	}()
	c.recorder.Capture(e)
}
