package endpoint

import (
	"fmt"
	"time"

	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Outcome classifies one dispatch.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeEndpointNotFound Outcome = "endpoint_not_found"
	OutcomeInvocationError  Outcome = "invocation_error"
)

// Result reports one dispatched call.
type Result struct {
	Target  string
	Outcome Outcome
	Err     error
}

// Dispatch invokes the handler for target with payload. Handler panics are
// recovered into OutcomeInvocationError.
func (r *Registry) Dispatch(target string, payload Payload) Result {
	fn, err := r.resolve(target)
	if err != nil {
		return Result{Target: target, Outcome: OutcomeEndpointNotFound, Err: err}
	}
	if err := invoke(fn, payload); err != nil {
		return Result{
			Target:  target,
			Outcome: OutcomeInvocationError,
			Err: protocol.WrapError(err, protocol.KindInvocationFailed, "endpoint: handler failed", map[string]any{
				"target": target,
			}),
		}
	}
	return Result{Target: target, Outcome: OutcomeOK}
}

// DispatchEnvelope dispatches every call of env. Bulk calls are independent;
// one failure does not stop the others.
func (r *Registry) DispatchEnvelope(env protocol.Envelope) []Result {
	calls := env.Flatten()
	out := make([]Result, 0, len(calls))
	for _, call := range calls {
		out = append(out, r.Dispatch(call.Target, call.Payload))
	}
	return out
}

func invoke(fn Func, payload Payload) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	fn(payload)
	return nil
}

// Dispatcher is the delivery boundary between transports and a registry.
// Deliver logs and counts failures and never returns them.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
}

func NewDispatcher(registry *Registry, logger *zerolog.Logger) *Dispatcher {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Dispatcher{registry: registry, logger: l}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Deliver dispatches env and returns the number of calls that succeeded.
func (d *Dispatcher) Deliver(env protocol.Envelope, source string) int {
	ok := 0
	for _, call := range env.Flatten() {
		start := time.Now()
		res := d.registry.Dispatch(call.Target, call.Payload)
		observability.RecordDispatch(string(res.Outcome), time.Since(start))
		switch res.Outcome {
		case OutcomeOK:
			ok++
			d.logger.Debug().Str("target", res.Target).Str("source", source).Msg("endpoint invoked")
		case OutcomeEndpointNotFound:
			d.logger.Warn().Err(res.Err).Str("target", res.Target).Str("source", source).Msg("unknown endpoint")
		default:
			d.logger.Error().Err(res.Err).Str("target", res.Target).Str("source", source).Msg("endpoint invocation failed")
		}
	}
	return ok
}
