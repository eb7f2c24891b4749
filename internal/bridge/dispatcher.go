// Package bridge forwards game-services calls to a native transport and
// routes the single native reply to the caller's success or failure callback.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/playgames-bridge/internal/domain"
)

// Callback receives the raw payload produced by the native side
type Callback func(payload json.RawMessage)

// Transport carries one call into native code. Implementations must invoke
// exactly one of success or failure, later, for every Exec, and must keep
// interleaved calls apart.
type Transport interface {
	Exec(success, failure Callback, service, action string, args []interface{})
}

// ExecFunc adapts a plain function to Transport
type ExecFunc func(success, failure Callback, service, action string, args []interface{})

// Exec calls f
func (f ExecFunc) Exec(success, failure Callback, service, action string, args []interface{}) {
	f(success, failure, service, action, args)
}

// Dispatcher is the single entry point for every operation in the catalogue
type Dispatcher struct {
	transport Transport
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher on top of the given transport
func NewDispatcher(transport Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		transport: transport,
		logger:    logger,
	}
}

// Invoke is the flexible-arity form of Call. It accepts, in order, an optional
// input record, a success callback and a failure callback. When the first
// argument is a function it is taken as the success callback and the input is
// an empty record; the next argument, if any, is then the failure callback.
//
// Callbacks may be Callback, func(json.RawMessage), func([]byte), func() or
// func(T). A func(T) receives the payload decoded into T, or the parsed
// Failure when T is Failure. A success payload that does not decode goes to
// the failure callback. A callback of any other shape fails the call without
// forwarding it.
func (d *Dispatcher) Invoke(action string, args ...interface{}) {
	var input interface{}
	rest := args
	if len(args) > 0 {
		switch {
		case !isFunc(args[0]):
			input, rest = args[0], args[1:]
		case isNilFunc(args[0]):
			rest = args[1:]
		}
	}

	var slots [2]interface{}
	copy(slots[:], rest)

	onSuccess, successErr := d.adapt(slots[0])
	onFailure, failureErr := d.adapt(slots[1])

	failure := d.logFailure(action)
	if onFailure != nil {
		failure = func(payload json.RawMessage) {
			if err := onFailure(payload); err != nil {
				d.logger.Warn("dropping undecodable failure",
					"action", action,
					"error", err,
				)
			}
		}
	}

	if err := errors.Join(successErr, failureErr); err != nil {
		d.logger.Warn("invalid callback, call not forwarded", "action", action, "error", err)
		go failure(MessageFailure("Invalid callback: " + err.Error()))
		return
	}

	var success Callback
	if onSuccess != nil {
		success = func(payload json.RawMessage) {
			if err := onSuccess(payload); err != nil {
				failure(MessageFailure(fmt.Sprintf("decoding %s result: %v", action, err)))
			}
		}
	}

	d.Call(action, input, success, failure)
}

// Call forwards one operation to the transport. A nil input becomes an empty
// record and nil callbacks are replaced by handlers that log the outcome.
// Call returns as soon as the transport has accepted the call.
func (d *Dispatcher) Call(action string, input interface{}, onSuccess, onFailure Callback) {
	if isAbsent(input) {
		input = domain.Record{}
	}
	if onSuccess == nil {
		onSuccess = d.logSuccess(action)
	}
	if onFailure == nil {
		onFailure = d.logFailure(action)
	}

	success, failure := d.once(action, onSuccess, onFailure)
	d.transport.Exec(success, failure, domain.ServiceName, action, []interface{}{input})
}

// once guards the pair of callbacks so only the first completion is delivered
func (d *Dispatcher) once(action string, onSuccess, onFailure Callback) (Callback, Callback) {
	var fired atomic.Bool

	guard := func(outcome string, cb Callback) Callback {
		return func(payload json.RawMessage) {
			if !fired.CompareAndSwap(false, true) {
				d.logger.Warn("dropping duplicate completion",
					"action", action,
					"outcome", outcome,
				)
				return
			}
			cb(payload)
		}
	}
	return guard("success", onSuccess), guard("failure", onFailure)
}

func (d *Dispatcher) logSuccess(action string) Callback {
	return func(json.RawMessage) {
		d.logger.Info(domain.ServiceName+"."+action+": executed successfully", "action", action)
	}
}

func (d *Dispatcher) logFailure(action string) Callback {
	return func(payload json.RawMessage) {
		d.logger.Warn(domain.ServiceName+"."+action+": failed on execution",
			"action", action,
			"failure", ParseFailure(payload).Error(),
		)
	}
}

// handler runs a user callback on a raw payload. It fails only when the
// payload cannot be decoded into the callback's argument.
type handler func(payload json.RawMessage) error

var failureType = reflect.TypeOf(Failure{})

// adapt turns an Invoke callback argument into a handler. Absent callbacks
// adapt to nil.
func (d *Dispatcher) adapt(v interface{}) (handler, error) {
	if v == nil {
		return nil, nil
	}
	switch cb := v.(type) {
	case Callback:
		if cb == nil {
			return nil, nil
		}
		return func(p json.RawMessage) error { cb(p); return nil }, nil
	case func(json.RawMessage):
		if cb == nil {
			return nil, nil
		}
		return func(p json.RawMessage) error { cb(p); return nil }, nil
	case func([]byte):
		if cb == nil {
			return nil, nil
		}
		return func(p json.RawMessage) error { cb(p); return nil }, nil
	case func():
		if cb == nil {
			return nil, nil
		}
		return func(json.RawMessage) error { cb(); return nil }, nil
	}

	fn := reflect.ValueOf(v)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%T is not a function", v)
	}
	if fn.IsNil() {
		return nil, nil
	}
	t := fn.Type()
	if t.NumIn() != 1 || t.IsVariadic() {
		return nil, fmt.Errorf("cannot adapt callback of type %s", t)
	}

	in := t.In(0)
	return func(p json.RawMessage) error {
		if in == failureType {
			fn.Call([]reflect.Value{reflect.ValueOf(ParseFailure(p))})
			return nil
		}
		arg := reflect.New(in)
		if err := decodeResult(p, arg.Interface()); err != nil {
			return err
		}
		fn.Call([]reflect.Value{arg.Elem()})
		return nil
	}, nil
}

func isFunc(v interface{}) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

func isNilFunc(v interface{}) bool {
	return isFunc(v) && reflect.ValueOf(v).IsNil()
}

// isAbsent treats nil and nil pointers, maps and slices as an omitted record
func isAbsent(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
