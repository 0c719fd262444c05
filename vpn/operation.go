package vpn

import (
	"context"
	"sync"

	"github.com/BojanKomazec/IpSec/common"
)

// OperationKind identifies what an Operation waits for.
type OperationKind int

const (
	OpConnect OperationKind = iota
	OpDisconnect
)

// String returns the name of the operation kind.
func (k OperationKind) String() string {
	switch k {
	case OpConnect:
		return "connect"
	case OpDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Operation is the completion signal of an asynchronous connect or
// disconnect. It is resolved exactly once; later resolutions are ignored.
type Operation struct {
	id   string
	kind OperationKind
	done chan struct{}
	once sync.Once
	err  error
}

func newOperation(kind OperationKind) *Operation {
	return &Operation{
		id:   common.GenerateID(),
		kind: kind,
		done: make(chan struct{}),
	}
}

// ID returns the unique identifier of the operation.
func (o *Operation) ID() string { return o.id }

// Kind returns what the operation waits for.
func (o *Operation) Kind() OperationKind { return o.kind }

// Done is closed once the operation is resolved.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Err returns the outcome. It is nil until the operation is resolved.
func (o *Operation) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Resolved reports whether the operation has completed.
func (o *Operation) Resolved() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the operation is resolved or ctx is done.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve completes the operation and reports whether this call did so.
func (o *Operation) resolve(err error) bool {
	resolved := false
	o.once.Do(func() {
		o.err = err
		close(o.done)
		resolved = true
	})
	return resolved
}
