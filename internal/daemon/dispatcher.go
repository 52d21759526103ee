package daemon

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/iczelia/k16brightd/internal/caller"
	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
	"github.com/iczelia/k16brightd/internal/logging"
	"github.com/iczelia/k16brightd/internal/power"
)

// ErrConnectionClosed is returned by Dispatcher.Run when the bus
// connection goes away underneath the loop.
var ErrConnectionClosed = errors.New("bus connection closed")

type job struct {
	id    string
	req   power.Request
	from  caller.Info
	reply chan *dbus.Error
}

// Dispatcher serializes requests onto a single loop. Bus handler
// goroutines call Submit; Run validates, writes and answers one request
// at a time.
type Dispatcher struct {
	handler power.Handler
	audit   *logging.Logger
	inbox   chan job
	done    chan struct{}
}

// NewDispatcher creates a dispatcher that routes requests to h.
func NewDispatcher(h power.Handler, audit *logging.Logger) *Dispatcher {
	if audit == nil {
		audit = logging.New(nil)
	}
	return &Dispatcher{
		handler: h,
		audit:   audit,
		inbox:   make(chan job),
		done:    make(chan struct{}),
	}
}

// Submit hands req to the loop and waits for its outcome. Once the loop
// has stopped it returns a NoMemory fault without touching the handler.
func (d *Dispatcher) Submit(req power.Request, from caller.Info) *dbus.Error {
	j := job{
		id:    logging.NewRequestID(),
		req:   req,
		from:  from,
		reply: make(chan *dbus.Error, 1),
	}
	select {
	case d.inbox <- j:
		return <-j.reply
	case <-d.done:
		derr := dbustypes.NoMemory("dispatcher stopped")
		d.audit.LogCall(context.Background(), j.id, req.Method(), req.Args(), from, derr)
		return derr
	}
}

// Reject records a call that never reached the loop because its
// arguments could not be decoded.
func (d *Dispatcher) Reject(method string, from caller.Info, derr *dbus.Error) {
	d.audit.LogCall(context.Background(), logging.NewRequestID(), method, nil, from, derr)
}

// Run processes requests until ctx is cancelled or closed fires. It
// returns nil on cancellation and ErrConnectionClosed if closed fired
// first. Run must be called at most once.
func (d *Dispatcher) Run(ctx context.Context, closed <-chan struct{}) error {
	defer close(d.done)
	for {
		// An in-flight request always completes; shutdown is only
		// observed between requests.
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return ErrConnectionClosed
		case j := <-d.inbox:
			derr := power.Dispatch(d.handler, j.req)
			d.audit.LogCall(ctx, j.id, j.req.Method(), j.req.Args(), j.from, derr)
			j.reply <- derr
		}
	}
}
