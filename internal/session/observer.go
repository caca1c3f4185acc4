package session

import (
	"fmt"

	"github.com/emberwatch/firecommand/internal/dispatcher"
)

// Observer receives session output. Calls happen on the session inbox
// goroutine and must not block.
type Observer interface {
	StateChanged(Snapshot)
	RunCompleted(RunReport)
	RunFailed(RunFailure)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	OnState     func(Snapshot)
	OnCompleted func(RunReport)
	OnFailed    func(RunFailure)
}

func (o ObserverFuncs) StateChanged(s Snapshot) {
	if o.OnState != nil {
		o.OnState(s)
	}
}

func (o ObserverFuncs) RunCompleted(r RunReport) {
	if o.OnCompleted != nil {
		o.OnCompleted(r)
	}
}

func (o ObserverFuncs) RunFailed(f RunFailure) {
	if o.OnFailed != nil {
		o.OnFailed(f)
	}
}

// Buffered moves o off the inbox goroutine onto buffered dispatcher lanes.
// State updates are dropped when the lane is full; run reports block.
func Buffered(d *dispatcher.Dispatcher, name string, size int, o Observer) Observer {
	state := fmt.Sprintf("%s.state", name)
	completed := fmt.Sprintf("%s.completed", name)
	failed := fmt.Sprintf("%s.failed", name)

	d.Register(state, func(e dispatcher.Event) (any, error) {
		o.StateChanged(e.Payload.(Snapshot))
		return nil, nil
	}, dispatcher.Buffered(size))
	d.Register(completed, func(e dispatcher.Event) (any, error) {
		o.RunCompleted(e.Payload.(RunReport))
		return nil, nil
	}, dispatcher.Buffered(size), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(failed, func(e dispatcher.Event) (any, error) {
		o.RunFailed(e.Payload.(RunFailure))
		return nil, nil
	}, dispatcher.Buffered(size), dispatcher.Blocking(), dispatcher.Logged())

	return ObserverFuncs{
		OnState: func(s Snapshot) {
			d.Dispatch(dispatcher.Event{Command: state, Payload: s})
		},
		OnCompleted: func(r RunReport) {
			d.Dispatch(dispatcher.Event{Command: completed, Payload: r})
		},
		OnFailed: func(f RunFailure) {
			d.Dispatch(dispatcher.Event{Command: failed, Payload: f})
		},
	}
}
