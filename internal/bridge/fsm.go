package bridge

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
)

const (
	eventProcess  = "process"
	eventComplete = "complete"
	eventFail     = "fail"
)

// newStatusFSM builds the transition machine. completed and failed have no
// outgoing edges, which makes terminal statuses monotonic by construction.
func newStatusFSM(current Status) *fsm.FSM {
	return fsm.NewFSM(
		string(current),
		fsm.Events{
			{Name: eventProcess, Src: []string{string(StatusPending)}, Dst: string(StatusProcessing)},
			{Name: eventComplete, Src: []string{string(StatusProcessing)}, Dst: string(StatusCompleted)},
			{Name: eventFail, Src: []string{string(StatusPending), string(StatusProcessing)}, Dst: string(StatusFailed)},
		},
		fsm.Callbacks{},
	)
}

// transition fires event against tx's current status, mutating tx.Status on
// success. An illegal transition leaves tx untouched.
func transition(tx *BridgeTransaction, event string) error {
	machine := newStatusFSM(tx.Status)
	if err := machine.Event(context.Background(), event); err != nil {
		return errors.Wrapf(err, "illegal transition %q from %s", event, tx.Status)
	}
	tx.Status = Status(machine.Current())
	return nil
}
