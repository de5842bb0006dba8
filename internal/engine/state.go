// Package engine implements the Join/Rejoin/Reboot Engine: the state
// machine driving addInstance, rejoinInstance and
// rebootClusterFromCompleteOutage, grounded on Cluster_join (cluster_join.h/
// .cc) and reboot_cluster_from_complete_outage.cc.
package engine

import (
	"context"
	"fmt"
	"log"
)

// State is one step of the join/rejoin/reboot state machine.
type State string

const (
	StateInit            State = "INIT"
	StateChecked         State = "CHECKED"
	StateUserCreated     State = "USER_CREATED"
	StateGRStarted       State = "GR_STARTED"
	StateRecovering      State = "RECOVERING"
	StateMetadataWritten State = "METADATA_WRITTEN"
	StatePeersUpdated    State = "PEERS_UPDATED"
	StateDone            State = "DONE"
)

var stateOrder = []State{
	StateInit, StateChecked, StateUserCreated, StateGRStarted,
	StateRecovering, StateMetadataWritten, StatePeersUpdated, StateDone,
}

// compensator undoes the effect of the step that registered it. Run in
// LIFO order if any later step fails, the same pattern
// defer-based compensators give us in place of C++ RAII/exception unwind.
type compensator func(ctx context.Context) error

// Run drives a sequence of named steps through the state machine in
// order; after a step returns an error, Unwind runs the registered
// compensators in reverse order. Run holds no metadata store and does not
// invalidate its cache. verbose enables step-by-step [DEBUG] logging via
// log.Printf.
type Run struct {
	Op      string
	Verbose bool

	state        State
	compensators []compensator
}

// NewRun starts a fresh state machine for the named operation.
func NewRun(op string, verbose bool) *Run {
	return &Run{Op: op, Verbose: verbose, state: StateInit}
}

// State returns the current step.
func (r *Run) State() State { return r.state }

// Step executes fn, advances to next on success, and records undo as a
// compensator to run if a later step fails. undo may be nil for
// already-idempotent or non-mutating steps.
func (r *Run) Step(ctx context.Context, next State, fn func(ctx context.Context) error, undo compensator) error {
	if r.Verbose {
		log.Printf("[DEBUG] %s: %s -> %s", r.Op, r.state, next)
	}
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: step %s failed: %w", r.Op, next, err)
	}
	if undo != nil {
		r.compensators = append(r.compensators, undo)
	}
	r.state = next
	return nil
}

// Unwind runs every registered compensator in reverse order. Errors from
// individual compensators are logged, not returned: unwinding is
// best-effort cleanup after an already-failed operation, and a
// compensator failure shouldn't mask the original error the caller is
// already propagating.
func (r *Run) Unwind(ctx context.Context) {
	for i := len(r.compensators) - 1; i >= 0; i-- {
		if err := r.compensators[i](ctx); err != nil {
			log.Printf("[WARN] %s: compensator failed during unwind: %v", r.Op, err)
		}
	}
	r.compensators = nil
}
