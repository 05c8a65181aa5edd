// Package session implements the control panel orchestrator: the state of one
// capture-to-run cycle and the operations that advance it.
//
// A cycle moves a selected capture through Upload, Convert, Generate and Run.
// Each step records a tri-state StepStatus and is guarded by a busy flag so
// the same operation never overlaps itself. Preconditions and descriptor
// validation fail locally without a network call.
//
// Select and Clear restart the cycle. Upload, convert and generate results
// that were in flight when the cycle restarted are dropped and reported as
// services.ErrSuperseded. A run the backend accepted is always tracked.
// The catalog, Stop and StopAll are outside the cycle and survive a Clear.
//
// Run status is owned by a RunPoller; a Session starts it after a successful
// run and stops it after Stop or StopAll.
package session
