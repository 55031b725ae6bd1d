// Package export renders a full resolution video offline: spectrum
// extraction, frame composition, encoding and muxing, reported as a linear
// stage machine.
package export

import (
	"errors"
	"fmt"
)

// Stage is the position of a job in the export pipeline.
type Stage int

const (
	Idle Stage = iota
	Initializing
	Analyzing
	Rendering
	Encoding
	Ready
)

var stageNames = [...]string{"idle", "initializing", "analyzing", "rendering", "encoding", "ready"}

func (s Stage) String() string {
	if s < Idle || s > Ready {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ErrBusy is returned by Run while another job is active.
var ErrBusy = errors.New("export already in progress")

// Error is a failed export. Stage is where it failed.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export failed while %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Progress is one progress report. Percent never decreases within a job.
type Progress struct {
	JobID   string
	Stage   Stage
	Percent int
}

// Job is a snapshot of the current or last export.
type Job struct {
	ID       string
	Stage    Stage
	Percent  int
	Artifact string // set once Ready
	Err      error  // set after a failure
}

// ProgressChan adapts a channel to Options.OnProgress. Percent updates
// within a stage are dropped when ch is full so a slow reader never stalls
// rendering; the first report of each stage is always delivered.
func ProgressChan(ch chan<- Progress) func(Progress) {
	last := Stage(-1)
	return func(p Progress) {
		if p.Stage != last {
			last = p.Stage
			ch <- p
			return
		}
		select {
		case ch <- p:
		default:
		}
	}
}
