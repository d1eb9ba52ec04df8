package syncer

import (
	"fmt"

	"github.com/retrosync/retrosync/internal/synclog"
)

// State is where a single file ended up in the compare/transfer cycle.
type State uint8

const (
	StateUnknown State = iota
	StateCompared
	StateUpToDate
	StateNeedUpload
	StateNeedDownload
	StateConflict
	StateResolved
	StateIgnored
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateCompared:
		return "compared"
	case StateUpToDate:
		return "up-to-date"
	case StateNeedUpload:
		return "need-upload"
	case StateNeedDownload:
		return "need-download"
	case StateConflict:
		return "conflict"
	case StateResolved:
		return "resolved"
	case StateIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Result is the outcome of one per-file operation. Failures are carried in Err, they never
// escape as panics or abort a batch.
type Result struct {
	Path   string
	Key    string
	State  State
	Action synclog.Action // transfer performed, empty when nothing moved
	Size   int64
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// PullReport summarises one pass over the remote listing.
type PullReport struct {
	Listed     int
	Candidates int
	Downloaded int
	Skipped    int
	Failed     int
	Err        error // listing failure, nothing was attempted
	Results    []Result
}

func (p *PullReport) add(r Result) {
	p.Results = append(p.Results, r)
	switch {
	case !r.OK():
		p.Failed++
	case r.Action == synclog.ActionDownload:
		p.Downloaded++
	default:
		p.Skipped++
	}
}

// BatchReport summarises an initial sync.
type BatchReport struct {
	Total      int
	Uploaded   int
	UpToDate   int
	Failed     int
	ScanErrors int
}

func (b *BatchReport) add(r Result) {
	b.Total++
	switch {
	case !r.OK():
		b.Failed++
	case r.Action == synclog.ActionUpload:
		b.Uploaded++
	default:
		b.UpToDate++
	}
}
