// Package synclog records sync events. Events are write-once and append-only; the sync engine
// treats every Appender as best-effort and never lets an append failure change an outcome.
package synclog

import (
	"context"
	"errors"
	"time"
)

type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionConflict Action = "conflict"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type Event struct {
	Action   Action
	FilePath string
	Size     *int64
	Status   Status
	Error    string
	Note     string
	At       time.Time
}

// Size is a helper for the optional size field.
func Size(n int64) *int64 {
	return &n
}

type Appender interface {
	Append(ctx context.Context, ev Event) error
}

// Multi fans an event out to several appenders. Every appender is attempted; the joined error is
// returned.
type Multi []Appender

func (m Multi) Append(ctx context.Context, ev Event) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.Append(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Append(context.Context, Event) error { return nil }

var (
	_ Appender = Multi(nil)
	_ Appender = Discard{}
)
