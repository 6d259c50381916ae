// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package memory

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

const laneQueueSize = 64

type workItem struct {
	fn     func(context.Context) error
	ctx    context.Context
	result chan<- error
}

// Lane serialises mutations of one document's conversation. Work submitted
// via Submit runs one item at a time in FIFO order on a background goroutine.
type Lane struct {
	docID   string
	queue   chan workItem
	done    chan struct{}
	closing chan struct{}

	once sync.Once
}

// NewLane starts the lane's worker. Call Close to stop it.
func NewLane(docID string) *Lane {
	l := &Lane{
		docID:   docID,
		queue:   make(chan workItem, laneQueueSize),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Lane) run() {
	defer close(l.done)
	for {
		select {
		case w := <-l.queue:
			l.execute(w)
		case <-l.closing:
			// Drain what was already enqueued.
			for {
				select {
				case w := <-l.queue:
					l.execute(w)
				default:
					return
				}
			}
		}
	}
}

func (l *Lane) execute(w workItem) {
	if err := w.ctx.Err(); err != nil {
		w.result <- err
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("memory lane panic recovered",
					"doc_id", l.docID,
					"panic", r,
					"stack", string(debug.Stack()))
				err = docerr.Errorf(docerr.CodeMemoryLaneWorkerFailure, "worker panic: %v", r)
			}
		}()
		err = w.fn(w.ctx)
	}()

	w.result <- err
}

// Submit enqueues fn and blocks until it has run. If ctx ends before fn
// starts, fn is skipped and ctx.Err() is returned.
func (l *Lane) Submit(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-l.closing:
		return docerr.New(docerr.CodeMemoryLaneClosed, "lane is closed", docerr.FieldDocID(l.docID))
	default:
	}

	result := make(chan error, 1)
	w := workItem{fn: fn, ctx: ctx, result: result}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closing:
		return docerr.New(docerr.CodeMemoryLaneClosed, "lane is closed", docerr.FieldDocID(l.docID))
	case l.queue <- w:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	case <-l.closing:
		// The worker drains the queue before exiting; an item that slipped
		// in after the drain never runs.
		<-l.done
		select {
		case err := <-result:
			return err
		default:
			return docerr.New(docerr.CodeMemoryLaneClosed, "lane closed while waiting for result",
				docerr.FieldDocID(l.docID))
		}
	}
}

// Close stops accepting work, lets the worker finish queued items and waits
// for it. Safe to call more than once.
func (l *Lane) Close() {
	l.once.Do(func() {
		close(l.closing)
		<-l.done
	})
}
