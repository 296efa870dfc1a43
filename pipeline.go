/*
 *  pipeline.go
 *  gax
 *
 *  Created by Haibao Tang on 03/16/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Pipeline converts records with a bounded number of workers. Results are
// committed in the order the records were read.
type Pipeline struct {
	Workers  int
	FailFast bool
}

// Report summarizes a pipeline run
type Report struct {
	RunID     string
	Converted int
	Skipped   int
	Errors    []*RecordError
}

func (r *Report) String() string {
	return fmt.Sprintf("run %s: %d converted, %d skipped", r.RunID, r.Converted, r.Skipped)
}

type outcome[Out any] struct {
	index int
	out   Out
	err   error
}

// fatal tells whether a conversion error stops the run under skip-and-collect
func fatal(err error) bool {
	switch ClassOf(err) {
	case FormatError, SemanticError:
		return false
	}
	return true
}

// RunPipeline pulls records from next until io.EOF, converts them in parallel
// and hands the results to commit one at a time in input order. The context
// is checked before each record is read; records already in flight finish.
// Errors from next or commit always stop the run.
func RunPipeline[In, Out any](ctx context.Context, p Pipeline,
	next func() (In, error), convert func(In) (Out, error), commit func(Out) error) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	workers := max(p.Workers, 1)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers + 1)
	queue := make(chan chan outcome[Out], workers)

	group.Go(func() error {
		for slot := range queue {
			o := <-slot
			if o.err != nil {
				rerr := &RecordError{Index: o.index, Err: o.err}
				if p.FailFast || fatal(o.err) {
					return rerr
				}
				log.Errorf("%s", rerr)
				report.Skipped++
				report.Errors = append(report.Errors, rerr)
				continue
			}
			if err := commit(o.out); err != nil {
				return fmt.Errorf("record %d: %w", o.index, err)
			}
			report.Converted++
		}
		return nil
	})

	var readErr error
produce:
	for index := 0; ; index++ {
		if gctx.Err() != nil {
			break
		}
		in, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("record %d: %w", index, err)
			break
		}
		slot := make(chan outcome[Out], 1)
		select {
		case queue <- slot:
		case <-gctx.Done():
			break produce
		}
		i := index
		group.Go(func() error {
			out, err := convert(in)
			slot <- outcome[Out]{index: i, out: out, err: err}
			return nil
		})
	}
	close(queue)

	if err := group.Wait(); err != nil {
		return report, err
	}
	if readErr != nil {
		return report, readErr
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("stopped after %d records: %w", report.Converted+report.Skipped, err)
	}
	return report, nil
}

// IsRecordError tells whether err failed a single record
func IsRecordError(err error) bool {
	var rerr *RecordError
	return errors.As(err, &rerr)
}
