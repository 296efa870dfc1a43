/*
 *  convert.go
 *  gax
 *
 *  Created by Haibao Tang on 03/16/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shenwei356/xopen"
)

// stdout is handed out without closing it
type stdout struct {
	io.Writer
}

func (stdout) Close() error { return nil }

// openBinary opens a protobuf stream, `-` is stdin
func openBinary(filename string) (io.ReadCloser, error) {
	if filename == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(filename)
}

// createBinary creates a protobuf stream, `-` is stdout. Callers close it once
// the stream is written and keep a deferred Close for the error paths.
func createBinary(filename string) (io.WriteCloser, error) {
	if filename == "-" {
		return stdout{os.Stdout}, nil
	}
	return os.Create(filename)
}

// GafToGamRunner converts a GAF file into a GAM file
type GafToGamRunner struct {
	Gfafile   string
	Gaffile   string
	Readsfile string // FASTA/FASTQ with the query sequences, optional
	Outfile   string
	Pipeline  Pipeline
	Report    *Report
}

// Run loads the graph and the reads, then converts every GAF line
func (r *GafToGamRunner) Run(ctx context.Context) error {
	graph, err := LoadGraph(r.Gfafile)
	if err != nil {
		return err
	}
	var reads ReadSet
	if r.Readsfile != "" {
		if reads, err = LoadReads(r.Readsfile); err != nil {
			return err
		}
	}
	fh, err := xopen.Ropen(r.Gaffile)
	if err != nil {
		return err
	}
	defer fh.Close()
	out, err := createBinary(r.Outfile)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := NewGamWriter(out)
	reader := NewGafReader(fh)
	log.Noticef("Convert `%s` to GAM", r.Gaffile)
	r.Report, err = RunPipeline(ctx, r.Pipeline, reader.ReadLine,
		func(line GafLine) (*Alignment, error) {
			rec, err := line.Parse()
			if err != nil {
				return nil, err
			}
			aln, err := GafToGam(rec, graph, reads.Get(rec.QueryName))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line.Lineno, err)
			}
			return aln, nil
		},
		writer.WriteAlignment)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Noticef("%s, written to `%s`", r.Report, r.Outfile)
	return nil
}

// GamToGafRunner converts a GAM file into a GAF file
type GamToGafRunner struct {
	Gfafile  string
	Gamfile  string
	Outfile  string
	Pipeline Pipeline
	Report   *Report
}

// Run loads the graph and converts every alignment
func (r *GamToGafRunner) Run(ctx context.Context) error {
	graph, err := LoadGraph(r.Gfafile)
	if err != nil {
		return err
	}
	fh, err := openBinary(r.Gamfile)
	if err != nil {
		return err
	}
	defer fh.Close()
	reader, err := NewGamReader(fh)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Gamfile, err)
	}
	defer reader.Close()
	w, err := xopen.Wopen(r.Outfile)
	if err != nil {
		return err
	}
	defer w.Close()

	log.Noticef("Convert `%s` to GAF", r.Gamfile)
	r.Report, err = RunPipeline(ctx, r.Pipeline, reader.Next,
		func(msg []byte) (*GafRecord, error) {
			aln, err := UnmarshalAlignment(msg)
			if err != nil {
				return nil, err
			}
			return GamToGaf(aln, graph)
		},
		func(rec *GafRecord) error {
			return WriteGafRecord(w, rec)
		})
	if err != nil {
		return err
	}
	// Close drops flush errors
	if err := w.Flush(); err != nil {
		return err
	}
	log.Noticef("%s, written to `%s`", r.Report, r.Outfile)
	return nil
}

// GamToGampRunner converts a GAM file into a GAMP file
type GamToGampRunner struct {
	Gfafile  string
	Gamfile  string
	Outfile  string
	Pipeline Pipeline
	Report   *Report
}

// Run loads the graph and builds one multipath alignment per alignment
func (r *GamToGampRunner) Run(ctx context.Context) error {
	graph, err := LoadGraph(r.Gfafile)
	if err != nil {
		return err
	}
	fh, err := openBinary(r.Gamfile)
	if err != nil {
		return err
	}
	defer fh.Close()
	reader, err := NewGamReader(fh)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Gamfile, err)
	}
	defer reader.Close()
	out, err := createBinary(r.Outfile)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := NewGampWriter(out)
	log.Noticef("Convert `%s` to GAMP", r.Gamfile)
	r.Report, err = RunPipeline(ctx, r.Pipeline, reader.Next,
		func(msg []byte) (*MultipathAlignment, error) {
			aln, err := UnmarshalAlignment(msg)
			if err != nil {
				return nil, err
			}
			return BuildMultipath(aln, graph)
		},
		writer.WriteMultipath)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Noticef("%s, written to `%s`", r.Report, r.Outfile)
	return nil
}

// GampToGamRunner flattens a GAMP file into a GAM file, one alignment per
// multipath alignment
type GampToGamRunner struct {
	Gampfile string
	Outfile  string
	Pipeline Pipeline
	Report   *Report
}

// Run linearizes every multipath alignment
func (r *GampToGamRunner) Run(ctx context.Context) error {
	fh, err := openBinary(r.Gampfile)
	if err != nil {
		return err
	}
	defer fh.Close()
	reader, err := NewGampReader(fh)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Gampfile, err)
	}
	defer reader.Close()
	out, err := createBinary(r.Outfile)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := NewGamWriter(out)
	log.Noticef("Convert `%s` to GAM", r.Gampfile)
	r.Report, err = RunPipeline(ctx, r.Pipeline, reader.Next,
		func(msg []byte) (*Alignment, error) {
			mp, err := UnmarshalMultipath(msg)
			if err != nil {
				return nil, err
			}
			return LinearizeMultipath(mp)
		},
		writer.WriteAlignment)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Noticef("%s, written to `%s`", r.Report, r.Outfile)
	return nil
}

// GampChecker parses a GAMP file and verifies the topological order of every
// record
type GampChecker struct {
	Gampfile  string
	Pipeline  Pipeline
	Report    *Report
	Subpaths  int
	Branching int // records with a subpath of more than one successor
}

// Run checks every record
func (r *GampChecker) Run(ctx context.Context) error {
	fh, err := openBinary(r.Gampfile)
	if err != nil {
		return err
	}
	defer fh.Close()
	reader, err := NewGampReader(fh)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Gampfile, err)
	}
	defer reader.Close()

	log.Noticef("Check `%s`", r.Gampfile)
	r.Report, err = RunPipeline(ctx, r.Pipeline, reader.Next, UnmarshalMultipath,
		func(mp *MultipathAlignment) error {
			r.Subpaths += len(mp.Subpaths)
			for _, sp := range mp.Subpaths {
				if len(sp.Next)+len(sp.Connections) > 1 {
					r.Branching++
					break
				}
			}
			return nil
		})
	if err != nil {
		return err
	}
	log.Noticef("%s, %d subpaths, %s records branching", r.Report, r.Subpaths,
		Percentage(r.Branching, r.Report.Converted))
	return nil
}
