/*
 *  reads.go
 *  gax
 *
 *  Created by Haibao Tang on 03/13/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"fmt"
	"io"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// Read is a query sequence with optional base qualities (phred, not offset)
type Read struct {
	Name string
	Seq  string
	Qual []byte
}

// ReadSet holds reads by name
type ReadSet map[string]*Read

// Get finds a read, a nil set finds nothing
func (r ReadSet) Get(name string) *Read {
	if r == nil {
		return nil
	}
	return r[name]
}

// LoadReads parses a FASTA/FASTQ file, the name is cut at the first space
func LoadReads(readsfile string) (ReadSet, error) {
	log.Noticef("Parse reads file `%s`", readsfile)
	reader, err := fastx.NewDefaultReader(readsfile)
	if err != nil {
		return nil, err
	}
	seq.ValidateSeq = false

	reads := ReadSet{}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", readsfile, err)
		}
		fields := strings.Fields(string(rec.Name))
		if len(fields) == 0 {
			continue
		}
		read := &Read{Name: fields[0], Seq: strings.ToUpper(string(rec.Seq.Seq))}
		if len(rec.Seq.Qual) > 0 {
			read.Qual = make([]byte, len(rec.Seq.Qual))
			for i, q := range rec.Seq.Qual {
				read.Qual[i] = q - 33
			}
		}
		reads[read.Name] = read
	}
	log.Noticef("Loaded %d reads", len(reads))
	return reads, nil
}
