/*
 *  cigar.go
 *  gax
 *
 *  Created by Haibao Tang on 03/09/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
)

// AlignOp is one alignment operation in query order. Query holds the read
// bases for substitutions and insertions when the tag spells them out, Ref the
// node bases for substitutions and deletions.
type AlignOp struct {
	Class  EditClass
	Length int
	Query  string
	Ref    string
}

// FromLength is the number of node bases the op consumes
func (op AlignOp) FromLength() int {
	if op.Class == Insertion {
		return 0
	}
	return op.Length
}

// ToLength is the number of read bases the op consumes
func (op AlignOp) ToLength() int {
	if op.Class == Deletion {
		return 0
	}
	return op.Length
}

// AlignOps reads the operations of a record: cs takes precedence over cg.
// ok is false when the record carries neither.
func (r *GafRecord) AlignOps() (ops []AlignOp, ok bool, err error) {
	if tag, found := r.Tag("cs"); found {
		cs, _ := tag.Value.Str()
		ops, err = ParseCS(cs)
		return ops, true, err
	}
	if tag, found := r.Tag("cg"); found {
		cg, _ := tag.Value.Str()
		ops, err = ParseCigar(cg)
		return ops, true, err
	}
	return nil, false, nil
}

// ParseCS parses a minimap2 difference string in short or long form:
//
// :N    identical run of N bases
// =SEQ  identical run spelled out
// *xy   substitution of node base x by read base y
// +seq  insertion into the read
// -seq  deletion from the read
//
// Adjacent substitutions are merged into one op.
func ParseCS(cs string) ([]AlignOp, error) {
	var ops []AlignOp
	for i := 0; i < len(cs); {
		c := cs[i]
		j := i + 1
		for j < len(cs) && !strings.ContainsRune(":=*+-~", rune(cs[j])) {
			j++
		}
		body := cs[i+1 : j]
		switch c {
		case ':':
			n, err := strconv.Atoi(body)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: cs match `%s`", ErrMalformedTag, cs[i:j])
			}
			ops = append(ops, AlignOp{Class: Match, Length: n})
		case '=':
			if body == "" {
				return nil, fmt.Errorf("%w: empty cs match", ErrMalformedTag)
			}
			ops = append(ops, AlignOp{Class: Match, Length: len(body), Ref: body})
		case '*':
			if len(body) != 2 {
				return nil, fmt.Errorf("%w: cs substitution `%s`", ErrMalformedTag, cs[i:j])
			}
			if n := len(ops); n > 0 && ops[n-1].Class == Substitution {
				ops[n-1].Length++
				ops[n-1].Ref += body[:1]
				ops[n-1].Query += body[1:]
			} else {
				ops = append(ops, AlignOp{Class: Substitution, Length: 1, Ref: body[:1], Query: body[1:]})
			}
		case '+':
			if body == "" {
				return nil, fmt.Errorf("%w: empty cs insertion", ErrMalformedTag)
			}
			ops = append(ops, AlignOp{Class: Insertion, Length: len(body), Query: body})
		case '-':
			if body == "" {
				return nil, fmt.Errorf("%w: empty cs deletion", ErrMalformedTag)
			}
			ops = append(ops, AlignOp{Class: Deletion, Length: len(body), Ref: body})
		default:
			// ~ introns have no edit counterpart
			return nil, fmt.Errorf("%w: unsupported cs operator `%c`", ErrMalformedTag, c)
		}
		i = j
	}
	return ops, nil
}

// ParseCigar parses a CIGAR string. M and = are matches, X substitutions, I and
// S insertions, D and N deletions, H and P consume nothing and are dropped.
func ParseCigar(cg string) ([]AlignOp, error) {
	cigar, err := sam.ParseCigar([]byte(cg))
	if err != nil {
		return nil, fmt.Errorf("%w: cg `%s`: %v", ErrMalformedTag, cg, err)
	}
	var ops []AlignOp
	for _, co := range cigar {
		op := AlignOp{Length: co.Len()}
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual:
			op.Class = Match
		case sam.CigarMismatch:
			op.Class = Substitution
		case sam.CigarInsertion, sam.CigarSoftClipped:
			op.Class = Insertion
		case sam.CigarDeletion, sam.CigarSkipped:
			op.Class = Deletion
		case sam.CigarHardClipped, sam.CigarPadded:
			continue
		default:
			return nil, fmt.Errorf("%w: cg operation `%s`", ErrMalformedTag, co.Type())
		}
		if op.Length <= 0 {
			return nil, fmt.Errorf("%w: zero length operation in `%s`", ErrMalformedTag, cg)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// csBuilder accumulates a short form difference string, merging runs of
// matches and deletions the way minimap2 prints them, bases in lower case
type csBuilder struct {
	sb          strings.Builder
	matchRun    int
	runningDels bool
}

func (b *csBuilder) flushMatch() {
	if b.matchRun > 0 {
		b.sb.WriteByte(':')
		b.sb.WriteString(strconv.Itoa(b.matchRun))
		b.matchRun = 0
	}
}

func (b *csBuilder) match(n int) {
	b.matchRun += n
	b.runningDels = false
}

func (b *csBuilder) substitute(ref, alt string) {
	b.flushMatch()
	for i := 0; i < len(ref); i++ {
		b.sb.WriteByte('*')
		b.sb.WriteString(strings.ToLower(ref[i : i+1]))
		b.sb.WriteString(strings.ToLower(alt[i : i+1]))
	}
	b.runningDels = false
}

func (b *csBuilder) insert(seq string) {
	b.flushMatch()
	b.sb.WriteByte('+')
	b.sb.WriteString(strings.ToLower(seq))
	b.runningDels = false
}

func (b *csBuilder) delete(ref string) {
	b.flushMatch()
	if !b.runningDels {
		b.sb.WriteByte('-')
	}
	b.sb.WriteString(strings.ToLower(ref))
	b.runningDels = true
}

func (b *csBuilder) String() string {
	b.flushMatch()
	return b.sb.String()
}
