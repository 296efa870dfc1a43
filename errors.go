/*
 *  errors.go
 *  gax
 *
 *  Created by Haibao Tang on 03/05/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"errors"
	"fmt"
)

// Format errors are raised at the codec boundary on malformed bytes or fields
var (
	ErrFieldCount       = errors.New("not enough fields")
	ErrMalformedPath    = errors.New("malformed path")
	ErrMalformedField   = errors.New("malformed field")
	ErrMalformedTag     = errors.New("malformed tag")
	ErrTruncatedRecord  = errors.New("truncated record")
	ErrEncodingOverflow = errors.New("encoding overflow")
	ErrBadTypeTag       = errors.New("unexpected stream type tag")
)

// Semantic errors are raised on well-formed records that disagree with the graph
var (
	ErrUnknownNode             = errors.New("unknown node")
	ErrGraphPathDiscontinuity  = errors.New("graph path discontinuity")
	ErrCoordinateMismatch      = errors.New("coordinate mismatch")
	ErrInvalidEdit             = errors.New("invalid edit")
	ErrUnsplittableEdit        = errors.New("unsplittable edit")
	ErrNotTopologicallyOrdered = errors.New("subpaths not topologically ordered")
	ErrInvalidScoreRegions     = errors.New("invalid score regions")
)

// ErrInvariantViolation signals a bug in the translator or the builder
var ErrInvariantViolation = errors.New("invariant violation")

// ErrorClass is the coarse category of an error
type ErrorClass int

const (
	// OtherError covers I/O and anything not raised by the codecs or converters
	OtherError ErrorClass = iota
	// FormatError is a malformed record
	FormatError
	// SemanticError is a well-formed record inconsistent with the graph
	SemanticError
	// InvariantViolation is an internal logic error, never retried
	InvariantViolation
)

var errorClasses = map[error]ErrorClass{
	ErrFieldCount:              FormatError,
	ErrMalformedPath:           FormatError,
	ErrMalformedField:          FormatError,
	ErrMalformedTag:            FormatError,
	ErrTruncatedRecord:         FormatError,
	ErrEncodingOverflow:        FormatError,
	ErrBadTypeTag:              FormatError,
	ErrUnknownNode:             SemanticError,
	ErrGraphPathDiscontinuity:  SemanticError,
	ErrCoordinateMismatch:      SemanticError,
	ErrInvalidEdit:             SemanticError,
	ErrUnsplittableEdit:        SemanticError,
	ErrNotTopologicallyOrdered: SemanticError,
	ErrInvalidScoreRegions:     SemanticError,
	ErrInvariantViolation:      InvariantViolation,
}

// String gives the name of the class
func (c ErrorClass) String() string {
	switch c {
	case FormatError:
		return "FormatError"
	case SemanticError:
		return "SemanticError"
	case InvariantViolation:
		return "InvariantViolation"
	}
	return "OtherError"
}

// ClassOf finds the class of the first sentinel wrapped by err
func ClassOf(err error) ErrorClass {
	if err == nil {
		return OtherError
	}
	// Invariant violations win over whatever else is wrapped alongside
	if errors.Is(err, ErrInvariantViolation) {
		return InvariantViolation
	}
	for sentinel, class := range errorClasses {
		if errors.Is(err, sentinel) {
			return class
		}
	}
	return OtherError
}

// RecordError attaches the index of the failed record in its batch
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %s: %v", e.Index, ClassOf(e.Err), e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// invariantf builds an ErrInvariantViolation with context
func invariantf(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, a...))
}
