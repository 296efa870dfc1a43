/*
 *  edit.go
 *  gax
 *
 *  Created by Haibao Tang on 03/06/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import "fmt"

// EditClass is the variant of an edit, derived from its lengths
type EditClass int

// The four edit variants
const (
	Match EditClass = iota
	Substitution
	Insertion
	Deletion
)

func (c EditClass) String() string {
	return [...]string{"match", "substitution", "insertion", "deletion"}[c]
}

// IsMatch reports whether the edit copies node bases unchanged
func (e Edit) IsMatch() bool {
	return e.FromLength == e.ToLength && e.Sequence == ""
}

// IsSubstitution reports whether the edit replaces node bases one for one
func (e Edit) IsSubstitution() bool {
	return e.FromLength == e.ToLength && e.ToLength > 0 && len(e.Sequence) == e.ToLength
}

// IsInsertion reports whether the edit adds read bases
func (e Edit) IsInsertion() bool {
	return e.FromLength == 0 && e.ToLength > 0 && len(e.Sequence) == e.ToLength
}

// IsDeletion reports whether the edit skips node bases
func (e Edit) IsDeletion() bool {
	return e.FromLength > 0 && e.ToLength == 0 && e.Sequence == ""
}

// IsEmpty reports whether the edit consumes nothing
func (e Edit) IsEmpty() bool {
	return e.FromLength == 0 && e.ToLength == 0 && e.Sequence == ""
}

// Classify finds the variant of the edit
func Classify(e Edit) (EditClass, error) {
	switch {
	case e.FromLength < 0 || e.ToLength < 0:
	case e.IsMatch():
		return Match, nil
	case e.IsSubstitution():
		return Substitution, nil
	case e.IsInsertion():
		return Insertion, nil
	case e.IsDeletion():
		return Deletion, nil
	}
	return Match, fmt.Errorf("%w: from=%d to=%d sequence=%q",
		ErrInvalidEdit, e.FromLength, e.ToLength, e.Sequence)
}

// SplitAt cuts an edit so that the left part consumes k node bases and the right
// part the rest. Insertions consume no node bases and can never be split.
func SplitAt(e Edit, k int) (Edit, Edit, error) {
	class, err := Classify(e)
	if err != nil {
		return Edit{}, Edit{}, err
	}
	if k <= 0 || k >= e.FromLength {
		return Edit{}, Edit{}, fmt.Errorf("%w: offset %d in %s of length %d",
			ErrUnsplittableEdit, k, class, e.FromLength)
	}
	switch class {
	case Substitution:
		return Edit{k, k, e.Sequence[:k]},
			Edit{e.FromLength - k, e.ToLength - k, e.Sequence[k:]}, nil
	case Deletion:
		return Edit{k, 0, ""}, Edit{e.FromLength - k, 0, ""}, nil
	}
	return Edit{k, k, ""}, Edit{e.FromLength - k, e.ToLength - k, ""}, nil
}

// ReverseEdits flips a list of edits to the other strand: the order is reversed
// and every sequence is reverse complemented.
func ReverseEdits(edits []Edit) []Edit {
	reversed := make([]Edit, len(edits))
	for i, e := range edits {
		if e.Sequence != "" {
			e.Sequence = ReverseComplement(e.Sequence)
		}
		reversed[len(edits)-1-i] = e
	}
	return reversed
}

// MergeEdits joins neighbouring edits of the same variant. Two lists describing
// the same (from, to, sequence) stream merge to the same result.
func MergeEdits(edits []Edit) []Edit {
	merged := make([]Edit, 0, len(edits))
	for _, e := range edits {
		if e.IsEmpty() {
			continue
		}
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			lc, _ := Classify(*last)
			ec, _ := Classify(e)
			if lc == ec {
				last.FromLength += e.FromLength
				last.ToLength += e.ToLength
				last.Sequence += e.Sequence
				continue
			}
		}
		merged = append(merged, e)
	}
	return merged
}
