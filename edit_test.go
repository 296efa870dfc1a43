/*
 *  edit_test.go
 *  gax
 *
 *  Created by Haibao Tang on 03/06/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanghaibao/gax"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		edit  gax.Edit
		class gax.EditClass
	}{
		{gax.Edit{FromLength: 4, ToLength: 4}, gax.Match},
		{gax.Edit{FromLength: 2, ToLength: 2, Sequence: "AC"}, gax.Substitution},
		{gax.Edit{FromLength: 0, ToLength: 3, Sequence: "TTT"}, gax.Insertion},
		{gax.Edit{FromLength: 5, ToLength: 0}, gax.Deletion},
	}
	for _, tt := range tests {
		class, err := gax.Classify(tt.edit)
		require.NoError(t, err)
		assert.Equal(t, tt.class, class, "%+v", tt.edit)
	}

	invalid := []gax.Edit{
		{FromLength: 2, ToLength: 3},
		{FromLength: 2, ToLength: 2, Sequence: "A"},
		{FromLength: 0, ToLength: 2, Sequence: ""},
		{FromLength: 3, ToLength: 0, Sequence: "AAA"},
		{FromLength: -1, ToLength: -1},
	}
	for _, e := range invalid {
		_, err := gax.Classify(e)
		assert.ErrorIs(t, err, gax.ErrInvalidEdit, "%+v", e)
	}
}

func TestSplitAtReconstructs(t *testing.T) {
	edits := []gax.Edit{
		{FromLength: 5, ToLength: 5},
		{FromLength: 4, ToLength: 4, Sequence: "ACGT"},
		{FromLength: 6, ToLength: 0},
	}
	for _, e := range edits {
		for k := 1; k < e.FromLength; k++ {
			left, right, err := gax.SplitAt(e, k)
			require.NoError(t, err)
			assert.Equal(t, k, left.FromLength)
			assert.Equal(t, e.FromLength, left.FromLength+right.FromLength)
			assert.Equal(t, e.ToLength, left.ToLength+right.ToLength)
			assert.Equal(t, e.Sequence, left.Sequence+right.Sequence)
			assert.Equal(t, []gax.Edit{e}, gax.MergeEdits([]gax.Edit{left, right}))
		}
	}
}

func TestSplitAtRefuses(t *testing.T) {
	match := gax.Edit{FromLength: 4, ToLength: 4}
	for _, k := range []int{0, 4, -1, 9} {
		_, _, err := gax.SplitAt(match, k)
		assert.ErrorIs(t, err, gax.ErrUnsplittableEdit, "k=%d", k)
	}
	_, _, err := gax.SplitAt(gax.Edit{ToLength: 2, Sequence: "AA"}, 1)
	assert.ErrorIs(t, err, gax.ErrUnsplittableEdit)
	_, _, err = gax.SplitAt(gax.Edit{FromLength: 2, ToLength: 1}, 1)
	assert.ErrorIs(t, err, gax.ErrInvalidEdit)
}

func TestReverseEdits(t *testing.T) {
	edits := []gax.Edit{
		{FromLength: 3, ToLength: 3},
		{FromLength: 2, ToLength: 2, Sequence: "AC"},
		{FromLength: 0, ToLength: 3, Sequence: "GGT"},
		{FromLength: 1, ToLength: 0},
	}
	reversed := gax.ReverseEdits(edits)
	assert.Equal(t, []gax.Edit{
		{FromLength: 1, ToLength: 0},
		{FromLength: 0, ToLength: 3, Sequence: "ACC"},
		{FromLength: 2, ToLength: 2, Sequence: "GT"},
		{FromLength: 3, ToLength: 3},
	}, reversed)
	assert.Equal(t, edits, gax.ReverseEdits(reversed))
}

func TestMergeEdits(t *testing.T) {
	merged := gax.MergeEdits([]gax.Edit{
		{FromLength: 2, ToLength: 2},
		{},
		{FromLength: 3, ToLength: 3},
		{FromLength: 1, ToLength: 1, Sequence: "A"},
		{FromLength: 1, ToLength: 1, Sequence: "C"},
		{FromLength: 0, ToLength: 1, Sequence: "T"},
	})
	assert.Equal(t, []gax.Edit{
		{FromLength: 5, ToLength: 5},
		{FromLength: 2, ToLength: 2, Sequence: "AC"},
		{FromLength: 0, ToLength: 1, Sequence: "T"},
	}, merged)
}

func TestEditPredicates(t *testing.T) {
	assert.True(t, gax.Edit{}.IsEmpty())
	assert.True(t, gax.Edit{FromLength: 1, ToLength: 1}.IsMatch())
	assert.False(t, gax.Edit{FromLength: 1, ToLength: 1}.IsSubstitution())
	assert.True(t, gax.Edit{FromLength: 1, ToLength: 1, Sequence: "G"}.IsSubstitution())
	assert.True(t, gax.Edit{ToLength: 1, Sequence: "G"}.IsInsertion())
	assert.True(t, gax.Edit{FromLength: 1}.IsDeletion())
	assert.Equal(t, "substitution", gax.Substitution.String())
}
