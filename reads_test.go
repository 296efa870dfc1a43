/*
 *  reads_test.go
 *  gax
 *
 *  Created by Haibao Tang on 03/13/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanghaibao/gax"
)

func TestLoadReadsFasta(t *testing.T) {
	reads, err := gax.LoadReads(filepath.Join("tests", "reads.fa"))
	require.NoError(t, err)
	assert.Len(t, reads, 4)
	r3 := reads.Get("r3")
	require.NotNil(t, r3)
	assert.Equal(t, "CGTGGCA", r3.Seq)
	assert.Empty(t, r3.Qual)
	assert.Nil(t, reads.Get("r9"))

	var none gax.ReadSet
	assert.Nil(t, none.Get("r1"))
}

func TestLoadReadsFastq(t *testing.T) {
	fastq := filepath.Join(t.TempDir(), "reads.fq")
	require.NoError(t, os.WriteFile(fastq, []byte("@q1 extra\nacgt\n+\n!+5I\n"), 0644))
	reads, err := gax.LoadReads(fastq)
	require.NoError(t, err)
	q1 := reads.Get("q1")
	require.NotNil(t, q1)
	assert.Equal(t, "ACGT", q1.Seq)
	assert.Equal(t, []byte{0, 10, 20, 40}, q1.Qual)

	_, err = gax.LoadReads(filepath.Join(t.TempDir(), "missing.fq"))
	assert.Error(t, err)
}
