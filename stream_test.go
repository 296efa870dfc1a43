/*
 *  stream_test.go
 *  gax
 *
 *  Created by Haibao Tang on 03/12/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax_test

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanghaibao/gax"
)

func TestStreamGroups(t *testing.T) {
	var buf bytes.Buffer
	w := gax.NewGamWriter(&buf)
	const total = 2500
	for i := 0; i < total; i++ {
		require.NoError(t, w.WriteAlignment(&gax.Alignment{
			Name:     fmt.Sprintf("read%d", i),
			Sequence: "ACGT",
		}))
	}
	require.NoError(t, w.Close())

	r, err := gax.NewGamReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer r.Close()
	for i := 0; i < total; i++ {
		aln, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("read%d", i), aln.Name)
	}
	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestStreamEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gax.NewGampWriter(&buf).Close())
	assert.NotZero(t, buf.Len())

	r, err := gax.NewGampReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestStreamWrongTypeTag(t *testing.T) {
	var buf bytes.Buffer
	w := gax.NewGampWriter(&buf)
	require.NoError(t, w.WriteMultipath(sampleMultipath()))
	require.NoError(t, w.Close())

	r, err := gax.NewGamReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	_, err = r.Read()
	assert.ErrorIs(t, err, gax.ErrBadTypeTag)
	assert.Equal(t, gax.FormatError, gax.ClassOf(err))

	gamp, err := gax.NewGampReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	mp, err := gamp.Read()
	require.NoError(t, err)
	assert.Equal(t, sampleMultipath(), mp)
}

func TestStreamTruncated(t *testing.T) {
	_, err := gax.NewGamReader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, gax.ErrTruncatedRecord)

	// a group that promises two alignments but carries one
	var raw bytes.Buffer
	gz := pgzip.NewWriter(&raw)
	_, err = gz.Write([]byte{0x03, 0x03, 'G', 'A', 'M', 0x04, 0x1a, 0x02, 'r', '1'})
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	r, err := gax.NewStreamReader(bytes.NewReader(raw.Bytes()), gax.GAMTypeTag)
	require.NoError(t, err)
	msg, err := r.Next()
	require.NoError(t, err)
	aln, err := gax.UnmarshalAlignment(msg)
	require.NoError(t, err)
	assert.Equal(t, "r1", aln.Name)
	_, err = r.Next()
	assert.ErrorIs(t, err, gax.ErrTruncatedRecord)
}

func TestStreamLegacyUntagged(t *testing.T) {
	var raw bytes.Buffer
	gz := pgzip.NewWriter(&raw)
	_, err := gz.Write([]byte{0x02, 0x04, 0x1a, 0x02, 'r', '1', 0x04, 0x1a, 0x02, 'r', '2'})
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	r, err := gax.NewGamReader(bytes.NewReader(raw.Bytes()))
	require.NoError(t, err)
	for _, name := range []string{"r1", "r2"} {
		aln, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, name, aln.Name)
	}
	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestReadAlignments(t *testing.T) {
	gamfile := filepath.Join(t.TempDir(), "mates.gam")
	fh, err := os.Create(gamfile)
	require.NoError(t, err)
	w := gax.NewGamWriter(fh)
	require.NoError(t, w.WriteAlignment(&gax.Alignment{Name: "a/1", FragmentNext: &gax.FragmentRef{Name: "a/2"}}))
	require.NoError(t, w.WriteAlignment(&gax.Alignment{Name: "a/2", FragmentPrev: &gax.FragmentRef{Name: "a/1"}}))
	require.NoError(t, w.Close())
	require.NoError(t, fh.Close())

	alignments, err := gax.ReadAlignments(gamfile)
	require.NoError(t, err)
	require.Len(t, alignments, 2)
	assert.Equal(t, 1, alignments[0].FragmentNext.Index)
	assert.Equal(t, 0, alignments[1].FragmentPrev.Index)

	_, err = gax.ReadAlignments(filepath.Join(t.TempDir(), "missing.gam"))
	assert.Error(t, err)
}
