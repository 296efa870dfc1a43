/*
 *  translate_test.go
 *  gax
 *
 *  Created by Haibao Tang on 03/14/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanghaibao/gax"
)

// oneNodeGraph has a single node AACGTAAA, so [2, 6) reads CGTA forward and
// TACG in reverse
func oneNodeGraph(t *testing.T) *gax.Graph {
	t.Helper()
	graph, err := gax.NewGraphBuilder().AddNode(1, "AACGTAAA").Build()
	require.NoError(t, err)
	return graph
}

func gafToGam(t *testing.T, line string, graph gax.GraphIndex, read *gax.Read) (*gax.Alignment, error) {
	t.Helper()
	rec, err := gax.ParseGafRecord(line)
	require.NoError(t, err)
	return gax.GafToGam(rec, graph, read)
}

func TestGafToGamInterval(t *testing.T) {
	graph := oneNodeGraph(t)
	aln, err := gafToGam(t, "r\t4\t0\t4\t+\t>1:2-6\t4\t0\t4\t4\t4\t60\tcg:Z:4M",
		graph, &gax.Read{Name: "r", Seq: "CGTA"})
	require.NoError(t, err)
	require.Len(t, aln.Path.Mappings, 1)
	m := aln.Path.Mappings[0]
	assert.Equal(t, gax.Position{NodeID: 1, Offset: 2}, m.Position)
	assert.Equal(t, []gax.Edit{{FromLength: 4, ToLength: 4}}, m.Edits)
	assert.Equal(t, "CGTA", aln.Sequence)
	assert.Equal(t, int32(60), aln.MappingQuality)
	assert.True(t, aln.ReadMapped)

	aln, err = gafToGam(t, "r\t4\t0\t4\t+\t<1:2-6\t4\t0\t4\t4\t4\t60\tcg:Z:4M",
		graph, &gax.Read{Name: "r", Seq: "TACG"})
	require.NoError(t, err)
	require.Len(t, aln.Path.Mappings, 1)
	assert.Equal(t, gax.Position{NodeID: 1, Offset: 2, IsReverse: true}, aln.Path.Mappings[0].Position)

	// without the read the query comes from the graph
	aln, err = gafToGam(t, "r\t4\t0\t4\t+\t>1:2-6\t4\t0\t4\t4\t4\t60\tcg:Z:4M", graph, nil)
	require.NoError(t, err)
	assert.Equal(t, "CGTA", aln.Sequence)

	_, err = gafToGam(t, "r\t4\t0\t4\t+\t>99\t4\t0\t4\t4\t4\t60\tcg:Z:4M", graph, nil)
	assert.ErrorIs(t, err, gax.ErrUnknownNode)
	assert.Equal(t, gax.SemanticError, gax.ClassOf(err))

	_, err = gafToGam(t, "r\t4\t0\t4\t+\t>1:2-9\t7\t0\t4\t4\t4\t60", graph, nil)
	assert.ErrorIs(t, err, gax.ErrCoordinateMismatch)
}

func TestGafToGamTinyGraph(t *testing.T) {
	graph := loadTinyGraph(t)
	reads, err := gax.LoadReads(filepath.Join("tests", "reads.fa"))
	require.NoError(t, err)
	lines := readLines(t, filepath.Join("tests", "tiny.gaf"))

	r2, err := gafToGam(t, lines[1], graph, reads.Get("r2"))
	require.NoError(t, err)
	assert.Equal(t, "AGGTTAC", r2.Sequence)
	assert.Equal(t, int64(7), r2.Path.Length)
	assert.Equal(t, []gax.Mapping{
		{
			Position: gax.Position{NodeID: 1, Offset: 4},
			Edits: []gax.Edit{
				{FromLength: 1, ToLength: 1},
				{FromLength: 1, ToLength: 1, Sequence: "G"},
				{FromLength: 2, ToLength: 2},
			},
		},
		{
			Position: gax.Position{NodeID: 3},
			Edits: []gax.Edit{
				{FromLength: 1, ToLength: 1},
				{FromLength: 2},
				{FromLength: 1, ToLength: 1},
			},
			Rank: 1,
		},
		{
			Position: gax.Position{NodeID: 4},
			Edits:    []gax.Edit{{FromLength: 1, ToLength: 1}},
			Rank:     2,
		},
	}, r2.Path.Mappings)

	// the same record without reads rebuilds the query from the graph
	rebuilt, err := gafToGam(t, lines[1], graph, nil)
	require.NoError(t, err)
	assert.Equal(t, r2.Path, rebuilt.Path)
	assert.Equal(t, "AGGTTAC", rebuilt.Sequence)

	r3, err := gafToGam(t, lines[2], graph, reads.Get("r3"))
	require.NoError(t, err)
	assert.Equal(t, "CGTGGCA", r3.Sequence)
	assert.Equal(t, []gax.Mapping{
		{Position: gax.Position{NodeID: 1, Offset: 5}, Edits: []gax.Edit{{FromLength: 3, ToLength: 3}}},
		{Position: gax.Position{NodeID: 2}, Edits: []gax.Edit{{FromLength: 4, ToLength: 4}}, Rank: 1},
	}, r3.Path.Mappings)

	r4, err := gafToGam(t, lines[3], graph, reads.Get("r4"))
	require.NoError(t, err)
	assert.Empty(t, r4.Path.Mappings)
	assert.False(t, r4.ReadMapped)
	assert.Equal(t, "ACGTA", r4.Sequence)
}

func TestGafGamGafRoundTrip(t *testing.T) {
	graph := loadTinyGraph(t)
	reads, err := gax.LoadReads(filepath.Join("tests", "reads.fa"))
	require.NoError(t, err)
	lines := readLines(t, filepath.Join("tests", "tiny.gaf"))
	want := []string{
		lines[0],
		lines[1],
		"r3\t7\t0\t7\t+\t>1>2\t12\t5\t12\t7\t7\t60\tcs:Z::7",
		lines[3],
	}
	for i, line := range lines {
		rec, err := gax.ParseGafRecord(line)
		require.NoError(t, err)
		aln, err := gax.GafToGam(rec, graph, reads.Get(rec.QueryName))
		require.NoError(t, err, line)

		// through the wire and back
		b, err := gax.MarshalAlignment(aln)
		require.NoError(t, err)
		aln, err = gax.UnmarshalAlignment(b)
		require.NoError(t, err)

		back, err := gax.GamToGaf(aln, graph)
		require.NoError(t, err)
		assert.Equal(t, want[i], back.String())
	}
}

func TestGafToGamSoftClips(t *testing.T) {
	graph := loadTinyGraph(t)
	read := &gax.Read{Name: "r5", Seq: "CCGTACGTGGCAAA", Qual: make([]byte, 14)}
	aln, err := gafToGam(t, "r5\t14\t2\t12\t+\t>1>2\t12\t2\t12\t10\t10\t60\tcs:Z::10", graph, read)
	require.NoError(t, err)
	assert.True(t, aln.SoftClipped)
	assert.Equal(t, read.Qual, aln.Quality)
	assert.Equal(t, []gax.Edit{{ToLength: 2, Sequence: "CC"}, {FromLength: 6, ToLength: 6}},
		aln.Path.Mappings[0].Edits)
	assert.Equal(t, []gax.Edit{{FromLength: 4, ToLength: 4}, {ToLength: 2, Sequence: "AA"}},
		aln.Path.Mappings[1].Edits)
	assert.Equal(t, int64(14), aln.Path.Length)

	// clipping needs the read bases
	_, err = gafToGam(t, "r5\t14\t2\t12\t+\t>1>2\t12\t2\t12\t10\t10\t60\tcs:Z::10", graph, nil)
	assert.ErrorIs(t, err, gax.ErrCoordinateMismatch)
}

func TestGafToGamErrors(t *testing.T) {
	graph := loadTinyGraph(t)

	// no link from 2 to 3
	_, err := gafToGam(t, "r\t8\t0\t8\t+\t>2>3\t8\t0\t8\t8\t8\t60", graph, nil)
	assert.ErrorIs(t, err, gax.ErrGraphPathDiscontinuity)

	// node 1 has C at offset 1
	_, err = gafToGam(t, "r\t8\t0\t8\t+\t>1\t8\t0\t8\t7\t8\t60\tcs:Z::1*tg:6", graph, nil)
	assert.ErrorIs(t, err, gax.ErrCoordinateMismatch)

	// inserted bases are unknown without the read
	_, err = gafToGam(t, "r\t5\t0\t5\t+\t>1\t8\t0\t4\t4\t5\t60\tcg:Z:2M1I2M", graph, nil)
	assert.ErrorIs(t, err, gax.ErrCoordinateMismatch)

	// with the read the insertion is taken from it
	aln, err := gafToGam(t, "r\t5\t0\t5\t+\t>1\t8\t0\t4\t4\t5\t60\tcg:Z:2M1I2M", graph,
		&gax.Read{Name: "r", Seq: "ACTGT"})
	require.NoError(t, err)
	assert.Equal(t, []gax.Edit{
		{FromLength: 2, ToLength: 2},
		{ToLength: 1, Sequence: "T"},
		{FromLength: 2, ToLength: 2},
	}, aln.Path.Mappings[0].Edits)

	// read length disagrees with column 2
	_, err = gafToGam(t, "r\t5\t0\t5\t+\t>1\t8\t0\t4\t4\t5\t60\tcg:Z:2M1I2M", graph,
		&gax.Read{Name: "r", Seq: "ACTGTA"})
	assert.ErrorIs(t, err, gax.ErrCoordinateMismatch)

	// operations stop short of the path end
	_, err = gafToGam(t, "r\t3\t0\t3\t+\t>1\t8\t0\t4\t3\t3\t60\tcg:Z:3M", graph, nil)
	assert.ErrorIs(t, err, gax.ErrCoordinateMismatch)

	// path length column disagrees with the graph
	_, err = gafToGam(t, "r\t4\t0\t4\t+\t>1\t9\t0\t4\t4\t4\t60", graph, nil)
	assert.ErrorIs(t, err, gax.ErrCoordinateMismatch)
}

func TestGafToGamTags(t *testing.T) {
	graph := loadTinyGraph(t)
	line := "r1\t4\t0\t4\t+\t>1\t8\t0\t4\t4\t4\t255\tAS:i:4\tdv:f:0.05\tbq:Z:!\"#$" +
		"\tfn:Z:r1/2\tpd:b:true\txs:i:3\tRG:Z:grp"
	aln, err := gafToGam(t, line, graph, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(4), aln.Score)
	assert.InDelta(t, 0.95, aln.Identity, 1e-9)
	assert.Equal(t, []byte{0, 1, 2, 3}, aln.Quality)
	require.NotNil(t, aln.FragmentNext)
	assert.Equal(t, "r1/2", aln.FragmentNext.Name)
	assert.Equal(t, int32(255), aln.MappingQuality)

	pd, ok := aln.Annotation["proper_pair"].Bool()
	require.True(t, ok)
	assert.True(t, pd)
	xs, ok := aln.Annotation["xs"].Int()
	require.True(t, ok)
	assert.Equal(t, int64(3), xs)

	b, err := gax.MarshalAlignment(aln)
	require.NoError(t, err)
	aln, err = gax.UnmarshalAlignment(b)
	require.NoError(t, err)
	back, err := gax.GamToGaf(aln, graph)
	require.NoError(t, err)

	for _, tc := range []struct {
		name, text string
		typ        byte
	}{
		{"cs", ":4", 'Z'},
		{"AS", "4", 'i'},
		{"dv", "0.05", 'f'},
		{"bq", "!\"#$", 'Z'},
		{"fn", "r1/2", 'Z'},
		{"pd", "true", 'b'},
		{"xs", "3", 'i'},
		{"RG", "grp", 'Z'},
	} {
		tag, ok := back.Tag(tc.name)
		require.True(t, ok, tc.name)
		assert.Equal(t, tc.typ, tag.Type, tc.name)
		assert.Equal(t, tc.text, tag.Value.Text(), tc.name)
	}
}

func TestGamToGaf(t *testing.T) {
	graph := loadTinyGraph(t)

	rec, err := gax.GamToGaf(sampleAlignment(), graph)
	require.NoError(t, err)
	assert.Equal(t, ">1>3>4", gax.FormatGafPath(rec.Path))
	assert.Equal(t, int64(7), rec.QueryLength)
	assert.Equal(t, int64(4), rec.PathStart)
	assert.Equal(t, int64(13), rec.PathEnd)
	assert.Equal(t, int64(6), rec.Matches)
	assert.Equal(t, int64(9), rec.BlockLength)

	// leaving node 1 at offset 5 is not a walk through the graph
	aln := &gax.Alignment{
		Name:     "q",
		Sequence: "GTAGG",
		Path: gax.Path{Mappings: []gax.Mapping{
			{Position: gax.Position{NodeID: 1, Offset: 2}, Edits: []gax.Edit{{FromLength: 3, ToLength: 3}}},
			{Position: gax.Position{NodeID: 2}, Edits: []gax.Edit{{FromLength: 2, ToLength: 2}}},
		}},
	}
	_, err = gax.GamToGaf(aln, graph)
	assert.ErrorIs(t, err, gax.ErrGraphPathDiscontinuity)

	aln.Path.Mappings[1].Position.NodeID = 99
	_, err = gax.GamToGaf(aln, graph)
	assert.ErrorIs(t, err, gax.ErrUnknownNode)

	// same node, continued by a second mapping
	aln.Path.Mappings[1] = gax.Mapping{
		Position: gax.Position{NodeID: 1, Offset: 5},
		Edits:    []gax.Edit{{FromLength: 3, ToLength: 2, Sequence: "GG"}},
	}
	_, err = gax.GamToGaf(aln, graph)
	assert.ErrorIs(t, err, gax.ErrInvalidEdit)

	aln.Path.Mappings[1].Edits = []gax.Edit{{FromLength: 2, ToLength: 2, Sequence: "GG"}}
	rec, err = gax.GamToGaf(aln, graph)
	require.NoError(t, err)
	assert.Equal(t, "q\t5\t0\t5\t+\t>1\t8\t2\t7\t3\t5\t0\tcs:Z::3*cg*gg", rec.String())
}

func TestReverseMappings(t *testing.T) {
	graph := loadTinyGraph(t)
	mappings := sampleAlignment().Path.Mappings
	flipped, err := gax.ReverseMappings(mappings, graph)
	require.NoError(t, err)
	require.Len(t, flipped, 3)
	assert.Equal(t, gax.Position{NodeID: 4, Offset: 2, IsReverse: true}, flipped[0].Position)
	assert.Equal(t, gax.Position{NodeID: 1, Offset: 0, IsReverse: true}, flipped[2].Position)
	assert.Equal(t, "C", flipped[2].Edits[1].Sequence)

	twice, err := gax.ReverseMappings(flipped, graph)
	require.NoError(t, err)
	for i := range mappings {
		mappings[i].Rank = 0
	}
	assert.Equal(t, mappings, twice)
}

// mergedEdits joins the edits of every mapping, empty lists expanded on the
// graph, and merges neighbours
func mergedEdits(t *testing.T, aln *gax.Alignment, graph gax.GraphIndex) []gax.Edit {
	t.Helper()
	var edits []gax.Edit
	for i := range aln.Path.Mappings {
		m := &aln.Path.Mappings[i]
		node, err := graph.Node(m.Position.NodeID)
		require.NoError(t, err)
		edits = append(edits, m.EditsOn(node)...)
	}
	return gax.MergeEdits(edits)
}

func TestGamGafGamRoundTrip(t *testing.T) {
	graph := loadTinyGraph(t)
	fwd := func(id, off int64, edits ...gax.Edit) gax.Mapping {
		return gax.Mapping{Position: gax.Position{NodeID: id, Offset: off}, Edits: edits}
	}
	rev := func(id, off int64, edits ...gax.Edit) gax.Mapping {
		m := fwd(id, off, edits...)
		m.Position.IsReverse = true
		return m
	}
	match := func(n int) gax.Edit { return gax.Edit{FromLength: n, ToLength: n} }
	sub := func(alt string) gax.Edit { return gax.Edit{FromLength: len(alt), ToLength: len(alt), Sequence: alt} }
	ins := func(seq string) gax.Edit { return gax.Edit{ToLength: len(seq), Sequence: seq} }
	del := func(n int) gax.Edit { return gax.Edit{FromLength: n} }

	for _, tc := range []struct {
		name     string
		sequence string
		mappings []gax.Mapping
	}{
		{"substitutions", "ACTTACGTGACA", []gax.Mapping{
			fwd(1, 0, match(2), sub("T"), match(5)),
			fwd(2, 0, match(1), sub("A"), match(2)),
		}},
		{"insertion ending a node", "ACGTTTTTAA", []gax.Mapping{
			fwd(1, 4, match(4), ins("TT")),
			fwd(3, 0, match(4)),
		}},
		{"insertion starting a node", "ACGTTTTTAA", []gax.Mapping{
			fwd(1, 4, match(4)),
			fwd(3, 0, ins("TT"), match(4)),
		}},
		{"deletion across nodes", "ACTAA", []gax.Mapping{
			fwd(1, 4, match(2), del(2)),
			fwd(3, 0, del(1), match(3)),
		}},
		{"reverse strand", "TGCCAAG", []gax.Mapping{
			rev(2, 0, match(4)),
			rev(1, 0, match(1), sub("A"), match(1)),
		}},
		{"soft clips", "CCGTACGTGGCAAA", []gax.Mapping{
			fwd(1, 2, ins("CC"), match(6)),
			fwd(2, 0, match(4), ins("AA")),
		}},
		{"insertion only", "TTT", []gax.Mapping{
			fwd(1, 3, ins("TTT")),
		}},
		{"implied matches", "ACGTACGTGGCA", []gax.Mapping{
			fwd(1, 0),
			fwd(2, 0),
		}},
		{"mixed", "AGGTTAC", sampleAlignment().Path.Mappings},
	} {
		t.Run(tc.name, func(t *testing.T) {
			aln := &gax.Alignment{Name: "q", Sequence: tc.sequence, Path: gax.Path{Mappings: tc.mappings}}
			rec, err := gax.GamToGaf(aln, graph)
			require.NoError(t, err)
			parsed, err := gax.ParseGafRecord(rec.String())
			require.NoError(t, err)
			back, err := gax.GafToGam(parsed, graph, nil)
			require.NoError(t, err, rec.String())

			assert.Equal(t, aln.Sequence, back.Sequence)
			assert.Equal(t, int64(len(aln.Sequence)), back.Path.Length)
			again, err := gax.GamToGaf(back, graph)
			require.NoError(t, err)
			assert.Equal(t, rec.Matches, again.Matches)
			assert.Equal(t, mergedEdits(t, aln, graph), mergedEdits(t, back, graph))
		})
	}
}

func TestGamToGafInsertionOnly(t *testing.T) {
	graph := loadTinyGraph(t)
	aln := &gax.Alignment{
		Name:     "q",
		Sequence: "TTT",
		Path: gax.Path{Mappings: []gax.Mapping{{
			Position: gax.Position{NodeID: 1, Offset: 3},
			Edits:    []gax.Edit{{ToLength: 3, Sequence: "TTT"}},
		}}},
	}
	rec, err := gax.GamToGaf(aln, graph)
	require.NoError(t, err)
	assert.Equal(t, "q\t3\t0\t3\t+\t>1\t8\t3\t3\t0\t3\t0\tcs:Z:+ttt", rec.String())

	back, err := gax.GafToGam(rec, graph, nil)
	require.NoError(t, err)
	assert.Equal(t, aln.Path.Mappings, back.Path.Mappings)
	assert.Equal(t, int64(3), back.Path.Length)

	// nothing to align without a difference string
	_, err = gafToGam(t, "q\t3\t0\t3\t+\t>1\t8\t3\t3\t0\t3\t0", graph, nil)
	assert.ErrorIs(t, err, gax.ErrCoordinateMismatch)
}

func TestReverseMappingsImpliedMatch(t *testing.T) {
	graph := loadTinyGraph(t)
	flipped, err := gax.ReverseMappings([]gax.Mapping{
		{Position: gax.Position{NodeID: 1, Offset: 5}},
		{Position: gax.Position{NodeID: 2}},
	}, graph)
	require.NoError(t, err)
	assert.Equal(t, []gax.Mapping{
		{
			Position: gax.Position{NodeID: 2, IsReverse: true},
			Edits:    []gax.Edit{{FromLength: 4, ToLength: 4}},
		},
		{
			Position: gax.Position{NodeID: 1, IsReverse: true},
			Edits:    []gax.Edit{{FromLength: 3, ToLength: 3}},
		},
	}, flipped)
}

func TestPairSupportTag(t *testing.T) {
	graph := loadTinyGraph(t)
	aln, err := gafToGam(t, "r1\t4\t0\t4\t+\t>1\t8\t0\t4\t4\t4\t60\tpd:b:false\tAD:i:7", graph, nil)
	require.NoError(t, err)
	support, ok := aln.Annotation["support"].Str()
	require.True(t, ok)
	assert.Equal(t, "7", support)

	rec, err := gax.GamToGaf(aln, graph)
	require.NoError(t, err)
	assert.Equal(t, "r1\t4\t0\t4\t+\t>1\t8\t0\t4\t4\t4\t60\tcs:Z::4\tpd:b:false\tAD:i:7", rec.String())

	// support alone is not a pair
	delete(aln.Annotation, "proper_pair")
	rec, err = gax.GamToGaf(aln, graph)
	require.NoError(t, err)
	_, ok = rec.Tag("AD")
	assert.False(t, ok)
}
