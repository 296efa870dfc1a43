/*
 *  multipath.go
 *  gax
 *
 *  Created by Haibao Tang on 03/15/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"fmt"
	"math"
)

// ScoreRegionsKey is the annotation holding alternative-score regions, a list
// of {end, score} structs where end is an exclusive mapping index
const ScoreRegionsKey = "score_regions"

// scoreRegion scores the mappings up to end
type scoreRegion struct {
	end   int
	score int32
}

// scoreRegions reads and checks the regions of an alignment, ok is false when
// there are none
func scoreRegions(aln *Alignment) ([]scoreRegion, bool, error) {
	v, ok := aln.Annotation[ScoreRegionsKey]
	if !ok {
		return nil, false, nil
	}
	items, ok := v.List()
	if !ok || len(items) == 0 {
		return nil, true, fmt.Errorf("%w: want a non-empty list", ErrInvalidScoreRegions)
	}
	n := len(aln.Path.Mappings)
	regions := make([]scoreRegion, 0, len(items))
	prev := 0
	for i, item := range items {
		fields, ok := item.Struct()
		if !ok {
			return nil, true, fmt.Errorf("%w: region %d is not a struct", ErrInvalidScoreRegions, i)
		}
		end, ok1 := fields["end"].Int()
		score, ok2 := fields["score"].Int()
		if !ok1 || !ok2 {
			return nil, true, fmt.Errorf("%w: region %d needs integer end and score", ErrInvalidScoreRegions, i)
		}
		if end <= int64(prev) || end > int64(n) {
			return nil, true, fmt.Errorf("%w: region %d ends at %d after %d of %d mappings",
				ErrInvalidScoreRegions, i, end, prev, n)
		}
		if score < math.MinInt32 || score > math.MaxInt32 {
			return nil, true, fmt.Errorf("%w: region %d score %d", ErrEncodingOverflow, i, score)
		}
		regions = append(regions, scoreRegion{end: int(end), score: int32(score)})
		prev = int(end)
	}
	if prev != n {
		return nil, true, fmt.Errorf("%w: regions end at %d of %d mappings", ErrInvalidScoreRegions, prev, n)
	}
	return regions, true, nil
}

// mappingSpan is the node interval a mapping reads
func mappingSpan(m *Mapping, graph GraphIndex) (segment, error) {
	node, err := graph.Node(m.Position.NodeID)
	if err != nil {
		return segment{}, err
	}
	off := int(m.Position.Offset)
	from := 0
	for _, e := range m.EditsOn(node) {
		from += e.FromLength
	}
	return newSegment(node, m.Position.IsReverse, off, off+from), nil
}

// BuildMultipath converts an Alignment into a MultipathAlignment. Without score
// regions the whole path becomes the only subpath. With them the path is cut
// at the region ends into a chain of subpaths; neighbours contiguous in the
// graph are linked by next, the others by a connection.
func BuildMultipath(aln *Alignment, graph GraphIndex) (*MultipathAlignment, error) {
	mp := &MultipathAlignment{
		Sequence:       aln.Sequence,
		Quality:        aln.Quality,
		Name:           aln.Name,
		SampleName:     aln.SampleName,
		ReadGroup:      aln.ReadGroup,
		MappingQuality: aln.MappingQuality,
		Start:          []int{0},
	}
	if len(aln.Annotation) > 0 {
		mp.Annotation = aln.Annotation.Clone()
	}
	switch {
	case aln.FragmentNext != nil:
		mp.PairedReadName = aln.FragmentNext.Name
	case aln.FragmentPrev != nil:
		mp.PairedReadName = aln.FragmentPrev.Name
	}

	regions, ok, err := scoreRegions(aln)
	if err != nil {
		return nil, err
	}
	if !ok {
		mp.Subpaths = []Subpath{{Path: clonePath(aln.Path, 0, len(aln.Path.Mappings)), Score: aln.Score}}
	} else {
		start := 0
		for _, r := range regions {
			mp.Subpaths = append(mp.Subpaths, Subpath{
				Path:  clonePath(aln.Path, start, r.end),
				Score: r.score,
			})
			start = r.end
		}
		for i := 0; i+1 < len(mp.Subpaths); i++ {
			a := &mp.Subpaths[i].Path.Mappings[len(mp.Subpaths[i].Path.Mappings)-1]
			b := &mp.Subpaths[i+1].Path.Mappings[0]
			sa, err := mappingSpan(a, graph)
			if err != nil {
				return nil, err
			}
			sb, err := mappingSpan(b, graph)
			if err != nil {
				return nil, err
			}
			if checkAdjacent(sa, sb, graph) == nil {
				mp.Subpaths[i].Next = append(mp.Subpaths[i].Next, i+1)
			} else {
				mp.Subpaths[i].Connections = append(mp.Subpaths[i].Connections, Connection{Next: i + 1})
			}
		}
	}

	for i := range mp.Subpaths {
		p := &mp.Subpaths[i].Path
		n, err := p.ConsumedOn(graph)
		if err != nil {
			return nil, err
		}
		p.Length = int64(n)
	}

	if err := ValidateTopology(mp); err != nil {
		return nil, invariantf("built multipath for `%s`: %v", aln.Name, err)
	}
	return mp, nil
}

// clonePath copies mappings [lo, hi) into a path of their own
func clonePath(p Path, lo, hi int) Path {
	sub := Path{Name: p.Name, IsCircular: p.IsCircular && lo == 0 && hi == len(p.Mappings)}
	for _, m := range p.Mappings[lo:hi] {
		m.Edits = append([]Edit(nil), m.Edits...)
		sub.Mappings = append(sub.Mappings, m)
	}
	return sub
}

// LinearizeMultipath walks the first source along next and connection edges,
// taking the first successor each time, and joins the subpaths into one
// Alignment. The path length adds up the subpath lengths.
func LinearizeMultipath(mp *MultipathAlignment) (*Alignment, error) {
	if err := ValidateTopology(mp); err != nil {
		return nil, err
	}
	aln := &Alignment{
		Sequence:       mp.Sequence,
		Quality:        mp.Quality,
		Name:           mp.Name,
		SampleName:     mp.SampleName,
		ReadGroup:      mp.ReadGroup,
		MappingQuality: mp.MappingQuality,
	}
	if len(mp.Annotation) > 0 {
		aln.Annotation = mp.Annotation.Clone()
		delete(aln.Annotation, ScoreRegionsKey)
	}
	if mp.PairedReadName != "" {
		aln.FragmentNext = &FragmentRef{Name: mp.PairedReadName, Index: -1}
	}
	if len(mp.Subpaths) == 0 {
		return aln, nil
	}
	i := 0
	if len(mp.Start) > 0 {
		i = mp.Start[0]
	}
	for {
		sp := &mp.Subpaths[i]
		aln.Path.Mappings = append(aln.Path.Mappings, clonePath(sp.Path, 0, len(sp.Path.Mappings)).Mappings...)
		aln.Score += sp.Score
		aln.Path.Length += sp.Path.Length
		switch {
		case len(sp.Next) > 0:
			i = sp.Next[0]
		case len(sp.Connections) > 0:
			aln.Score += sp.Connections[0].Score
			i = sp.Connections[0].Next
		default:
			for j := range aln.Path.Mappings {
				aln.Path.Mappings[j].Rank = int64(j)
			}
			aln.ReadMapped = len(aln.Path.Mappings) > 0
			return aln, nil
		}
	}
}
