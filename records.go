/*
 *  records.go
 *  gax
 *
 *  Created by Haibao Tang on 03/05/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

// Position is a graph-relative anchor. Offset counts from the 5' end of the node
// in the orientation it is traversed.
type Position struct {
	NodeID    int64
	Offset    int64
	IsReverse bool
	Name      string
}

// Handle returns the oriented node this position sits on
func (p Position) Handle() Handle {
	return Handle{ID: p.NodeID, IsReverse: p.IsReverse}
}

// Edit describes how to generate a new string from elements in the graph.
// FromLength is consumed on the node, ToLength on the read.
//
// matches:       FromLength == ToLength, Sequence empty
// substitutions: FromLength == ToLength, Sequence = alt
// deletions:     ToLength == 0, FromLength > 0, Sequence empty
// insertions:    FromLength == 0, ToLength > 0, Sequence = inserted bases
type Edit struct {
	FromLength int
	ToLength   int
	Sequence   string
}

// Mapping places part of a read on one node. An empty edit list implies a
// complete match over the rest of the node.
type Mapping struct {
	Position Position
	Edits    []Edit
	Rank     int64
}

// Path is a walk through nodes, Length counts the read bases consumed
type Path struct {
	Name       string
	Mappings   []Mapping
	IsCircular bool
	Length     int64
}

// FragmentRef is a non-owning link to the mate of a read. Index refers to the
// batch the alignment was read with and is -1 when unresolved.
type FragmentRef struct {
	Name  string
	Index int
}

// Alignment links a query string, such as a read, to a Path
type Alignment struct {
	Sequence       string
	Path           Path
	Name           string
	Quality        []byte
	MappingQuality int32
	Score          int32
	QueryPosition  int32
	SampleName     string
	ReadGroup      string
	FragmentPrev   *FragmentRef
	FragmentNext   *FragmentRef
	IsSecondary    bool
	Identity       float64
	RefPos         []Position
	SecondaryScore []int32

	// SAMtools-style flags
	ReadPaired          bool
	ReadMapped          bool
	MateUnmapped        bool
	ReadOnReverseStrand bool
	MateOnReverseStrand bool
	SoftClipped         bool
	DiscordantInsert    bool

	Annotation Annotation

	// protobuf fields we do not model, kept verbatim
	unknown []byte
}

// MultipathAlignment is a DAG of subpaths, each aligning part of the read.
// Subpaths are stored in topological order.
type MultipathAlignment struct {
	Sequence       string
	Quality        []byte
	Name           string
	SampleName     string
	ReadGroup      string
	Subpaths       []Subpath
	MappingQuality int32
	Start          []int
	PairedReadName string
	Annotation     Annotation

	unknown []byte
}

// Subpath is a non-branching piece of a MultipathAlignment. Next holds indices of
// graph-contiguous successors, Connections the non-contiguous ones.
type Subpath struct {
	Path        Path
	Next        []int
	Score       int32
	Connections []Connection
}

// Connection is an edge between subpaths that need not be contiguous in the graph
type Connection struct {
	Next  int
	Score int32
}

// EditsOn returns the edits of the mapping on node. An empty list becomes a
// match over the rest of the node.
func (m *Mapping) EditsOn(node *Node) []Edit {
	if len(m.Edits) == 0 {
		if rest := node.Len() - int(m.Position.Offset); rest > 0 {
			return []Edit{{FromLength: rest, ToLength: rest}}
		}
	}
	return m.Edits
}

// ToLength sums the read bases consumed by the edits as stored, see EditsOn
// for mappings without edits
func (m *Mapping) ToLength() int {
	total := 0
	for _, e := range m.Edits {
		total += e.ToLength
	}
	return total
}

// FromLength sums the node bases consumed by the edits as stored
func (m *Mapping) FromLength() int {
	total := 0
	for _, e := range m.Edits {
		total += e.FromLength
	}
	return total
}

// ToLength sums the read bases consumed along the path
func (p *Path) ToLength() int {
	total := 0
	for i := range p.Mappings {
		total += p.Mappings[i].ToLength()
	}
	return total
}

// ConsumedOn sums the read bases consumed along the path, expanding mappings
// without edits on the graph
func (p *Path) ConsumedOn(graph GraphIndex) (int, error) {
	total := 0
	for i := range p.Mappings {
		m := &p.Mappings[i]
		node, err := graph.Node(m.Position.NodeID)
		if err != nil {
			return 0, err
		}
		for _, e := range m.EditsOn(node) {
			total += e.ToLength
		}
	}
	return total, nil
}

// ResolveMates fills the Index of every fragment reference by matching names
// within the batch. References to reads outside the batch stay at -1.
func ResolveMates(alignments []Alignment) {
	byName := make(map[string]int, len(alignments))
	for i := range alignments {
		if alignments[i].Name != "" {
			byName[alignments[i].Name] = i
		}
	}
	for i := range alignments {
		for _, ref := range []*FragmentRef{alignments[i].FragmentPrev, alignments[i].FragmentNext} {
			if ref == nil {
				continue
			}
			ref.Index = -1
			if j, ok := byName[ref.Name]; ok {
				ref.Index = j
			}
		}
	}
}
