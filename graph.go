/*
 * Filename: /Users/bao/code/gax/graph.go
 * Path: /Users/bao/code/gax
 * Created Date: Friday, March 6th 2020, 11:37:27 pm
 * Author: bao
 *
 * Copyright (c) 2020 Haibao Tang
 */

package gax

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/xopen"
)

// Node is a segment of the variation graph
type Node struct {
	ID       int64
	Name     string
	Sequence string
}

// Len is the number of bases on the node
func (n *Node) Len() int {
	return len(n.Sequence)
}

// Oriented returns the node sequence as read in the given orientation
func (n *Node) Oriented(isReverse bool) string {
	if isReverse {
		return ReverseComplement(n.Sequence)
	}
	return n.Sequence
}

// Handle is a node traversed in one orientation
type Handle struct {
	ID        int64
	IsReverse bool
}

// Flip returns the same node in the opposite orientation
func (h Handle) Flip() Handle {
	return Handle{ID: h.ID, IsReverse: !h.IsReverse}
}

func (h Handle) String() string {
	if h.IsReverse {
		return fmt.Sprintf("<%d", h.ID)
	}
	return fmt.Sprintf(">%d", h.ID)
}

// GraphIndex is the query surface the converters need from a graph
type GraphIndex interface {
	Node(id int64) (*Node, error)
	Resolve(name string) (*Node, error)
	EdgesFrom(h Handle) []Handle
	HasEdge(from, to Handle) bool
}

// Graph is a read-only index over nodes and edges. It is safe for concurrent
// readers once built.
type Graph struct {
	nodes  map[int64]*Node
	byName map[string]*Node
	edges  map[Handle][]Handle
	nEdges int
}

// GraphBuilder accumulates nodes and edges before the graph is frozen
type GraphBuilder struct {
	g     *Graph
	names []string // segment names waiting for an id
	seqs  map[string]string
	links [][4]string
	err   error
}

// NewGraphBuilder starts an empty graph
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		g: &Graph{
			nodes:  map[int64]*Node{},
			byName: map[string]*Node{},
			edges:  map[Handle][]Handle{},
		},
		seqs: map[string]string{},
	}
}

// AddNode registers a node with an explicit id
func (b *GraphBuilder) AddNode(id int64, sequence string) *GraphBuilder {
	name := strconv.FormatInt(id, 10)
	node := &Node{ID: id, Name: name, Sequence: sequence}
	b.g.nodes[id] = node
	b.g.byName[name] = node
	return b
}

// AddSegment registers a GFA segment by name, ids are assigned in Build
func (b *GraphBuilder) AddSegment(name, sequence string) *GraphBuilder {
	if _, ok := b.seqs[name]; ok {
		b.err = fmt.Errorf("duplicate segment `%s`", name)
		return b
	}
	b.seqs[name] = sequence
	b.names = append(b.names, name)
	return b
}

// AddEdge registers a directed edge and its reverse complement twin
func (b *GraphBuilder) AddEdge(from, to Handle) *GraphBuilder {
	b.g.addEdge(from, to)
	if twinFrom, twinTo := to.Flip(), from.Flip(); twinFrom != from || twinTo != to {
		b.g.addEdge(twinFrom, twinTo)
	}
	return b
}

// AddLink registers a GFA link between two segment names
func (b *GraphBuilder) AddLink(from, fromOrient, to, toOrient string) *GraphBuilder {
	b.links = append(b.links, [4]string{from, fromOrient, to, toOrient})
	return b
}

// Build assigns ids to named segments, resolves links and freezes the graph.
// Numeric segment names keep their number as id, the others are numbered
// after the largest id in order of appearance.
func (b *GraphBuilder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	g := b.g
	maxID := int64(0)
	for id := range g.nodes {
		if id > maxID {
			maxID = id
		}
	}
	var named []string
	for _, name := range b.names {
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil || id <= 0 {
			named = append(named, name)
			continue
		}
		if _, ok := g.nodes[id]; ok {
			return nil, fmt.Errorf("duplicate node id %d", id)
		}
		g.nodes[id] = &Node{ID: id, Name: name, Sequence: b.seqs[name]}
		g.byName[name] = g.nodes[id]
		if id > maxID {
			maxID = id
		}
	}
	for _, name := range named {
		maxID++
		g.nodes[maxID] = &Node{ID: maxID, Name: name, Sequence: b.seqs[name]}
		g.byName[name] = g.nodes[maxID]
	}
	for _, link := range b.links {
		from, err := g.handleOf(link[0], link[1])
		if err != nil {
			return nil, err
		}
		to, err := g.handleOf(link[2], link[3])
		if err != nil {
			return nil, err
		}
		b.AddEdge(from, to)
	}
	for h := range g.edges {
		sort.Slice(g.edges[h], func(i, j int) bool {
			a, c := g.edges[h][i], g.edges[h][j]
			return a.ID < c.ID || (a.ID == c.ID && !a.IsReverse && c.IsReverse)
		})
	}
	b.g = nil
	return g, nil
}

func (r *Graph) handleOf(name, orient string) (Handle, error) {
	node, err := r.Resolve(name)
	if err != nil {
		return Handle{}, err
	}
	switch orient {
	case "+":
		return Handle{ID: node.ID}, nil
	case "-":
		return Handle{ID: node.ID, IsReverse: true}, nil
	}
	return Handle{}, fmt.Errorf("bad orientation `%s` on link to `%s`", orient, name)
}

func (r *Graph) addEdge(from, to Handle) {
	for _, h := range r.edges[from] {
		if h == to {
			return
		}
	}
	r.edges[from] = append(r.edges[from], to)
	r.nEdges++
}

// Node finds a node by id
func (r *Graph) Node(id int64) (*Node, error) {
	node, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return node, nil
}

// Resolve finds a node by segment name, falling back to a numeric id
func (r *Graph) Resolve(name string) (*Node, error) {
	if node, ok := r.byName[name]; ok {
		return node, nil
	}
	if id, err := strconv.ParseInt(name, 10, 64); err == nil {
		if node, ok := r.nodes[id]; ok {
			return node, nil
		}
	}
	return nil, fmt.Errorf("%w: `%s`", ErrUnknownNode, name)
}

// EdgesFrom lists the handles reachable from the end of h
func (r *Graph) EdgesFrom(h Handle) []Handle {
	return r.edges[h]
}

// HasEdge checks whether the end of from connects to the start of to
func (r *Graph) HasEdge(from, to Handle) bool {
	for _, h := range r.edges[from] {
		if h == to {
			return true
		}
	}
	return false
}

// NumNodes is the number of nodes
func (r *Graph) NumNodes() int {
	return len(r.nodes)
}

// NumEdges is the number of directed edges, reverse twins included
func (r *Graph) NumEdges() int {
	return r.nEdges
}

// ReverseComplement complements each base and reverses the order. Letters
// outside the IUPAC DNA alphabet become N.
func ReverseComplement(s string) string {
	rc := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		p, err := seq.DNAredundant.PairLetter(s[i])
		if err != nil {
			p = 'N'
		}
		rc[len(s)-1-i] = p
	}
	return string(rc)
}

// ParseGFA reads segments (S) and links (L) from a GFA stream, other record
// types are ignored.
func ParseGFA(r io.Reader) (*Graph, error) {
	b := NewGraphBuilder()
	reader := bufio.NewReader(r)
	for lineno := 1; ; lineno++ {
		row, err := reader.ReadString('\n')
		row = strings.TrimRight(row, "\r\n")
		if row == "" && err == io.EOF {
			break
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		words := strings.Split(row, "\t")
		switch words[0] {
		case "S":
			if len(words) < 3 {
				return nil, fmt.Errorf("GFA line %d: %w", lineno, ErrFieldCount)
			}
			if words[2] == MissingString {
				return nil, fmt.Errorf("GFA line %d: segment `%s` has no sequence", lineno, words[1])
			}
			b.AddSegment(words[1], words[2])
		case "L":
			if len(words) < 5 {
				return nil, fmt.Errorf("GFA line %d: %w", lineno, ErrFieldCount)
			}
			b.AddLink(words[1], words[2], words[3], words[4])
		}
		if err == io.EOF {
			break
		}
	}
	return b.Build()
}

// LoadGraph reads a (possibly gzipped) GFA file
func LoadGraph(gfafile string) (*Graph, error) {
	log.Noticef("Parse GFA file `%s`", gfafile)
	fh, err := xopen.Ropen(gfafile)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	g, err := ParseGFA(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", gfafile, err)
	}
	log.Noticef("Graph contains %d nodes and %d edges", g.NumNodes(), g.NumEdges())
	return g, nil
}
