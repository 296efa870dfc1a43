/*
 *  translate.go
 *  gax
 *
 *  Created by Haibao Tang on 03/14/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// segment is the part of a node an alignment covers, [lo, hi) counted in the
// traversed orientation
type segment struct {
	node   *Node
	handle Handle
	lo, hi int
	seq    string // node sequence in the traversed orientation
}

func newSegment(node *Node, isReverse bool, lo, hi int) segment {
	return segment{
		node:   node,
		handle: Handle{ID: node.ID, IsReverse: isReverse},
		lo:     lo,
		hi:     hi,
		seq:    node.Oriented(isReverse),
	}
}

func (s segment) String() string {
	return fmt.Sprintf("%s:%d-%d", s.handle, s.lo, s.hi)
}

// checkAdjacent accepts b after a when b continues a on the same oriented node,
// or a ends its node, b starts its node and an edge joins them
func checkAdjacent(a, b segment, graph GraphIndex) error {
	if a.handle == b.handle && b.lo == a.hi {
		return nil
	}
	if a.hi == a.node.Len() && b.lo == 0 && graph.HasEdge(a.handle, b.handle) {
		return nil
	}
	return fmt.Errorf("%w: %s to %s", ErrGraphPathDiscontinuity, a, b)
}

// resolveSegments maps the GAF path onto the graph and keeps the part between
// path start and path end
func resolveSegments(rec *GafRecord, graph GraphIndex) ([]segment, error) {
	var windows []segment
	total := 0
	for _, step := range rec.Path {
		node, err := graph.Resolve(step.Name)
		if err != nil {
			return nil, err
		}
		lo, hi := 0, node.Len()
		if step.IsInterval {
			if step.End > int64(node.Len()) {
				return nil, fmt.Errorf("%w: interval %s past node length %d",
					ErrCoordinateMismatch, step, node.Len())
			}
			lo, hi = int(step.Start), int(step.End)
		}
		windows = append(windows, newSegment(node, step.IsReverse, lo, hi))
		total += hi - lo
	}
	if rec.PathLength != MissingInt && rec.PathLength != int64(total) {
		return nil, fmt.Errorf("%w: path length %d, steps add up to %d",
			ErrCoordinateMismatch, rec.PathLength, total)
	}
	ps, pe := 0, total
	if rec.PathStart != MissingInt {
		ps = int(rec.PathStart)
	}
	if rec.PathEnd != MissingInt {
		pe = int(rec.PathEnd)
	}
	if ps < 0 || ps > pe || pe > total {
		return nil, fmt.Errorf("%w: path interval %d-%d on a path of %d",
			ErrCoordinateMismatch, ps, pe, total)
	}

	var segs []segment
	cum := 0
	for _, w := range windows {
		width := w.hi - w.lo
		lo, hi := max(ps-cum, 0), min(pe-cum, width)
		cum += width
		// an alignment reading no node bases sits at ps of the first window
		// reaching it
		empty := ps == pe && len(segs) == 0 && ps <= cum
		if lo >= hi && !empty {
			continue
		}
		w.lo, w.hi = w.lo+lo, w.lo+hi
		if n := len(segs); n > 0 {
			if err := checkAdjacent(segs[n-1], w, graph); err != nil {
				return nil, err
			}
		}
		segs = append(segs, w)
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: alignment covers no path bases", ErrCoordinateMismatch)
	}
	return segs, nil
}

// opWalker lays operations onto segments, one mapping per segment
type opWalker struct {
	segs     []segment
	cur      int
	off      int
	mapSeg   int
	mappings []Mapping
	qpos     int
	sb       strings.Builder // query bases in path orientation
}

func (w *opWalker) add(e Edit) {
	if w.mapSeg != w.cur || len(w.mappings) == 0 {
		seg := w.segs[w.cur]
		w.mappings = append(w.mappings, Mapping{
			Position: Position{NodeID: seg.node.ID, Offset: int64(w.off), IsReverse: seg.handle.IsReverse},
		})
		w.mapSeg = w.cur
	}
	m := &w.mappings[len(w.mappings)-1]
	m.Edits = append(m.Edits, e)
}

// advance moves onto the next segment once the current one is used up
func (w *opWalker) advance() error {
	if w.off < w.segs[w.cur].hi {
		return nil
	}
	if w.cur+1 == len(w.segs) {
		return fmt.Errorf("%w: operations run past the end of the path", ErrCoordinateMismatch)
	}
	w.cur++
	w.off = w.segs[w.cur].lo
	return nil
}

// queryBases picks the read bases an operation consumes. aligned is the
// aligned part of the read in path orientation, empty when unknown.
func (w *opWalker) queryBases(op AlignOp, aligned string, haveQuery bool) (string, error) {
	n := op.ToLength()
	if n == 0 {
		return "", nil
	}
	var query string
	switch {
	case haveQuery:
		if w.qpos+n > len(aligned) {
			return "", fmt.Errorf("%w: operations consume more than the %d aligned read bases",
				ErrCoordinateMismatch, len(aligned))
		}
		query = aligned[w.qpos : w.qpos+n]
		if op.Query != "" && !strings.EqualFold(op.Query, query) {
			return "", fmt.Errorf("%w: %s `%s` but the read has `%s`",
				ErrCoordinateMismatch, op.Class, op.Query, query)
		}
	case op.Class == Match:
	case op.Query != "":
		query = op.Query
	default:
		return "", fmt.Errorf("%w: %s of %d without read bases",
			ErrCoordinateMismatch, op.Class, op.Length)
	}
	w.qpos += n
	return strings.ToUpper(query), nil
}

func (w *opWalker) walk(op AlignOp, aligned string, haveQuery bool) error {
	query, err := w.queryBases(op, aligned, haveQuery)
	if err != nil {
		return err
	}
	var e Edit
	switch op.Class {
	case Insertion:
		w.add(Edit{FromLength: 0, ToLength: op.Length, Sequence: query})
		w.sb.WriteString(query)
		return nil
	case Match:
		e = Edit{FromLength: op.Length, ToLength: op.Length}
	case Substitution:
		e = Edit{FromLength: op.Length, ToLength: op.Length, Sequence: query}
	case Deletion:
		e = Edit{FromLength: op.Length}
	}

	ref := op.Ref
	for e.FromLength > 0 {
		if err := w.advance(); err != nil {
			return err
		}
		seg := w.segs[w.cur]
		take := min(e.FromLength, seg.hi-w.off)
		part := e
		if take < e.FromLength {
			if part, e, err = SplitAt(e, take); err != nil {
				return err
			}
		} else {
			e = Edit{}
		}
		bases := seg.seq[w.off : w.off+take]
		if ref != "" {
			if !strings.EqualFold(ref[:take], bases) {
				return fmt.Errorf("%w: operation expects `%s`, %s has `%s`",
					ErrCoordinateMismatch, ref[:take], seg, bases)
			}
			ref = ref[take:]
		}
		switch {
		case part.IsMatch():
			w.sb.WriteString(bases)
		case part.IsSubstitution():
			w.sb.WriteString(part.Sequence)
		}
		w.add(part)
		w.off += take
	}
	return nil
}

// alignOps returns the record operations, or a single match when the record
// carries no cs or cg tag and the query and path spans agree
func alignOps(rec *GafRecord, segs []segment) ([]AlignOp, error) {
	ops, ok, err := rec.AlignOps()
	if err != nil || ok {
		return ops, err
	}
	covered := 0
	for _, seg := range segs {
		covered += seg.hi - seg.lo
	}
	if covered == 0 {
		return nil, fmt.Errorf("%w: no cs or cg tag on an empty path interval", ErrCoordinateMismatch)
	}
	if rec.QueryStart != MissingInt && rec.QueryEnd != MissingInt &&
		rec.QueryEnd-rec.QueryStart != int64(covered) {
		return nil, fmt.Errorf("%w: no cs or cg tag, query span %d differs from path span %d",
			ErrCoordinateMismatch, rec.QueryEnd-rec.QueryStart, covered)
	}
	return []AlignOp{{Class: Match, Length: covered}}, nil
}

// ReverseMappings flips mappings to the other strand: the order is reversed,
// each node is traversed the other way and the edits are reverse complemented
func ReverseMappings(mappings []Mapping, graph GraphIndex) ([]Mapping, error) {
	flipped := make([]Mapping, len(mappings))
	for i, m := range mappings {
		node, err := graph.Node(m.Position.NodeID)
		if err != nil {
			return nil, err
		}
		edits := m.EditsOn(node)
		from := 0
		for _, e := range edits {
			from += e.FromLength
		}
		offset := int64(node.Len()) - m.Position.Offset - int64(from)
		flipped[len(mappings)-1-i] = Mapping{
			Position: Position{
				NodeID:    m.Position.NodeID,
				Offset:    offset,
				IsReverse: !m.Position.IsReverse,
				Name:      m.Position.Name,
			},
			Edits: ReverseEdits(edits),
		}
	}
	return flipped, nil
}

func decodeQuality(bq string) ([]byte, error) {
	qual := make([]byte, len(bq))
	for i := 0; i < len(bq); i++ {
		if bq[i] < 33 {
			return nil, fmt.Errorf("%w: base quality `%c`", ErrMalformedTag, bq[i])
		}
		qual[i] = bq[i] - 33
	}
	return qual, nil
}

func encodeQuality(qual []byte) string {
	bq := make([]byte, len(qual))
	for i, q := range qual {
		bq[i] = q + 33
	}
	return string(bq)
}

// applyTags moves the tags that have an Alignment field into it, the rest go
// to the annotation with their type
func applyTags(aln *Alignment, rec *GafRecord) error {
	for _, tag := range rec.Tags {
		switch tag.Name {
		case "cs", "cg":
			continue
		case "AS":
			if v, ok := tag.Value.Int(); ok {
				if v < math.MinInt32 || v > math.MaxInt32 {
					return fmt.Errorf("%w: AS %d", ErrEncodingOverflow, v)
				}
				aln.Score = int32(v)
				continue
			}
		case "bq":
			if s, ok := tag.Value.Str(); ok {
				qual, err := decodeQuality(s)
				if err != nil {
					return err
				}
				aln.Quality = qual
				continue
			}
		case "dv":
			if v, ok := tag.Value.Float(); ok {
				aln.Identity = 1 - v
				continue
			}
		case "fn", "fp":
			if s, ok := tag.Value.Str(); ok {
				ref := &FragmentRef{Name: s, Index: -1}
				if tag.Name == "fn" {
					aln.FragmentNext = ref
				} else {
					aln.FragmentPrev = ref
				}
				continue
			}
		case "pd":
			if b, ok := tag.Value.Bool(); ok {
				aln.setAnnotation("proper_pair", BoolValue(b))
				continue
			}
		case "AD":
			if n, ok := tag.Value.Int(); ok {
				aln.setAnnotation("support", StringValue(strconv.FormatInt(n, 10)))
				continue
			}
		}
		aln.setAnnotation(tag.Name, tag.Value)
	}
	return nil
}

func (aln *Alignment) setAnnotation(key string, v Value) {
	if aln.Annotation == nil {
		aln.Annotation = Annotation{}
	}
	aln.Annotation[key] = v
}

// GafToGam converts a GAF record into an Alignment. read supplies the query
// bases and qualities; without it the query is rebuilt from the graph and the
// operations, which requires the record to align the whole query.
func GafToGam(rec *GafRecord, graph GraphIndex, read *Read) (*Alignment, error) {
	aln := &Alignment{Name: rec.QueryName}
	if aln.Name == MissingString {
		aln.Name = ""
	}
	if rec.Mapq != MissingInt {
		aln.MappingQuality = int32(rec.Mapq)
	}
	if err := applyTags(aln, rec); err != nil {
		return nil, err
	}
	haveQuery := read != nil
	if haveQuery {
		aln.Sequence = read.Seq
		if len(read.Qual) > 0 {
			aln.Quality = read.Qual
		}
		if rec.QueryLength != MissingInt && rec.QueryLength != int64(len(read.Seq)) {
			return nil, fmt.Errorf("%w: query length %d, read `%s` has %d bases",
				ErrCoordinateMismatch, rec.QueryLength, read.Name, len(read.Seq))
		}
	}
	if len(rec.Path) == 0 {
		return aln, nil
	}
	if rec.Strand != '+' && rec.Strand != '-' {
		return nil, fmt.Errorf("%w: strand `%c`", ErrMalformedField, rec.Strand)
	}
	aln.ReadMapped = true

	segs, err := resolveSegments(rec, graph)
	if err != nil {
		return nil, err
	}
	ops, err := alignOps(rec, segs)
	if err != nil {
		return nil, err
	}

	var head, aligned, tail string
	if haveQuery {
		qs, qe := 0, len(read.Seq)
		if rec.QueryStart != MissingInt {
			qs = int(rec.QueryStart)
		}
		if rec.QueryEnd != MissingInt {
			qe = int(rec.QueryEnd)
		}
		if qs < 0 || qs > qe || qe > len(read.Seq) {
			return nil, fmt.Errorf("%w: query interval %d-%d on a read of %d",
				ErrCoordinateMismatch, qs, qe, len(read.Seq))
		}
		head, aligned, tail = read.Seq[:qs], read.Seq[qs:qe], read.Seq[qe:]
		if rec.Strand == '-' {
			head, aligned, tail = ReverseComplement(tail), ReverseComplement(aligned), ReverseComplement(head)
		}
	} else if rec.QueryStart > 0 || (rec.QueryEnd != MissingInt && rec.QueryLength != MissingInt &&
		rec.QueryEnd != rec.QueryLength) {
		return nil, fmt.Errorf("%w: clipped query without read sequence", ErrCoordinateMismatch)
	}

	w := &opWalker{segs: segs, off: segs[0].lo, mapSeg: -1}
	for _, op := range ops {
		if err := w.walk(op, aligned, haveQuery); err != nil {
			return nil, err
		}
	}
	last := len(segs) - 1
	if w.cur != last || w.off != segs[last].hi {
		return nil, fmt.Errorf("%w: operations end at %s offset %d, path ends at %s",
			ErrCoordinateMismatch, segs[w.cur].handle, w.off, segs[last])
	}
	if haveQuery && w.qpos != len(aligned) {
		return nil, fmt.Errorf("%w: operations consume %d of %d aligned read bases",
			ErrCoordinateMismatch, w.qpos, len(aligned))
	}

	mappings := w.mappings
	if len(mappings) == 0 {
		return nil, invariantf("no mapping produced for a path of %d steps", len(segs))
	}
	if head != "" {
		first := &mappings[0]
		first.Edits = append([]Edit{{ToLength: len(head), Sequence: head}}, first.Edits...)
		aln.SoftClipped = true
	}
	if tail != "" {
		end := &mappings[len(mappings)-1]
		end.Edits = append(end.Edits, Edit{ToLength: len(tail), Sequence: tail})
		aln.SoftClipped = true
	}
	for i := range mappings {
		mappings[i].Edits = MergeEdits(mappings[i].Edits)
	}
	query := w.sb.String()
	if rec.Strand == '-' {
		if mappings, err = ReverseMappings(mappings, graph); err != nil {
			return nil, err
		}
		query = ReverseComplement(query)
	}
	for i := range mappings {
		mappings[i].Rank = int64(i)
	}
	aln.Path = Path{Mappings: mappings}
	aln.Path.Length = int64(aln.Path.ToLength())
	if !haveQuery {
		aln.Sequence = query
	}

	if int(aln.Path.Length) != len(aln.Sequence) {
		return nil, fmt.Errorf("%w: path consumes %d bases of a %d base query",
			ErrCoordinateMismatch, aln.Path.Length, len(aln.Sequence))
	}
	if rec.QueryLength != MissingInt && aln.Path.Length != rec.QueryLength {
		return nil, fmt.Errorf("%w: path consumes %d bases, query length is %d",
			ErrCoordinateMismatch, aln.Path.Length, rec.QueryLength)
	}
	return aln, nil
}

// reservedTags are written from Alignment fields, never from the annotation
var reservedTags = map[string]bool{
	"cs": true, "cg": true, "AS": true, "dv": true,
	"bq": true, "fn": true, "fp": true, "pd": true, "AD": true,
}

// tagOf picks the GAF type of an annotation value. Whole numbers are written
// as integers since the annotation stores every number as a double.
func tagOf(v Value) (byte, Value, bool) {
	switch v.Kind() {
	case KindBool:
		return 'b', v, true
	case KindInt:
		return 'i', v, true
	case KindFloat:
		if i, ok := v.Int(); ok {
			return 'i', IntValue(i), true
		}
		return 'f', v, true
	case KindString:
		return 'Z', v, true
	}
	return 0, v, false
}

// supportOf reads the pair support, vg stores it as a decimal string
func supportOf(v Value) (int64, bool) {
	if s, ok := v.Str(); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	return v.Int()
}

func alignmentTags(aln *Alignment, rec *GafRecord) {
	if aln.Score != 0 {
		rec.SetTag("AS", 'i', IntValue(int64(aln.Score)))
	}
	if aln.Identity > 0 {
		dv := math.Floor((1-aln.Identity)*10000+0.5) / 10000
		rec.SetTag("dv", 'f', FloatValue(dv))
	}
	if len(aln.Quality) > 0 {
		rec.SetTag("bq", 'Z', StringValue(encodeQuality(aln.Quality)))
	}
	if aln.FragmentNext != nil {
		rec.SetTag("fn", 'Z', StringValue(aln.FragmentNext.Name))
	}
	if aln.FragmentPrev != nil {
		rec.SetTag("fp", 'Z', StringValue(aln.FragmentPrev.Name))
	}
	_, paired := aln.Annotation["proper_pair"]
	for _, key := range aln.Annotation.Keys() {
		v := aln.Annotation[key]
		switch key {
		case "proper_pair":
			if b, ok := v.Bool(); ok {
				rec.SetTag("pd", 'b', BoolValue(b))
			}
			continue
		case "support":
			// pair support is written only next to proper_pair
			if n, ok := supportOf(v); ok && paired {
				rec.SetTag("AD", 'i', IntValue(n))
			}
			continue
		}
		if len(key) != 2 || reservedTags[key] {
			continue
		}
		if typ, tv, ok := tagOf(v); ok {
			rec.SetTag(key, typ, tv)
		}
	}
}

// GamToGaf converts an Alignment into a GAF record. Consecutive mappings that
// continue on the same oriented node become one step. The summary columns
// are recomputed from the edits.
func GamToGaf(aln *Alignment, graph GraphIndex) (*GafRecord, error) {
	rec := &GafRecord{
		QueryName:   aln.Name,
		QueryLength: int64(len(aln.Sequence)),
		Mapq:        int64(aln.MappingQuality),
	}
	if rec.QueryName == "" {
		rec.QueryName = MissingString
	}
	if len(aln.Path.Mappings) == 0 {
		rec.QueryStart, rec.QueryEnd, rec.Mapq = MissingInt, MissingInt, MissingInt
		rec.PathLength, rec.PathStart, rec.PathEnd = MissingInt, MissingInt, MissingInt
		rec.Matches, rec.BlockLength = MissingInt, MissingInt
		alignmentTags(aln, rec)
		return rec, nil
	}

	var groups []segment
	var cs csBuilder
	matches, block, toLength := 0, 0, 0
	for i := range aln.Path.Mappings {
		m := &aln.Path.Mappings[i]
		node, err := graph.Node(m.Position.NodeID)
		if err != nil {
			return nil, err
		}
		off := int(m.Position.Offset)
		edits := m.EditsOn(node)
		from := 0
		for _, e := range edits {
			from += e.FromLength
		}
		if off < 0 || off+from > node.Len() {
			return nil, fmt.Errorf("%w: mapping %d reads %d-%d on node %d of length %d",
				ErrCoordinateMismatch, i, off, off+from, node.ID, node.Len())
		}

		h := m.Position.Handle()
		if n := len(groups); n > 0 && groups[n-1].handle == h && groups[n-1].hi == off {
			groups[n-1].hi += from
		} else {
			seg := newSegment(node, h.IsReverse, off, off+from)
			if n > 0 {
				if err := checkAdjacent(groups[n-1], seg, graph); err != nil {
					return nil, fmt.Errorf("mapping %d: %w", i, err)
				}
			}
			groups = append(groups, seg)
		}

		bases := groups[len(groups)-1].seq
		pos := off
		for _, e := range edits {
			class, err := Classify(e)
			if err != nil {
				return nil, fmt.Errorf("mapping %d: %w", i, err)
			}
			switch class {
			case Match:
				cs.match(e.FromLength)
				matches += e.FromLength
			case Substitution:
				cs.substitute(bases[pos:pos+e.FromLength], e.Sequence)
			case Insertion:
				cs.insert(e.Sequence)
			case Deletion:
				cs.delete(bases[pos : pos+e.FromLength])
			}
			pos += e.FromLength
			block += max(e.FromLength, e.ToLength)
			toLength += e.ToLength
		}
	}
	if aln.Sequence != "" && toLength != len(aln.Sequence) {
		return nil, fmt.Errorf("%w: path consumes %d bases of a %d base query",
			ErrCoordinateMismatch, toLength, len(aln.Sequence))
	}

	// inner groups span whole nodes, see checkAdjacent
	last := len(groups) - 1
	pathLength := 0
	for _, g := range groups {
		rec.Path = append(rec.Path, GafStep{Name: g.node.Name, IsReverse: g.handle.IsReverse})
		pathLength += g.node.Len()
	}
	pathStart := groups[0].lo
	pathEnd := pathLength - (groups[last].node.Len() - groups[last].hi)

	rec.QueryLength = int64(toLength)
	rec.QueryStart, rec.QueryEnd = 0, int64(toLength)
	rec.Strand = '+'
	rec.PathLength, rec.PathStart, rec.PathEnd = int64(pathLength), int64(pathStart), int64(pathEnd)
	rec.Matches, rec.BlockLength = int64(matches), int64(block)
	if s := cs.String(); s != "" {
		rec.SetTag("cs", 'Z', StringValue(s))
	}
	alignmentTags(aln, rec)
	return rec, nil
}
