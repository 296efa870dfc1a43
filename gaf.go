/*
 *  gaf.go
 *  gax
 *
 *  Created by Haibao Tang on 03/08/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// GafStep is one step of a GAF path, a signed segment reference optionally
// restricted to the interval [Start, End) of the segment
type GafStep struct {
	Name       string // Segment name or stable path name
	IsReverse  bool   // In reverse orientation ('<' in GAF)
	IsStable   bool   // Stable path name, as opposed to segment name
	IsInterval bool   // Restricted to [Start, End)
	Start      int64
	End        int64
}

// Tag represents the additional info in the 13+ columns of a GAF line, as
// TAG:TYPE:VALUE. The value is typed by the TYPE character:
//
// i -> int, f -> float, b -> bool, A/Z/H/B -> string
type Tag struct {
	Name  string
	Type  byte
	Value Value
	raw   string // token as read, written back while it still parses to Value
}

// Text formats the value, keeping the token as read when it is unchanged
func (t Tag) Text() string {
	if t.raw != "" {
		if v, err := parseTagValue(t.Type, t.raw); err == nil && v.Equal(t.Value) {
			return t.raw
		}
	}
	return t.Value.Text()
}

// GafRecord holds one line in the GAF file. The format is described at
// https://github.com/lh3/gfatools/blob/master/doc/rGFA.md
type GafRecord struct {
	QueryName   string    // Query sequence name
	QueryLength int64     // Query sequence length
	QueryStart  int64     // Query start (0-based, closed)
	QueryEnd    int64     // Query end (0-based, open)
	Strand      byte      // `+' or `-' relative to the path
	Path        []GafStep // The path
	PathLength  int64     // Length of the path
	PathStart   int64     // Start position on the path (0-based)
	PathEnd     int64     // End position on the path (0-based, open)
	Matches     int64     // Number of residue matches
	BlockLength int64     // Alignment block length
	Mapq        int64     // Mapping quality (0-255 with 255 for missing)
	Tags        []Tag     // Tags in the order they appear
}

// Tag finds a tag by name
func (r *GafRecord) Tag(name string) (Tag, bool) {
	for _, tag := range r.Tags {
		if tag.Name == name {
			return tag, true
		}
	}
	return Tag{}, false
}

// SetTag replaces the tag in place or appends it
func (r *GafRecord) SetTag(name string, typ byte, value Value) {
	for i := range r.Tags {
		if r.Tags[i].Name == name {
			r.Tags[i] = Tag{Name: name, Type: typ, Value: value}
			return
		}
	}
	r.Tags = append(r.Tags, Tag{Name: name, Type: typ, Value: value})
}

// numberOrMissing parses a numeric column, `*` becomes MissingInt
func numberOrMissing(token, column string) (int64, error) {
	if token == MissingString {
		return MissingInt, nil
	}
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s `%s`", ErrMalformedField, column, token)
	}
	return v, nil
}

// ParseGafRecord parses a single GAF line
func ParseGafRecord(line string) (*GafRecord, error) {
	words := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(words) < 12 {
		return nil, fmt.Errorf("%w: %d of 12 core columns", ErrFieldCount, len(words))
	}

	rec := &GafRecord{QueryName: words[0]}
	columns := []struct {
		name string
		dst  *int64
		word string
	}{
		{"query length", &rec.QueryLength, words[1]},
		{"query start", &rec.QueryStart, words[2]},
		{"query end", &rec.QueryEnd, words[3]},
		{"path length", &rec.PathLength, words[6]},
		{"path start", &rec.PathStart, words[7]},
		{"path end", &rec.PathEnd, words[8]},
		{"matches", &rec.Matches, words[9]},
		{"block length", &rec.BlockLength, words[10]},
		{"mapq", &rec.Mapq, words[11]},
	}
	for _, c := range columns {
		v, err := numberOrMissing(c.word, c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = v
	}
	if len(words[4]) != 1 {
		return nil, fmt.Errorf("%w: strand `%s`", ErrMalformedField, words[4])
	}
	rec.Strand = words[4][0]

	path, err := ParseGafPath(words[5])
	if err != nil {
		return nil, err
	}
	rec.Path = path

	// Parse columns 12+
	for _, word := range words[12:] {
		tag, err := parseTag(word)
		if err != nil {
			return nil, err
		}
		if _, dup := rec.Tag(tag.Name); dup {
			return nil, fmt.Errorf("%w: duplicate tag `%s`", ErrMalformedTag, tag.Name)
		}
		rec.Tags = append(rec.Tags, tag)
	}
	return rec, nil
}

func parseTag(word string) (Tag, error) {
	tokens := strings.SplitN(word, ":", 3)
	if len(tokens) < 3 || tokens[0] == "" || len(tokens[1]) != 1 {
		return Tag{}, fmt.Errorf("%w: `%s`", ErrMalformedTag, word)
	}
	tag := Tag{Name: tokens[0], Type: tokens[1][0], raw: tokens[2]}
	v, err := parseTagValue(tag.Type, tag.raw)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: `%s` %v", ErrMalformedTag, word, err)
	}
	tag.Value = v
	return tag, nil
}

func parseTagValue(typ byte, token string) (Value, error) {
	switch typ {
	case 'i':
		v, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return Value{}, errors.New("is not an int")
		}
		return IntValue(v), nil
	case 'f':
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return Value{}, errors.New("is not a float")
		}
		return FloatValue(v), nil
	case 'b':
		v, err := strconv.ParseBool(token)
		if err != nil {
			return Value{}, errors.New("is not a bool")
		}
		return BoolValue(v), nil
	}
	return StringValue(token), nil
}

// ParseGafPath parses the path column, a concatenation of (>|<)segment(:start-end)?
func ParseGafPath(token string) ([]GafStep, error) {
	if token == MissingString {
		return nil, nil
	}
	if token == "" || (token[0] != '>' && token[0] != '<') {
		return nil, fmt.Errorf("%w: `%s` does not start with > or <", ErrMalformedPath, token)
	}
	var splits []int
	for i := 0; i < len(token); i++ {
		if token[i] == '>' || token[i] == '<' {
			splits = append(splits, i)
		}
	}
	splits = append(splits, len(token))

	path := make([]GafStep, 0, len(splits)-1)
	for i := 0; i+1 < len(splits); i++ {
		stepToken := token[splits[i]:splits[i+1]]
		step, err := parseStep(stepToken)
		if err != nil {
			return nil, err
		}
		path = append(path, step)
	}
	return path, nil
}

func parseStep(stepToken string) (GafStep, error) {
	step := GafStep{IsReverse: stepToken[0] == '<', Name: stepToken[1:]}
	if colon := strings.LastIndexByte(step.Name, ':'); colon >= 0 {
		bounds := strings.SplitN(step.Name[colon+1:], "-", 2)
		if len(bounds) != 2 {
			return GafStep{}, fmt.Errorf("%w: interval in `%s`", ErrMalformedPath, stepToken)
		}
		start, err1 := strconv.ParseInt(bounds[0], 10, 64)
		end, err2 := strconv.ParseInt(bounds[1], 10, 64)
		if err1 != nil || err2 != nil || start < 0 || end < start {
			return GafStep{}, fmt.Errorf("%w: interval in `%s`", ErrMalformedPath, stepToken)
		}
		step.Name = step.Name[:colon]
		step.IsStable, step.IsInterval = true, true
		step.Start, step.End = start, end
	}
	if step.Name == "" {
		return GafStep{}, fmt.Errorf("%w: empty segment in `%s`", ErrMalformedPath, stepToken)
	}
	return step, nil
}

// String writes the step back in GAF form
func (s GafStep) String() string {
	var sb strings.Builder
	if !s.IsStable || s.IsInterval {
		if s.IsReverse {
			sb.WriteByte('<')
		} else {
			sb.WriteByte('>')
		}
	}
	sb.WriteString(s.Name)
	if s.IsInterval {
		fmt.Fprintf(&sb, ":%d-%d", s.Start, s.End)
	}
	return sb.String()
}

// FormatGafPath concatenates the steps, an empty path is `*`
func FormatGafPath(path []GafStep) string {
	if len(path) == 0 {
		return MissingString
	}
	var sb strings.Builder
	for _, step := range path {
		sb.WriteString(step.String())
	}
	return sb.String()
}

func formatNumber(v int64) string {
	if v == MissingInt {
		return MissingString
	}
	return strconv.FormatInt(v, 10)
}

// String formats the record as one GAF line without the newline
func (r *GafRecord) String() string {
	words := make([]string, 0, 12+len(r.Tags))
	queryName := r.QueryName
	if queryName == "" {
		queryName = MissingString
	}
	strand := string(r.Strand)
	if r.Strand == 0 {
		strand = MissingString
	}
	words = append(words, queryName, formatNumber(r.QueryLength),
		formatNumber(r.QueryStart), formatNumber(r.QueryEnd), strand)
	if len(r.Path) == 0 {
		for i := 0; i < 6; i++ {
			words = append(words, MissingString)
		}
	} else {
		words = append(words, FormatGafPath(r.Path),
			formatNumber(r.PathLength), formatNumber(r.PathStart), formatNumber(r.PathEnd),
			formatNumber(r.Matches), formatNumber(r.BlockLength))
	}
	mapq := r.Mapq
	if mapq == MissingInt {
		mapq = MissingMapq
	}
	words = append(words, strconv.FormatInt(mapq, 10))
	for _, tag := range r.Tags {
		words = append(words, fmt.Sprintf("%s:%c:%s", tag.Name, tag.Type, tag.Text()))
	}
	return strings.Join(words, "\t")
}

// GafReader parses GAF records one line at a time
type GafReader struct {
	reader *bufio.Reader
	lineno int
}

// NewGafReader wraps a reader
func NewGafReader(r io.Reader) *GafReader {
	return &GafReader{reader: bufio.NewReader(r)}
}

// GafLine is a raw GAF line with its 1-based line number
type GafLine struct {
	Lineno int
	Text   string
}

// Parse parses the line, errors carry the line number
func (l GafLine) Parse() (*GafRecord, error) {
	rec, err := ParseGafRecord(l.Text)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", l.Lineno, err)
	}
	return rec, nil
}

// ReadLine returns the next non-blank line unparsed, or io.EOF
func (r *GafReader) ReadLine() (GafLine, error) {
	for {
		row, err := r.reader.ReadString('\n')
		if row == "" && err == io.EOF {
			return GafLine{}, io.EOF
		}
		if err != nil && err != io.EOF {
			return GafLine{}, err
		}
		r.lineno++
		if strings.TrimSpace(row) == "" {
			continue
		}
		return GafLine{Lineno: r.lineno, Text: row}, nil
	}
}

// Read returns the next record, or io.EOF. Blank lines are skipped.
func (r *GafReader) Read() (*GafRecord, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	return line.Parse()
}

// ReadGafRecords collects all records in memory
func ReadGafRecords(r io.Reader) ([]*GafRecord, error) {
	reader := NewGafReader(r)
	var records []*GafRecord
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// WriteGafRecord writes one record and a newline
func WriteGafRecord(w io.Writer, rec *GafRecord) error {
	_, err := fmt.Fprintln(w, rec.String())
	return err
}
