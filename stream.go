/*
 *  stream.go
 *  gax
 *
 *  Created by Haibao Tang on 03/12/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/pgzip"
)

// maxMessageSize bounds a single length-prefixed message
const maxMessageSize = 1 << 30

// StreamReader reads a vg type-tagged protobuf stream. The stream is gzip
// (BGZF in practice) containing groups of
//
//	varint(count) message{count}
//
// where each message is varint(length) followed by the bytes and the first
// message of each group is the type tag.
type StreamReader struct {
	gz     *pgzip.Reader
	reader *bufio.Reader
	tag    string
	remain uint64
}

// NewStreamReader opens a stream of messages tagged with tag
func NewStreamReader(r io.Reader, tag string) (*StreamReader, error) {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedRecord, err)
	}
	return &StreamReader{gz: gz, reader: bufio.NewReader(gz), tag: tag}, nil
}

func (s *StreamReader) readMessage() ([]byte, error) {
	size, err := binary.ReadUvarint(s.reader)
	if err != nil {
		return nil, fmt.Errorf("%w: message length: %v", ErrTruncatedRecord, err)
	}
	if size > maxMessageSize {
		return nil, fmt.Errorf("%w: message of %d bytes", ErrTruncatedRecord, size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(s.reader, msg); err != nil {
		return nil, fmt.Errorf("%w: %d byte message: %v", ErrTruncatedRecord, size, err)
	}
	return msg, nil
}

// looksLikeTag tells a type tag apart from an untagged legacy message
func looksLikeTag(msg []byte) bool {
	if len(msg) == 0 || len(msg) > 16 {
		return false
	}
	for _, c := range msg {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Next returns the bytes of the next message, or io.EOF at the end of stream
func (s *StreamReader) Next() ([]byte, error) {
	for s.remain == 0 {
		count, err := binary.ReadUvarint(s.reader)
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%w: group count: %v", ErrTruncatedRecord, err)
		}
		if count == 0 {
			continue
		}
		msg, err := s.readMessage()
		if err != nil {
			return nil, err
		}
		if !looksLikeTag(msg) {
			s.remain = count - 1
			return msg, nil
		}
		if string(msg) != s.tag {
			return nil, fmt.Errorf("%w: found `%s`, want `%s`", ErrBadTypeTag, msg, s.tag)
		}
		s.remain = count - 1
	}
	s.remain--
	return s.readMessage()
}

// Close releases the decompressor, the underlying reader is left open
func (s *StreamReader) Close() error {
	return s.gz.Close()
}

// StreamWriter writes a vg type-tagged protobuf stream in BGZF, in groups of
// at most MaxGroupSize messages
type StreamWriter struct {
	bw      *bgzf.Writer
	tag     string
	pending [][]byte
	groups  int
}

// NewStreamWriter starts a stream of messages tagged with tag
func NewStreamWriter(w io.Writer, tag string) *StreamWriter {
	return &StreamWriter{bw: bgzf.NewWriter(w, 1), tag: tag}
}

// Write queues a message, flushing a group once it is full
func (s *StreamWriter) Write(msg []byte) error {
	s.pending = append(s.pending, append([]byte(nil), msg...))
	if len(s.pending) >= MaxGroupSize {
		return s.Flush()
	}
	return nil
}

// Flush writes the pending messages as one group
func (s *StreamWriter) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.writeGroup(s.pending); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	return nil
}

func (s *StreamWriter) writeGroup(msgs [][]byte) error {
	buf := binary.AppendUvarint(nil, uint64(len(msgs)+1))
	buf = binary.AppendUvarint(buf, uint64(len(s.tag)))
	buf = append(buf, s.tag...)
	for _, msg := range msgs {
		buf = binary.AppendUvarint(buf, uint64(len(msg)))
		buf = append(buf, msg...)
	}
	if _, err := s.bw.Write(buf); err != nil {
		return err
	}
	s.groups++
	return nil
}

// Close flushes the last group and the BGZF end-of-file marker. An empty
// stream still carries its type tag.
func (s *StreamWriter) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.groups == 0 {
		if err := s.writeGroup(nil); err != nil {
			return err
		}
	}
	return s.bw.Close()
}

// GamReader reads Alignment records from a GAM stream
type GamReader struct {
	*StreamReader
}

// NewGamReader opens a GAM stream
func NewGamReader(r io.Reader) (*GamReader, error) {
	s, err := NewStreamReader(r, GAMTypeTag)
	if err != nil {
		return nil, err
	}
	return &GamReader{s}, nil
}

// Read returns the next alignment, or io.EOF
func (r *GamReader) Read() (*Alignment, error) {
	msg, err := r.Next()
	if err != nil {
		return nil, err
	}
	return UnmarshalAlignment(msg)
}

// GamWriter writes Alignment records to a GAM stream
type GamWriter struct {
	*StreamWriter
}

// NewGamWriter starts a GAM stream
func NewGamWriter(w io.Writer) *GamWriter {
	return &GamWriter{NewStreamWriter(w, GAMTypeTag)}
}

// WriteAlignment encodes and queues one alignment
func (w *GamWriter) WriteAlignment(aln *Alignment) error {
	msg, err := MarshalAlignment(aln)
	if err != nil {
		return err
	}
	return w.Write(msg)
}

// GampReader reads MultipathAlignment records from a GAMP stream
type GampReader struct {
	*StreamReader
}

// NewGampReader opens a GAMP stream
func NewGampReader(r io.Reader) (*GampReader, error) {
	s, err := NewStreamReader(r, GAMPTypeTag)
	if err != nil {
		return nil, err
	}
	return &GampReader{s}, nil
}

// Read returns the next multipath alignment, or io.EOF
func (r *GampReader) Read() (*MultipathAlignment, error) {
	msg, err := r.Next()
	if err != nil {
		return nil, err
	}
	return UnmarshalMultipath(msg)
}

// GampWriter writes MultipathAlignment records to a GAMP stream
type GampWriter struct {
	*StreamWriter
}

// NewGampWriter starts a GAMP stream
func NewGampWriter(w io.Writer) *GampWriter {
	return &GampWriter{NewStreamWriter(w, GAMPTypeTag)}
}

// WriteMultipath encodes and queues one multipath alignment
func (w *GampWriter) WriteMultipath(mp *MultipathAlignment) error {
	msg, err := MarshalMultipath(mp)
	if err != nil {
		return err
	}
	return w.Write(msg)
}

// ReadAlignments collects every alignment of a GAM file
func ReadAlignments(gamfile string) ([]Alignment, error) {
	fh, err := os.Open(gamfile)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	reader, err := NewGamReader(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", gamfile, err)
	}
	defer reader.Close()

	var alignments []Alignment
	for {
		aln, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", gamfile, len(alignments), err)
		}
		alignments = append(alignments, *aln)
	}
	ResolveMates(alignments)
	log.Noticef("Read %d alignments from `%s`", len(alignments), gamfile)
	return alignments, nil
}
