/*
 *  gamp.go
 *  gax
 *
 *  Created by Haibao Tang on 03/11/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// MultipathAlignment field numbers in vg.proto
const (
	mpSequence       = 1
	mpQuality        = 2
	mpName           = 3
	mpSampleName     = 4
	mpReadGroup      = 5
	mpSubpath        = 6
	mpMappingQuality = 7
	mpStart          = 8
	mpPairedReadName = 9
	mpAnnotation     = 10
)

// ValidateTopology checks that every subpath only points forward, to an index
// inside the record, and that the sources exist
func ValidateTopology(mp *MultipathAlignment) error {
	n := len(mp.Subpaths)
	for i := range mp.Subpaths {
		sp := &mp.Subpaths[i]
		for _, j := range sp.Next {
			if j <= i || j >= n {
				return fmt.Errorf("%w: subpath %d points to %d of %d",
					ErrNotTopologicallyOrdered, i, j, n)
			}
		}
		for _, c := range sp.Connections {
			if c.Next <= i || c.Next >= n {
				return fmt.Errorf("%w: subpath %d connects to %d of %d",
					ErrNotTopologicallyOrdered, i, c.Next, n)
			}
		}
	}
	for _, s := range mp.Start {
		if s < 0 || s >= n {
			return fmt.Errorf("%w: start %d of %d subpaths", ErrNotTopologicallyOrdered, s, n)
		}
	}
	return nil
}

func marshalConnection(c *Connection) ([]byte, error) {
	next, err := uint32Wire(c.Next, "connection next")
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendVarintField(b, 1, next)
	b = appendVarintField(b, 2, uint64(int64(c.Score)))
	return b, nil
}

func unmarshalConnection(b []byte) (Connection, error) {
	var c Connection
	err := walkMessage(b, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 && num != 2 {
			return 0, nil
		}
		v, n, err := consumeVarint(typ, b)
		if num == 1 {
			c.Next = int(uint32(v))
		} else {
			c.Score = decodeInt32(v)
		}
		return n, err
	})
	return c, err
}

func uint32List(values []int, what string) ([]uint64, error) {
	wire := make([]uint64, len(values))
	for i, v := range values {
		w, err := uint32Wire(v, what)
		if err != nil {
			return nil, err
		}
		wire[i] = w
	}
	return wire, nil
}

// Subpath: path = 1, next = 2, score = 3, connection = 4
func marshalSubpath(sp *Subpath) ([]byte, error) {
	path, err := marshalPath(&sp.Path)
	if err != nil {
		return nil, err
	}
	next, err := uint32List(sp.Next, "next")
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendMessageField(b, 1, path)
	b = appendPackedField(b, 2, next)
	b = appendVarintField(b, 3, uint64(int64(sp.Score)))
	for i := range sp.Connections {
		c, err := marshalConnection(&sp.Connections[i])
		if err != nil {
			return nil, err
		}
		b = appendMessageField(b, 4, c)
	}
	return b, nil
}

func unmarshalSubpath(b []byte) (Subpath, error) {
	var sp Subpath
	err := walkMessage(b, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1, 4:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			if num == 1 {
				sp.Path, err = unmarshalPath(v)
			} else {
				var c Connection
				c, err = unmarshalConnection(v)
				sp.Connections = append(sp.Connections, c)
			}
			return n, err
		case 2:
			return consumeRepeatedVarint(typ, b, func(v uint64) {
				sp.Next = append(sp.Next, int(uint32(v)))
			})
		case 3:
			v, n, err := consumeVarint(typ, b)
			sp.Score = decodeInt32(v)
			return n, err
		}
		return 0, nil
	})
	return sp, err
}

// MarshalMultipath encodes a multipath alignment as a vg MultipathAlignment
// message. Records that break topological order are refused.
func MarshalMultipath(mp *MultipathAlignment) ([]byte, error) {
	if err := ValidateTopology(mp); err != nil {
		return nil, err
	}
	start, err := uint32List(mp.Start, "start")
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendStringField(b, mpSequence, mp.Sequence)
	b = appendBytesField(b, mpQuality, mp.Quality)
	b = appendStringField(b, mpName, mp.Name)
	b = appendStringField(b, mpSampleName, mp.SampleName)
	b = appendStringField(b, mpReadGroup, mp.ReadGroup)
	for i := range mp.Subpaths {
		sp, err := marshalSubpath(&mp.Subpaths[i])
		if err != nil {
			return nil, err
		}
		b = appendMessageField(b, mpSubpath, sp)
	}
	b = appendVarintField(b, mpMappingQuality, uint64(int64(mp.MappingQuality)))
	b = appendPackedField(b, mpStart, start)
	b = appendStringField(b, mpPairedReadName, mp.PairedReadName)
	if len(mp.Annotation) > 0 {
		annotation, err := marshalAnnotation(mp.Annotation)
		if err != nil {
			return nil, err
		}
		b = appendMessageField(b, mpAnnotation, annotation)
	}
	return append(b, mp.unknown...), nil
}

// UnmarshalMultipath decodes a vg MultipathAlignment message and verifies that
// the subpaths are in topological order
func UnmarshalMultipath(b []byte) (*MultipathAlignment, error) {
	mp := &MultipathAlignment{}
	stringFields := map[protowire.Number]*string{
		mpSequence:       &mp.Sequence,
		mpName:           &mp.Name,
		mpSampleName:     &mp.SampleName,
		mpReadGroup:      &mp.ReadGroup,
		mpPairedReadName: &mp.PairedReadName,
	}
	err := walkMessage(b, &mp.unknown, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if dst, ok := stringFields[num]; ok && typ == protowire.BytesType {
			v, n, err := consumeBytes(typ, b)
			*dst = string(v)
			return n, err
		}
		switch num {
		case mpMappingQuality:
			v, n, err := consumeVarint(typ, b)
			mp.MappingQuality = decodeInt32(v)
			return n, err
		case mpStart:
			return consumeRepeatedVarint(typ, b, func(v uint64) {
				mp.Start = append(mp.Start, int(uint32(v)))
			})
		case mpQuality, mpSubpath, mpAnnotation:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case mpQuality:
				mp.Quality = append([]byte(nil), v...)
			case mpSubpath:
				var sp Subpath
				sp, err = unmarshalSubpath(v)
				mp.Subpaths = append(mp.Subpaths, sp)
			case mpAnnotation:
				mp.Annotation, err = unmarshalAnnotation(v)
			}
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ValidateTopology(mp); err != nil {
		return nil, err
	}
	return mp, nil
}
