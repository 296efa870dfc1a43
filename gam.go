/*
 *  gam.go
 *  gax
 *
 *  Created by Haibao Tang on 03/10/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Alignment field numbers in vg.proto
const (
	alnSequence            = 1
	alnPath                = 2
	alnName                = 3
	alnQuality             = 4
	alnMappingQuality      = 5
	alnScore               = 6
	alnQueryPosition       = 7
	alnSampleName          = 9
	alnReadGroup           = 10
	alnFragmentPrev        = 11
	alnFragmentNext        = 12
	alnIsSecondary         = 15
	alnIdentity            = 16
	alnRefPos              = 19
	alnReadPaired          = 20
	alnReadMapped          = 21
	alnMateUnmapped        = 22
	alnReadOnReverseStrand = 23
	alnMateOnReverseStrand = 24
	alnSoftClipped         = 25
	alnDiscordantInsert    = 26
	alnSecondaryScore      = 29
	alnAnnotation          = 100
)

// MarshalAlignment encodes an alignment as a vg Alignment message. Fields the
// decoder did not recognize are written back unchanged.
func MarshalAlignment(aln *Alignment) ([]byte, error) {
	var b []byte
	b = appendStringField(b, alnSequence, aln.Sequence)
	path, err := marshalPath(&aln.Path)
	if err != nil {
		return nil, err
	}
	if len(path) > 0 {
		b = appendMessageField(b, alnPath, path)
	}
	b = appendStringField(b, alnName, aln.Name)
	b = appendBytesField(b, alnQuality, aln.Quality)
	b = appendVarintField(b, alnMappingQuality, uint64(int64(aln.MappingQuality)))
	b = appendVarintField(b, alnScore, uint64(int64(aln.Score)))
	b = appendVarintField(b, alnQueryPosition, uint64(int64(aln.QueryPosition)))
	b = appendStringField(b, alnSampleName, aln.SampleName)
	b = appendStringField(b, alnReadGroup, aln.ReadGroup)
	if aln.FragmentPrev != nil {
		b = appendMessageField(b, alnFragmentPrev, appendStringField(nil, alnName, aln.FragmentPrev.Name))
	}
	if aln.FragmentNext != nil {
		b = appendMessageField(b, alnFragmentNext, appendStringField(nil, alnName, aln.FragmentNext.Name))
	}
	b = appendBoolField(b, alnIsSecondary, aln.IsSecondary)
	b = appendDoubleField(b, alnIdentity, aln.Identity)
	for i := range aln.RefPos {
		b = appendMessageField(b, alnRefPos, marshalPosition(&aln.RefPos[i]))
	}
	b = appendBoolField(b, alnReadPaired, aln.ReadPaired)
	b = appendBoolField(b, alnReadMapped, aln.ReadMapped)
	b = appendBoolField(b, alnMateUnmapped, aln.MateUnmapped)
	b = appendBoolField(b, alnReadOnReverseStrand, aln.ReadOnReverseStrand)
	b = appendBoolField(b, alnMateOnReverseStrand, aln.MateOnReverseStrand)
	b = appendBoolField(b, alnSoftClipped, aln.SoftClipped)
	b = appendBoolField(b, alnDiscordantInsert, aln.DiscordantInsert)
	scores := make([]uint64, len(aln.SecondaryScore))
	for i, s := range aln.SecondaryScore {
		scores[i] = uint64(int64(s))
	}
	b = appendPackedField(b, alnSecondaryScore, scores)
	if len(aln.Annotation) > 0 {
		annotation, err := marshalAnnotation(aln.Annotation)
		if err != nil {
			return nil, err
		}
		b = appendMessageField(b, alnAnnotation, annotation)
	}
	return append(b, aln.unknown...), nil
}

// fragmentName pulls the name out of a nested fragment Alignment
func fragmentName(b []byte) (*FragmentRef, error) {
	ref := &FragmentRef{Index: -1}
	err := walkMessage(b, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != alnName {
			return 0, nil
		}
		v, n, err := consumeBytes(typ, b)
		ref.Name = string(v)
		return n, err
	})
	return ref, err
}

// UnmarshalAlignment decodes a vg Alignment message. Every edit is checked to
// be one of the four variants.
func UnmarshalAlignment(b []byte) (*Alignment, error) {
	aln := &Alignment{}
	boolFields := map[protowire.Number]*bool{
		alnIsSecondary:         &aln.IsSecondary,
		alnReadPaired:          &aln.ReadPaired,
		alnReadMapped:          &aln.ReadMapped,
		alnMateUnmapped:        &aln.MateUnmapped,
		alnReadOnReverseStrand: &aln.ReadOnReverseStrand,
		alnMateOnReverseStrand: &aln.MateOnReverseStrand,
		alnSoftClipped:         &aln.SoftClipped,
		alnDiscordantInsert:    &aln.DiscordantInsert,
	}
	int32Fields := map[protowire.Number]*int32{
		alnMappingQuality: &aln.MappingQuality,
		alnScore:          &aln.Score,
		alnQueryPosition:  &aln.QueryPosition,
	}
	stringFields := map[protowire.Number]*string{
		alnSequence:   &aln.Sequence,
		alnName:       &aln.Name,
		alnSampleName: &aln.SampleName,
		alnReadGroup:  &aln.ReadGroup,
	}

	err := walkMessage(b, &aln.unknown, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if dst, ok := boolFields[num]; ok && typ == protowire.VarintType {
			v, n, err := consumeVarint(typ, b)
			*dst = protowire.DecodeBool(v)
			return n, err
		}
		if dst, ok := int32Fields[num]; ok && typ == protowire.VarintType {
			v, n, err := consumeVarint(typ, b)
			*dst = decodeInt32(v)
			return n, err
		}
		if dst, ok := stringFields[num]; ok && typ == protowire.BytesType {
			v, n, err := consumeBytes(typ, b)
			*dst = string(v)
			return n, err
		}
		switch {
		case num == alnIdentity && typ == protowire.Fixed64Type:
			v, n, err := consumeDouble(typ, b)
			aln.Identity = v
			return n, err
		case num == alnSecondaryScore:
			return consumeRepeatedVarint(typ, b, func(v uint64) {
				aln.SecondaryScore = append(aln.SecondaryScore, decodeInt32(v))
			})
		case typ != protowire.BytesType:
			return 0, nil
		}

		v, n, err := consumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		switch num {
		case alnPath:
			aln.Path, err = unmarshalPath(v)
		case alnQuality:
			aln.Quality = append([]byte(nil), v...)
		case alnFragmentPrev:
			aln.FragmentPrev, err = fragmentName(v)
		case alnFragmentNext:
			aln.FragmentNext, err = fragmentName(v)
		case alnRefPos:
			var p Position
			p, err = unmarshalPosition(v)
			aln.RefPos = append(aln.RefPos, p)
		case alnAnnotation:
			aln.Annotation, err = unmarshalAnnotation(v)
		default:
			return 0, nil
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	return aln, nil
}
