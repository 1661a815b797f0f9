package godbf

import (
	"fmt"
	"strings"
)

// NativeType is the one byte type tag stored in a field descriptor.
type NativeType byte

const (
	TypeCharacter NativeType = 'C'
	TypeNumber    NativeType = 'N'
	TypeFloat     NativeType = 'F'
	TypeLogical   NativeType = 'L'
	TypeDate      NativeType = 'D'
)

func (t NativeType) numeric() bool { return t == TypeNumber || t == TypeFloat }

func (t NativeType) String() string { return string(rune(t)) }

// FieldType is the coarse classification of a field by the value it holds.
type FieldType int

const (
	FTString FieldType = iota
	FTInteger
	FTDouble
	FTLogical
	FTDate
	FTInvalid
)

func (ft FieldType) String() string {
	switch ft {
	case FTString:
		return "string"
	case FTInteger:
		return "integer"
	case FTDouble:
		return "double"
	case FTLogical:
		return "logical"
	case FTDate:
		return "date"
	default:
		return "invalid"
	}
}

func (ft FieldType) nativeType() NativeType {
	switch ft {
	case FTLogical:
		return TypeLogical
	case FTDate:
		return TypeDate
	case FTString:
		return TypeCharacter
	default:
		return TypeNumber
	}
}

// Field describes one column. Offset is the byte position inside a record;
// the first field starts at 1 after the deletion flag.
type Field struct {
	Name     string
	Type     NativeType
	Width    int
	Decimals int
	Offset   int

	desc FieldDescriptor
}

// FieldType classifies the field the way readers are expected to consume it.
func (f Field) FieldType() FieldType {
	switch {
	case f.Type == TypeLogical:
		return FTLogical
	case f.Type == TypeDate:
		return FTDate
	case f.Type.numeric():
		if f.Decimals > 0 || f.Width >= 10 {
			return FTDouble
		}
		return FTInteger
	default:
		return FTString
	}
}

func fieldFromDescriptor(d FieldDescriptor) Field {
	f := Field{
		Name:  d.name(),
		Type:  NativeType(d.Type),
		Width: int(d.Length),
		desc:  d,
	}
	if f.Type.numeric() {
		f.Decimals = int(d.Decimal)
	}
	return f
}

func newField(name string, t NativeType, width, decimals int) Field {
	return fieldFromDescriptor(newFieldDescriptor(name, t, width, decimals))
}

// schema is the ordered field table plus the derived lengths. It is owned by
// exactly one Table and rebuilt on every structural edit.
type schema struct {
	fields       []Field
	headerLength int
	recordLength int
}

func emptySchema() schema {
	return schema{headerLength: fileHeaderSize + 1, recordLength: 1}
}

// layout recomputes contiguous offsets starting after the deletion flag and
// returns the end offset.
func (s *schema) layout() int {
	off := 1
	for i := range s.fields {
		s.fields[i].Offset = off
		off += s.fields[i].Width
	}
	return off
}

func (s *schema) clone() schema {
	c := *s
	c.fields = append([]Field(nil), s.fields...)
	return c
}

func (s *schema) validField(i int) bool { return i >= 0 && i < len(s.fields) }

func (s *schema) index(name string) int {
	for i, f := range s.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// descriptorBytes renders the field table as stored after the file header.
func (s *schema) descriptorBytes() []byte {
	b := make([]byte, 0, len(s.fields)*fieldHeaderSize)
	for i := range s.fields {
		b = append(b, s.fields[i].desc.bytes()...)
	}
	return b
}

// parseSchema decodes the bytes following the file header. Parsing stops at
// the terminator byte or once the declared count is exhausted.
func parseSchema(raw []byte, headerLength, recordLength int) (schema, error) {
	s := schema{headerLength: headerLength, recordLength: recordLength}
	n := (headerLength - fileHeaderSize) / fieldHeaderSize
	for i := 0; i < n; i++ {
		entry := raw[i*fieldHeaderSize : (i+1)*fieldHeaderSize]
		if entry[0] == headerTerminator {
			break
		}
		s.fields = append(s.fields, fieldFromDescriptor(parseFieldDescriptor(entry)))
	}
	if end := s.layout(); len(s.fields) > 0 && end > recordLength {
		return schema{}, fmt.Errorf("%w: fields end at %d, record length %d", ErrSchemaOverflow, end, recordLength)
	}
	return s, nil
}
