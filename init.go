package godbf

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"strings"
)

func (t *Table) initMetaData() error {
	if err := t.initHeader(); err != nil {
		return err
	}
	return t.initFields()
}

func (t *Table) initHeader() error {
	var h DBFHeader
	if err := binary.Read(t.f, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("%w: read file header of %s: %w", ErrCorruptHeader, t.path, err)
	}
	h.NumRecords &= recordCountMask
	if h.RecordLength == 0 || h.HeaderLength < fileHeaderSize {
		return fmt.Errorf("%w: %s: header length %d, record length %d",
			ErrCorruptHeader, t.path, h.HeaderLength, h.RecordLength)
	}

	t.header = h
	t.numRecords = int(h.NumRecords)
	t.languageDriver = int(h.LanguageDriverID)
	t.updateYear = int(h.LastUpdateYear)
	t.updateMonth = int(h.LastUpdateMonth)
	t.updateDay = int(h.LastUpdateDay)
	return nil
}

func (t *Table) initFields() error {
	headerLength := int(t.header.HeaderLength)
	raw := make([]byte, headerLength-fileHeaderSize)
	if _, err := t.f.Seek(fileHeaderSize, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to field table of %s: %w", ErrIO, t.path, err)
	}
	if _, err := io.ReadFull(t.f, raw); err != nil {
		return fmt.Errorf("%w: read field table of %s: %w", ErrCorruptHeader, t.path, err)
	}

	s, err := parseSchema(raw, headerLength, int(t.header.RecordLength))
	if err != nil {
		return fmt.Errorf("%s: %w", t.path, err)
	}
	t.schema = s
	return nil
}

// structColumn binds one exported struct field to a table column.
type structColumn struct {
	name  string
	index int
}

// structColumns lists the columns a struct type maps to. The column name is
// the dbf tag or, without one, the Go field name; "-" skips the field.
func structColumns(rt reflect.Type) ([]structColumn, error) {
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: model must be a struct, not a %v", ErrInvalidArgument, rt.Kind())
	}
	var cols []structColumn
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.PkgPath != "" || field.Anonymous {
			continue
		}
		tag := field.Tag.Get("dbf")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}
		cols = append(cols, structColumn{name: name, index: i})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: model has no mapped fields", ErrInvalidArgument)
	}
	return cols, nil
}
