package godbf

import (
	"fmt"
	"io"
)

// Schema edits rewrite every record in place. When the record stride grows
// the pass runs from the last record to the first, when it shrinks from the
// first to the last, so no record is overwritten before it has been read.
//
// A failed pass leaves the field table already changed in memory and the file
// partly rewritten. The table should be closed and not used further.

func (t *Table) beginSchemaEdit() error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	return t.flushRecord()
}

func (t *Table) readAt(off int64, buf []byte) error {
	t.cache.requireSeek = true
	if _, err := t.f.Seek(off, io.SeekStart); err != nil {
		return t.ioFailure("seek(%d) failed on DBF file: %v", off, err)
	}
	if _, err := io.ReadFull(t.f, buf); err != nil {
		return t.ioFailure("read(%d) failed on DBF file: %v", len(buf), err)
	}
	return nil
}

func (t *Table) writeAt(off int64, buf []byte) error {
	t.cache.requireSeek = true
	if _, err := t.f.Seek(off, io.SeekStart); err != nil {
		return t.ioFailure("seek(%d) failed on DBF file: %v", off, err)
	}
	if _, err := t.f.Write(buf); err != nil {
		return t.ioFailure("write(%d) failed on DBF file: %v", len(buf), err)
	}
	return nil
}

func (t *Table) writeEOFMarker() error {
	if !t.writeEOF {
		return nil
	}
	return t.writeAt(t.schema.recordOffset(t.numRecords), []byte{EOF})
}

// truncateToContent drops bytes left behind after the records shrank.
func (t *Table) truncateToContent() error {
	size := t.schema.recordOffset(t.numRecords)
	if t.writeEOF {
		size++
	}
	if err := t.f.Truncate(size); err != nil {
		return t.ioFailure("truncate %s to %d bytes: %v", t.path, size, err)
	}
	return nil
}

// AddField appends a field and returns its index. Existing records get the
// NULL pattern of typ in the new field.
func (t *Table) AddField(name string, typ NativeType, width, decimals int) (idx int, err error) {
	defer func() { t.metrics.schemaEdit("add_field", err) }()

	if err := t.beginSchemaEdit(); err != nil {
		return -1, err
	}
	if t.schema.headerLength+fieldHeaderSize > maxHeaderLength {
		return -1, t.limitExceeded("cannot add field %s: header length limit reached (max %d bytes, %d fields)",
			name, maxHeaderLength, (maxHeaderLength-fileHeaderSize-1)/fieldHeaderSize)
	}
	if width < 1 {
		return -1, fmt.Errorf("%w: field %s width %d", ErrInvalidArgument, name, width)
	}
	if width > maxFieldWidth {
		return -1, t.limitExceeded("cannot add field %s: width %d exceeds %d", name, width, maxFieldWidth)
	}
	if t.schema.recordLength+width > maxRecordLength {
		return -1, t.limitExceeded("cannot add field %s: record length limit reached (max %d bytes)",
			name, maxRecordLength)
	}

	old := t.schema
	s := old.clone()
	f := newField(name, typ, width, decimals)
	f.Offset = old.recordLength
	s.fields = append(s.fields, f)
	s.recordLength += width
	s.headerLength += fieldHeaderSize

	t.schema = s
	t.updated = false
	t.invalidateCache()
	idx = len(s.fields) - 1

	if t.noHeader {
		return idx, nil
	}

	rec := make([]byte, s.recordLength)
	for r := t.numRecords - 1; r >= 0; r-- {
		if err := t.readAt(old.recordOffset(r), rec[:old.recordLength]); err != nil {
			return -1, err
		}
		encodeNull(rec[old.recordLength:], typ)
		if err := t.writeAt(s.recordOffset(r), rec); err != nil {
			return -1, err
		}
	}
	if err := t.writeEOFMarker(); err != nil {
		return -1, err
	}

	t.noHeader = true
	if err := t.updateHeader(); err != nil {
		return -1, err
	}
	t.updated = true
	t.logger.Debug("dbf: field added", "path", t.path, "field", name, "type", typ, "width", width, "records", t.numRecords)
	return idx, nil
}

// AddFieldOfType adds a field described by its coarse type: FTString maps
// to C, FTLogical to L, FTDate to D and the numeric types to N.
func (t *Table) AddFieldOfType(name string, ft FieldType, width, decimals int) (int, error) {
	if ft == FTInvalid {
		return -1, fmt.Errorf("%w: field %s has invalid type", ErrInvalidArgument, name)
	}
	if ft == FTInteger {
		decimals = 0
	}
	return t.AddField(name, ft.nativeType(), width, decimals)
}

// DeleteField removes field i and its bytes from every record.
func (t *Table) DeleteField(i int) (err error) {
	defer func() { t.metrics.schemaEdit("delete_field", err) }()

	if err := t.beginSchemaEdit(); err != nil {
		return err
	}
	if !t.schema.validField(i) {
		return fmt.Errorf("%w: field %d out of range", ErrInvalidArgument, i)
	}

	old := t.schema
	del := old.fields[i]
	s := schema{
		fields:       make([]Field, 0, len(old.fields)-1),
		headerLength: old.headerLength - fieldHeaderSize,
		recordLength: old.recordLength - del.Width,
	}
	s.fields = append(s.fields, old.fields[:i]...)
	for _, f := range old.fields[i+1:] {
		f.Offset -= del.Width
		s.fields = append(s.fields, f)
	}

	t.schema = s
	t.invalidateCache()

	if t.noHeader && t.numRecords == 0 {
		return nil
	}

	t.noHeader = true
	if err := t.updateHeader(); err != nil {
		return err
	}

	rec := make([]byte, old.recordLength)
	for r := 0; r < t.numRecords; r++ {
		if err := t.readAt(old.recordOffset(r), rec); err != nil {
			return err
		}
		copy(rec[del.Offset:], rec[del.Offset+del.Width:])
		if err := t.writeAt(s.recordOffset(r), rec[:s.recordLength]); err != nil {
			return err
		}
	}
	if err := t.writeEOFMarker(); err != nil {
		return err
	}
	if err := t.truncateToContent(); err != nil {
		return err
	}

	t.updated = true
	t.logger.Debug("dbf: field deleted", "path", t.path, "field", del.Name, "records", t.numRecords)
	return nil
}

// ReorderFields rearranges the fields so that new position i holds the field
// previously at perm[i]. perm must be a permutation of [0, FieldCount()).
func (t *Table) ReorderFields(perm []int) (err error) {
	defer func() { t.metrics.schemaEdit("reorder_fields", err) }()

	n := len(t.schema.fields)
	if len(perm) != n {
		return fmt.Errorf("%w: permutation of %d entries for %d fields", ErrInvalidArgument, len(perm), n)
	}
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return fmt.Errorf("%w: %v is not a permutation of the fields", ErrInvalidArgument, perm)
		}
		seen[p] = true
	}
	if n == 0 {
		return nil
	}
	if err := t.beginSchemaEdit(); err != nil {
		return err
	}

	old := t.schema
	s := schema{
		fields:       make([]Field, n),
		headerLength: old.headerLength,
		recordLength: old.recordLength,
	}
	for i, p := range perm {
		s.fields[i] = old.fields[p]
	}
	s.layout()

	t.schema = s
	t.invalidateCache()

	if !(t.noHeader && t.numRecords == 0) {
		t.noHeader = true
		if err := t.updateHeader(); err != nil {
			return err
		}

		rec := make([]byte, s.recordLength)
		out := make([]byte, s.recordLength)
		for r := 0; r < t.numRecords; r++ {
			off := s.recordOffset(r)
			if err := t.readAt(off, rec); err != nil {
				return err
			}
			copy(out, rec)
			for i, p := range perm {
				src := old.fields[p]
				copy(out[s.fields[i].Offset:s.fields[i].Offset+src.Width], rec[src.Offset:src.Offset+src.Width])
			}
			if err := t.writeAt(off, out); err != nil {
				return err
			}
		}
	}

	t.updated = true
	t.logger.Debug("dbf: fields reordered", "path", t.path, "records", t.numRecords)
	return nil
}

// AlterFieldDefn changes the name, type, width and decimals of field i and
// converts every record. Narrowing drops the leading characters of blank
// padded numbers and dates and the trailing characters of anything else, and
// does not report the loss. NULL values stay NULL under the new type.
func (t *Table) AlterFieldDefn(i int, name string, typ NativeType, width, decimals int) (err error) {
	defer func() { t.metrics.schemaEdit("alter_field", err) }()

	if err := t.beginSchemaEdit(); err != nil {
		return err
	}
	if !t.schema.validField(i) {
		return fmt.Errorf("%w: field %d out of range", ErrInvalidArgument, i)
	}
	if width < 1 {
		return fmt.Errorf("%w: field %s width %d", ErrInvalidArgument, name, width)
	}
	if width > maxFieldWidth {
		return t.limitExceeded("cannot alter field %s: width %d exceeds %d", name, width, maxFieldWidth)
	}

	old := t.schema
	of := old.fields[i]
	delta := width - of.Width
	if old.recordLength+delta > maxRecordLength {
		return t.limitExceeded("cannot alter field %s: record length limit reached (max %d bytes)",
			name, maxRecordLength)
	}

	s := old.clone()
	nf := newField(name, typ, width, decimals)
	nf.Offset = of.Offset
	s.fields[i] = nf
	for j := i + 1; j < len(s.fields); j++ {
		s.fields[j].Offset += delta
	}
	s.recordLength += delta

	t.schema = s
	t.invalidateCache()

	if t.noHeader && t.numRecords == 0 {
		return nil
	}

	t.noHeader = true
	if err := t.updateHeader(); err != nil {
		return err
	}

	off, oldW := of.Offset, of.Width
	rec := make([]byte, max(old.recordLength, s.recordLength))

	switch {
	case width < oldW || (width == oldW && typ != of.Type):
		for r := 0; r < t.numRecords; r++ {
			if err := t.readAt(old.recordOffset(r), rec[:old.recordLength]); err != nil {
				return err
			}
			wasNull := IsNullValue(of.Type, rec[off:off+oldW], oldW)
			if delta != 0 {
				if (of.Type.numeric() || of.Type == TypeDate) && rec[off] == SPACE {
					copy(rec[off:off+width], rec[off+oldW-width:off+oldW])
				}
				copy(rec[off+width:], rec[off+oldW:old.recordLength])
			}
			if wasNull {
				encodeNull(rec[off:off+width], typ)
			}
			if err := t.writeAt(s.recordOffset(r), rec[:s.recordLength]); err != nil {
				return err
			}
		}
		if err := t.writeEOFMarker(); err != nil {
			return err
		}
		if err := t.truncateToContent(); err != nil {
			return err
		}

	case width > oldW:
		for r := t.numRecords - 1; r >= 0; r-- {
			if err := t.readAt(old.recordOffset(r), rec[:old.recordLength]); err != nil {
				return err
			}
			wasNull := IsNullValue(of.Type, rec[off:off+oldW], oldW)
			copy(rec[off+width:], rec[off+oldW:old.recordLength])
			switch {
			case wasNull:
				encodeNull(rec[off:off+width], typ)
			case of.Type.numeric():
				// right-justify the old value
				copy(rec[off+delta:off+width], rec[off:off+oldW])
				fillSpaces(rec[off : off+delta])
			default:
				fillSpaces(rec[off+oldW : off+width])
			}
			if err := t.writeAt(s.recordOffset(r), rec[:s.recordLength]); err != nil {
				return err
			}
		}
		if err := t.writeEOFMarker(); err != nil {
			return err
		}
	}

	t.updated = true
	t.logger.Debug("dbf: field altered",
		"path", t.path,
		"field", name,
		"type", typ,
		"oldWidth", oldW,
		"width", width,
		"records", t.numRecords,
	)
	return nil
}

func fillSpaces(b []byte) {
	for i := range b {
		b[i] = SPACE
	}
}
