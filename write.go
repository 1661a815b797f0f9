package godbf

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// beginWrite validates the target and makes record the cached record.
// Writing at index RecordCount() appends a blank record.
func (t *Table) beginWrite(record, field int) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if record < 0 || record > t.numRecords {
		return fmt.Errorf("%w: record %d out of range [0, %d]", ErrInvalidArgument, record, t.numRecords)
	}
	if field != -1 && !t.schema.validField(field) {
		return fmt.Errorf("%w: field %d out of range", ErrInvalidArgument, field)
	}
	if t.noHeader {
		if err := t.writeHeader(); err != nil {
			return err
		}
	}

	if record == t.numRecords {
		if err := t.flushRecord(); err != nil {
			return err
		}
		t.numRecords++
		for i := range t.cache.buf {
			t.cache.buf[i] = SPACE
		}
		t.cache.index = record
	}
	if err := t.loadRecord(record); err != nil {
		return err
	}

	t.cache.modified = true
	t.updated = true
	return nil
}

func (t *Table) fieldBytes(field int) ([]byte, Field) {
	f := t.schema.fields[field]
	return t.cache.buf[f.Offset : f.Offset+f.Width], f
}

// writeNumber stores value with the field's width and decimals. D fields are
// formatted like numbers, so 20240131 lands as the date YYYYMMDD.
func (t *Table) writeNumber(record, field int, value float64) error {
	if err := t.beginWrite(record, field); err != nil {
		return err
	}
	dst, f := t.fieldBytes(field)
	switch f.Type {
	case TypeNumber, TypeFloat, TypeDate:
		s, exact := encodeNumber(value, f.Width, f.Decimals)
		copy(dst, s)
		if !exact {
			return fmt.Errorf("%w: %v in field %s (width %d)", ErrLossyWrite, value, f.Name, f.Width)
		}
		return nil
	case TypeLogical:
		return fmt.Errorf("%w: number written to logical field %s", ErrInvalidArgument, f.Name)
	default:
		s, _ := encodeNumber(value, 0, f.Decimals)
		if !encodeText(dst, s) {
			return fmt.Errorf("%w: %v in field %s (width %d)", ErrLossyWrite, value, f.Name, f.Width)
		}
		return nil
	}
}

// WriteDouble stores value as fixed point text. If it does not fit the
// field is filled with the leading characters and ErrLossyWrite is returned.
func (t *Table) WriteDouble(record, field int, value float64) error {
	return t.writeNumber(record, field, value)
}

// WriteInteger stores value through the same formatting as WriteDouble.
func (t *Table) WriteInteger(record, field int, value int64) error {
	return t.writeNumber(record, field, float64(value))
}

// WriteString stores value left-justified and blank padded. Text longer
// than the field is truncated and ErrLossyWrite is returned.
func (t *Table) WriteString(record, field int, value string) error {
	if err := t.beginWrite(record, field); err != nil {
		return err
	}
	dst, f := t.fieldBytes(field)
	if !encodeText(dst, t.tc.encode(value)) {
		return fmt.Errorf("%w: %d bytes in field %s (width %d)", ErrLossyWrite, len(value), f.Name, f.Width)
	}
	return nil
}

// WriteLogical stores 'T' or 'F'; any other value is rejected.
func (t *Table) WriteLogical(record, field int, value byte) error {
	if err := t.beginWrite(record, field); err != nil {
		return err
	}
	dst, f := t.fieldBytes(field)
	if f.Width < 1 || (value != 'T' && value != 'F') {
		return fmt.Errorf("%w: logical value %q for field %s", ErrInvalidArgument, value, f.Name)
	}
	dst[0] = value
	return nil
}

// WriteBool stores b as 'T' or 'F'.
func (t *Table) WriteBool(record, field int, b bool) error {
	if b {
		return t.WriteLogical(record, field, 'T')
	}
	return t.WriteLogical(record, field, 'F')
}

// WriteDate stores d as YYYYMMDD. Only the digit ranges are checked, not
// calendar validity.
func (t *Table) WriteDate(record, field int, d Date) error {
	if !d.valid() {
		return fmt.Errorf("%w: date %d-%d-%d out of range", ErrInvalidArgument, d.Year, d.Month, d.Day)
	}
	return t.WriteAttributeDirectly(record, field, []byte(d.String()))
}

// WriteNull fills the field with the NULL pattern of its type.
func (t *Table) WriteNull(record, field int) error {
	if err := t.beginWrite(record, field); err != nil {
		return err
	}
	dst, f := t.fieldBytes(field)
	encodeNull(dst, f.Type)
	return nil
}

// WriteAttributeDirectly copies value into the field without formatting,
// blank padding short values and truncating long ones.
func (t *Table) WriteAttributeDirectly(record, field int, value []byte) error {
	if err := t.beginWrite(record, field); err != nil {
		return err
	}
	dst, _ := t.fieldBytes(field)
	encodeText(dst, value)
	return nil
}

// WriteTuple replaces the whole record, deletion flag included, with the
// first RecordLength() bytes of raw.
func (t *Table) WriteTuple(record int, raw []byte) error {
	if len(raw) < t.schema.recordLength {
		return fmt.Errorf("%w: tuple of %d bytes, record length %d", ErrInvalidArgument, len(raw), t.schema.recordLength)
	}
	if err := t.beginWrite(record, -1); err != nil {
		return err
	}
	copy(t.cache.buf, raw[:t.schema.recordLength])
	return nil
}

// MarkRecordDeleted sets or clears the deletion flag of an existing record.
func (t *Table) MarkRecordDeleted(record int, deleted bool) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if record < 0 || record >= t.numRecords {
		return fmt.Errorf("%w: record %d out of range", ErrInvalidArgument, record)
	}
	if err := t.loadRecord(record); err != nil {
		return err
	}
	flag := byte(SPACE)
	if deleted {
		flag = deletedFlag
	}
	if t.cache.buf[0] != flag {
		t.cache.buf[0] = flag
		t.cache.modified = true
		t.updated = true
	}
	return nil
}

// AppendStruct writes the struct v points to as a new record and returns
// its index. A lossy field is still written; the first ErrLossyWrite is
// returned after all fields are stored.
func (t *Table) AppendStruct(v any) (int, error) {
	record := t.numRecords
	return record, t.WriteStruct(record, v)
}

// WriteStruct stores the struct v points to in record. Zero time.Time
// values are written as NULL dates.
func (t *Table) WriteStruct(record int, v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return fmt.Errorf("%w: WriteStruct requires a struct", ErrInvalidArgument)
	}
	cols, err := structColumns(rv.Type())
	if err != nil {
		return err
	}
	fields := make([]int, len(cols))
	for i, col := range cols {
		if fields[i] = t.schema.index(col.name); fields[i] < 0 {
			return fmt.Errorf("%w: column %s not found", ErrInvalidArgument, col.name)
		}
	}

	var lossy error
	for i, col := range cols {
		field := fields[i]
		fv := rv.Field(col.index)
		var err error
		switch fv.Kind() {
		case reflect.String:
			err = t.WriteString(record, field, fv.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			err = t.WriteInteger(record, field, fv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			err = t.WriteInteger(record, field, int64(fv.Uint()))
		case reflect.Float32, reflect.Float64:
			err = t.WriteDouble(record, field, fv.Float())
		case reflect.Bool:
			err = t.WriteBool(record, field, fv.Bool())
		case reflect.Struct:
			if fv.Type() != timeType {
				return fmt.Errorf("%w: unsupported type %s for column %s", ErrInvalidArgument, fv.Type(), col.name)
			}
			if tm := fv.Interface().(time.Time); tm.IsZero() {
				err = t.WriteNull(record, field)
			} else {
				err = t.WriteDate(record, field, Date{Year: tm.Year(), Month: int(tm.Month()), Day: tm.Day()})
			}
		default:
			return fmt.Errorf("%w: unsupported type %s for column %s", ErrInvalidArgument, fv.Type(), col.name)
		}
		if errors.Is(err, ErrLossyWrite) {
			if lossy == nil {
				lossy = err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return lossy
}
