package godbf

import (
	"fmt"
	"reflect"
	"time"
)

// readField loads record and returns the raw bytes of field. The slice
// aliases the record cache and is only valid until the next table call.
func (t *Table) readField(record, field int) ([]byte, bool) {
	if record < 0 || record >= t.numRecords || !t.schema.validField(field) {
		return nil, false
	}
	if err := t.loadRecord(record); err != nil {
		return nil, false
	}
	f := t.schema.fields[field]
	return t.cache.buf[f.Offset : f.Offset+f.Width], true
}

// ReadInteger returns the field as an integer. Invalid indices, I/O
// failures, NULLs and malformed text all read as 0.
func (t *Table) ReadInteger(record, field int) int64 {
	raw, ok := t.readField(record, field)
	if !ok {
		return 0
	}
	return decodeInteger(raw)
}

// ReadDouble returns the field as a float, 0 when it cannot be read.
func (t *Table) ReadDouble(record, field int) float64 {
	raw, ok := t.readField(record, field)
	if !ok {
		return 0
	}
	return decodeDouble(raw, t.hooks.Atof)
}

// ReadString returns the field text with surrounding blanks removed. ok is
// false when the record or field does not exist or could not be read.
func (t *Table) ReadString(record, field int) (string, bool) {
	raw, ok := t.readField(record, field)
	if !ok {
		return "", false
	}
	return t.tc.decode(trimBlanks(raw)), true
}

// ReadLogical decodes T/t/Y/y as true and F/f/N/n as false; anything else,
// including NULL, is LogicalUnknown.
func (t *Table) ReadLogical(record, field int) Logical {
	raw, ok := t.readField(record, field)
	if !ok {
		return LogicalUnknown
	}
	return decodeLogical(raw)
}

// ReadDate returns the field as a date, the zero Date when it is not a
// YYYYMMDD value.
func (t *Table) ReadDate(record, field int) Date {
	raw, ok := t.readField(record, field)
	if !ok {
		return Date{}
	}
	return decodeDate(raw)
}

// IsAttributeNull reports whether the field holds the NULL sentinel of its
// type. Fields that cannot be read are reported as NULL.
func (t *Table) IsAttributeNull(record, field int) bool {
	raw, ok := t.readField(record, field)
	if !ok {
		return true
	}
	f := t.schema.fields[field]
	return IsNullValue(f.Type, trimBlanks(raw), f.Width)
}

// ReadTuple returns a copy of the whole record including the deletion flag.
func (t *Table) ReadTuple(record int) ([]byte, bool) {
	if record < 0 || record >= t.numRecords {
		return nil, false
	}
	if err := t.loadRecord(record); err != nil {
		return nil, false
	}
	return append([]byte(nil), t.cache.buf...), true
}

// IsRecordDeleted reports whether record carries the deletion flag.
// Records outside the table are reported as deleted.
func (t *Table) IsRecordDeleted(record int) bool {
	if record < 0 || record >= t.numRecords {
		return true
	}
	if err := t.loadRecord(record); err != nil {
		return false
	}
	return t.cache.buf[0] == deletedFlag
}

// ReadStruct copies record into the struct v points to. Fields are matched
// to columns through their dbf tag (or Go name); NULL attributes and columns
// missing from the table leave the struct field untouched.
func (t *Table) ReadStruct(record int, v any) error {
	if record < 0 || record >= t.numRecords {
		return fmt.Errorf("%w: record %d out of range", ErrInvalidArgument, record)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: ReadStruct requires a non-nil pointer to a struct", ErrInvalidArgument)
	}
	rv = rv.Elem()
	cols, err := structColumns(rv.Type())
	if err != nil {
		return err
	}
	return t.readStruct(record, rv, cols)
}

// ReadStructs reads records [start, end) into the slice v points to, which
// must hold at least end-start elements.
func (t *Table) ReadStructs(start, end int, v any) error {
	if start < 0 || end > t.numRecords || start > end {
		return fmt.Errorf("%w: records [%d, %d) out of range", ErrInvalidArgument, start, end)
	}
	rt := reflect.TypeOf(v)
	if rt == nil || rt.Kind() != reflect.Ptr || rt.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: ReadStructs requires a pointer to a slice", ErrInvalidArgument)
	}
	rv := reflect.ValueOf(v).Elem()
	if rv.Len() < end-start {
		return fmt.Errorf("%w: slice holds %d elements, need %d", ErrInvalidArgument, rv.Len(), end-start)
	}
	cols, err := structColumns(rt.Elem().Elem())
	if err != nil {
		return err
	}
	for i := start; i < end; i++ {
		if err := t.readStruct(i, rv.Index(i-start), cols); err != nil {
			return err
		}
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

func (t *Table) readStruct(record int, rv reflect.Value, cols []structColumn) error {
	for _, col := range cols {
		field := t.schema.index(col.name)
		if field < 0 || t.IsAttributeNull(record, field) {
			continue
		}
		fv := rv.Field(col.index)
		switch fv.Kind() {
		case reflect.String:
			s, _ := t.ReadString(record, field)
			fv.SetString(s)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(t.ReadInteger(record, field))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n := t.ReadInteger(record, field)
			if n < 0 {
				return fmt.Errorf("%w: negative value %d in column %s for %s", ErrInvalidArgument, n, col.name, fv.Type())
			}
			fv.SetUint(uint64(n))
		case reflect.Float32, reflect.Float64:
			fv.SetFloat(t.ReadDouble(record, field))
		case reflect.Bool:
			fv.SetBool(t.ReadLogical(record, field) == LogicalTrue)
		case reflect.Struct:
			if fv.Type() != timeType {
				return fmt.Errorf("%w: unsupported type %s for column %s", ErrInvalidArgument, fv.Type(), col.name)
			}
			d := t.ReadDate(record, field)
			if !d.IsZero() {
				fv.Set(reflect.ValueOf(time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)))
			}
		default:
			return fmt.Errorf("%w: unsupported type %s for column %s", ErrInvalidArgument, fv.Type(), col.name)
		}
	}
	return nil
}
