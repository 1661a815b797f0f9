package godbf

import (
	"bytes"
	"fmt"
)

// Logical is the decoded value of an L field.
type Logical int8

const (
	LogicalUnknown Logical = iota
	LogicalFalse
	LogicalTrue
)

func (l Logical) String() string {
	switch l {
	case LogicalTrue:
		return "T"
	case LogicalFalse:
		return "F"
	default:
		return "?"
	}
}

// Date is a calendar date as stored in a D field. The zero value stands for
// an empty or malformed date.
type Date struct {
	Year, Month, Day int
}

func (d Date) IsZero() bool { return d == Date{} }

// String renders the date as YYYYMMDD.
func (d Date) String() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

func (d Date) valid() bool {
	return d.Year >= 0 && d.Year <= 9999 &&
		d.Month >= 0 && d.Month <= 99 &&
		d.Day >= 0 && d.Day <= 99
}

// nullFill returns the byte a NULL value of type t is padded with.
func nullFill(t NativeType) byte {
	switch t {
	case TypeNumber, TypeFloat:
		return '*'
	case TypeDate:
		return '0'
	case TypeLogical:
		return '?'
	default:
		return ' '
	}
}

// IsNullValue reports whether value holds the NULL sentinel of type t.
// Attribute readers pass the blank-trimmed text, record migrations pass the
// raw field bytes; width is the declared field width.
func IsNullValue(t NativeType, value []byte, width int) bool {
	switch t {
	case TypeNumber, TypeFloat:
		// all asterisks or all blanks
		if len(value) > 0 && value[0] == '*' {
			return true
		}
		for _, c := range value {
			if c != ' ' {
				return false
			}
		}
		return true

	case TypeDate:
		if len(value) == 0 || bytes.HasPrefix(value, []byte("00000000")) ||
			string(value) == " " || string(value) == "0" {
			return true
		}
		for i := 0; i < width; i++ {
			if i >= len(value) || value[i] != '0' {
				return false
			}
		}
		return true

	case TypeLogical:
		return len(value) > 0 && value[0] == '?'

	default:
		return len(value) == 0
	}
}

func trimBlanks(b []byte) []byte {
	return bytes.Trim(b, " ")
}

func decodeInteger(raw []byte) int64 {
	return atoi(string(raw))
}

func decodeDouble(raw []byte, atof func(string) float64) float64 {
	return atof(string(raw))
}

func decodeLogical(raw []byte) Logical {
	v := trimBlanks(raw)
	if len(v) == 0 {
		return LogicalUnknown
	}
	switch v[0] {
	case 'T', 't', 'Y', 'y':
		return LogicalTrue
	case 'F', 'f', 'N', 'n':
		return LogicalFalse
	default:
		return LogicalUnknown
	}
}

// decodeDate expects eight digits YYYYMMDD; anything else is the zero date.
func decodeDate(raw []byte) Date {
	v := trimBlanks(raw)
	if len(v) < 8 {
		return Date{}
	}
	for _, c := range v[:8] {
		if !isDigit(c) {
			return Date{}
		}
	}
	return Date{
		Year:  int(atoi(string(v[0:4]))),
		Month: int(atoi(string(v[4:6]))),
		Day:   int(atoi(string(v[6:8]))),
	}
}

// encodeNumber formats value right-justified in the field width with the
// declared decimals. Text wider than the field is cut to width and the second
// result is false.
func encodeNumber(value float64, width, decimals int) ([]byte, bool) {
	s := fmt.Sprintf("%*.*f", width, decimals, value)
	if len(s) > width {
		return []byte(s[:width]), false
	}
	return []byte(s), true
}

// encodeText left-justifies value in a blank field of the given width. The
// second result is false when value had to be truncated.
func encodeText(dst []byte, value []byte) bool {
	if len(value) > len(dst) {
		copy(dst, value[:len(dst)])
		return false
	}
	for i := range dst {
		dst[i] = SPACE
	}
	copy(dst, value)
	return true
}

func encodeNull(dst []byte, t NativeType) {
	fill := nullFill(t)
	for i := range dst {
		dst[i] = fill
	}
}
