package godbf

import (
	"bytes"
	"encoding/binary"
	"strings"
)

const (
	fileHeaderSize  = 32
	fieldHeaderSize = 32

	// field names are written with at most 10 significant bytes and read
	// back with up to 11.
	fieldNameWriteLen = 10
	fieldNameReadLen  = 11

	maxFieldWidth   = 254
	maxHeaderLength = 65535
	maxRecordLength = 65535

	headerTerminator = 0x0D
	recordCountMask  = 0x7FFFFFFF
)

const (
	SPACE = 0x20
	EOF   = 0x1A
	NUL   = 0x00

	deletedFlag = '*'
)

// DBFHeader represents the structure of the 32 byte file header.
type DBFHeader struct {
	Version          byte
	LastUpdateYear   byte
	LastUpdateMonth  byte
	LastUpdateDay    byte
	NumRecords       uint32
	HeaderLength     uint16
	RecordLength     uint16
	Reserved         [2]byte
	Flag             byte
	EncryptFlag      byte
	Reserved2        [12]byte
	MDXFlag          byte
	LanguageDriverID byte
	Reserved3        [2]byte
}

func (h *DBFHeader) bytes() []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes()
}

func parseHeader(b []byte) DBFHeader {
	var h DBFHeader
	_ = binary.Read(bytes.NewReader(b), binary.LittleEndian, &h)
	h.NumRecords &= recordCountMask
	return h
}

// FieldDescriptor represents the structure of a 32 byte field descriptor
// entry in the header.
type FieldDescriptor struct {
	Name       [11]byte
	Type       byte
	Reserved1  [4]byte
	Length     byte
	Decimal    byte
	Reserved2  [2]byte
	WorkAreaID byte
	Reserved3  [10]byte
	Flag       byte
}

func newFieldDescriptor(name string, t NativeType, width, decimals int) FieldDescriptor {
	var d FieldDescriptor
	copy(d.Name[:fieldNameWriteLen], name)
	d.Type = byte(t)
	d.Length = byte(width % 256)
	if t == TypeCharacter {
		d.Decimal = byte(width / 256)
	} else {
		d.Decimal = byte(decimals)
	}
	return d
}

func (d *FieldDescriptor) name() string {
	n := d.Name[:fieldNameReadLen]
	if i := bytes.IndexByte(n, NUL); i >= 0 {
		n = n[:i]
	}
	return strings.TrimRight(string(n), " ")
}

func (d *FieldDescriptor) bytes() []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, d)
	return buf.Bytes()
}

func parseFieldDescriptor(b []byte) FieldDescriptor {
	var d FieldDescriptor
	_ = binary.Read(bytes.NewReader(b), binary.LittleEndian, &d)
	return d
}
