package godbf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"
)

// AccessMode selects how an existing table is opened.
type AccessMode int

const (
	ReadOnly AccessMode = iota
	ReadWrite
)

func (m AccessMode) String() string {
	switch m {
	case ReadOnly:
		return "rb"
	case ReadWrite:
		return "rb+"
	default:
		return fmt.Sprintf("AccessMode(%d)", int(m))
	}
}

// ParseAccessMode accepts the classic fopen style strings "r", "rb" for
// read-only access and "r+", "rb+", "r+b" for read-write access.
func ParseAccessMode(s string) (AccessMode, error) {
	switch s {
	case "r", "rb":
		return ReadOnly, nil
	case "r+", "rb+", "r+b":
		return ReadWrite, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAccessMode, s)
	}
}

// Table is an open .dbf file. It keeps the field table in memory and at
// most one record; every attribute access is computed from record offsets.
//
// A Table is not safe for concurrent use and must be externally serialized.
// Nothing coordinates two Tables opened on the same path; doing so is the
// caller's responsibility since no file locking is performed.
type Table struct {
	path    string
	mode    AccessMode
	f       afero.File
	hooks   Hooks
	logger  *slog.Logger
	metrics *Metrics
	tc      *transcoder

	header     DBFHeader
	schema     schema
	numRecords int

	codePage       string
	languageDriver int
	updateYear     int // years since 1900
	updateMonth    int
	updateDay      int

	writeEOF bool
	noHeader bool
	updated  bool

	cache recordCache
}

// Open opens the .dbf file at path. Any extension on path is replaced by
// .dbf (then .DBF); a .cpg sidecar, if present, supplies the code page.
func Open(path string, mode AccessMode, opts ...Option) (*Table, error) {
	flag := os.O_RDONLY
	switch mode {
	case ReadOnly:
	case ReadWrite:
		flag = os.O_RDWR
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAccessMode, mode)
	}

	o := newOptions(opts)
	base := baseName(path)
	f, err := openVariant(o.hooks.Fs, base, ".dbf", flag)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s.dbf: %w", ErrIO, base, err)
	}

	t := &Table{
		path:     f.Name(),
		mode:     mode,
		f:        f,
		hooks:    o.hooks,
		logger:   o.logger,
		metrics:  o.metrics,
		writeEOF: true,
	}
	if err := t.initMetaData(); err != nil {
		f.Close()
		return nil, err
	}

	t.codePage = readCodePageSidecar(o.hooks.Fs, base)
	if t.codePage == "" && t.languageDriver != 0 {
		t.codePage = fmt.Sprintf("%s%d", ldidPrefix, t.languageDriver)
	}
	t.cache = newRecordCache(t.schema.recordLength)
	t.setupTranscoder(o)
	return t, nil
}

// Create creates an empty table at path (extension replaced by .dbf). A code
// page of the form LDID/<n> with n <= 255 is stored in the header; any other
// non-empty label is written to a .cpg sidecar. The header is not written
// until the first field is added or the table is flushed.
func Create(path, codePage string, opts ...Option) (*Table, error) {
	o := newOptions(opts)
	base := baseName(path)
	name := base + ".dbf"
	f, err := o.hooks.Fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		err = fmt.Errorf("%w: failed to create file %s: %w", ErrIO, name, err)
		o.hooks.Error(err.Error())
		return nil, err
	}

	cpg := base + ".cpg"
	ldid := -1
	if codePage != "" {
		ldid = parseLDID(codePage)
		if ldid < 0 {
			if err := afero.WriteFile(o.hooks.Fs, cpg, []byte(codePage), 0o644); err != nil {
				f.Close()
				err = fmt.Errorf("%w: write %s: %w", ErrIO, cpg, err)
				o.hooks.Error(err.Error())
				return nil, err
			}
		}
	}
	if codePage == "" || ldid >= 0 {
		if err := o.hooks.Fs.Remove(cpg); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("dbf: could not remove stale code page file", "path", cpg, "err", err)
		}
	}

	now := time.Now()
	t := &Table{
		path:           name,
		mode:           ReadWrite,
		f:              f,
		hooks:          o.hooks,
		logger:         o.logger,
		metrics:        o.metrics,
		header:         DBFHeader{Version: 0x03},
		schema:         emptySchema(),
		codePage:       codePage,
		languageDriver: max(ldid, 0),
		updateYear:     now.Year() - 1900,
		updateMonth:    int(now.Month()),
		updateDay:      now.Day(),
		writeEOF:       true,
		noHeader:       true,
	}
	t.cache = newRecordCache(t.schema.recordLength)
	t.setupTranscoder(o)
	return t, nil
}

// CloneEmpty creates a table at path with the code page, field definitions
// and end-of-file policy of src and no records, and returns it opened
// read-write. The clone shares src's collaborators unless opts override them.
func CloneEmpty(src *Table, path string, opts ...Option) (*Table, error) {
	opts = append([]Option{
		WithFs(src.hooks.Fs),
		WithAtof(src.hooks.Atof),
		WithErrorSink(src.hooks.Error),
		WithLogger(src.logger),
		WithMetrics(src.metrics),
	}, opts...)

	nt, err := Create(path, src.codePage, opts...)
	if err != nil {
		return nil, err
	}
	nt.schema = src.schema.clone()
	nt.cache = newRecordCache(nt.schema.recordLength)
	nt.noHeader = true
	nt.updated = true
	nt.writeEOF = src.writeEOF

	if err := nt.writeHeader(); err != nil {
		nt.f.Close()
		return nil, err
	}
	if err := nt.Close(); err != nil {
		return nil, err
	}

	t, err := Open(nt.path, ReadWrite, opts...)
	if err != nil {
		return nil, err
	}
	t.writeEOF = src.writeEOF
	return t, nil
}

func (t *Table) setupTranscoder(o *options) {
	name := o.encoding
	if name == "" && o.transcode {
		name = charsetForCodePage(t.codePage)
	}
	t.tc = newTranscoder(name)
	if name != "" && t.tc == nil {
		t.logger.Warn("dbf: unknown charset, strings are not converted", "charset", name, "codePage", t.codePage)
	}
}

// Close writes a pending header, flushes the cached record and, when the
// table was modified, stores the record count and last modified date.
func (t *Table) Close() error {
	if t.f == nil {
		return nil
	}
	var errs []error
	if t.noHeader {
		errs = append(errs, t.writeHeader())
	}
	errs = append(errs, t.flushRecord())
	if t.updated {
		errs = append(errs, t.updateHeader())
	}
	if t.mode == ReadWrite {
		if err := t.f.Sync(); err != nil {
			errs = append(errs, t.ioFailure("sync %s: %v", t.path, err))
		}
	}
	if err := t.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: close %s: %w", ErrIO, t.path, err))
	}

	t.f = nil
	t.cache = recordCache{index: -1}
	t.schema = schema{}
	return errors.Join(errs...)
}

// Flush writes a pending header, flushes the cached record, stores the
// record count and last modified date and syncs the file.
func (t *Table) Flush() error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	return t.updateHeader()
}

// writeHeader emits the file header and field table if they are pending.
func (t *Table) writeHeader() error {
	if !t.noHeader {
		return nil
	}
	t.noHeader = false

	h := t.header
	h.LastUpdateYear = byte(t.updateYear)
	h.LastUpdateMonth = byte(t.updateMonth)
	h.LastUpdateDay = byte(t.updateDay)
	h.NumRecords = uint32(t.numRecords)
	h.HeaderLength = uint16(t.schema.headerLength)
	h.RecordLength = uint16(t.schema.recordLength)
	h.LanguageDriverID = byte(t.languageDriver)

	buf := h.bytes()
	buf = append(buf, t.schema.descriptorBytes()...)
	if t.schema.headerLength > fieldHeaderSize*len(t.schema.fields)+fileHeaderSize {
		buf = append(buf, headerTerminator)
	}
	// headers padded past the terminator, e.g. the FoxPro backlink area
	if pad := t.schema.headerLength - len(buf); pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	if t.numRecords == 0 && t.writeEOF {
		buf = append(buf, EOF)
	}

	t.cache.requireSeek = true
	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return t.ioFailure("seek to header of %s: %v", t.path, err)
	}
	if _, err := t.f.Write(buf); err != nil {
		return t.ioFailure("write header of %s: %v", t.path, err)
	}
	t.header = h
	t.logger.Debug("dbf: header written",
		"path", t.path,
		"fields", len(t.schema.fields),
		"headerLength", t.schema.headerLength,
		"recordLength", t.schema.recordLength,
	)
	return nil
}

// updateHeader rewrites the last modified date and record count in place,
// leaving the field table untouched.
func (t *Table) updateHeader() error {
	if t.noHeader {
		if err := t.writeHeader(); err != nil {
			return err
		}
	}
	if err := t.flushRecord(); err != nil {
		return err
	}

	t.cache.requireSeek = true
	buf := make([]byte, fileHeaderSize)
	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return t.ioFailure("seek to header of %s: %v", t.path, err)
	}
	if _, err := io.ReadFull(t.f, buf); err != nil {
		return t.ioFailure("read header of %s: %v", t.path, err)
	}

	n := uint32(t.numRecords)
	buf[1] = byte(t.updateYear)
	buf[2] = byte(t.updateMonth)
	buf[3] = byte(t.updateDay)
	buf[4] = byte(n)
	buf[5] = byte(n >> 8)
	buf[6] = byte(n >> 16)
	buf[7] = byte(n >> 24)

	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return t.ioFailure("seek to header of %s: %v", t.path, err)
	}
	if _, err := t.f.Write(buf[:8]); err != nil {
		return t.ioFailure("write header of %s: %v", t.path, err)
	}
	if err := t.f.Sync(); err != nil {
		return t.ioFailure("sync %s: %v", t.path, err)
	}
	t.header = parseHeader(buf)
	return nil
}

func (t *Table) checkWritable() error {
	if t.mode != ReadWrite {
		return fmt.Errorf("%w: %s", ErrReadOnly, t.path)
	}
	return nil
}

// Path returns the name of the underlying .dbf file.
func (t *Table) Path() string { return t.path }

func (t *Table) FieldCount() int { return len(t.schema.fields) }

func (t *Table) RecordCount() int { return t.numRecords }

func (t *Table) HeaderLength() int { return t.schema.headerLength }

func (t *Table) RecordLength() int { return t.schema.recordLength }

// CodePage returns the code page label, or "" when the table has none.
func (t *Table) CodePage() string { return t.codePage }

// Charset returns the charset string attributes are converted with, or ""
// when they are passed through unchanged.
func (t *Table) Charset() string {
	if t.tc == nil {
		return ""
	}
	return t.tc.charset
}

// Field returns the descriptor of field i.
func (t *Table) Field(i int) (Field, bool) {
	if !t.schema.validField(i) {
		return Field{}, false
	}
	return t.schema.fields[i], true
}

// Fields returns a copy of the field table in on-disk order.
func (t *Table) Fields() []Field {
	return append([]Field(nil), t.schema.fields...)
}

// FieldType classifies field i, FTInvalid if there is no such field.
func (t *Table) FieldType(i int) FieldType {
	if !t.schema.validField(i) {
		return FTInvalid
	}
	return t.schema.fields[i].FieldType()
}

// NativeFieldType returns the type tag of field i, or ' ' if there is no
// such field.
func (t *Table) NativeFieldType(i int) NativeType {
	if !t.schema.validField(i) {
		return ' '
	}
	return t.schema.fields[i].Type
}

// FieldIndex returns the index of the field called name, compared case
// insensitively, or -1.
func (t *Table) FieldIndex(name string) int {
	return t.schema.index(name)
}

// LastModified returns the header date as years since 1900, month and day.
func (t *Table) LastModified() (yy, mm, dd int) {
	return t.updateYear, t.updateMonth, t.updateDay
}

// SetLastModifiedDate sets the date stored in the header on the next header
// update. yy counts years since 1900.
func (t *Table) SetLastModifiedDate(yy, mm, dd int) {
	if yy == t.updateYear && mm == t.updateMonth && dd == t.updateDay {
		return
	}
	t.updateYear, t.updateMonth, t.updateDay = yy, mm, dd
	if t.mode == ReadWrite {
		t.updated = true
	}
}

// SetWriteEndOfFileChar controls whether a 0x1A byte is written after the
// last record.
func (t *Table) SetWriteEndOfFileChar(write bool) {
	t.writeEOF = write
}
