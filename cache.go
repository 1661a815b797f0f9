package godbf

import (
	"io"
)

// recordCache holds the one record a table has in memory.
type recordCache struct {
	buf      []byte
	index    int // -1 when no record is loaded
	modified bool
	// requireSeek forces the next record write to reposition the file. It is
	// cleared only by a record write, so seeks are elided solely for runs of
	// consecutive writes.
	requireSeek bool
}

func newRecordCache(recordLength int) recordCache {
	return recordCache{
		buf:         make([]byte, recordLength),
		index:       -1,
		requireSeek: true,
	}
}

func (s *schema) recordOffset(i int) int64 {
	return int64(s.headerLength) + int64(i)*int64(s.recordLength)
}

// invalidateCache drops the cached record and sizes the buffer to the
// current record length. Pending changes must already be flushed.
func (t *Table) invalidateCache() {
	t.cache = newRecordCache(t.schema.recordLength)
}

// loadRecord makes record i the cached record, flushing the previous one
// if it was modified.
func (t *Table) loadRecord(i int) error {
	if t.cache.index == i {
		return nil
	}
	if err := t.flushRecord(); err != nil {
		return err
	}

	off := t.schema.recordOffset(i)
	if _, err := t.f.Seek(off, io.SeekStart); err != nil {
		t.cache.index = -1
		return t.ioFailure("seek(%d) failed on DBF file: %v", off, err)
	}
	if _, err := io.ReadFull(t.f, t.cache.buf); err != nil {
		t.cache.index = -1
		return t.ioFailure("read(%d) failed on DBF file: %v", len(t.cache.buf), err)
	}

	t.cache.index = i
	// a read moved the cursor; the next write has to seek back
	t.cache.requireSeek = true
	t.metrics.recordLoaded()
	return nil
}

// flushRecord writes the cached record if it was modified. On failure the
// record stays marked as modified.
func (t *Table) flushRecord() error {
	c := &t.cache
	if !c.modified || c.index < 0 {
		return nil
	}

	off := t.schema.recordOffset(c.index)
	elided := false
	if !c.requireSeek {
		if pos, err := t.f.Seek(0, io.SeekCurrent); err == nil && pos == off {
			elided = true
		}
	}
	if !elided {
		if _, err := t.f.Seek(off, io.SeekStart); err != nil {
			return t.ioFailure("failure seeking to position before writing DBF record %d: %v", c.index, err)
		}
	}
	if _, err := t.f.Write(c.buf); err != nil {
		c.requireSeek = true
		return t.ioFailure("failure writing DBF record %d: %v", c.index, err)
	}

	c.modified = false
	c.requireSeek = false
	t.metrics.recordFlushed(elided)

	if c.index == t.numRecords-1 && t.writeEOF {
		if _, err := t.f.Write([]byte{EOF}); err != nil {
			return t.ioFailure("failure writing end of file marker after DBF record %d: %v", c.index, err)
		}
	}
	return nil
}
