package godbf

import (
	"encoding/binary"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name   string    `dbf:"NAME"`
	Age    int       `dbf:"age"`
	Born   time.Time `dbf:"BORN"`
	Active bool      `dbf:"ACTIVE"`
	Score  float64   `dbf:"SCORE"`
	Note   string    `dbf:"-"`
}

func createPeople(t *testing.T, fs afero.Fs, opts ...Option) *Table {
	t.Helper()
	tbl, err := Create("people.dbf", "", append([]Option{WithFs(fs)}, opts...)...)
	require.NoError(t, err)
	for _, f := range []struct {
		name     string
		typ      NativeType
		width    int
		decimals int
	}{
		{"NAME", TypeCharacter, 20, 0},
		{"AGE", TypeNumber, 3, 0},
		{"BORN", TypeDate, 8, 0},
		{"ACTIVE", TypeLogical, 1, 0},
		{"SCORE", TypeNumber, 8, 2},
	} {
		_, err := tbl.AddField(f.name, f.typ, f.width, f.decimals)
		require.NoError(t, err)
	}
	return tbl
}

func TestTable_NameAgeScenario(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl, err := Create("people.dbf", "", WithFs(fs))
	require.NoError(t, err)

	idx, err := tbl.AddField("NAME", TypeCharacter, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	idx, err = tbl.AddField("AGE", TypeNumber, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	require.NoError(t, tbl.WriteString(0, 0, "Alice"))
	require.NoError(t, tbl.WriteInteger(0, 1, 30))
	require.NoError(t, tbl.WriteNull(1, 1))

	assert.Equal(t, 2, tbl.RecordCount())
	assert.True(t, tbl.IsAttributeNull(1, 1))
	assert.Equal(t, int64(0), tbl.ReadInteger(1, 1))

	require.NoError(t, tbl.DeleteField(0))
	assert.Equal(t, 1, tbl.FieldCount())
	assert.Equal(t, int64(30), tbl.ReadInteger(0, 0))
	require.NoError(t, tbl.Close())

	tbl, err = Open("people.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer tbl.Close()
	assert.Equal(t, 2, tbl.RecordCount())
	assert.Equal(t, 1, tbl.FieldCount())
	assert.Equal(t, 4, tbl.RecordLength())
	assert.Equal(t, 65, tbl.HeaderLength())
	assert.Equal(t, int64(30), tbl.ReadInteger(0, 0))
	assert.True(t, tbl.IsAttributeNull(1, 0))

	st, err := fs.Stat("people.dbf")
	require.NoError(t, err)
	assert.Equal(t, int64(65+2*4+1), st.Size())
}

func TestTable_HeaderLayout(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl, err := Create("layout", "LDID/3", WithFs(fs))
	require.NoError(t, err)
	_, err = tbl.AddField("ID", TypeNumber, 5, 0)
	require.NoError(t, err)
	_, err = tbl.AddField("LABEL", TypeCharacter, 10, 0)
	require.NoError(t, err)
	tbl.SetLastModifiedDate(124, 2, 29)
	require.NoError(t, tbl.WriteInteger(0, 0, 42))
	require.NoError(t, tbl.WriteString(0, 1, "answer"))
	require.NoError(t, tbl.Close())

	raw, err := afero.ReadFile(fs, "layout.dbf")
	require.NoError(t, err)
	require.Len(t, raw, 97+16+1)

	assert.Equal(t, byte(0x03), raw[0])
	assert.Equal(t, []byte{124, 2, 29}, raw[1:4])
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(raw[4:8]))
	assert.Equal(t, uint16(97), binary.LittleEndian.Uint16(raw[8:10]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(raw[10:12]))
	assert.Equal(t, byte(3), raw[29])

	id := raw[32:64]
	assert.Equal(t, "ID", string(id[:2]))
	assert.Equal(t, byte(0), id[2])
	assert.Equal(t, byte('N'), id[11])
	assert.Equal(t, byte(5), id[16])
	assert.Equal(t, byte(0), id[17])

	label := raw[64:96]
	assert.Equal(t, byte('C'), label[11])
	assert.Equal(t, byte(10), label[16])
	assert.Equal(t, byte(0), label[17])

	assert.Equal(t, byte(headerTerminator), raw[96])
	assert.Equal(t, " "+"   42"+"answer    ", string(raw[97:113]))
	assert.Equal(t, byte(EOF), raw[113])

	exists, err := afero.Exists(fs, "layout.cpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTable_EmptyTableHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl, err := Create("empty.dbf", "", WithFs(fs))
	require.NoError(t, err)
	_, err = tbl.AddField("A", TypeCharacter, 4, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	raw, err := afero.ReadFile(fs, "empty.dbf")
	require.NoError(t, err)
	require.Len(t, raw, 65+1)
	assert.Equal(t, byte(headerTerminator), raw[64])
	assert.Equal(t, byte(EOF), raw[65])

	tbl, err = Open("empty.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer tbl.Close()
	assert.Equal(t, 0, tbl.RecordCount())
	assert.Equal(t, 1, tbl.FieldCount())
}

func TestOpen_CorruptHeader(t *testing.T) {
	fs := afero.NewMemMapFs()

	zeroRecordLength := make([]byte, 33)
	zeroRecordLength[0] = 0x03
	binary.LittleEndian.PutUint16(zeroRecordLength[8:], 33)
	zeroRecordLength[32] = headerTerminator
	require.NoError(t, afero.WriteFile(fs, "zero.dbf", zeroRecordLength, 0o644))

	_, err := Open("zero.dbf", ReadOnly, WithFs(fs))
	assert.ErrorIs(t, err, ErrCorruptHeader)

	require.NoError(t, afero.WriteFile(fs, "short.dbf", []byte{0x03, 1, 2}, 0o644))
	_, err = Open("short.dbf", ReadOnly, WithFs(fs))
	assert.ErrorIs(t, err, ErrCorruptHeader)

	overflow := make([]byte, 65)
	overflow[0] = 0x03
	binary.LittleEndian.PutUint16(overflow[8:], 65)
	binary.LittleEndian.PutUint16(overflow[10:], 3)
	copy(overflow[32:], "NAME")
	overflow[32+11] = 'C'
	overflow[32+16] = 5
	overflow[64] = headerTerminator
	require.NoError(t, afero.WriteFile(fs, "overflow.dbf", overflow, 0o644))

	_, err = Open("overflow.dbf", ReadOnly, WithFs(fs))
	assert.ErrorIs(t, err, ErrSchemaOverflow)
	assert.ErrorIs(t, err, ErrCorruptHeader)

	_, err = Open("missing.dbf", ReadOnly, WithFs(fs))
	assert.ErrorIs(t, err, ErrIO)
}

func TestOpen_UpperCaseExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl, err := Create("src.dbf", "", WithFs(fs))
	require.NoError(t, err)
	_, err = tbl.AddField("A", TypeCharacter, 2, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	raw, err := afero.ReadFile(fs, "src.dbf")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "UPPER.DBF", raw, 0o644))

	tbl, err = Open("UPPER.shp", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer tbl.Close()
	assert.Equal(t, "UPPER.DBF", tbl.Path())
	assert.Equal(t, 1, tbl.FieldCount())
}

func TestOpen_UnsupportedAccessMode(t *testing.T) {
	_, err := Open("any.dbf", AccessMode(7), WithFs(afero.NewMemMapFs()))
	assert.ErrorIs(t, err, ErrUnsupportedAccessMode)
}

func TestParseAccessMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want AccessMode
		err  bool
	}{
		{"r", ReadOnly, false},
		{"rb", ReadOnly, false},
		{"r+", ReadWrite, false},
		{"rb+", ReadWrite, false},
		{"r+b", ReadWrite, false},
		{"w", 0, true},
		{"", 0, true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAccessMode(tc.in)
			if tc.err {
				assert.ErrorIs(t, err, ErrUnsupportedAccessMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	assert.Equal(t, "rb+", ReadWrite.String())
}

func TestTable_ReadOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl := createPeople(t, fs)
	require.NoError(t, tbl.WriteString(0, 0, "Bob"))
	require.NoError(t, tbl.Close())

	tbl, err := Open("people.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer tbl.Close()

	assert.ErrorIs(t, tbl.WriteString(0, 0, "Eve"), ErrReadOnly)
	assert.ErrorIs(t, tbl.MarkRecordDeleted(0, true), ErrReadOnly)
	assert.ErrorIs(t, tbl.Flush(), ErrReadOnly)
	_, err = tbl.AddField("X", TypeCharacter, 1, 0)
	assert.ErrorIs(t, err, ErrReadOnly)

	name, ok := tbl.ReadString(0, 0)
	assert.True(t, ok)
	assert.Equal(t, "Bob", name)
}

func TestTable_InvalidIndices(t *testing.T) {
	tbl := createPeople(t, afero.NewMemMapFs())
	defer tbl.Close()
	require.NoError(t, tbl.WriteInteger(0, 1, 5))

	assert.Equal(t, int64(0), tbl.ReadInteger(5, 1))
	assert.Equal(t, int64(0), tbl.ReadInteger(0, 9))
	assert.Equal(t, 0.0, tbl.ReadDouble(-1, 4))
	_, ok := tbl.ReadString(0, -1)
	assert.False(t, ok)
	assert.True(t, tbl.IsAttributeNull(3, 0))
	assert.True(t, tbl.IsRecordDeleted(3))
	_, ok = tbl.ReadTuple(1)
	assert.False(t, ok)

	assert.ErrorIs(t, tbl.WriteInteger(2, 1, 1), ErrInvalidArgument)
	assert.ErrorIs(t, tbl.WriteInteger(0, 7, 1), ErrInvalidArgument)
	assert.ErrorIs(t, tbl.MarkRecordDeleted(1, true), ErrInvalidArgument)

	_, ok = tbl.Field(5)
	assert.False(t, ok)
	assert.Equal(t, FTInvalid, tbl.FieldType(5))
	assert.Equal(t, NativeType(' '), tbl.NativeFieldType(-1))
}

func TestTable_TypedAttributes(t *testing.T) {
	tbl := createPeople(t, afero.NewMemMapFs())
	defer tbl.Close()

	require.NoError(t, tbl.WriteString(0, 0, "Carol"))
	require.NoError(t, tbl.WriteInteger(0, 1, 41))
	require.NoError(t, tbl.WriteDate(0, 2, Date{Year: 1983, Month: 7, Day: 4}))
	require.NoError(t, tbl.WriteBool(0, 3, true))
	require.NoError(t, tbl.WriteDouble(0, 4, 98.25))

	s, ok := tbl.ReadString(0, 0)
	require.True(t, ok)
	assert.Equal(t, "Carol", s)
	assert.Equal(t, int64(41), tbl.ReadInteger(0, 1))
	assert.Equal(t, Date{Year: 1983, Month: 7, Day: 4}, tbl.ReadDate(0, 2))
	assert.Equal(t, LogicalTrue, tbl.ReadLogical(0, 3))
	assert.Equal(t, 98.25, tbl.ReadDouble(0, 4))

	for i := 0; i < tbl.FieldCount(); i++ {
		assert.False(t, tbl.IsAttributeNull(0, i), "field %d", i)
	}

	require.NoError(t, tbl.WriteLogical(0, 3, 'F'))
	assert.Equal(t, LogicalFalse, tbl.ReadLogical(0, 3))
	assert.ErrorIs(t, tbl.WriteLogical(0, 3, 'X'), ErrInvalidArgument)
	assert.ErrorIs(t, tbl.WriteInteger(0, 3, 1), ErrInvalidArgument)
	assert.ErrorIs(t, tbl.WriteDate(0, 2, Date{Year: 2024, Month: 100, Day: 1}), ErrInvalidArgument)

	for i := 0; i < tbl.FieldCount(); i++ {
		require.NoError(t, tbl.WriteNull(0, i))
		assert.True(t, tbl.IsAttributeNull(0, i), "field %d", i)
	}
	assert.Equal(t, LogicalUnknown, tbl.ReadLogical(0, 3))
	assert.True(t, tbl.ReadDate(0, 2).IsZero())
}

func TestTable_LossyWrites(t *testing.T) {
	tbl := createPeople(t, afero.NewMemMapFs())
	defer tbl.Close()

	err := tbl.WriteString(0, 0, "a name that is far too long to fit")
	assert.ErrorIs(t, err, ErrLossyWrite)
	s, _ := tbl.ReadString(0, 0)
	assert.Equal(t, "a name that is far t", s)

	err = tbl.WriteInteger(0, 1, 12345)
	assert.ErrorIs(t, err, ErrLossyWrite)
	assert.Equal(t, int64(123), tbl.ReadInteger(0, 1))

	assert.NoError(t, tbl.WriteInteger(0, 1, -99))
	assert.Equal(t, int64(-99), tbl.ReadInteger(0, 1))
}

func TestTable_LossyWrites_DroppedDecimals(t *testing.T) {
	tbl, err := Create("ratio.dbf", "", WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	defer tbl.Close()
	_, err = tbl.AddField("RATIO", TypeNumber, 3, 2)
	require.NoError(t, err)

	err = tbl.WriteDouble(0, 0, 1.5)
	assert.ErrorIs(t, err, ErrLossyWrite)
	assert.Equal(t, 1.5, tbl.ReadDouble(0, 0))
	tuple, ok := tbl.ReadTuple(0)
	require.True(t, ok)
	assert.Equal(t, "1.5", string(tuple[1:4]))

	err = tbl.WriteDouble(0, 0, 30)
	assert.ErrorIs(t, err, ErrLossyWrite)
	assert.Equal(t, float64(30), tbl.ReadDouble(0, 0))
}

func TestTable_FieldMetadata(t *testing.T) {
	tbl := createPeople(t, afero.NewMemMapFs())
	defer tbl.Close()

	assert.Equal(t, 5, tbl.FieldCount())
	assert.Equal(t, 1+20+3+8+1+8, tbl.RecordLength())
	assert.Equal(t, 32+5*32+1, tbl.HeaderLength())

	f, ok := tbl.Field(4)
	require.True(t, ok)
	assert.Equal(t, "SCORE", f.Name)
	assert.Equal(t, TypeNumber, f.Type)
	assert.Equal(t, 8, f.Width)
	assert.Equal(t, 2, f.Decimals)
	assert.Equal(t, 33, f.Offset)

	assert.Equal(t, FTString, tbl.FieldType(0))
	assert.Equal(t, FTInteger, tbl.FieldType(1))
	assert.Equal(t, FTDate, tbl.FieldType(2))
	assert.Equal(t, FTLogical, tbl.FieldType(3))
	assert.Equal(t, FTDouble, tbl.FieldType(4))
	assert.Equal(t, TypeDate, tbl.NativeFieldType(2))

	assert.Equal(t, 1, tbl.FieldIndex("age"))
	assert.Equal(t, 3, tbl.FieldIndex("Active"))
	assert.Equal(t, -1, tbl.FieldIndex("missing"))
}

func TestTable_DeletionFlag(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl := createPeople(t, fs)
	require.NoError(t, tbl.WriteString(0, 0, "a"))
	require.NoError(t, tbl.WriteString(1, 0, "b"))

	assert.False(t, tbl.IsRecordDeleted(0))
	require.NoError(t, tbl.MarkRecordDeleted(0, true))
	assert.True(t, tbl.IsRecordDeleted(0))
	require.NoError(t, tbl.Close())

	tbl, err := Open("people.dbf", ReadWrite, WithFs(fs))
	require.NoError(t, err)
	assert.True(t, tbl.IsRecordDeleted(0))
	assert.False(t, tbl.IsRecordDeleted(1))

	tuple, ok := tbl.ReadTuple(0)
	require.True(t, ok)
	assert.Equal(t, byte('*'), tuple[0])

	require.NoError(t, tbl.MarkRecordDeleted(0, false))
	require.NoError(t, tbl.Close())

	tbl, err = Open("people.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer tbl.Close()
	assert.False(t, tbl.IsRecordDeleted(0))
}

func TestTable_Tuples(t *testing.T) {
	tbl := createPeople(t, afero.NewMemMapFs())
	defer tbl.Close()

	require.NoError(t, tbl.WriteString(0, 0, "Dave"))
	require.NoError(t, tbl.WriteInteger(0, 1, 7))
	tuple, ok := tbl.ReadTuple(0)
	require.True(t, ok)
	require.Len(t, tuple, tbl.RecordLength())

	require.NoError(t, tbl.WriteTuple(1, tuple))
	assert.Equal(t, 2, tbl.RecordCount())
	s, _ := tbl.ReadString(1, 0)
	assert.Equal(t, "Dave", s)
	assert.Equal(t, int64(7), tbl.ReadInteger(1, 1))

	assert.ErrorIs(t, tbl.WriteTuple(0, tuple[:3]), ErrInvalidArgument)

	// the returned tuple is a copy
	tuple[1] = 'X'
	s, _ = tbl.ReadString(0, 0)
	assert.Equal(t, "Dave", s)
}

func TestTable_WriteAttributeDirectly(t *testing.T) {
	tbl := createPeople(t, afero.NewMemMapFs())
	defer tbl.Close()

	require.NoError(t, tbl.WriteAttributeDirectly(0, 2, []byte("20000101")))
	assert.Equal(t, Date{Year: 2000, Month: 1, Day: 1}, tbl.ReadDate(0, 2))

	require.NoError(t, tbl.WriteAttributeDirectly(0, 1, []byte("7")))
	tuple, _ := tbl.ReadTuple(0)
	assert.Equal(t, "7  ", string(tuple[21:24]))
	assert.Equal(t, int64(7), tbl.ReadInteger(0, 1))
}

func TestCreate_CodePage(t *testing.T) {
	fs := afero.NewMemMapFs()

	tbl, err := Create("utf.dbf", "UTF-8", WithFs(fs))
	require.NoError(t, err)
	_, err = tbl.AddField("A", TypeCharacter, 1, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	cpg, err := afero.ReadFile(fs, "utf.cpg")
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", string(cpg))

	tbl, err = Open("utf.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", tbl.CodePage())
	require.NoError(t, tbl.Close())

	// recreating with an LDID label removes the stale sidecar
	tbl, err = Create("utf.dbf", DefaultCodePage, WithFs(fs))
	require.NoError(t, err)
	_, err = tbl.AddField("A", TypeCharacter, 1, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	exists, err := afero.Exists(fs, "utf.cpg")
	require.NoError(t, err)
	assert.False(t, exists)

	tbl, err = Open("utf.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer tbl.Close()
	assert.Equal(t, "LDID/87", tbl.CodePage())
}

func TestCloneEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := createPeople(t, fs)
	src.SetWriteEndOfFileChar(false)
	require.NoError(t, src.WriteString(0, 0, "Erin"))

	clone, err := CloneEmpty(src, "clone.dbf")
	require.NoError(t, err)
	assert.Equal(t, 0, clone.RecordCount())
	assert.Equal(t, src.FieldCount(), clone.FieldCount())
	assert.Equal(t, src.RecordLength(), clone.RecordLength())
	assert.Equal(t, src.HeaderLength(), clone.HeaderLength())
	for i, f := range src.Fields() {
		cf, ok := clone.Field(i)
		require.True(t, ok)
		assert.Equal(t, f.Name, cf.Name)
		assert.Equal(t, f.Type, cf.Type)
		assert.Equal(t, f.Width, cf.Width)
		assert.Equal(t, f.Decimals, cf.Decimals)
	}

	size := src.HeaderLength() + src.RecordLength()
	require.NoError(t, clone.WriteString(0, 0, "Frank"))
	require.NoError(t, clone.Close())
	require.NoError(t, src.Close())

	// no end of file marker, like the source
	raw, err := afero.ReadFile(fs, "clone.dbf")
	require.NoError(t, err)
	assert.Len(t, raw, size)
}

func TestCloneEmpty_PaddedHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl, err := Create("fox.dbf", "", WithFs(fs))
	require.NoError(t, err)
	_, err = tbl.AddField("ID", TypeNumber, 4, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	// 263 byte backlink area after the terminator
	raw, err := afero.ReadFile(fs, "fox.dbf")
	require.NoError(t, err)
	require.Len(t, raw, 66)
	padded := append(append(append([]byte{}, raw[:65]...), make([]byte, 263)...), EOF)
	binary.LittleEndian.PutUint16(padded[8:10], 65+263)
	require.NoError(t, afero.WriteFile(fs, "fox.dbf", padded, 0o644))

	src, err := Open("fox.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, 328, src.HeaderLength())

	clone, err := CloneEmpty(src, "copy.dbf")
	require.NoError(t, err)
	assert.Equal(t, 328, clone.HeaderLength())
	assert.Equal(t, 1, clone.FieldCount())
	require.NoError(t, clone.Close())

	out, err := afero.ReadFile(fs, "copy.dbf")
	require.NoError(t, err)
	assert.Len(t, out, 329)
	assert.Equal(t, byte(headerTerminator), out[64])
	assert.Equal(t, byte(EOF), out[328])
}

func TestTable_StructMapping(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl := createPeople(t, fs)

	people := []person{
		{Name: "Grace", Age: 36, Born: time.Date(1988, 5, 17, 0, 0, 0, 0, time.UTC), Active: true, Score: 12.5},
		{Name: "Heidi", Age: 52, Score: -3.25},
	}
	for i := range people {
		idx, err := tbl.AppendStruct(&people[i])
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
	assert.True(t, tbl.IsAttributeNull(1, 2))
	require.NoError(t, tbl.Close())

	tbl, err := Open("people.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer tbl.Close()

	var got person
	require.NoError(t, tbl.ReadStruct(0, &got))
	assert.Equal(t, people[0], got)

	all := make([]person, 2)
	require.NoError(t, tbl.ReadStructs(0, 2, &all))
	assert.Equal(t, people, all)

	assert.ErrorIs(t, tbl.ReadStruct(0, got), ErrInvalidArgument)
	assert.ErrorIs(t, tbl.ReadStructs(0, 3, &all), ErrInvalidArgument)
}

func TestTable_ReadStructNegativeUnsigned(t *testing.T) {
	tbl, err := Create("stock.dbf", "", WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	defer tbl.Close()
	_, err = tbl.AddField("QTY", TypeNumber, 5, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.WriteInteger(0, 0, -4))
	require.NoError(t, tbl.WriteInteger(1, 0, 12))

	type stock struct {
		Qty uint16 `dbf:"QTY"`
	}
	var got stock
	assert.ErrorIs(t, tbl.ReadStruct(0, &got), ErrInvalidArgument)
	assert.Equal(t, uint16(0), got.Qty)

	require.NoError(t, tbl.ReadStruct(1, &got))
	assert.Equal(t, uint16(12), got.Qty)
}

func TestTable_WriteStructLossy(t *testing.T) {
	tbl := createPeople(t, afero.NewMemMapFs())
	defer tbl.Close()

	_, err := tbl.AppendStruct(person{Name: "a name much longer than twenty bytes", Age: 9})
	assert.ErrorIs(t, err, ErrLossyWrite)
	assert.Equal(t, int64(9), tbl.ReadInteger(0, 1))

	type unknown struct {
		Missing string `dbf:"NOPE"`
	}
	_, err = tbl.AppendStruct(&unknown{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 1, tbl.RecordCount())
}

type faultyFs struct {
	afero.Fs
	failWrites *bool
}

func (fs faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: f, fail: fs.failWrites}, nil
}

type faultyFile struct {
	afero.File
	fail *bool
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if *f.fail {
		return 0, errors.New("no space left on device")
	}
	return f.File.Write(p)
}

func TestTable_FlushFailureKeepsRecordDirty(t *testing.T) {
	mem := afero.NewMemMapFs()
	fail := false
	var reported []string

	tbl, err := Create("faulty.dbf", "", WithFs(faultyFs{Fs: mem, failWrites: &fail}),
		WithErrorSink(func(msg string) { reported = append(reported, msg) }))
	require.NoError(t, err)
	_, err = tbl.AddField("N", TypeNumber, 4, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.WriteInteger(0, 0, 7))

	fail = true
	err = tbl.WriteInteger(1, 0, 8)
	assert.ErrorIs(t, err, ErrIO)
	assert.Equal(t, 1, tbl.RecordCount())
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0], "failure writing DBF record 0")

	fail = false
	require.NoError(t, tbl.Close())

	tbl, err = Open("faulty.dbf", ReadOnly, WithFs(mem))
	require.NoError(t, err)
	defer tbl.Close()
	assert.Equal(t, 1, tbl.RecordCount())
	assert.Equal(t, int64(7), tbl.ReadInteger(0, 0))
}

func TestTable_LastModifiedDate(t *testing.T) {
	fs := afero.NewMemMapFs()
	tbl := createPeople(t, fs)
	require.NoError(t, tbl.WriteString(0, 0, "x"))
	require.NoError(t, tbl.Close())

	tbl, err := Open("people.dbf", ReadWrite, WithFs(fs))
	require.NoError(t, err)
	tbl.SetLastModifiedDate(99, 12, 31)
	require.NoError(t, tbl.Close())

	tbl, err = Open("people.dbf", ReadOnly, WithFs(fs))
	require.NoError(t, err)
	defer tbl.Close()
	yy, mm, dd := tbl.LastModified()
	assert.Equal(t, []int{99, 12, 31}, []int{yy, mm, dd})
}
