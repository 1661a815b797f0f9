package godbf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/axgle/mahonia"
	"github.com/spf13/afero"
)

// DefaultCodePage is the label new tables get when the caller has no
// preference: language driver 87, the system ANSI code page.
const DefaultCodePage = "LDID/87"

const (
	ldidPrefix     = "LDID/"
	maxCodePageLen = 499
)

// ldidCharsets maps language driver ids to charset names.
var ldidCharsets = map[int]string{
	1:   "IBM437",
	2:   "IBM850",
	3:   "windows-1252",
	8:   "IBM865",
	9:   "IBM437",
	10:  "IBM850",
	11:  "IBM437",
	13:  "IBM437",
	14:  "IBM850",
	15:  "IBM437",
	16:  "IBM850",
	17:  "IBM437",
	18:  "IBM850",
	19:  "Shift_JIS",
	20:  "IBM850",
	21:  "IBM437",
	22:  "IBM850",
	23:  "IBM865",
	24:  "IBM437",
	25:  "IBM437",
	26:  "IBM850",
	27:  "IBM437",
	28:  "IBM863",
	29:  "IBM850",
	31:  "IBM852",
	34:  "IBM852",
	35:  "IBM852",
	36:  "IBM860",
	37:  "IBM850",
	38:  "IBM866",
	55:  "IBM850",
	64:  "IBM852",
	77:  "GBK",
	78:  "EUC-KR",
	79:  "Big5",
	80:  "TIS-620",
	87:  "ISO-8859-1",
	88:  "windows-1252",
	89:  "windows-1252",
	100: "IBM852",
	101: "IBM866",
	102: "IBM865",
	103: "IBM861",
	104: "IBM895",
	105: "IBM620",
	106: "IBM737",
	107: "IBM857",
	108: "IBM863",
	120: "windows-950",
	121: "windows-949",
	122: "GBK",
	123: "Shift_JIS",
	124: "windows-874",
	134: "IBM737",
	135: "IBM852",
	136: "IBM857",
	150: "macintosh",
	200: "windows-1250",
	201: "windows-1251",
	202: "windows-1254",
	203: "windows-1253",
	204: "windows-1257",
}

// baseName strips the extension of path, if the last path element has one.
func baseName(path string) string {
	for i := len(path) - 1; i > 0 && path[i] != '/' && path[i] != '\\'; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}

// openVariant opens base+ext trying the lower then the upper case extension.
func openVariant(fs afero.Fs, base, ext string, flag int) (afero.File, error) {
	f, err := fs.OpenFile(base+strings.ToLower(ext), flag, 0)
	if err == nil {
		return f, nil
	}
	f, err2 := fs.OpenFile(base+strings.ToUpper(ext), flag, 0)
	if err2 == nil {
		return f, nil
	}
	return nil, err
}

// readCodePageSidecar returns the first line of the .cpg file next to base,
// or "" when there is none.
func readCodePageSidecar(fs afero.Fs, base string) string {
	f, err := openVariant(fs, base, ".cpg", os.O_RDONLY)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, maxCodePageLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return ""
	}
	buf = buf[:n]
	if i := bytes.IndexAny(buf, "\n\r"); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

// parseLDID returns the language driver id carried by an LDID/<n> label, or
// -1 when the label is not one or the id is out of range.
func parseLDID(label string) int {
	if !strings.HasPrefix(label, ldidPrefix) {
		return -1
	}
	id := atoi(label[len(ldidPrefix):])
	if id < 0 || id > 255 {
		return -1
	}
	return int(id)
}

// charsetForCodePage resolves a code page label to a charset name. UTF-8 and
// unknown labels resolve to "" meaning no conversion.
func charsetForCodePage(label string) string {
	if label == "" {
		return ""
	}
	if id := parseLDID(label); id >= 0 {
		return ldidCharsets[id]
	}
	norm := strings.ToUpper(strings.TrimSpace(label))
	switch norm {
	case "UTF-8", "UTF8", "65001":
		return ""
	}
	if n, err := strconv.Atoi(norm); err == nil {
		switch {
		case n >= 1250 && n <= 1258:
			return fmt.Sprintf("windows-%d", n)
		case n >= 28591 && n <= 28599:
			return fmt.Sprintf("ISO-8859-%d", n-28590)
		case n == 936:
			return "GBK"
		case n == 950:
			return "Big5"
		case n == 932:
			return "Shift_JIS"
		case n == 949:
			return "EUC-KR"
		default:
			return fmt.Sprintf("IBM%d", n)
		}
	}
	if strings.HasPrefix(norm, "CP") {
		return charsetForCodePage(norm[2:])
	}
	if strings.HasPrefix(norm, "ANSI ") {
		return charsetForCodePage(norm[5:])
	}
	return label
}

// transcoder converts string attributes between UTF-8 and the table charset.
type transcoder struct {
	charset string
	encoder mahonia.Encoder
	decoder mahonia.Decoder
}

// newTranscoder returns nil when name is empty or unknown to mahonia.
func newTranscoder(name string) *transcoder {
	if name == "" {
		return nil
	}
	enc := mahonia.NewEncoder(name)
	dec := mahonia.NewDecoder(name)
	if enc == nil || dec == nil {
		return nil
	}
	return &transcoder{charset: name, encoder: enc, decoder: dec}
}

func (tc *transcoder) encode(s string) []byte {
	if tc == nil {
		return []byte(s)
	}
	return []byte(tc.encoder.ConvertString(s))
}

func (tc *transcoder) decode(b []byte) string {
	if tc == nil {
		return string(b)
	}
	return tc.decoder.ConvertString(string(b))
}
