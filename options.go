package godbf

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Hooks is the set of host collaborators a table performs all I/O through.
// The table never touches the operating system directly.
type Hooks struct {
	// Fs opens and removes files; the returned afero.File provides seek,
	// tell (Seek(0, io.SeekCurrent)), read, write, sync and close.
	Fs afero.Fs
	// Atof converts text to a float independently of the process locale.
	Atof func(string) float64
	// Error receives a message for every fatal I/O condition.
	Error func(msg string)
}

type options struct {
	hooks     Hooks
	logger    *slog.Logger
	metrics   *Metrics
	encoding  string
	transcode bool
}

type Option func(*options)

// WithFs sets the file system the table is read from and written to.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.hooks.Fs = fs }
}

// WithAtof replaces the text to float conversion.
func WithAtof(fn func(string) float64) Option {
	return func(o *options) { o.hooks.Atof = fn }
}

// WithErrorSink sets the receiver of I/O failure messages.
func WithErrorSink(fn func(msg string)) Option {
	return func(o *options) { o.hooks.Error = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEncoding forces the charset used to convert string attributes, e.g.
// "ISO-8859-1". It takes precedence over WithTranscoding.
func WithEncoding(name string) Option {
	return func(o *options) { o.encoding = name }
}

// WithTranscoding converts string attributes using the charset derived from
// the table code page.
func WithTranscoding() Option {
	return func(o *options) { o.transcode = true }
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.hooks.Fs == nil {
		o.hooks.Fs = afero.NewOsFs()
	}
	if o.hooks.Atof == nil {
		o.hooks.Atof = Atof
	}
	if o.hooks.Error == nil {
		logger := o.logger
		o.hooks.Error = func(msg string) { logger.Error(msg) }
	}
	return o
}

// Atof parses the longest numeric prefix of s, ignoring leading blanks.
// Text without a numeric prefix yields 0.
func Atof(s string) float64 {
	p := numericPrefix(s, true)
	if p == "" {
		return 0
	}
	v, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return 0
	}
	return v
}

// atoi parses the leading integer of s the way C atoi does.
func atoi(s string) int64 {
	p := numericPrefix(s, false)
	if p == "" {
		return 0
	}
	v, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func numericPrefix(s string, float bool) string {
	s = strings.TrimLeft(s, " \t\r\n")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if !float {
		if digits == 0 {
			return ""
		}
		return s[:i]
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}
	return s[:i]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
