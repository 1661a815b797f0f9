package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Ulysses-Xu/godbf"
	"github.com/Ulysses-Xu/godbf/internal/config"
)

// SchemaDoc is the YAML form of a table definition, written by the schema
// command and read by create.
type SchemaDoc struct {
	Path     string     `yaml:"path,omitempty"`
	CodePage string     `yaml:"code_page,omitempty"`
	Records  int        `yaml:"records"`
	Fields   []FieldDoc `yaml:"fields"`
}

type FieldDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Width    int    `yaml:"width"`
	Decimals int    `yaml:"decimals,omitempty"`
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: dbftool [-config file] <command> [args]

Commands:
  info   <table>                 print header facts
  dump   [-deleted] <table>      print records, tab separated
  schema <table>                 print the field table as YAML
  create <table> <schema.yaml>   create an empty table from a YAML schema
  clone  <src> <dst>             create an empty copy of src's structure
`)
	flag.PrintDefaults()
}

func main() {
	configFile := flag.String("config", "", "Configuration file (YAML)")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbftool: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	t := &tool{fs: afero.NewOsFs(), cfg: cfg, logger: logger, out: os.Stdout}
	if err := t.run(flag.Args()); err != nil {
		logger.Error("command failed", "command", flag.Arg(0), "err", err)
		os.Exit(1)
	}
}

type tool struct {
	fs     afero.Fs
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

var errUsage = errors.New("usage")

func (t *tool) run(args []string) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "info":
		if len(args) != 1 {
			return fmt.Errorf("%w: info <table>", errUsage)
		}
		return t.info(args[0])
	case "dump":
		fs := flag.NewFlagSet("dump", flag.ContinueOnError)
		deleted := fs.Bool("deleted", false, "include records marked as deleted")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: dump [-deleted] <table>", errUsage)
		}
		return t.dump(fs.Arg(0), *deleted)
	case "schema":
		if len(args) != 1 {
			return fmt.Errorf("%w: schema <table>", errUsage)
		}
		return t.schema(args[0])
	case "create":
		if len(args) != 2 {
			return fmt.Errorf("%w: create <table> <schema.yaml>", errUsage)
		}
		return t.create(args[0], args[1])
	case "clone":
		if len(args) != 2 {
			return fmt.Errorf("%w: clone <src> <dst>", errUsage)
		}
		return t.clone(args[0], args[1])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (t *tool) options() []godbf.Option {
	return append([]godbf.Option{godbf.WithFs(t.fs), godbf.WithLogger(t.logger)}, t.cfg.TableOptions()...)
}

func (t *tool) open(path string) (*godbf.Table, error) {
	mode, err := t.cfg.AccessMode()
	if err != nil {
		return nil, err
	}
	return godbf.Open(path, mode, t.options()...)
}

func (t *tool) info(path string) error {
	tbl, err := t.open(path)
	if err != nil {
		return err
	}
	defer tbl.Close()

	yy, mm, dd := tbl.LastModified()
	fmt.Fprintf(t.out, "path:          %s\n", tbl.Path())
	fmt.Fprintf(t.out, "records:       %d\n", tbl.RecordCount())
	fmt.Fprintf(t.out, "fields:        %d\n", tbl.FieldCount())
	fmt.Fprintf(t.out, "header length: %d\n", tbl.HeaderLength())
	fmt.Fprintf(t.out, "record length: %d\n", tbl.RecordLength())
	fmt.Fprintf(t.out, "code page:     %s\n", tbl.CodePage())
	fmt.Fprintf(t.out, "last modified: %04d-%02d-%02d\n", 1900+yy, mm, dd)
	return nil
}

func (t *tool) dump(path string, withDeleted bool) error {
	tbl, err := t.open(path)
	if err != nil {
		return err
	}
	defer tbl.Close()

	names := make([]string, 0, tbl.FieldCount())
	for _, f := range tbl.Fields() {
		names = append(names, f.Name)
	}
	fmt.Fprintln(t.out, strings.Join(names, "\t"))

	row := make([]string, tbl.FieldCount())
	for r := 0; r < tbl.RecordCount(); r++ {
		if tbl.IsRecordDeleted(r) && !withDeleted {
			continue
		}
		for i := range row {
			row[i] = ""
			if tbl.IsAttributeNull(r, i) {
				continue
			}
			row[i], _ = tbl.ReadString(r, i)
		}
		fmt.Fprintln(t.out, strings.Join(row, "\t"))
	}
	return nil
}

func (t *tool) schema(path string) error {
	tbl, err := t.open(path)
	if err != nil {
		return err
	}
	defer tbl.Close()

	doc := SchemaDoc{Path: tbl.Path(), CodePage: tbl.CodePage(), Records: tbl.RecordCount()}
	for _, f := range tbl.Fields() {
		doc.Fields = append(doc.Fields, FieldDoc{Name: f.Name, Type: f.Type.String(), Width: f.Width, Decimals: f.Decimals})
	}
	enc := yaml.NewEncoder(t.out)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return enc.Close()
}

func (t *tool) create(path, schemaFile string) error {
	data, err := afero.ReadFile(t.fs, schemaFile)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	var doc SchemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse schema %s: %w", schemaFile, err)
	}
	if len(doc.Fields) == 0 {
		return fmt.Errorf("schema %s defines no fields", schemaFile)
	}

	codePage := doc.CodePage
	if codePage == "" {
		codePage = t.cfg.CodePage
	}
	tbl, err := godbf.Create(path, codePage, t.options()...)
	if err != nil {
		return err
	}
	tbl.SetWriteEndOfFileChar(t.cfg.WriteEOFMarker)
	for _, f := range doc.Fields {
		if len(f.Type) != 1 {
			tbl.Close()
			return fmt.Errorf("field %s: type must be a single letter, got %q", f.Name, f.Type)
		}
		if _, err := tbl.AddField(f.Name, godbf.NativeType(f.Type[0]), f.Width, f.Decimals); err != nil {
			tbl.Close()
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	t.logger.Info("table created", "path", tbl.Path(), "fields", tbl.FieldCount(), "codePage", codePage)
	return tbl.Close()
}

func (t *tool) clone(src, dst string) error {
	in, err := godbf.Open(src, godbf.ReadOnly, t.options()...)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := godbf.CloneEmpty(in, dst)
	if err != nil {
		return err
	}
	t.logger.Info("table cloned", "src", in.Path(), "dst", out.Path(), "fields", out.FieldCount())
	return out.Close()
}
