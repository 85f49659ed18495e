// Package source loads the tabular datasets and reference text the pipeline
// analyzes, from local paths or ftp:// URLs.
package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/resilience"
)

// ErrDataUnavailable is returned when a table or resource cannot be loaded.
var ErrDataUnavailable = eris.New("source: data unavailable")

// CatalogueNotFound is substituted when the product catalogue is absent.
const CatalogueNotFound = "Credit card list not found."

// Options configures a Loader.
type Options struct {
	// Charset decodes CSV input, e.g. "windows-1252". Empty means UTF-8.
	Charset string
	// SheetName selects an XLSX sheet; the first sheet is used when empty.
	SheetName  string
	FTPTimeout time.Duration
	// FTPRetry retries transient FTP failures such as refused or reset connections.
	FTPRetry resilience.RetryConfig
}

// Loader reads CSV and XLSX tables.
type Loader struct {
	opts Options
}

// NewLoader creates a Loader.
func NewLoader(opts Options) *Loader {
	if opts.FTPTimeout <= 0 {
		opts.FTPTimeout = 30 * time.Second
	}
	if opts.FTPRetry.OnRetry == nil {
		opts.FTPRetry.OnRetry = resilience.RetryLogger("ftp", "download")
	}
	return &Loader{opts: opts}
}

// Load reads the table at p. The first row is the header. Any failure to
// reach or parse the data is reported as ErrDataUnavailable.
func (l *Loader) Load(ctx context.Context, p string) (*model.Table, error) {
	raw, err := l.read(ctx, p)
	if err != nil {
		return nil, unavailable(p, err)
	}

	var rows [][]string
	switch ext := strings.ToLower(path.Ext(stripQuery(p))); ext {
	case ".xlsx":
		rows, err = readXLSX(raw, l.opts.SheetName)
	case ".csv", ".txt":
		rows, err = readCSV(bytes.NewReader(raw), l.opts.Charset)
	default:
		err = eris.Errorf("unsupported table format %q", ext)
	}
	if err != nil {
		return nil, unavailable(p, err)
	}

	tbl := toTable(tableName(p), rows)
	zap.L().Debug("source: table loaded",
		zap.String("path", p),
		zap.Int("rows", tbl.Len()),
		zap.Strings("columns", tbl.Columns),
	)
	return tbl, nil
}

// LoadReference reads a free-text resource such as the product catalogue.
// The error wraps ErrDataUnavailable when the resource cannot be read.
func (l *Loader) LoadReference(ctx context.Context, p string) (string, error) {
	raw, err := l.read(ctx, p)
	if err != nil {
		return "", unavailable(p, err)
	}
	return string(raw), nil
}

// LoadCatalogue returns the product catalogue text, or CatalogueNotFound when
// it cannot be read.
func (l *Loader) LoadCatalogue(ctx context.Context, p string) string {
	if p == "" {
		return CatalogueNotFound
	}
	text, err := l.LoadReference(ctx, p)
	if err != nil {
		zap.L().Warn("source: catalogue unavailable", zap.String("path", p), zap.Error(err))
		return CatalogueNotFound
	}
	return text
}

func (l *Loader) read(ctx context.Context, p string) ([]byte, error) {
	if p == "" {
		return nil, eris.New("empty path")
	}
	if strings.HasPrefix(p, "ftp://") {
		var data []byte
		err := resilience.Do(ctx, l.opts.FTPRetry, func(ctx context.Context) error {
			b, err := downloadFTP(ctx, p, l.opts.FTPTimeout)
			data = b
			return err
		})
		return data, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return io.ReadAll(f)
}

func unavailable(p string, cause error) error {
	return eris.Wrapf(ErrDataUnavailable, "%s: %v", p, cause)
}

// toTable turns raw rows into a Table, treating the first non-empty row as
// the header and dropping blank rows.
func toTable(name string, rows [][]string) *model.Table {
	tbl := &model.Table{Name: name, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if tbl.Columns == nil {
			tbl.Columns = trimAll(row)
			continue
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}
	return out
}

func tableName(p string) string {
	base := path.Base(stripQuery(p))
	return strings.TrimSuffix(base, path.Ext(base))
}

func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}
