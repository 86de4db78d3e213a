package document

import (
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// RenderError indicates the input document could not be opened or rasterized.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering document %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsPDF reports whether the path points at a PDF document.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// RenderPages converts a PDF into one PNG per page, in page order, rendered
// at the given DPI into a fresh temporary directory. A non-PDF input is
// returned as-is, wrapped in a single-element slice. Rendered pages are not
// cleaned up; they live in scratch storage for the host to reap.
func RenderPages(path string, dpi float64) ([]string, error) {
	if !IsPDF(path) {
		return []string{path}, nil
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, &RenderError{Path: path, Err: err}
	}
	defer doc.Close()

	tmpdir, err := os.MkdirTemp("", "firefly-receipts-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	slog.Info("pdf_render_start", "file", path, "dpi", dpi)

	paths := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, &RenderError{Path: path, Err: fmt.Errorf("page %d: %w", i+1, err)}
		}

		outPath := filepath.Join(tmpdir, fmt.Sprintf("%s_p%d.png", stem, i+1))
		f, err := os.Create(outPath)
		if err != nil {
			return nil, fmt.Errorf("creating page image: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return nil, fmt.Errorf("encoding page image: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("writing page image: %w", err)
		}

		paths = append(paths, outPath)
		slog.Info("pdf_page_rendered", "page", i+1, "output", outPath)
	}

	slog.Info("pdf_render_complete", "pages", len(paths))
	return paths, nil
}
