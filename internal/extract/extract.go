// Package extract turns stored PDF uploads into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrNotPDF  = errors.New("file is not a pdf")
	ErrNoPages = errors.New("pdf has no pages")
	ErrNoText  = errors.New("no extractable text in pdf")
)

// Extractor converts a document payload into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFExtractor validates the file structure with pdfcpu and reads text with ledongthuc/pdf.
type PDFExtractor struct {
	// MaxPages rejects larger documents when positive.
	MaxPages int
}

var disableConfigDir sync.Once

func validationConfig() *model.Configuration {
	disableConfigDir.Do(func() {
		model.ConfigPath = "disable"
	})
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages after relaxed structural validation.
func PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\n\r "), []byte("%PDF-")) {
		return 0, ErrNotPDF
	}
	n, err := api.PageCount(bytes.NewReader(data), validationConfig())
	if err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	return n, nil
}

// Extract returns the normalized text of every page in data.
func (e PDFExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pages, err := PageCount(data)
	if err != nil {
		return "", err
	}
	if pages == 0 {
		return "", ErrNoPages
	}
	if e.MaxPages > 0 && pages > e.MaxPages {
		return "", fmt.Errorf("pdf has %d pages, limit is %d", pages, e.MaxPages)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := plainText(data)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	text := Normalize(raw)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// plainText converts panics from malformed content streams into errors.
func plainText(data []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf content: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Normalize collapses horizontal whitespace, drops control characters and
// keeps at most one blank line between paragraphs.
func Normalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Map(func(r rune) rune {
			if r == '\t' || r == '\f' || r == '\v' {
				return ' '
			}
			if r < 0x20 || r == 0x7f || r == '�' {
				return -1
			}
			return r
		}, line)
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
