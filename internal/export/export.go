// Package export prints rendered campaign pages to PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"launchkit/api/internal/blocks"
	"launchkit/api/internal/render"
)

// ErrPDFDependencyMissing indicates no headless Chrome is installed.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")

type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

type printFunc func(ctx context.Context, html string) ([]byte, error)

type Service struct {
	print  printFunc
	logger zerolog.Logger
}

// NewService resolves the Chrome binary once. Without one every export
// fails with ErrPDFDependencyMissing.
func NewService(logger zerolog.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Service{logger: logger}
	path, err := findChrome(lookPath)
	if err != nil {
		logger.Warn().Err(err).Msg("pdf export disabled")
		s.print = func(context.Context, string) ([]byte, error) { return nil, err }
		return s
	}
	s.print = func(ctx context.Context, html string) ([]byte, error) {
		return chromePDF(ctx, path, html, timeout)
	}
	return s
}

// PDF prints an HTML page.
func (s *Service) PDF(ctx context.Context, html, title string) (*Result, error) {
	data, err := s.print(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// Campaign renders a campaign document and prints it.
func (s *Service) Campaign(ctx context.Context, doc blocks.Document, page render.Page) (*Result, error) {
	html, err := render.Render(doc, page)
	if err != nil {
		return nil, fmt.Errorf("render campaign: %w", err)
	}
	started := time.Now()
	result, err := s.PDF(ctx, html, page.Title)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Dur("duration", time.Since(started)).Int("bytes", len(result.Data)).Msg("campaign pdf exported")
	return result, nil
}
