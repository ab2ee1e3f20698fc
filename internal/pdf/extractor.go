package pdf

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/bull/kbminer/internal/vision"
)

// PageResult is the outcome of extracting one page. Errors here are soft: the
// page still contributes whatever text was recovered.
type PageResult struct {
	Number          int
	RawText         string
	ImageText       string // each description followed by "\n"
	ImagesFound     int
	ImagesDescribed int
	TextErr         error
	ImageErr        error // image decoding failed; the image block was dropped
}

// Degraded reports whether anything on the page was lost.
func (r PageResult) Degraded() bool {
	return r.TextErr != nil || r.ImageErr != nil || r.ImagesDescribed < r.ImagesFound
}

// Block is the page's contribution to the file text: raw text, a newline, image text.
func (r PageResult) Block() string {
	return r.RawText + "\n" + r.ImageText
}

// Extractor produces raw text and image descriptions for single pages.
type Extractor struct {
	describer vision.Describer
	logger    *slog.Logger
}

// NewExtractor creates an Extractor. Wrap describer in vision.Limited to bound
// concurrent calls.
func NewExtractor(describer vision.Describer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{describer: describer, logger: logger}
}

// Extract never fails; problems are recorded on the result.
func (e *Extractor) Extract(ctx context.Context, page Page) PageResult {
	result := PageResult{Number: page.Number()}

	text, err := page.Text()
	if err != nil {
		e.logger.Warn("Failed to extract page text", "page", result.Number, "error", err)
		result.TextErr = err
	}
	result.RawText = text

	images, err := page.Images()
	if err != nil {
		e.logger.Warn("Failed to extract page images, dropping image text", "page", result.Number, "error", err)
		result.ImageErr = err
		return result
	}
	result.ImagesFound = len(images)
	if len(images) == 0 || e.describer == nil {
		return result
	}

	descriptions := make([]string, len(images))
	described := make([]bool, len(images))
	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Describer errors are already logged; a failed image adds nothing.
			desc, err := e.describer.Describe(ctx, img, result.RawText)
			if err == nil {
				descriptions[i] = desc
				described[i] = true
			}
		}()
	}
	wg.Wait()

	var sb strings.Builder
	for i, desc := range descriptions {
		if described[i] {
			result.ImagesDescribed++
		}
		if desc == "" {
			continue
		}
		sb.WriteString(desc)
		sb.WriteString("\n")
	}
	result.ImageText = sb.String()

	e.logger.Debug("Extracted page",
		"page", result.Number,
		"text_chars", len(result.RawText),
		"images", result.ImagesFound,
		"described", result.ImagesDescribed,
	)
	return result
}
