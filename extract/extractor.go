// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/notevec/core"
	"golang.org/x/time/rate"
)

// Options configures an Extractor.
type Options struct {
	// Timeout bounds a bookmark fetch. Default: 20s
	Timeout time.Duration

	// RateLimit is the maximum number of bookmark fetches per second. Default: 2
	RateLimit float64

	// MaxBodyBytes caps the bytes read from a bookmark response. Default: 5 MiB
	MaxBodyBytes int64

	// MinBodyLength is the body text length below which a page's Open Graph
	// description is used as well. Default: 200
	MinBodyLength int

	// MaxFileSize caps the size of a single file. Default: 50 MiB
	MaxFileSize int64

	// Recursive makes folder extraction descend into subdirectories. Default: true
	Recursive bool

	// MaxFiles caps the number of files extracted from one folder. Default: 500
	MaxFiles int

	// UserAgent is sent with bookmark fetches.
	UserAgent string

	// HTTPClient overrides the client used for bookmarks.
	HTTPClient *http.Client

	// Logger receives extraction warnings. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns the default extraction options.
func DefaultOptions() Options {
	return Options{
		Timeout:       20 * time.Second,
		RateLimit:     2,
		MaxBodyBytes:  5 << 20,
		MinBodyLength: 200,
		MaxFileSize:   50 << 20,
		Recursive:     true,
		MaxFiles:      500,
		UserAgent:     "notevec/1.0 (+https://github.com/poiesic/notevec)",
	}
}

// Option is a functional option for configuring an Extractor.
type Option func(*Options)

// WithTimeout sets the bookmark fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithRateLimit sets the maximum bookmark fetches per second.
func WithRateLimit(perSecond float64) Option {
	return func(o *Options) {
		o.RateLimit = perSecond
	}
}

// WithRecursive sets whether folders are walked recursively.
func WithRecursive(recursive bool) Option {
	return func(o *Options) {
		o.Recursive = recursive
	}
}

// WithMaxFiles caps the files extracted per folder.
func WithMaxFiles(n int) Option {
	return func(o *Options) {
		o.MaxFiles = n
	}
}

// WithMaxFileSize caps the size of a single file.
func WithMaxFileSize(n int64) Option {
	return func(o *Options) {
		o.MaxFileSize = n
	}
}

// WithMinBodyLength sets the threshold below which Open Graph text is used.
func WithMinBodyLength(n int) Option {
	return func(o *Options) {
		o.MinBodyLength = n
	}
}

// WithHTTPClient sets the client used for bookmark fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Extractor turns bookmarks, files and folders into plain text.
// It is safe for concurrent use.
type Extractor struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultOptions().RateLimit
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		opts:    o,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(o.RateLimit), 1),
		logger:  logger.With("component", "extractor"),
	}
}

// Extract returns the plain text of one external source.
// The locator is a URL for bookmarks, a file path for files and a directory
// path for folders.
func (e *Extractor) Extract(ctx context.Context, kind core.SourceType, locator string) (core.ExtractedContent, error) {
	if strings.TrimSpace(locator) == "" {
		return core.ExtractedContent{}, core.ErrEmptyLocator
	}
	switch kind {
	case core.SourceBookmark:
		return e.ExtractBookmark(ctx, locator)
	case core.SourceFile:
		return e.ExtractFile(ctx, locator)
	case core.SourceFolder:
		return e.ExtractFolder(ctx, locator)
	default:
		return core.ExtractedContent{}, fmt.Errorf("%w: source type %q", ErrUnsupported, kind)
	}
}

// ExtractFile reads and extracts one file. The title is the file name
// unless the content supplies one.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (core.ExtractedContent, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.ExtractedContent{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return core.ExtractedContent{}, err
	}
	if info.IsDir() {
		return core.ExtractedContent{}, fmt.Errorf("%w: %s is a directory", ErrUnsupported, path)
	}
	if !Supported(path) {
		return core.ExtractedContent{}, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if e.opts.MaxFileSize > 0 && info.Size() > e.opts.MaxFileSize {
		return core.ExtractedContent{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return core.ExtractedContent{}, err
	}
	return e.ExtractBytes(ctx, filepath.Base(path), data)
}

// ExtractBytes extracts file content by the type implied by name's extension.
func (e *Extractor) ExtractBytes(ctx context.Context, name string, data []byte) (core.ExtractedContent, error) {
	if err := ctx.Err(); err != nil {
		return core.ExtractedContent{}, err
	}

	result := core.ExtractedContent{Title: name}
	switch fileKind(name) {
	case kindText:
		result.Text = cleanText(string(data))
	case kindMarkdown:
		text, title := extractMarkdown(data)
		result.Text = text
		if title != "" {
			result.Title = title
		}
	case kindHTML:
		page, err := parseHTML(data)
		if err != nil {
			return core.ExtractedContent{}, fmt.Errorf("%w: html: %w", ErrUnsupported, err)
		}
		result.Text = page.Text
		if page.Title != "" {
			result.Title = page.Title
		}
	case kindPDF:
		text, items, err := extractPDF(data)
		if err != nil {
			return core.ExtractedContent{}, err
		}
		result.Text, result.Items = text, items
	case kindDocx:
		text, err := extractDocx(data)
		if err != nil {
			return core.ExtractedContent{}, err
		}
		result.Text = text
	case kindSpreadsheet:
		text, items, err := extractSpreadsheet(data)
		if err != nil {
			return core.ExtractedContent{}, err
		}
		result.Text, result.Items = text, items
	default:
		return core.ExtractedContent{}, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}

	if result.Text == "" {
		result.Error = "no text could be extracted"
	}
	return result, nil
}

type kind int

const (
	kindUnknown kind = iota
	kindText
	kindMarkdown
	kindHTML
	kindPDF
	kindDocx
	kindSpreadsheet
)

var extensions = map[string]kind{
	".txt":      kindText,
	".text":     kindText,
	".log":      kindText,
	".csv":      kindText,
	".tsv":      kindText,
	".json":     kindText,
	".yaml":     kindText,
	".yml":      kindText,
	".md":       kindMarkdown,
	".markdown": kindMarkdown,
	".html":     kindHTML,
	".htm":      kindHTML,
	".pdf":      kindPDF,
	".docx":     kindDocx,
	".xlsx":     kindSpreadsheet,
}

func fileKind(name string) kind {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Supported reports whether the file name has an extractable extension.
func Supported(name string) bool {
	return fileKind(name) != kindUnknown
}
