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
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/poiesic/notevec/core"
)

// ExtractBookmark fetches a web page and extracts its readable text.
//
// When the body text is shorter than MinBodyLength the page's Open Graph
// description is prepended so that thin pages still index something useful.
// Plain text and PDF responses are extracted as files.
func (e *Extractor) ExtractBookmark(ctx context.Context, rawURL string) (core.ExtractedContent, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.ExtractedContent{}, fmt.Errorf("%w: invalid url %q", ErrFetchFailed, rawURL)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return core.ExtractedContent{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return core.ExtractedContent{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	e.logger.Debug("fetching bookmark", "url", u.String())
	resp, err := e.client.Do(req)
	if err != nil {
		return core.ExtractedContent{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.ExtractedContent{}, fmt.Errorf("%w: received status code %d for %s", ErrFetchFailed, resp.StatusCode, u)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.opts.MaxBodyBytes))
	if err != nil {
		return core.ExtractedContent{}, fmt.Errorf("%w: reading body: %w", ErrFetchFailed, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return e.bookmarkFromHTML(u, body)
	case mediaType == "application/pdf":
		return e.ExtractBytes(ctx, pageName(u, ".pdf"), body)
	case mediaType == "text/markdown":
		return e.ExtractBytes(ctx, pageName(u, ".md"), body)
	case strings.HasPrefix(mediaType, "text/"):
		result, err := e.ExtractBytes(ctx, pageName(u, ".txt"), body)
		result.Title = u.Host + u.Path
		return result, err
	default:
		return core.ExtractedContent{}, fmt.Errorf("%w: content type %q", ErrUnsupported, mediaType)
	}
}

func (e *Extractor) bookmarkFromHTML(u *url.URL, body []byte) (core.ExtractedContent, error) {
	page, err := parseHTML(body)
	if err != nil {
		return core.ExtractedContent{}, fmt.Errorf("%w: html: %w", ErrUnsupported, err)
	}

	result := core.ExtractedContent{
		Title: page.Title,
		Text:  page.Text,
	}
	if result.Title == "" {
		result.Title = u.Host
	}
	if len([]rune(result.Text)) < e.opts.MinBodyLength && page.Description != "" &&
		!strings.Contains(result.Text, page.Description) {
		result.Text = strings.TrimSpace(page.Description + "\n\n" + result.Text)
	}
	if result.Text == "" {
		result.Error = "no text could be extracted"
	}
	return result, nil
}

// pageName names a fetched document for extension-based dispatch.
func pageName(u *url.URL, ext string) string {
	name := u.Path[strings.LastIndex(u.Path, "/")+1:]
	if name == "" {
		name = u.Host
	}
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}
	return name
}
