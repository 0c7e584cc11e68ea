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


package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/fatih/color"
	"github.com/poiesic/notevec"
	"github.com/poiesic/notevec/ai"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/ingestion"
	"github.com/poiesic/notevec/rebuild"
	"github.com/schollz/progressbar/v3"
)

// excerptLength caps the chunk text shown per search hit.
const excerptLength = 160

var (
	titleColor = color.New(color.FgGreen, color.Bold)
	labelColor = color.New(color.FgCyan)
	scoreColor = color.New(color.FgYellow)
	dimColor   = color.New(color.Faint)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
)

func okMark() string {
	return color.GreenString("✓")
}

func failMark() string {
	return errColor.Sprint("✗")
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)
}

func printStatus(w io.Writer, s notevec.RAGStatus) {
	state := errColor.Sprint("disabled")
	if s.Enabled {
		state = color.GreenString("enabled")
	}
	row := func(label string, value any) {
		fmt.Fprintf(w, "%s %v\n", labelColor.Sprintf("%-18s", label), value)
	}
	row("Indexing", state)
	row("Provider", s.Provider)
	row("Model", s.Model)
	switch {
	case !s.Enabled:
	case s.Connected:
		row("Embedder", color.GreenString("connected")+dimColor.Sprintf(" (breaker %s)", s.Breaker))
	default:
		row("Embedder", errColor.Sprint("unavailable"))
	}
	row("Notes", s.TotalDocs)
	row("Indexed notes", s.IndexedDocs)
	row("Indexed bookmarks", s.IndexedBookmarks)
	row("Indexed files", s.IndexedFiles)
	row("Indexed folders", s.IndexedFolders)
	row("Chunks", s.TotalChunks)
	if s.LastIndexTime.IsZero() {
		row("Last indexed", dimColor.Sprint("never"))
	} else {
		row("Last indexed", s.LastIndexTime.Local().Format(time.DateTime))
	}
	if s.Rebuilding {
		row("Rebuilding", warnColor.Sprint("yes"))
	}
	if s.PendingSaves > 0 {
		row("Pending saves", s.PendingSaves)
	}
	if s.FailedBlocks > 0 {
		row("Failed blocks", errColor.Sprint(s.FailedBlocks))
	}
}

func printConfig(w io.Writer, cfg *ai.Config) {
	row := func(label string, value any) {
		fmt.Fprintf(w, "%s %v\n", labelColor.Sprintf("%-16s", label), value)
	}
	row("enabled", cfg.Enabled)
	row("provider", cfg.Provider)
	row("base_url", cfg.BaseURL)
	row("model", cfg.Model)
	if cfg.APIKey != "" {
		row("api_key", maskKey(cfg.APIKey))
	}
	row("max_chunk_size", cfg.MaxChunkSize)
	row("chunk_overlap", cfg.ChunkOverlap)
	row("batch_size", cfg.BatchSize)
	row("timeout", cfg.Timeout)
	row("debounce_delay", cfg.DebounceDelay)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "…" + key[len(key)-4:]
}

func printSearchResults(w io.Writer, results []core.DocumentSearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("no results"))
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s %s %s\n", i+1,
			titleColor.Sprint(r.Title),
			dimColor.Sprintf("(%s, %s)", r.DocID, r.SourceType),
			scoreColor.Sprintf("%.3f", r.MaxScore))
		for _, hit := range r.Chunks {
			source := "body"
			if hit.Chunk.BlockID != "" {
				source = hit.Chunk.BlockID
			}
			if hit.Chunk.Heading != "" {
				source += " › " + hit.Chunk.Heading
			}
			fmt.Fprintf(w, "   %s %s %s\n",
				scoreColor.Sprintf("%.3f", hit.Score),
				labelColor.Sprint(source),
				excerpt(hit.Chunk.Text, excerptLength))
		}
	}
}

func printLexicalResults(w io.Writer, results []core.LexicalResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("no matches"))
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s %s\n", titleColor.Sprint(r.Title), dimColor.Sprintf("(%s)", r.ID))
		if r.Snippet != "" {
			fmt.Fprintf(w, "   %s\n", r.Snippet)
		}
	}
}

func printGraph(w io.Writer, g *core.GraphData) {
	fmt.Fprintf(w, "%s\n", labelColor.Sprintf("%d nodes", len(g.Nodes)))
	for _, n := range g.Nodes {
		line := fmt.Sprintf("  %s %s %s", n.ID, titleColor.Sprint(n.Label),
			dimColor.Sprintf("(%s, %d chunks)", n.Type, n.Value))
		if len(n.Tags) > 0 {
			line += " " + labelColor.Sprint("#"+strings.Join(n.Tags, " #"))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "%s\n", labelColor.Sprintf("%d edges", len(g.Edges)))
	for _, e := range g.Edges {
		line := fmt.Sprintf("  %s -- %s %s %s", e.Source, e.Target,
			scoreColor.Sprintf("%.3f", e.Similarity), e.Kind)
		if len(e.SharedTags) > 0 {
			line += " " + labelColor.Sprint("#"+strings.Join(e.SharedTags, " #"))
		}
		fmt.Fprintln(w, line)
	}
}

func printContentSummary(w io.Writer, docID, blockID string, c core.ExtractedContent) {
	if c.Error != "" {
		fmt.Fprintf(w, "%s %s#%s: %s\n", failMark(), docID, blockID, errColor.Sprint(c.Error))
	} else {
		fmt.Fprintf(w, "%s %s#%s: %s %s\n", okMark(), docID, blockID,
			titleColor.Sprint(c.Title), dimColor.Sprintf("(%d chars)", len([]rune(c.Text))))
	}
	printItems(w, c.Items)
}

func printContent(w io.Writer, c core.ExtractedContent) {
	status := color.GreenString("indexed")
	switch {
	case c.Indexing:
		status = warnColor.Sprint("indexing")
	case c.Error != "":
		status = errColor.Sprint(c.Error)
	case !c.Indexed:
		status = warnColor.Sprint("not indexed")
	}
	fmt.Fprintf(w, "%s %s\n\n", titleColor.Sprint(c.Title), dimColor.Sprintf("[%s]", status))
	fmt.Fprintln(w, c.Text)
}

func printItems(w io.Writer, items []core.ItemResult) {
	for _, item := range items {
		if item.Error != "" {
			fmt.Fprintf(w, "   %s %s %s\n", failMark(), item.Path, errColor.Sprint(item.Error))
			continue
		}
		fmt.Fprintf(w, "   %s %s %s\n", okMark(), item.Path, dimColor.Sprintf("(%d chars)", item.Chars))
	}
}

func printRebuildResult(w io.Writer, r rebuild.Result) {
	fmt.Fprintf(w, "%s indexed %d notes and %d attachments in %s\n",
		okMark(), r.Documents, r.External, r.Elapsed.Round(time.Millisecond))
	if r.Pruned > 0 {
		fmt.Fprintf(w, "  pruned %d stale sources\n", r.Pruned)
	}
	if r.Failed > 0 {
		fmt.Fprintf(w, "%s %d items failed\n", failMark(), r.Failed)
		for _, err := range r.Errors {
			fmt.Fprintf(w, "   %s\n", errColor.Sprint(err))
		}
	}
}

func failureText(ev ingestion.Event) string {
	target := ev.DocID
	if ev.BlockID != "" {
		target += "#" + ev.BlockID
	}
	return target + ": " + ev.Error
}

// excerpt flattens whitespace and shortens text to at most n runes.
func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "…"
}

// blockIDFor derives a block id from a URL or path.
func blockIDFor(locator string) string {
	name := strings.TrimSuffix(filepath.Base(locator), filepath.Ext(locator))
	if u, err := url.Parse(locator); err == nil && u.Host != "" {
		name = u.Host
		if p := strings.Trim(u.Path, "/"); p != "" {
			name += "-" + strings.TrimSuffix(path.Base(p), path.Ext(p))
		}
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	id := strings.TrimSuffix(b.String(), "-")
	if id == "" {
		return "block"
	}
	return id
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
