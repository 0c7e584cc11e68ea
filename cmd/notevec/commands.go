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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/poiesic/notevec"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/ingestion"
	"github.com/poiesic/notevec/notes"
	"github.com/poiesic/notevec/rebuild"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
)

func statusCommand(c *cli.Context) error {
	return withSession(c, func(ctx context.Context, s *session) error {
		status, err := s.engine.GetRAGStatus(ctx)
		if err != nil {
			return err
		}
		printStatus(c.App.Writer, status)
		return nil
	})
}

func configShowCommand(c *cli.Context) error {
	return withSession(c, func(ctx context.Context, s *session) error {
		printConfig(c.App.Writer, s.engine.GetRAGConfig())
		return nil
	})
}

func configSetCommand(c *cli.Context) error {
	return withSession(c, func(ctx context.Context, s *session) error {
		cfg := s.engine.GetRAGConfig()
		if c.IsSet("enabled") {
			cfg.Enabled = c.Bool("enabled")
		}
		if c.IsSet("provider") {
			cfg.Provider = c.String("provider")
		}
		if c.IsSet("base-url") {
			cfg.BaseURL = c.String("base-url")
		}
		if c.IsSet("model") {
			cfg.Model = c.String("model")
		}
		if c.IsSet("api-key") {
			cfg.APIKey = c.String("api-key")
		}
		if c.IsSet("chunk-size") {
			cfg.MaxChunkSize = c.Int("chunk-size")
		}
		if c.IsSet("overlap") {
			cfg.ChunkOverlap = c.Int("overlap")
		}
		if c.IsSet("batch-size") {
			cfg.BatchSize = c.Int("batch-size")
		}
		if c.IsSet("timeout") {
			cfg.Timeout = c.Duration("timeout")
		}
		if c.IsSet("debounce") {
			cfg.DebounceDelay = c.Duration("debounce")
		}

		if c.Bool("test") {
			spinner := getSpinner("Testing " + cfg.ModelTag())
			dims, err := s.engine.TestRAGConfig(ctx, cfg)
			_ = spinner.Finish()
			if err != nil {
				return fmt.Errorf("embedding test failed: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "%s %s returns %d-dimensional vectors\n", okMark(), cfg.ModelTag(), dims)
		}

		previous := s.engine.GetRAGConfig()
		if err := s.engine.SaveRAGConfig(ctx, cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "%s configuration saved\n", okMark())
		if cfg.Enabled && cfg.RequiresReindex(previous) {
			fmt.Fprintln(c.App.Writer, warnColor.Sprint("embedding model changed: run 'notevec rebuild' to reindex"))
		}
		return nil
	})
}

func indexCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one note is required")
	}
	return withSession(c, func(ctx context.Context, s *session) error {
		for _, id := range c.Args().Slice() {
			note, err := loadNote(s.store, id)
			if err != nil {
				return err
			}
			n, err := s.engine.IndexDocument(ctx, note.Document())
			if err != nil {
				return fmt.Errorf("failed to index %s: %w", note.ID, err)
			}
			fmt.Fprintf(c.App.Writer, "%s %s: %d chunks\n", okMark(), note.ID, n)
		}
		return nil
	})
}

func attachCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: notevec attach NOTE LOCATOR")
	}
	kind := core.SourceType(c.String("type"))
	if !kind.IsExternal() {
		return fmt.Errorf("invalid block type %q: must be one of bookmark, file, folder", kind)
	}
	noteID, locator := c.Args().Get(0), c.Args().Get(1)
	if kind != core.SourceBookmark {
		abs, err := filepath.Abs(locator)
		if err != nil {
			return err
		}
		locator = abs
	}
	blockID := c.String("id")
	if blockID == "" {
		blockID = blockIDFor(locator)
	}

	return withSession(c, func(ctx context.Context, s *session) error {
		id, err := noteIDFor(s.store, noteID)
		if err != nil {
			return err
		}
		note, err := s.store.Attach(id, notes.Attachment{
			ID:      blockID,
			Type:    kind,
			Locator: locator,
			Title:   c.String("title"),
		})
		if err != nil {
			return fmt.Errorf("failed to attach: %w", err)
		}

		var block core.ExternalBlock
		for _, b := range note.Blocks() {
			if b.BlockID == blockID {
				block = b
			}
		}

		spinner := getSpinner("Indexing " + block.Locator)
		var content core.ExtractedContent
		switch block.Type {
		case core.SourceBookmark:
			content, err = s.engine.IndexBookmarkContent(ctx, block.Locator, block.DocID, block.BlockID)
		case core.SourceFile:
			content, err = s.engine.IndexFileContent(ctx, block.Locator, block.DocID, block.BlockID, block.Title)
		case core.SourceFolder:
			content, err = s.engine.IndexFolderContent(ctx, block.Locator, block.DocID, block.BlockID)
		}
		_ = spinner.Finish()
		if err != nil {
			return fmt.Errorf("attached %s#%s but indexing failed: %w", id, blockID, err)
		}
		printContentSummary(c.App.Writer, id, blockID, content)
		return nil
	})
}

func detachCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: notevec detach NOTE BLOCK")
	}
	return withSession(c, func(ctx context.Context, s *session) error {
		id, err := noteIDFor(s.store, c.Args().Get(0))
		if err != nil {
			return err
		}
		blockID := c.Args().Get(1)
		if _, err := s.store.Detach(id, blockID); err != nil {
			return err
		}
		if err := s.engine.RemoveExternalBlock(ctx, id, blockID); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s removed %s#%s\n", okMark(), id, blockID)
		return nil
	})
}

func rebuildCommand(c *cli.Context) error {
	return withSession(c, func(ctx context.Context, s *session) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		var report func(rebuild.Progress)
		var bars *phaseBars
		if !c.Bool("no-progress") {
			bars = &phaseBars{}
			report = bars.update
		}
		result, err := s.engine.RebuildIndex(ctx, report)
		if bars != nil {
			bars.finish()
		}
		if err != nil {
			return err
		}
		printRebuildResult(c.App.Writer, result)
		return nil
	})
}

// phaseBars draws one progress bar per rebuild phase.
type phaseBars struct {
	mu    sync.Mutex
	phase rebuild.Phase
	bar   *progressbar.ProgressBar
}

func (b *phaseBars) update(p rebuild.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil || p.Phase != b.phase {
		if b.bar != nil {
			_ = b.bar.Finish()
		}
		b.phase = p.Phase
		b.bar = getProgressBar(p.Total, fmt.Sprintf("Indexing %s", p.Phase))
	}
	_ = b.bar.Set(p.Current)
}

func (b *phaseBars) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}

func searchCommand(c *cli.Context) error {
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	return withSession(c, func(ctx context.Context, s *session) error {
		results, err := s.engine.SemanticSearchDocuments(ctx, query, c.Int("limit"), c.String("exclude"))
		if err != nil {
			return err
		}
		printSearchResults(c.App.Writer, results)
		return nil
	})
}

func grepCommand(c *cli.Context) error {
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	return withSession(c, func(ctx context.Context, s *session) error {
		results, err := s.engine.SearchDocuments(ctx, query, c.Int("limit"))
		if err != nil {
			return err
		}
		printLexicalResults(c.App.Writer, results)
		return nil
	})
}

func graphCommand(c *cli.Context) error {
	return withSession(c, func(ctx context.Context, s *session) error {
		graph, err := s.engine.GetDocumentGraph(ctx, float32(c.Float64("threshold")))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(graph)
		}
		printGraph(c.App.Writer, graph)
		return nil
	})
}

func contentCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: notevec content NOTE BLOCK")
	}
	return withSession(c, func(ctx context.Context, s *session) error {
		id, err := noteIDFor(s.store, c.Args().Get(0))
		if err != nil {
			return err
		}
		content, err := s.engine.GetExternalBlockContent(ctx, id, c.Args().Get(1))
		if err != nil {
			return err
		}
		printContent(c.App.Writer, content)
		return nil
	})
}

func watchCommand(c *cli.Context) error {
	interval := c.Duration("interval")
	if interval <= 0 {
		return errors.New("interval must be greater than 0")
	}
	return withSession(c, func(ctx context.Context, s *session) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, unsubscribe := s.engine.Events(16)
		defer unsubscribe()
		go func() {
			for ev := range events {
				if ev.Type == ingestion.EventIndexFailed {
					fmt.Fprintf(c.App.ErrWriter, "%s %s\n", failMark(), failureText(ev))
				}
			}
		}()

		w := newWatcher(s, c.App.Writer)
		if err := w.scan(ctx, false); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "watching %s (%d notes)\n", s.store.Root(), len(w.seen))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Close indexes whatever is still waiting for its debounce delay.
				return nil
			case <-ticker.C:
				if err := w.scan(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
			}
		}
	})
}

// watchedNote is what the watcher remembers of a note between scans.
type watchedNote struct {
	modTime time.Time
	blocks  map[string]core.ExternalBlock
}

// watcher compares successive listings of the notes directory and feeds the
// differences to the engine.
type watcher struct {
	s    *session
	out  io.Writer
	seen map[string]watchedNote
}

func newWatcher(s *session, out io.Writer) *watcher {
	return &watcher{s: s, out: out, seen: make(map[string]watchedNote)}
}

// scan lists the notes. When notify is false the listing only seeds the
// watcher.
func (w *watcher) scan(ctx context.Context, notify bool) error {
	list, err := w.s.store.List(ctx)
	if err != nil {
		return err
	}
	current := make(map[string]watchedNote, len(list))
	for _, note := range list {
		entry := watchedNote{modTime: note.ModTime, blocks: make(map[string]core.ExternalBlock)}
		for _, b := range note.Blocks() {
			entry.blocks[b.BlockID] = b
		}
		current[note.ID] = entry

		old, known := w.seen[note.ID]
		if !notify || (known && old.modTime.Equal(note.ModTime)) {
			continue
		}
		err := w.s.engine.DocumentSaved(note.Document())
		switch {
		case errors.Is(err, notevec.ErrDisabled):
			continue
		case err != nil:
			fmt.Fprintf(w.out, "%s %s: %v\n", failMark(), note.ID, err)
			continue
		}
		fmt.Fprintf(w.out, "changed %s\n", note.ID)
		w.syncBlocks(ctx, old.blocks, entry.blocks)
	}

	if notify {
		for id, old := range w.seen {
			if _, ok := current[id]; ok {
				continue
			}
			if err := w.s.engine.DocumentDeleted(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(w.out, "deleted %s\n", id)
			w.syncBlocks(ctx, old.blocks, nil)
		}
	}
	w.seen = current
	return nil
}

// syncBlocks queues new or changed attachments and removes dropped ones.
func (w *watcher) syncBlocks(ctx context.Context, before, after map[string]core.ExternalBlock) {
	for id, b := range after {
		if prev, ok := before[id]; ok && prev.Locator == b.Locator && prev.Type == b.Type {
			continue
		}
		if _, err := w.s.engine.SubmitExternalBlock(ctx, b); err != nil {
			fmt.Fprintf(w.out, "%s %s#%s: %v\n", failMark(), b.DocID, id, err)
		}
	}
	for id, b := range before {
		if _, ok := after[id]; ok {
			continue
		}
		if err := w.s.engine.RemoveExternalBlock(ctx, b.DocID, id); err != nil {
			fmt.Fprintf(w.out, "%s %s#%s: %v\n", failMark(), b.DocID, id, err)
		}
	}
}

// loadNote accepts a note id or a path to a note file.
func loadNote(store *notes.Store, arg string) (*notes.Note, error) {
	id, err := noteIDFor(store, arg)
	if err != nil {
		return nil, err
	}
	return store.Load(id)
}

func noteIDFor(store *notes.Store, arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil && filepath.Ext(arg) == ".md" {
		return store.IDForPath(arg)
	}
	return arg, nil
}

func queryArg(c *cli.Context) (string, error) {
	if c.NArg() == 0 {
		return "", errors.New("a query is required")
	}
	return joinArgs(c.Args().Slice()), nil
}
