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


package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/notevec/core"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const noteExt = ".md"

var markdownParser = goldmark.New().Parser()

// Attachment is an external block of a note.
type Attachment struct {
	ID      string          `yaml:"id"`
	Type    core.SourceType `yaml:"type"`
	Locator string          `yaml:"locator"`
	Title   string          `yaml:"title,omitempty"`
}

// Note is one Markdown file.
type Note struct {
	ID          string
	Title       string
	Tags        []string
	Attachments []Attachment
	Body        string
	Path        string
	ModTime     time.Time

	explicitTitle bool
}

// Document returns the engine's view of the note.
func (n *Note) Document() core.Document {
	return core.Document{
		ID:        n.ID,
		Title:     n.Title,
		Text:      n.Body,
		Tags:      slices.Clone(n.Tags),
		UpdatedAt: n.ModTime,
	}
}

// Blocks returns the note's attachments as external blocks with resolved locators.
func (n *Note) Blocks() []core.ExternalBlock {
	blocks := make([]core.ExternalBlock, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		blocks = append(blocks, core.ExternalBlock{
			DocID:   n.ID,
			BlockID: a.ID,
			Type:    a.Type,
			Locator: n.resolve(a),
			Title:   a.Title,
		})
	}
	return blocks
}

func (n *Note) resolve(a Attachment) string {
	if a.Type == core.SourceBookmark || a.Locator == "" || filepath.IsAbs(a.Locator) {
		return a.Locator
	}
	return filepath.Join(filepath.Dir(n.Path), filepath.FromSlash(a.Locator))
}

// Store is a directory of Markdown notes. It implements core.DocumentStore.
// Reads go to disk every time, so edits made by other programs are seen
// at once.
type Store struct {
	root   string
	logger *slog.Logger
}

var _ core.DocumentStore = (*Store)(nil)

// Open returns the store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Store{
		root:   root,
		logger: slog.Default().With("component", "notes"),
	}, nil
}

// Root returns the absolute notes directory.
func (s *Store) Root() string {
	return s.root
}

// path maps a note id to its file, rejecting ids outside the root.
func (s *Store) path(id string) (string, error) {
	id = strings.TrimSuffix(strings.TrimSpace(id), noteExt)
	if id == "" || !fs.ValidPath(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.root, filepath.FromSlash(id)+noteExt), nil
}

// IDForPath returns the id of the note file at path.
func (s *Store) IDForPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.Ext(rel) != noteExt {
		return "", fmt.Errorf("%w: %s is not a note under %s", ErrInvalidID, path, s.root)
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, noteExt)), nil
}

// Load reads one note. Returns core.ErrDocumentNotFound for a missing note.
func (s *Store) Load(id string) (*Note, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	return s.load(strings.TrimSuffix(id, noteExt), path)
}

func (s *Store) load(id, path string) (*Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
		}
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	fm, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	note := &Note{
		ID:            id,
		Title:         fm.Title,
		Tags:          fm.Tags,
		Attachments:   fm.Attachments,
		Body:          string(body),
		Path:          path,
		ModTime:       info.ModTime(),
		explicitTitle: fm.Title != "",
	}
	if note.Title == "" {
		note.Title = headingTitle(body)
	}
	if note.Title == "" {
		note.Title = filepath.Base(id)
	}
	return note, nil
}

// headingTitle returns the text of the first level-one heading.
func headingTitle(src []byte) string {
	doc := markdownParser.Parse(text.NewReader(src))
	var title strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		heading, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		if heading.Level != 1 {
			return ast.WalkSkipChildren, nil
		}
		_ = ast.Walk(heading, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
			switch t := c.(type) {
			case *ast.Text:
				if entering {
					title.Write(t.Segment.Value(src))
				}
			case *ast.String:
				if entering {
					title.Write(t.Value)
				}
			}
			return ast.WalkContinue, nil
		})
		return ast.WalkStop, nil
	})
	return strings.TrimSpace(title.String())
}

// Save writes the note, creating parent directories as needed. Path and
// ModTime are updated.
func (s *Store) Save(note *Note) error {
	path, err := s.path(note.ID)
	if err != nil {
		return err
	}
	fm := frontMatter{Tags: note.Tags, Attachments: note.Attachments}
	if note.explicitTitle || (note.Title != "" && note.Title != headingTitle([]byte(note.Body))) {
		fm.Title = note.Title
	}
	for _, a := range note.Attachments {
		if err := validateAttachment(a); err != nil {
			return err
		}
	}
	data, err := renderNote(fm, note.Body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	note.Path = path
	note.ModTime = info.ModTime()
	return nil
}

// Delete removes the note file.
func (s *Store) Delete(id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
		}
		return err
	}
	return nil
}

// Attach adds an attachment to a note, replacing one with the same id.
func (s *Store) Attach(id string, a Attachment) (*Note, error) {
	if err := validateAttachment(a); err != nil {
		return nil, err
	}
	note, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(note.Attachments, func(x Attachment) bool { return x.ID == a.ID })
	if i >= 0 {
		note.Attachments[i] = a
	} else {
		note.Attachments = append(note.Attachments, a)
	}
	return note, s.Save(note)
}

// Detach removes an attachment from a note.
func (s *Store) Detach(id, blockID string) (*Note, error) {
	note, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(note.Attachments, func(x Attachment) bool { return x.ID == blockID })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s#%s", ErrAttachmentNotFound, id, blockID)
	}
	note.Attachments = slices.Delete(note.Attachments, i, i+1)
	return note, s.Save(note)
}

func validateAttachment(a Attachment) error {
	return core.ValidateExternalBlock(&core.ExternalBlock{
		DocID:   "note",
		BlockID: a.ID,
		Type:    a.Type,
		Locator: a.Locator,
	})
}

// List reads every note under the root, skipping hidden files and
// directories. Notes that cannot be read are logged and skipped.
func (s *Store) List(ctx context.Context) ([]*Note, error) {
	var notes []*Note
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if path != s.root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(name) != noteExt {
			return nil
		}
		id, err := s.IDForPath(path)
		if err != nil {
			return err
		}
		note, err := s.load(id, path)
		if err != nil {
			s.logger.Warn("skipping unreadable note", "note", id, "err", err)
			return nil
		}
		notes = append(notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// ListDocuments returns every note as a document.
func (s *Store) ListDocuments(ctx context.Context) ([]core.Document, error) {
	notes, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]core.Document, len(notes))
	for i, note := range notes {
		docs[i] = note.Document()
	}
	return docs, nil
}

// GetDocument returns one note as a document.
func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	note, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	doc := note.Document()
	return &doc, nil
}

// ListExternalBlocks returns the attachments of every note.
func (s *Store) ListExternalBlocks(ctx context.Context) ([]core.ExternalBlock, error) {
	notes, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var blocks []core.ExternalBlock
	for _, note := range notes {
		blocks = append(blocks, note.Blocks()...)
	}
	return blocks, nil
}
