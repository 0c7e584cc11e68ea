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
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/notevec/core"
)

// ExtractFolder extracts every supported file under dir and concatenates
// them, each under a "## <relative path>" header. Hidden files and
// directories are skipped. A file that fails is recorded in Items and the
// rest are still returned.
func (e *Extractor) ExtractFolder(ctx context.Context, dir string) (core.ExtractedContent, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.ExtractedContent{}, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return core.ExtractedContent{}, err
	}
	if !info.IsDir() {
		return core.ExtractedContent{}, fmt.Errorf("%w: %s is not a directory", ErrUnsupported, dir)
	}

	paths, truncated, err := e.listFiles(dir)
	if err != nil {
		return core.ExtractedContent{}, err
	}

	result := core.ExtractedContent{Title: filepath.Base(dir)}
	var sections []string
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return core.ExtractedContent{}, err
		}
		rel, _ := filepath.Rel(dir, path)
		rel = filepath.ToSlash(rel)
		item := core.ItemResult{Path: rel, Title: filepath.Base(path)}

		content, err := e.ExtractFile(ctx, path)
		switch {
		case err != nil:
			item.Error = err.Error()
			e.logger.Warn("folder item extraction failed", "folder", dir, "file", rel, "err", err)
		case content.Text == "":
			item.Error = content.Error
		default:
			item.Title = content.Title
			item.Chars = len([]rune(content.Text))
			sections = append(sections, "## "+rel+"\n\n"+content.Text)
		}
		result.Items = append(result.Items, item)
	}

	result.Text = strings.Join(sections, "\n\n")
	switch {
	case len(paths) == 0:
		result.Error = "no supported files"
	case len(sections) == 0:
		result.Error = "no file could be extracted"
	case truncated:
		result.Error = fmt.Sprintf("only the first %d files were indexed", e.opts.MaxFiles)
	}
	return result, nil
}

// listFiles returns supported files under dir in lexical order, at most MaxFiles.
func (e *Extractor) listFiles(dir string) (paths []string, truncated bool, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Unreadable subtrees are skipped rather than failing the folder.
			e.logger.Warn("skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden || !e.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !d.Type().IsRegular() || !Supported(d.Name()) {
			return nil
		}
		if e.opts.MaxFiles > 0 && len(paths) >= e.opts.MaxFiles {
			truncated = true
			return filepath.SkipAll
		}
		paths = append(paths, path)
		return nil
	})
	return paths, truncated, err
}
