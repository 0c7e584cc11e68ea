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
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/notevec"
	"github.com/poiesic/notevec/notes"
	"github.com/urfave/cli/v2"
)

// dataDirName is the default data directory, created inside the notes directory.
const dataDirName = ".notevec"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "notevec",
		Usage: "Semantic search over a directory of Markdown notes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "notes",
				Aliases: []string{"n"},
				Usage:   "Path to the notes directory",
				Value:   ".",
				EnvVars: []string{"NOTEVEC_NOTES"},
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the data directory (default: <notes>/" + dataDirName + ")",
				EnvVars: []string{"NOTEVEC_DATA"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show index and embedder status",
				Action: statusCommand,
			},
			{
				Name:  "config",
				Usage: "Show or change the embedding configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the active configuration",
						Action: configShowCommand,
					},
					{
						Name:   "set",
						Usage:  "Change and save the configuration",
						Action: configSetCommand,
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "enabled",
								Usage: "Enable semantic indexing",
							},
							&cli.StringFlag{
								Name:  "provider",
								Usage: "Embedding provider (ollama, openai)",
							},
							&cli.StringFlag{
								Name:  "base-url",
								Usage: "Embedding service URL",
							},
							&cli.StringFlag{
								Name:  "model",
								Usage: "Embedding model name",
							},
							&cli.StringFlag{
								Name:    "api-key",
								Usage:   "API key for the embedding service",
								EnvVars: []string{"NOTEVEC_API_KEY"},
							},
							&cli.IntFlag{
								Name:  "chunk-size",
								Usage: "Maximum chunk size in characters",
							},
							&cli.IntFlag{
								Name:  "overlap",
								Usage: "Chunk overlap in characters",
							},
							&cli.IntFlag{
								Name:  "batch-size",
								Usage: "Number of chunks embedded per request",
							},
							&cli.DurationFlag{
								Name:  "timeout",
								Usage: "Timeout of one embedding request",
							},
							&cli.DurationFlag{
								Name:  "debounce",
								Usage: "Delay before a saved note is reindexed",
							},
							&cli.BoolFlag{
								Name:  "test",
								Usage: "Embed a sample text with the new configuration before saving",
							},
						},
					},
				},
			},
			{
				Name:      "index",
				Usage:     "Index notes now",
				ArgsUsage: "NOTE...",
				Action:    indexCommand,
			},
			{
				Name:      "attach",
				Usage:     "Attach a bookmark, file or folder to a note and index it",
				ArgsUsage: "NOTE LOCATOR",
				Action:    attachCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "type",
						Aliases:  []string{"t"},
						Usage:    "Block type (bookmark, file, folder)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Block id (default: derived from the locator)",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Display title of the block",
					},
				},
			},
			{
				Name:      "detach",
				Usage:     "Remove an attachment from a note and from the index",
				ArgsUsage: "NOTE BLOCK",
				Action:    detachCommand,
			},
			{
				Name:   "rebuild",
				Usage:  "Reindex every note and attachment",
				Action: rebuildCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "Do not draw progress bars",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Semantic search",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of documents",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "exclude",
						Usage: "Note id to leave out of the results",
					},
				},
			},
			{
				Name:      "grep",
				Usage:     "Keyword search over note titles and bodies",
				ArgsUsage: "QUERY",
				Action:    grepCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of notes (0 for all)",
						Value: 20,
					},
				},
			},
			{
				Name:   "graph",
				Usage:  "Print the relationship graph",
				Action: graphCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum similarity of a semantic edge",
						Value: 0.5,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the graph as JSON",
					},
				},
			},
			{
				Name:      "content",
				Usage:     "Print the extracted text of an attachment",
				ArgsUsage: "NOTE BLOCK",
				Action:    contentCommand,
			},
			{
				Name:   "watch",
				Usage:  "Reindex notes as they change",
				Action: watchCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "How often the notes directory is scanned",
						Value: 2 * time.Second,
					},
				},
			},
		},
	}
}

// session is an open notes store and engine.
type session struct {
	store  *notes.Store
	engine *notevec.Engine
}

// openSession opens the notes directory and the engine for one command.
func openSession(c *cli.Context) (*session, error) {
	store, err := notes.Open(c.String("notes"))
	if err != nil {
		return nil, fmt.Errorf("failed to open notes directory: %w", err)
	}
	dataDir := c.String("data")
	if dataDir == "" {
		dataDir = filepath.Join(store.Root(), dataDirName)
	}
	engine, err := notevec.Open(dataDir, store, notevec.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return &session{store: store, engine: engine}, nil
}

func (s *session) Close() {
	if err := s.engine.Close(); err != nil {
		slog.Error("error closing engine", "err", err)
	}
}

// withSession runs fn with an open session and closes it afterwards.
func withSession(c *cli.Context, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(c.Context, s)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
