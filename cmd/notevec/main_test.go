package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/notevec/notes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestAppFlags(t *testing.T) {
	app := newApp()

	t.Run("log-level defaults to warn", func(t *testing.T) {
		var levelFlag *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "log-level" {
				levelFlag = f
				break
			}
		}
		require.NotNil(t, levelFlag)
		assert.Equal(t, "warn", levelFlag.Value)
		assert.Equal(t, []string{"l"}, levelFlag.Aliases)
	})

	t.Run("notes defaults to the working directory", func(t *testing.T) {
		var notesFlag *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "notes" {
				notesFlag = f
				break
			}
		}
		require.NotNil(t, notesFlag)
		assert.Equal(t, ".", notesFlag.Value)
		assert.Equal(t, []string{"NOTEVEC_NOTES"}, notesFlag.EnvVars)
	})

	t.Run("data has no default value", func(t *testing.T) {
		var dataFlag *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "data" {
				dataFlag = f
				break
			}
		}
		require.NotNil(t, dataFlag)
		assert.Empty(t, dataFlag.Value)
	})

	t.Run("every command is registered", func(t *testing.T) {
		for _, name := range []string{"status", "config", "index", "attach", "detach", "rebuild", "search", "grep", "graph", "content", "watch"} {
			assert.NotNil(t, findCommand(app, name), name)
		}
	})

	t.Run("attach requires a type", func(t *testing.T) {
		cmd := findCommand(app, "attach")
		require.NotNil(t, cmd)
		var typeFlag *cli.StringFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "type" {
				typeFlag = f
				break
			}
		}
		require.NotNil(t, typeFlag)
		assert.True(t, typeFlag.Required)
	})

	t.Run("search limit has default value of 10", func(t *testing.T) {
		cmd := findCommand(app, "search")
		require.NotNil(t, cmd)
		var limitFlag *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "limit" {
				limitFlag = f
				break
			}
		}
		require.NotNil(t, limitFlag)
		assert.Equal(t, 10, limitFlag.Value)
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"WaRn", slog.LevelWarn},
			{"ERROR", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
				assert.True(t, slog.Default().Enabled(context.Background(), tc.expected))
				assert.False(t, slog.Default().Enabled(context.Background(), tc.expected-1))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}

		err := app.Run([]string{"test", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestBlockIDFor(t *testing.T) {
	testCases := []struct {
		locator  string
		expected string
	}{
		{"/home/me/papers/Owl Report.pdf", "owl-report"},
		{"/home/me/papers", "papers"},
		{"https://example.com/wiki/Red_fox.html", "example-com-red-fox"},
		{"https://example.com/", "example-com"},
		{"/", "block"},
	}
	for _, tc := range testCases {
		t.Run(tc.locator, func(t *testing.T) {
			assert.Equal(t, tc.expected, blockIDFor(tc.locator))
		})
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b c", excerpt("a\n  b\tc", 10))
	assert.Equal(t, "abc…", excerpt("abcdef", 3))
}

// runApp runs the CLI against a notes directory and returns its output.
func runApp(t *testing.T, notesDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"notevec", "--log-level", "error", "--notes", notesDir}, args...))
	return out.String(), err
}

func writeNote(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestCommandsWithIndexingDisabled(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "fox.md", "# Fox Notes\n\nThe red fox lives in dens.\n")
	writeNote(t, dir, "bread.md", "# Bread\n\nBake with flour and water.\n")
	attachment := filepath.Join(t.TempDir(), "owls.txt")
	require.NoError(t, os.WriteFile(attachment, []byte("Owls hunt at night."), 0644))

	_, err := runApp(t, dir, "config", "set", "--enabled=false")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, dataDirName))

	t.Run("config show", func(t *testing.T) {
		out, err := runApp(t, dir, "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "enabled")
		assert.Contains(t, out, "false")
	})

	t.Run("status", func(t *testing.T) {
		out, err := runApp(t, dir, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "disabled")
	})

	t.Run("grep works without an embedder", func(t *testing.T) {
		out, err := runApp(t, dir, "grep", "red", "fox")
		require.NoError(t, err)
		assert.Contains(t, out, "Fox Notes")
		assert.NotContains(t, out, "Bread")
	})

	t.Run("grep without a query fails", func(t *testing.T) {
		_, err := runApp(t, dir, "grep")
		require.Error(t, err)
	})

	t.Run("search is unavailable", func(t *testing.T) {
		_, err := runApp(t, dir, "search", "fox")
		require.Error(t, err)
	})

	t.Run("index is unavailable", func(t *testing.T) {
		_, err := runApp(t, dir, "index", "fox")
		require.Error(t, err)
	})

	t.Run("attach records the block even when indexing fails", func(t *testing.T) {
		_, err := runApp(t, dir, "attach", "--type", "file", "fox", attachment)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fox#owls")

		store, err := notes.Open(dir)
		require.NoError(t, err)
		note, err := store.Load("fox")
		require.NoError(t, err)
		require.Len(t, note.Attachments, 1)
		assert.Equal(t, "owls", note.Attachments[0].ID)
		assert.Equal(t, attachment, note.Attachments[0].Locator)

		out, err := runApp(t, dir, "detach", "fox", "owls")
		require.NoError(t, err)
		assert.Contains(t, out, "removed fox#owls")

		note, err = store.Load("fox")
		require.NoError(t, err)
		assert.Empty(t, note.Attachments)
	})

	t.Run("attach rejects an unknown type", func(t *testing.T) {
		_, err := runApp(t, dir, "attach", "--type", "video", "fox", attachment)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid block type")
	})

	t.Run("content of an unknown block fails", func(t *testing.T) {
		_, err := runApp(t, dir, "content", "fox", "missing")
		require.Error(t, err)
	})
}

func TestWatcherSeed(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "fox.md", "---\nattachments:\n  - id: site\n    type: bookmark\n    locator: https://example.com\n---\n# Fox\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hidden"), 0755))
	writeNote(t, filepath.Join(dir, ".hidden"), "skip.md", "# Skip\n")

	_, err := runApp(t, dir, "config", "set", "--enabled=false")
	require.NoError(t, err)

	app := newApp()
	app.Action = func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, s *session) error {
			var out bytes.Buffer
			w := newWatcher(s, &out)
			require.NoError(t, w.scan(ctx, false))
			require.Len(t, w.seen, 1)
			assert.Contains(t, w.seen["fox"].blocks, "site")
			assert.Empty(t, out.String())
			return nil
		})
	}
	require.NoError(t, app.Run([]string{"notevec", "--log-level", "error", "--notes", dir}))
}

func TestWatcherKeepsRunningWhileDisabled(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "fox.md", "# Fox\n\nThe red fox.\n")

	_, err := runApp(t, dir, "config", "set", "--enabled=false")
	require.NoError(t, err)

	app := newApp()
	app.Action = func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, s *session) error {
			var out bytes.Buffer
			w := newWatcher(s, &out)
			require.NoError(t, w.scan(ctx, false))

			later := time.Now().Add(time.Minute)
			require.NoError(t, os.Chtimes(filepath.Join(dir, "fox.md"), later, later))
			writeNote(t, dir, "owl.md", "# Owl\n")
			require.NoError(t, w.scan(ctx, true))
			assert.Len(t, w.seen, 2)
			assert.NotContains(t, out.String(), "changed")

			require.NoError(t, os.Remove(filepath.Join(dir, "owl.md")))
			require.NoError(t, w.scan(ctx, true))
			assert.Contains(t, out.String(), "deleted owl")
			return nil
		})
	}
	require.NoError(t, app.Run([]string{"notevec", "--log-level", "error", "--notes", dir}))
}

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}
