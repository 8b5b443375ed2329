/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gonovelscript/internal/config"
	"gonovelscript/internal/crash"
	applog "gonovelscript/internal/log"
	"gonovelscript/internal/script"
	"gonovelscript/internal/storage"
	"gonovelscript/internal/version"
)

var (
	// Global flags
	projectDir string
	scriptFile string
	verbose    bool
	timeout    time.Duration

	cfg = config.Defaults()
	// secret is the backend password from the keychain.
	secret string
)

// session tracks what a crash report should preserve.
var session struct {
	ph     *storage.ProjectHandle
	script string
	live   func() string
}

var rootCmd = &cobra.Command{
	Use:   "novelscript",
	Short: "Parse, query, decorate and export NovelScript screenplays",
	Long: `novelscript works on a NovelScript project (novel.json plus script/script.txt)
or, with --file, on a single script file.

Scenes open with "== Name ==", speakers switch with "[Name]" or "[&]",
cues are "@TAG text" and choices are "%PROMPT 'a', 'b'".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, sec, err := config.Load()
		cfg, secret = loaded, sec
		opts := applog.Options{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.Source,
			File:      cfg.Logging.File,
		}
		if verbose {
			opts.Level = "debug"
		}
		applog.Init(opts)
		if err != nil {
			applog.WithComponent("cli").Warn("config file ignored", slog.Any("err", err))
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "Project directory")
	rootCmd.PersistentFlags().StringVarP(&scriptFile, "file", "f", "", "Read a script file instead of the project script")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for storage and backend operations")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer crash.Recover(nil, nil)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// guard turns a panic inside run into a crash report for the session project.
func guard(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if r := recover(); r != nil {
				crash.Handle(r, session.ph, sessionText)
			}
		}()
		return run(cmd, args)
	}
}

func sessionText() string {
	if session.live != nil {
		return session.live()
	}
	if session.ph == nil {
		return ""
	}
	text, _ := storage.ReadScript(session.ph)
	return text
}

// cmdContext returns the command context tagged with the session project, so
// log records written under it name the project and script.
func cmdContext(cmd *cobra.Command) context.Context {
	ctx := context.Background()
	if cmd != nil && cmd.Context() != nil {
		ctx = cmd.Context()
	}
	var root string
	if session.ph != nil {
		root = session.ph.Root
	}
	if root == "" && session.script == "" {
		return ctx
	}
	return applog.WithProject(ctx, root, session.script)
}

func openProject() (*storage.ProjectHandle, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}
	ph, err := storage.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open project %s: %w", abs, err)
	}
	session.ph, session.script = ph, storage.ScriptFilePath(ph)
	applog.WithComponent("cli").DebugContext(cmdContext(nil), "project opened", slog.String("name", ph.Project.Name))
	return ph, nil
}

// loadSource returns the script path and text selected by --file or --project.
func loadSource() (string, string, error) {
	if scriptFile != "" {
		b, err := os.ReadFile(scriptFile)
		if err != nil {
			return "", "", err
		}
		session.script = scriptFile
		return scriptFile, string(b), nil
	}
	ph, err := openProject()
	if err != nil {
		return "", "", err
	}
	text, err := storage.ReadScript(ph)
	if err != nil {
		return "", "", err
	}
	return storage.ScriptFilePath(ph), text, nil
}

func loadDocument() (*script.Document, string, error) {
	_, text, err := loadSource()
	if err != nil {
		return nil, "", err
	}
	return script.Parse(text), text, nil
}

// parseRanges reads "from:to" pairs; a single offset is a collapsed range.
func parseRanges(specs []string) ([]script.TextRange, error) {
	var out []script.TextRange
	for _, s := range specs {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			from, to, found := strings.Cut(part, ":")
			a, err := strconv.Atoi(from)
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", part, err)
			}
			b := a
			if found {
				if b, err = strconv.Atoi(to); err != nil {
					return nil, fmt.Errorf("range %q: %w", part, err)
				}
			}
			if a < 0 || b < a {
				return nil, errors.New("range " + part + ": want 0 <= from <= to")
			}
			out = append(out, script.TextRange{From: a, To: b})
		}
	}
	return out, nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmdContext(cmd), timeout)
}
