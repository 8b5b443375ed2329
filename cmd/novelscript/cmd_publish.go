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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gonovelscript/internal/backend"
	applog "gonovelscript/internal/log"
	"gonovelscript/internal/storage"
)

var publishSearch string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Mirror the project index into Postgres",
	Long: `Publishes the parsed script into the Postgres mirror configured under
backend.dsn (or NVS_PG_DSN). The password is read from the OS keychain.
The remote project id is remembered in novel.json so later publishes
replace the same project.`,
	Args: cobra.NoArgs,
	RunE: guard(runPublish),
}

func init() {
	publishCmd.Flags().StringVar(&publishSearch, "search", "", "Run a full text search against the mirror after publishing")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ph, doc, _, err := openProjectDocument()
	if err != nil {
		return err
	}
	dsn := cfg.Backend.ConnString(secret)
	if dsn == "" {
		return backend.ErrNoDSN
	}
	l := applog.WithOperation(applog.WithComponent("cli"), "publish")
	ctx, cancel := context.WithTimeout(cmdContext(cmd), cfg.Backend.EffectiveTimeout())
	defer cancel()

	db, err := backend.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := backend.ApplyMigrations(ctx, db); err != nil {
		return err
	}
	pub, err := backend.PublishDocument(ctx, db, ph.Project, doc)
	if err != nil {
		return err
	}
	if ph.Project.RemoteID != pub.ProjectID {
		ph.Project.RemoteID = pub.ProjectID
		if err := storage.Save(ph); err != nil {
			l.Warn("remote id not saved", slog.Any("err", err))
		}
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Published project %d version %d (%d rows)\n", pub.ProjectID, pub.Version, pub.Rows); err != nil {
		return err
	}
	if publishSearch == "" {
		return nil
	}
	res, err := backend.SearchPG(ctx, db, pub.ProjectID, storage.SearchQuery{Text: publishSearch})
	if err != nil {
		return err
	}
	return printResults(cmd, res)
}
