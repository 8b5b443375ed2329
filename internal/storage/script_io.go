/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ScriptFilePath returns the absolute path of the project's script file, or
// "" for a nil handle.
func ScriptFilePath(ph *ProjectHandle) string {
	if ph == nil {
		return ""
	}
	rel := ph.Project.Script
	if rel == "" {
		rel = filepath.Join(ScriptDirName, ScriptFileName)
	}
	return filepath.Join(ph.Root, filepath.FromSlash(rel))
}

// ReadScript returns the script text. A missing file reads as "".
func ReadScript(ph *ProjectHandle) (string, error) {
	if ph == nil {
		return "", errors.New("nil ProjectHandle")
	}
	b, err := os.ReadFile(ScriptFilePath(ph))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}

// WriteScript replaces the script file transactionally.
func WriteScript(ph *ProjectHandle, text string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if err := replaceFile(ScriptFilePath(ph), []byte(text)); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}
