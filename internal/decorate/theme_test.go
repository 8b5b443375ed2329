/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package decorate

import "testing"

func TestThemePrecedence(t *testing.T) {
	th := NewTheme("light")
	if th.Name != "light" {
		t.Fatalf("name = %q", th.Name)
	}
	if _, ok := th.Resolve(ClassSpeaker); !ok {
		t.Fatalf("preset class should resolve")
	}
	user := th.WithUser(map[string]StyleSpec{ClassSpeaker: {Italic: true}, "custom": {Bold: true}})
	if st, _ := user.Resolve(ClassSpeaker); !st.GetItalic() || st.GetBold() {
		t.Fatalf("user override should win over the preset")
	}
	if st, _ := th.Resolve(ClassSpeaker); st.GetItalic() {
		t.Fatalf("WithUser must not modify the receiver")
	}
	if _, ok := user.Resolve("custom"); !ok {
		t.Fatalf("user-only class should resolve")
	}
	if _, ok := user.Resolve("nope"); ok {
		t.Fatalf("unknown class should not resolve")
	}
	names := user.Names()
	if names[0] != ClassHeader || names[len(names)-1] != "custom" {
		t.Fatalf("unexpected name order %v", names)
	}
}

func TestThemeFallbacks(t *testing.T) {
	if th := NewTheme("neon"); th.Name != "dark" {
		t.Fatalf("unknown preset should fall back to dark, got %q", th.Name)
	}
	plain := NewTheme("plain")
	if _, ok := plain.Resolve(ClassComment); ok {
		t.Fatalf("plain theme should leave comments unstyled")
	}
	if st, ok := plain.Resolve(ClassBold); !ok || !st.GetBold() {
		t.Fatalf("plain theme keeps emphasis")
	}
}
