//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// These tests cover the Fyne-only parts of the shell. They are gated behind the
// "fyne" build tag so CI (which is headless) does not need Fyne or a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"testing"

	"fyne.io/fyne/v2/theme"
)

func TestVariantThemeForcesVariant(t *testing.T) {
	base := theme.DefaultTheme()
	dark := variantTheme{Theme: base, dark: true}
	light := variantTheme{Theme: base}

	want := base.Color(theme.ColorNameBackground, theme.VariantDark)
	if got := dark.Color(theme.ColorNameBackground, theme.VariantLight); got != want {
		t.Fatalf("dark background = %v, want %v", got, want)
	}
	want = base.Color(theme.ColorNameBackground, theme.VariantLight)
	if got := light.Color(theme.ColorNameBackground, theme.VariantDark); got != want {
		t.Fatalf("light background = %v, want %v", got, want)
	}
}
