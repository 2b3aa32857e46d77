/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package order implements copy-on-write operations on ordered sequences.
// Position in the slice is the order; callers treat every returned slice as the new
// canonical value and never mutate the input.
package order

import "fmt"

// Direction is a one-step move relative to the current position.
type Direction int

const (
	// Prev moves an element one position toward the front.
	Prev Direction = iota
	// Next moves an element one position toward the back.
	Next
)

func (d Direction) String() string {
	switch d {
	case Prev:
		return "prev"
	case Next:
		return "next"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "prev"/"up"/"left" and "next"/"down"/"right".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "prev", "up", "left", "back":
		return Prev, nil
	case "next", "down", "right", "forward":
		return Next, nil
	}
	return Prev, fmt.Errorf("unknown direction %q", s)
}

// Offset returns -1 for Prev and +1 for Next.
func (d Direction) Offset() int {
	if d == Prev {
		return -1
	}
	return 1
}

// MoveAdjacent swaps the element at index with its neighbour in direction dir.
// If either index or the target falls outside [0, len), an unchanged copy is returned.
func MoveAdjacent[T any](s []T, index int, dir Direction) []T {
	out := Clone(s)
	target := index + dir.Offset()
	if index < 0 || index >= len(out) || target < 0 || target >= len(out) {
		return out
	}
	out[index], out[target] = out[target], out[index]
	return out
}

// Clone returns a shallow copy; nil stays nil only for nil input.
func Clone[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Append returns a new slice with v appended.
func Append[T any](s []T, v T) []T {
	out := make([]T, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

// IndexOf returns the position of the first element matching match, or -1.
func IndexOf[T any](s []T, match func(T) bool) int {
	for i, v := range s {
		if match(v) {
			return i
		}
	}
	return -1
}

// Remove returns a new slice without the elements matching match and the number removed.
func Remove[T any](s []T, match func(T) bool) ([]T, int) {
	out := make([]T, 0, len(s))
	removed := 0
	for _, v := range s {
		if match(v) {
			removed++
			continue
		}
		out = append(out, v)
	}
	return out, removed
}

// Replace returns a new slice where the first element matching match is replaced by fn(element).
// The boolean reports whether an element matched.
func Replace[T any](s []T, match func(T) bool, fn func(T) T) ([]T, bool) {
	i := IndexOf(s, match)
	if i < 0 {
		return Clone(s), false
	}
	out := Clone(s)
	out[i] = fn(out[i])
	return out, true
}
