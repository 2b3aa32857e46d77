/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ident issues identifiers and creation timestamps for works and items.
// Identifiers are unique and sort in creation order; they are never reused.
package ident

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Source issues ids and timestamps. Implementations must never return the same id twice.
type Source interface {
	// NewID returns a fresh identifier with the given prefix, e.g. "c" for chapters.
	NewID(prefix string) string
	// Now returns the current time as Unix milliseconds.
	Now() int64
}

// System is the default Source: UUIDv7 ids (time-ordered) and wall-clock timestamps.
type System struct{}

func (System) NewID(prefix string) string {
	u, err := uuid.NewV7()
	if err != nil {
		// v7 only fails when the random reader fails; v4 keeps ids unique in that case
		u = uuid.New()
	}
	return prefix + u.String()
}

func (System) Now() int64 { return time.Now().UnixMilli() }

// Sequence is a deterministic Source for tests and replays.
// Ids are prefix + zero-padded counter, so they sort lexicographically in issue order.
// Timestamps advance by one millisecond per call starting at Base.
type Sequence struct {
	Base int64
	seq  atomic.Int64
	tick atomic.Int64
}

// NewSequence creates a Sequence whose first timestamp is base.
func NewSequence(base int64) *Sequence {
	return &Sequence{Base: base}
}

func (s *Sequence) NewID(prefix string) string {
	return fmt.Sprintf("%s%08d", prefix, s.seq.Add(1))
}

func (s *Sequence) Now() int64 {
	return s.Base + s.tick.Add(1) - 1
}
