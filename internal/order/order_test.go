/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package order

import (
	"reflect"
	"testing"
)

func TestMoveAdjacentIdempotentAtEdges(t *testing.T) {
	for n := 1; n <= 5; n++ {
		seq := make([]int, n)
		for i := range seq {
			seq[i] = i * 10
		}
		if got := MoveAdjacent(seq, 0, Prev); !reflect.DeepEqual(got, seq) {
			t.Fatalf("n=%d: first element moved prev: %v", n, got)
		}
		if got := MoveAdjacent(seq, n-1, Next); !reflect.DeepEqual(got, seq) {
			t.Fatalf("n=%d: last element moved next: %v", n, got)
		}
	}
}

func TestMoveAdjacentSwapInvolution(t *testing.T) {
	seq := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < len(seq)-1; i++ {
		moved := MoveAdjacent(seq, i, Next)
		if moved[i] != seq[i+1] || moved[i+1] != seq[i] {
			t.Fatalf("i=%d: swap not applied: %v", i, moved)
		}
		back := MoveAdjacent(moved, i+1, Prev)
		if !reflect.DeepEqual(back, seq) {
			t.Fatalf("i=%d: involution broken: %v", i, back)
		}
	}
}

func TestMoveAdjacentDoesNotMutateInput(t *testing.T) {
	seq := []int{1, 2, 3}
	_ = MoveAdjacent(seq, 1, Prev)
	if !reflect.DeepEqual(seq, []int{1, 2, 3}) {
		t.Fatalf("input mutated: %v", seq)
	}
	edge := MoveAdjacent(seq, 0, Prev)
	edge[0] = 99
	if seq[0] != 1 {
		t.Fatalf("boundary no-op returned the original backing array")
	}
}

func TestMoveAdjacentOutOfRangeIndex(t *testing.T) {
	seq := []int{1, 2}
	for _, idx := range []int{-1, 2, 7} {
		if got := MoveAdjacent(seq, idx, Next); !reflect.DeepEqual(got, seq) {
			t.Fatalf("index %d: got %v", idx, got)
		}
	}
	if got := MoveAdjacent([]int(nil), 0, Next); got != nil {
		t.Fatalf("nil input: got %v", got)
	}
}

func TestRemoveAndReplace(t *testing.T) {
	seq := []int{1, 2, 3, 2}
	out, n := Remove(seq, func(v int) bool { return v == 2 })
	if n != 2 || !reflect.DeepEqual(out, []int{1, 3}) {
		t.Fatalf("Remove = %v, %d", out, n)
	}
	rep, ok := Replace(seq, func(v int) bool { return v == 3 }, func(v int) int { return v * 100 })
	if !ok || !reflect.DeepEqual(rep, []int{1, 2, 300, 2}) {
		t.Fatalf("Replace = %v, %v", rep, ok)
	}
	if seq[2] != 3 {
		t.Fatalf("Replace mutated input")
	}
	if _, ok := Replace(seq, func(v int) bool { return v == 42 }, func(v int) int { return v }); ok {
		t.Fatalf("Replace reported a match for a missing element")
	}
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{"prev": Prev, "up": Prev, "next": Next, "down": Next}
	for in, want := range cases {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Fatalf("ParseDirection(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}
