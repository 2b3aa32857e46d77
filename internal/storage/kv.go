/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// KVStore is the key/value capability the adapter persists through.
// Get reports ok=false for a key that was never written.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// ErrInvalidKey is returned for keys that cannot be used as file names.
var ErrInvalidKey = errors.New("invalid storage key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

func checkKey(key string) error {
	if !keyPattern.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// MemoryKV is an in-process KVStore.
type MemoryKV struct {
	mu     sync.RWMutex
	m      map[string]string
	writes int
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV { return &MemoryKV{m: make(map[string]string)} }

func (k *MemoryKV) Get(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *MemoryKV) Set(key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = value
	k.writes++
	return nil
}

// Writes returns how many successful Set calls the store has seen.
func (k *MemoryKV) Writes() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.writes
}
