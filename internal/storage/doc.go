/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage persists library snapshots.
// A snapshot is the full JSON encoding of one domain library, stored under a fixed key in a
// KVStore. Three stores are provided: FileKV (one JSON file per key with transactional writes
// and timestamped backups), SQLiteKV (an embedded database that also keeps a revision history)
// and MemoryKV for tests. The Adapter validates snapshots against an embedded JSON schema and
// Attach wires it to a library store so every mutation is written before the next one.
// PreviewCache keeps scaled page thumbnails in a size-capped SQLite cache.
package storage
