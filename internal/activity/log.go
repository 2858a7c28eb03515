/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package activity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"nexus-terminal-go/internal/models"

	"go.uber.org/zap"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted
const DefaultCapacity = 50

// TimestampLayout renders entry times as 24-hour clock with milliseconds
const TimestampLayout = "15:04:05.000"

// Log is a bounded ring buffer of operator-visible traffic.
// Entries are append-only; Flush is the only other mutation.
type Log struct {
	mu   sync.RWMutex
	buf  []models.LogEntry
	head int // index of the next write
	size int
	now  func() time.Time
}

// NewLog creates a log holding at most capacity entries
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf: make([]models.LogEntry, capacity),
		now: time.Now,
	}
}

// Append records a message at the head of the log. Non-string messages are
// stored as indented JSON.
func (l *Log) Append(message any, category models.LogCategory) {
	text := Canonicalize(message)
	ts := l.now()

	entry := models.LogEntry{
		Message:   text,
		Category:  category,
		Timestamp: ts.Format(TimestampLayout),
		Time:      ts,
	}

	l.mu.Lock()
	l.buf[l.head] = entry
	l.head = (l.head + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
	l.mu.Unlock()

	if category == models.LogError {
		zap.L().Warn("Activity", zap.String("category", string(category)), zap.String("message", text))
	} else {
		zap.L().Debug("Activity", zap.String("category", string(category)), zap.String("message", text))
	}
}

// Flush drops every entry
func (l *Log) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.buf {
		l.buf[i] = models.LogEntry{}
	}
	l.head = 0
	l.size = 0
}

// Entries returns a copy of the log, newest first
func (l *Log) Entries() []models.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.LogEntry, l.size)
	for i := 0; i < l.size; i++ {
		idx := (l.head - 1 - i + len(l.buf)) % len(l.buf)
		out[i] = l.buf[idx]
	}
	return out
}

// Len returns the number of entries held
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity returns the maximum number of entries held
func (l *Log) Capacity() int {
	return len(l.buf)
}

// Canonicalize renders a log message. Strings pass through; everything else,
// including nil, is pretty-printed JSON.
func Canonicalize(message any) string {
	switch v := message.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case json.RawMessage:
		if !json.Valid(v) {
			return string(v)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(message); err != nil {
		return fmt.Sprintf("%v", message)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
