// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
)

// AsyncLogger buffers writes on a channel and flushes them from a single
// goroutine, so a slow or blocked log sink (a rotating file mid-rotation,
// a pipe with no reader) never stalls the caller.
type AsyncLogger struct {
	dst  io.WriteCloser
	ch   chan []byte
	done chan struct{}
}

// NewAsyncLogger starts the flush goroutine and returns a logger ready to
// accept writes. bufferSize bounds how many writes can queue before new
// ones are dropped rather than blocking the writer.
func NewAsyncLogger(dst io.WriteCloser, bufferSize int) *AsyncLogger {
	l := &AsyncLogger{
		dst:  dst,
		ch:   make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Write copies p (the caller may reuse its buffer) and enqueues it. If the
// buffer is full the write is dropped and a warning goes to stderr --
// never blocks, and never returns an error for a dropped message, since a
// logger backpressuring its caller is worse than losing a log line.
func (l *AsyncLogger) Write(p []byte) (n int, err error) {
	data := make([]byte, len(p))
	copy(data, p)

	select {
	case l.ch <- data:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

func (l *AsyncLogger) run() {
	defer close(l.done)
	for data := range l.ch {
		if _, err := l.dst.Write(data); err != nil {
			return
		}
	}
}

// Close stops accepting writes, waits for the buffered ones to flush, and
// closes the underlying destination.
func (l *AsyncLogger) Close() error {
	close(l.ch)
	<-l.done
	return l.dst.Close()
}
