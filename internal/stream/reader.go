// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"io"
)

// =============================================================================
// LINE READER
// =============================================================================

// LineReader splits a response body into newline-terminated lines. A read
// that ends mid-line keeps the partial line buffered until the rest arrives,
// so reads of any size yield the same lines.
type LineReader struct {
	reader *bufio.Reader
	src    *startReader
}

// startReader notes the first byte that arrives from the transport, before
// any line is complete.
type startReader struct {
	r       io.Reader
	started bool
	onStart func()
}

func (s *startReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 && !s.started {
		s.started = true
		if s.onStart != nil {
			s.onStart()
		}
	}
	return n, err
}

// NewLineReader creates a line reader over r.
func NewLineReader(r io.Reader) *LineReader {
	src := &startReader{r: r}
	return &LineReader{reader: bufio.NewReader(src), src: src}
}

// OnStart registers fn to run once, on the reading goroutine, when the
// first byte arrives. It must be set before the first ReadLine.
func (l *LineReader) OnStart(fn func()) {
	l.src.onStart = fn
}

// Started reports whether any byte has been received yet.
func (l *LineReader) Started() bool {
	return l.src.started
}

// ReadLine returns the next complete line including its newline. At end of
// stream a trailing unterminated line is returned once with a nil error,
// and io.EOF after that.
func (l *LineReader) ReadLine() ([]byte, error) {
	line, err := l.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return line, nil
		}
		return nil, err
	}
	return line, nil
}
