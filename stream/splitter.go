// Package stream splits raw child output into decoded lines.
//
// A Splitter is an io.WriteCloser attached directly to exec.Cmd.Stdout or
// exec.Cmd.Stderr. Write only buffers and hands complete lines to a callback,
// so the copy goroutine owned by exec.Cmd never waits on downstream work.
package stream

import (
	"bytes"
	"io"
	goruntime "runtime"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/pithecene-io/scriptrun/types"
)

const (
	cr = '\r'
	lf = '\n'

	initialBufferSize = 1024
)

// EmitFunc receives each completed line. It must not block.
type EmitFunc func(types.OutputLine)

// Splitter buffers bytes until a line terminator and emits decoded lines.
//
// CR, LF and CRLF all terminate a line. A terminator that directly follows
// a CR is swallowed, so CRLF yields one line while LF LF yields an empty one.
type Splitter struct {
	mu      sync.Mutex
	stream  types.Stream
	decoder *encoding.Decoder
	emit    EmitFunc

	buf    bytes.Buffer
	skip   bool
	count  int
	closed bool
}

var _ io.WriteCloser = (*Splitter)(nil)

// NewSplitter creates a splitter for one stream.
func NewSplitter(stream types.Stream, cs types.Charset, emit EmitFunc) *Splitter {
	s := &Splitter{
		stream:  stream,
		decoder: Decoder(cs),
		emit:    emit,
	}
	s.buf.Grow(initialBufferSize)
	return s
}

// Decoder returns the decoder for a charset.
// CharsetDefault resolves to GBK on Windows and UTF-8 elsewhere.
func Decoder(cs types.Charset) *encoding.Decoder {
	switch cs {
	case types.CharsetGBK:
		return simplifiedchinese.GBK.NewDecoder()
	case types.CharsetDefault:
		if goruntime.GOOS == "windows" {
			return simplifiedchinese.GBK.NewDecoder()
		}
	}
	return unicode.UTF8.NewDecoder()
}

// Encoder returns the encoder matching Decoder for the same charset.
func Encoder(cs types.Charset) *encoding.Encoder {
	switch cs {
	case types.CharsetGBK:
		return simplifiedchinese.GBK.NewEncoder()
	case types.CharsetDefault:
		if goruntime.GOOS == "windows" {
			return simplifiedchinese.GBK.NewEncoder()
		}
	}
	return unicode.UTF8.NewEncoder()
}

// Write implements io.Writer. It never returns an error for an open splitter.
func (s *Splitter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.ErrClosedPipe
	}

	start := 0
	for i, c := range p {
		if c != cr && c != lf {
			s.skip = false
			continue
		}
		if i > start {
			s.buf.Write(p[start:i])
		}
		if !s.skip {
			s.processBuffer()
		}
		s.skip = c == cr
		start = i + 1
	}
	if start < len(p) {
		s.buf.Write(p[start:])
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (s *Splitter) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() > 0 {
		s.processBuffer()
	}
}

// Close flushes the partial line and rejects further writes. Idempotent.
func (s *Splitter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.buf.Len() > 0 {
		s.processBuffer()
	}
	s.closed = true
	return nil
}

// Lines returns how many lines have been emitted.
func (s *Splitter) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Splitter) processBuffer() {
	text, err := s.decoder.Bytes(s.buf.Bytes())
	if err != nil {
		text = bytes.ToValidUTF8(s.buf.Bytes(), []byte("�"))
	}
	s.emit(types.OutputLine{Stream: s.stream, Number: s.count, Text: string(text)})
	s.count++
	s.buf.Reset()
}
