package servicemessages

import (
	"bytes"
	"sync"
)

// LineWriter is an io.Writer that calls emit once per complete line. Writes may
// split lines anywhere; a trailing partial line is held until more data arrives
// or Flush is called. Line terminators are "\n" and "\r\n".
type LineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(line string)
}

// NewLineWriter creates a LineWriter.
func NewLineWriter(emit func(line string)) *LineWriter {
	return &LineWriter{emit: emit}
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(w.buf[:i], []byte{'\r'})
		w.emit(string(line))
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) == 0 {
		w.buf = nil
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *LineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(string(bytes.TrimSuffix(w.buf, []byte{'\r'})))
		w.buf = nil
	}
	return nil
}

// Handler receives the classified lines of a stream.
type Handler interface {
	// ServiceMessage is called for each well-formed control line.
	ServiceMessage(msg Message)

	// Output is called for each plain line, unchanged.
	Output(line string)
}

// Parser classifies a script's standard output line by line as it is written.
type Parser struct {
	*LineWriter
	handler   Handler
	malformed func(line string)
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMalformedHook is called for lines that look like control lines but fail
// to parse, before they are forwarded as plain output.
func WithMalformedHook(hook func(line string)) ParserOption {
	return func(p *Parser) {
		p.malformed = hook
	}
}

// NewParser creates a parser feeding handler.
func NewParser(handler Handler, opts ...ParserOption) *Parser {
	p := &Parser{handler: handler}
	for _, opt := range opts {
		opt(p)
	}
	p.LineWriter = NewLineWriter(p.line)
	return p
}

func (p *Parser) line(line string) {
	if msg, ok := Parse(line); ok {
		p.handler.ServiceMessage(msg)
		return
	}
	if p.malformed != nil && LooksLikeMessage(line) {
		p.malformed(line)
	}
	p.handler.Output(line)
}
