package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Encoder writes journal messages to an io.Writer, one JSON object per line.
// It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	w   *bufio.Writer
	now func() time.Time
}

// NewEncoder creates a new journal encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   bufio.NewWriter(w),
		now: time.Now,
	}
}

// Encode writes a message to the output stream and flushes it.
func (e *Encoder) Encode(msgType MessageType, data any) error {
	if err := msgType.Validate(); err != nil {
		return fmt.Errorf("invalid message type: %w", err)
	}

	var dataBytes []byte
	if data != nil {
		var err error
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal data: %w", err)
		}
	}

	msgBytes, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: e.now().UTC(),
		Data:      dataBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(msgBytes); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// EncodeStarted sends a STARTED message.
func (e *Encoder) EncodeStarted(started *StartedMessage) error {
	if started.DeploymentID == "" {
		return fmt.Errorf("invalid started message: deployment ID is required")
	}
	return e.Encode(MessageTypeStarted, started)
}

// EncodeConvention sends a CONVENTION_STARTED or CONVENTION_FINISHED message.
func (e *Encoder) EncodeConvention(msgType MessageType, msg *ConventionMessage) error {
	if msgType != MessageTypeConventionStarted && msgType != MessageTypeConventionFinished {
		return fmt.Errorf("expected a convention message type, got %s", msgType)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid convention message: %w", err)
	}
	return e.Encode(msgType, msg)
}

// EncodeResult sends a RESULT message.
func (e *Encoder) EncodeResult(result *ResultMessage) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}
	return e.Encode(MessageTypeResult, result)
}

// Decoder reads journal messages from an io.Reader.
type Decoder struct {
	r *bufio.Scanner
}

// NewDecoder creates a new journal decoder.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	// Results can carry many output variables
	const maxCapacity = 10 * 1024 * 1024 // 10 MB
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)
	return &Decoder{r: scanner}
}

// Decode reads the next message from the input stream. It returns io.EOF when
// the stream is exhausted.
func (d *Decoder) Decode() (*Message, error) {
	if !d.r.Scan() {
		if err := d.r.Err(); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		return nil, io.EOF
	}

	line := d.r.Bytes()
	if len(line) == 0 {
		return nil, fmt.Errorf("empty line")
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if err := msg.Type.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}

// DecodeResult reads messages until the RESULT message and returns it.
func (d *Decoder) DecodeResult() (*ResultMessage, error) {
	for {
		msg, err := d.Decode()
		if err != nil {
			return nil, err
		}
		if msg.Type != MessageTypeResult {
			continue
		}

		var result ResultMessage
		if err := ParseData(msg.Data, &result); err != nil {
			return nil, err
		}
		if err := result.Validate(); err != nil {
			return nil, fmt.Errorf("invalid result: %w", err)
		}
		return &result, nil
	}
}

// ParseData parses message data into a specific type.
func ParseData(data json.RawMessage, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse data: %w", err)
	}
	return nil
}
