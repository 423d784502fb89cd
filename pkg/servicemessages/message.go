// Package servicemessages parses the control protocol scripts use to talk back
// to the deployment while they run.
//
// A control line has the form
//
//	##octopus[tagName key='BASE64' key2='BASE64']
//
// where every value is the base64 encoding of UTF-8 text. Any other line,
// including one that resembles a control line but cannot be decoded, is plain
// output.
package servicemessages

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// Recognized tags.
const (
	TagSetVariable    = "setVariable"
	TagCreateArtifact = "createArtifact"
	TagStdoutVerbose  = "stdout-verbose"
	TagStdoutWarning  = "stdout-warning"
	TagStdoutDefault  = "stdout-default"
)

const prefix = "##octopus["

var (
	messagePattern   = regexp.MustCompile(`^##octopus\[(\w[\w-]*)((?:\s+\w+='[A-Za-z0-9+/=]*')*)\s*\]$`)
	attributePattern = regexp.MustCompile(`(\w+)='([A-Za-z0-9+/=]*)'`)
)

// Attribute is one decoded key/value pair.
type Attribute struct {
	Key   string
	Value string
}

// Message is a parsed control line.
type Message struct {
	Name       string
	Attributes []Attribute
}

// Get returns the decoded value of key.
func (m Message) Get(key string) (string, bool) {
	for _, a := range m.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// String renders the message in wire format.
func (m Message) String() string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(m.Name)
	for _, a := range m.Attributes {
		fmt.Fprintf(&b, " %s='%s'", a.Key, base64.StdEncoding.EncodeToString([]byte(a.Value)))
	}
	b.WriteByte(']')
	return b.String()
}

// New builds a message from alternating keys and values.
func New(name string, keyValues ...string) Message {
	m := Message{Name: name}
	for i := 0; i+1 < len(keyValues); i += 2 {
		m.Attributes = append(m.Attributes, Attribute{Key: keyValues[i], Value: keyValues[i+1]})
	}
	return m
}

// Parse decodes line. ok is false for plain output, including lines that look
// like control lines but do not match the grammar or carry invalid base64.
func Parse(line string) (msg Message, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return Message{}, false
	}
	match := messagePattern.FindStringSubmatch(line)
	if match == nil {
		return Message{}, false
	}

	msg.Name = match[1]
	for _, attr := range attributePattern.FindAllStringSubmatch(match[2], -1) {
		value, err := base64.StdEncoding.DecodeString(attr[2])
		if err != nil {
			return Message{}, false
		}
		msg.Attributes = append(msg.Attributes, Attribute{Key: attr[1], Value: string(value)})
	}
	return msg, true
}

// LooksLikeMessage reports whether line starts like a control line. A line for
// which LooksLikeMessage is true but Parse fails is malformed.
func LooksLikeMessage(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), prefix)
}
