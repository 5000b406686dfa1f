package traffic

import (
	"bytes"
	"io"
	"strings"
)

const readChunk = 1024

// messageReader splits a connection's byte stream into messages. A newline ends a
// message; the text a read ends with when no newline follows it is a message of its
// own, since unframed clients write one bare command per send.
type messageReader struct {
	r       io.Reader
	buf     []byte
	pending []string
}

func newMessageReader(r io.Reader) *messageReader {
	return &messageReader{r: r, buf: make([]byte, readChunk)}
}

// Next returns the next non-blank message, trimmed. Messages already received are
// returned before a read error is reported.
func (m *messageReader) Next() (string, error) {
	for len(m.pending) == 0 {
		n, err := m.r.Read(m.buf)
		if n > 0 {
			m.split(m.buf[:n])
		}
		if err != nil && len(m.pending) == 0 {
			return "", err
		}
	}
	msg := m.pending[0]
	m.pending = m.pending[1:]
	return msg, nil
}

func (m *messageReader) split(chunk []byte) {
	for _, part := range bytes.Split(chunk, []byte{'\n'}) {
		if msg := strings.TrimSpace(string(part)); msg != "" {
			m.pending = append(m.pending, msg)
		}
	}
}
