package crypto

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Message is one line of a message file: an identifier and its hex ciphertext
type Message struct {
	ID         string
	Ciphertext string
}

// ReadMessages parses lines of the form "id: hexciphertext". Lines without
// the separator are skipped.
func ReadMessages(r io.Reader) ([]Message, error) {
	var msgs []Message
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		id, ct, ok := strings.Cut(sc.Text(), ": ")
		if !ok {
			continue
		}
		msgs = append(msgs, Message{ID: strings.TrimSpace(id), Ciphertext: strings.TrimSpace(ct)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	return msgs, nil
}

// DecryptedMessage pairs a message ID with its plaintext
type DecryptedMessage struct {
	ID        string
	Plaintext string
}

// DecryptMessages decrypts every message with c
func DecryptMessages(c *XORCipher, msgs []Message) ([]DecryptedMessage, error) {
	out := make([]DecryptedMessage, 0, len(msgs))
	for _, m := range msgs {
		pt, err := c.DecryptHex(m.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", m.ID, err)
		}
		out = append(out, DecryptedMessage{ID: m.ID, Plaintext: pt})
	}
	return out, nil
}
