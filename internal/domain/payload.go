package domain

import (
	"encoding/json"
	"errors"
)

// MinContentLen rejects payloads whose content cannot possibly be a real
// encoded file (a bare data-URL prefix is longer than this).
const MinContentLen = 8

var (
	ErrEmptyContent    = errors.New("payload content empty")
	ErrContentTooShort = errors.New("payload content too short")
)

// FilePayload is the opaque unit relayed between room members. Content is a
// binary-as-text blob (data URL) and is never inspected beyond length checks.
// Size is declared by the sender and arrives as a number or a formatted
// string depending on client revision, so it is echoed verbatim.
type FilePayload struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Size    json.RawMessage `json:"size,omitempty"`
}

func (f *FilePayload) Validate() error {
	if f.Content == "" {
		return ErrEmptyContent
	}
	if len(f.Content) < MinContentLen {
		return ErrContentTooShort
	}
	return nil
}

// ClickPayload is the lightweight presence event. A missing message gets the
// default the original clients expect.
type ClickPayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (c *ClickPayload) MessageOrDefault() string {
	if c.Message == "" {
		return "Button clicked!"
	}
	return c.Message
}
