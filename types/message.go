// Package types provides core types used across the liminal module.
// This package has ZERO dependencies on other liminal packages to avoid circular imports.
package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TypeBranchIndicator marks the system message that records where a branch was created.
const TypeBranchIndicator = "branch_indicator"

// PartType tags a ContentPart.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ContentPart is one element of list-structured content.
type ContentPart struct {
	Type      PartType `json:"type"`
	Text      string   `json:"text,omitempty"`
	MediaType string   `json:"media_type,omitempty"`
	Data      string   `json:"data,omitempty"` // base64 encoded
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart returns an image content part holding base64 data.
func ImagePart(mediaType, data string) ContentPart {
	return ContentPart{Type: PartImage, MediaType: mediaType, Data: data}
}

// Content is either plain text or an ordered list of parts.
// A nil Parts slice means plain text.
type Content struct {
	Text  string
	Parts []ContentPart
}

// Text wraps a plain string as Content.
func Text(s string) Content {
	return Content{Text: s}
}

// Parts wraps a list of parts as Content.
func Parts(parts ...ContentPart) Content {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Content{Parts: parts}
}

// IsList reports whether the content is list-structured.
func (c Content) IsList() bool {
	return c.Parts != nil
}

// PlainText returns the text view of the content. For list content the text
// parts are joined with a newline.
func (c Content) PlainText() string {
	if !c.IsList() {
		return c.Text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Images returns the image parts in order.
func (c Content) Images() []ContentPart {
	var out []ContentPart
	for _, p := range c.Parts {
		if p.Type == PartImage {
			out = append(out, p)
		}
	}
	return out
}

// IsEmpty reports whether the content carries nothing worth admitting.
// Whitespace-only text and zero-part lists are empty. A list is also empty
// when every part is whitespace-only text.
func (c Content) IsEmpty() bool {
	if !c.IsList() {
		return strings.TrimSpace(c.Text) == ""
	}
	for _, p := range c.Parts {
		if p.Type != PartText || strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// Equal compares two contents by raw value.
func (c Content) Equal(other Content) bool {
	if c.IsList() != other.IsList() {
		return false
	}
	if !c.IsList() {
		return c.Text == other.Text
	}
	if len(c.Parts) != len(other.Parts) {
		return false
	}
	for i := range c.Parts {
		if c.Parts[i] != other.Parts[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (c Content) Clone() Content {
	if !c.IsList() {
		return c
	}
	parts := make([]ContentPart, len(c.Parts))
	copy(parts, c.Parts)
	return Content{Parts: parts}
}

// MarshalJSON writes plain text as a JSON string and lists as an array.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsList() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*c = Parts(parts...)
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return err
	}
	*c = Text(s)
	return nil
}

// Message represents a conversation entry.
type Message struct {
	Role               Role      `json:"role"`
	Content            Content   `json:"content"`
	AIName             string    `json:"ai_name,omitempty"`
	Model              string    `json:"model,omitempty"`
	Hidden             bool      `json:"hidden,omitempty"`
	Type               string    `json:"_type,omitempty"`
	GeneratedImagePath string    `json:"generated_image_path,omitempty"`
	Timestamp          time.Time `json:"timestamp,omitempty"`
}

// NewMessage creates a new message with the given role and text content.
func NewMessage(role Role, text string) Message {
	return Message{
		Role:      role,
		Content:   Text(text),
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(text string) Message {
	return NewMessage(RoleSystem, text)
}

// NewUserMessage creates a new user message.
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, text)
}

// NewAssistantMessage creates a new assistant message attributed to a participant.
func NewAssistantMessage(text, aiName, model string) Message {
	m := NewMessage(RoleAssistant, text)
	m.AIName = aiName
	m.Model = model
	return m
}

// WithContent replaces the content.
func (m Message) WithContent(c Content) Message {
	m.Content = c
	return m
}

// WithHidden marks the message hidden from the display.
func (m Message) WithHidden(hidden bool) Message {
	m.Hidden = hidden
	return m
}

// IsBranchIndicator reports whether the message marks a branch creation point.
func (m Message) IsBranchIndicator() bool {
	return m.Type == TypeBranchIndicator
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Content = m.Content.Clone()
	return m
}
