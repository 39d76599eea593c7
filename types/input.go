package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ImageInput is an attached image in user input.
type ImageInput struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// UserInput is what a human submits: text with an optional image.
type UserInput struct {
	Text  string      `json:"text"`
	Image *ImageInput `json:"image,omitempty"`
}

// Content converts the input to message content. With an image the result
// is list content whose text part sits first and image part after it.
func (in UserInput) Content() Content {
	if in.Image == nil || in.Image.Data == "" {
		return Text(in.Text)
	}
	mediaType := in.Image.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	parts := []ContentPart{ImagePart(mediaType, in.Image.Data)}
	if strings.TrimSpace(in.Text) != "" {
		parts = append([]ContentPart{TextPart(in.Text)}, parts...)
	}
	return Parts(parts...)
}

// Message builds the user message for this input.
func (in UserInput) Message() Message {
	return Message{Role: RoleUser, Content: in.Content(), Timestamp: time.Now()}
}

// ParseUserInput accepts either a JSON string or {text, image}.
func ParseUserInput(raw json.RawMessage) (UserInput, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return UserInput{}, NewError(ErrMalformedInput, "input is required")
	}

	var in UserInput
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &in.Text); err != nil {
			return UserInput{}, NewError(ErrMalformedInput, "invalid input string").WithCause(err)
		}
	case '{':
		if err := json.Unmarshal(trimmed, &in); err != nil {
			return UserInput{}, NewError(ErrMalformedInput, "invalid input object").WithCause(err)
		}
	default:
		return UserInput{}, NewError(ErrMalformedInput, "input must be a string or an object")
	}

	if in.Content().IsEmpty() {
		return UserInput{}, NewError(ErrEmptyContent, "input has no content")
	}
	return in, nil
}
