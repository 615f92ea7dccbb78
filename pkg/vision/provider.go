package vision

import (
	"context"
	"errors"
)

// Roles used in the unified message list.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ErrUnavailable is surfaced when the vision model cannot be reached after
// the bounded retry budget. Callers can treat it as "try again later".
var ErrUnavailable = errors.New("vision model unavailable")

// Part is one typed content part of a message: either text or an image.
// Providers serialize parts to their own wire format at the transport edge;
// ordering and presence decisions stay upstream in the prompt builder.
type Part interface {
	isPart()
}

// TextPart carries instruction or metadata text.
type TextPart struct {
	Text string
}

// ImagePart carries one image together with a short label identifying which
// chart/neighbor/map it is.
type ImagePart struct {
	Label string
	MIME  string
	Data  []byte
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}

// Message is one role block of the unified multi-part request.
type Message struct {
	Role  string
	Parts []Part
}

// Option allows for optional parameters like Temperature or Model override.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Provider is the boundary to the vision-capable language model: an ordered
// list of role messages in, one text blob out. The pipeline keeps no model
// state and never retries mid-conversation.
type Provider interface {
	Analyze(ctx context.Context, messages []Message, options ...Option) (string, error)
}
