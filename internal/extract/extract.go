package extract

import (
	"strings"

	"whatsdesk-backend/internal/dto"
)

type Kind string

const (
	KindText        Kind = "text"
	KindMedia       Kind = "media"
	KindUnsupported Kind = "unsupported"
)

// Content is the closed variant downstream code sees instead of the raw
// payload union. Resolve inspects the shape exactly once.
type Content struct {
	Kind      Kind
	Text      string
	MediaType string
}

func Resolve(msg *dto.GatewayMessage) Content {
	if msg == nil {
		return Content{Kind: KindUnsupported}
	}

	if text := strings.TrimSpace(msg.Conversation); text != "" {
		return Content{Kind: KindText, Text: text}
	}
	if msg.ExtendedTextMessage != nil {
		if text := strings.TrimSpace(msg.ExtendedTextMessage.Text); text != "" {
			return Content{Kind: KindText, Text: text}
		}
	}

	if msg.ImageMessage != nil {
		return Content{Kind: KindMedia, MediaType: "image", Text: strings.TrimSpace(msg.ImageMessage.Caption)}
	}
	if msg.VideoMessage != nil {
		return Content{Kind: KindMedia, MediaType: "video", Text: strings.TrimSpace(msg.VideoMessage.Caption)}
	}
	if msg.DocumentMessage != nil {
		return Content{Kind: KindMedia, MediaType: "document", Text: strings.TrimSpace(msg.DocumentMessage.Caption)}
	}
	if msg.AudioMessage != nil {
		return Content{Kind: KindMedia, MediaType: "audio"}
	}

	return Content{Kind: KindUnsupported}
}

// DisplayText returns the string to persist and show to agents. Media without
// a caption yields a typed placeholder; unsupported shapes yield nothing and
// the event is skipped upstream.
func (c Content) DisplayText() (string, bool) {
	switch c.Kind {
	case KindText:
		if c.Text == "" {
			return "", false
		}
		return c.Text, true
	case KindMedia:
		if c.Text != "" {
			return c.Text, true
		}
		return "[" + c.MediaType + "]", true
	default:
		return "", false
	}
}
