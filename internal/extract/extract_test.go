package extract

import (
	"testing"

	"whatsdesk-backend/internal/dto"
)

func TestResolvePlainText(t *testing.T) {
	content := Resolve(&dto.GatewayMessage{Conversation: "hello"})
	if content.Kind != KindText {
		t.Fatalf("expected text kind, got %s", content.Kind)
	}
	text, ok := content.DisplayText()
	if !ok || text != "hello" {
		t.Fatalf("unexpected display text %q ok=%v", text, ok)
	}
}

func TestResolveExtendedText(t *testing.T) {
	content := Resolve(&dto.GatewayMessage{
		ExtendedTextMessage: &dto.ExtendedTextMessage{Text: "quoted reply"},
	})
	text, ok := content.DisplayText()
	if !ok || text != "quoted reply" {
		t.Fatalf("unexpected display text %q ok=%v", text, ok)
	}
}

func TestResolveImageCaption(t *testing.T) {
	content := Resolve(&dto.GatewayMessage{
		ImageMessage: &dto.MediaMessage{Caption: "look at this"},
	})
	if content.Kind != KindMedia || content.MediaType != "image" {
		t.Fatalf("unexpected content %+v", content)
	}
	text, ok := content.DisplayText()
	if !ok || text != "look at this" {
		t.Fatalf("unexpected display text %q ok=%v", text, ok)
	}
}

func TestResolveMediaWithoutCaption(t *testing.T) {
	content := Resolve(&dto.GatewayMessage{AudioMessage: &dto.MediaMessage{}})
	text, ok := content.DisplayText()
	if !ok || text != "[audio]" {
		t.Fatalf("expected audio placeholder, got %q ok=%v", text, ok)
	}
}

func TestResolveEmptyPayload(t *testing.T) {
	content := Resolve(&dto.GatewayMessage{})
	if content.Kind != KindUnsupported {
		t.Fatalf("expected unsupported, got %s", content.Kind)
	}
	if _, ok := content.DisplayText(); ok {
		t.Fatal("unsupported payload must not produce display text")
	}
}

func TestResolveNilPayload(t *testing.T) {
	content := Resolve(nil)
	if _, ok := content.DisplayText(); ok {
		t.Fatal("nil payload must not produce display text")
	}
}
