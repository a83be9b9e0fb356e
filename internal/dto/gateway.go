package dto

const EventMessagesUpsert = "MESSAGES_UPSERT"

// GatewayEvent is the envelope the messaging gateway delivers, either via
// webhook POST or over its websocket event stream.
type GatewayEvent struct {
	Event    string           `json:"event"`
	Instance string           `json:"instance"`
	Data     GatewayEventData `json:"data"`
}

type GatewayEventData struct {
	Key              GatewayMessageKey `json:"key"`
	Message          *GatewayMessage   `json:"message,omitempty"`
	MessageTimestamp int64             `json:"messageTimestamp,omitempty"`
	PushName         string            `json:"pushName,omitempty"`
}

type GatewayMessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// GatewayMessage is the union of payload shapes the gateway produces. At most
// one of the pointer fields is set; plain text arrives in Conversation.
type GatewayMessage struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	ImageMessage        *MediaMessage        `json:"imageMessage,omitempty"`
	VideoMessage        *MediaMessage        `json:"videoMessage,omitempty"`
	DocumentMessage     *DocumentMessage     `json:"documentMessage,omitempty"`
	AudioMessage        *MediaMessage        `json:"audioMessage,omitempty"`
}

type ExtendedTextMessage struct {
	Text string `json:"text,omitempty"`
}

type MediaMessage struct {
	Caption  string `json:"caption,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

type DocumentMessage struct {
	Caption  string `json:"caption,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

type SendTextRequest struct {
	Number  string          `json:"number"`
	Text    string          `json:"text"`
	Options SendTextOptions `json:"options"`
}

type SendTextOptions struct {
	Delay       int    `json:"delay"`
	Presence    string `json:"presence,omitempty"`
	LinkPreview bool   `json:"linkPreview"`
}

type SendTextResponse struct {
	Key    SendTextResponseKey `json:"key"`
	Status string              `json:"status"`
}

type SendTextResponseKey struct {
	ID string `json:"id"`
}
