package protocol

import "encoding/json"

const Version = "1.0"

const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeNotice  = "NOTICE"
	TypeError   = "ERROR"
	TypePickup  = "PICKUP"
)

// BaseMessage is enough of any message to route it by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Event is an entry of an entity's recent event log (NOTICE, ERROR).
type Event map[string]any

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EntityID        string `json:"entity_id"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EntityID        string `json:"entity_id"`
	Name            string `json:"name"`
	Tick            uint64 `json:"tick"`
}

// NOTICE (server -> client): a user-visible text message.
type NoticeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	EntityID        string `json:"entity_id"`
	Text            string `json:"text"`
}

// PICKUP (client -> server): loot a ground item.
type PickupMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GroundID        string `json:"ground_id"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewNotice(tick uint64, entityID, text string) NoticeMsg {
	return NoticeMsg{
		Type:            TypeNotice,
		ProtocolVersion: Version,
		Tick:            tick,
		EntityID:        entityID,
		Text:            text,
	}
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		Code:            code,
		Message:         message,
	}
}
