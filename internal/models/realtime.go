package models

import (
	"encoding/json"
	"time"
)

// Wire event names. Client and server share one namespace.
const (
	EventRegister          = "register"
	EventPaired            = "paired"
	EventChatHistory       = "chatHistory"
	EventMessage           = "message"
	EventTyping            = "typing"
	EventStopTyping        = "stopTyping"
	EventPartnerTyping     = "partnerTyping"
	EventPartnerStopTyping = "partnerStopTyping"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventICE               = "ice"
	EventPartnerLeft       = "partnerLeft"
	EventLeave             = "leave"
	EventHistory           = "history"
	EventReport            = "report"
	EventWaiting           = "waiting"
	EventError             = "error"
)

// Envelope is a single frame on the wire: {"event": "...", "data": ...}.
// Data is kept raw so that session negotiation payloads pass through untouched.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an Envelope. A nil data yields an event
// without payload.
func NewEnvelope(event string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Encode renders the envelope with Data copied verbatim. json.Marshal would
// compact and HTML-escape a RawMessage, which breaks byte-identical relay.
func (e Envelope) Encode() ([]byte, error) {
	name, err := json.Marshal(e.Event)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(name)+len(e.Data)+20)
	out = append(out, `{"event":`...)
	out = append(out, name...)
	if len(e.Data) > 0 {
		out = append(out, `,"data":`...)
		out = append(out, e.Data...)
	}
	out = append(out, '}')
	return out, nil
}

// ChatMessage is one entry of a pair's chat log.
type ChatMessage struct {
	// SenderID is the connection that wrote the message. Never sent to clients.
	SenderID string `json:"-"`
	// From is the sender's display name at the time of sending.
	From string `json:"from"`
	// Text is the message body.
	Text string `json:"text"`
	// Timestamp is the server receive time.
	Timestamp time.Time `json:"ts"`
}

// ChatInput is the object form of an inbound "message" payload.
type ChatInput struct {
	Text string `json:"text"`
}

// PairedPayload is sent to both sides when a pair is formed.
type PairedPayload struct {
	Name string `json:"name"`
}

// ReportInput is the payload of a "report" event.
type ReportInput struct {
	Reason   string `json:"reason"`
	Severity string `json:"severity"`
}

// ErrorPayload describes a rejected client operation.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchRequest carries the matching criteria derived from a profile.
type SearchRequest struct {
	UserID     string
	Gender     string
	LookingFor string
	Age        int
	City       string
	// Avoid is the previous partner, skipped for this one search.
	Avoid string
}

// SearchRequestFor builds the criteria for a connection's profile.
func SearchRequestFor(userID string, p Profile) SearchRequest {
	return SearchRequest{
		UserID:     userID,
		Gender:     p.Gender,
		LookingFor: p.LookingFor,
		Age:        p.Age,
		City:       p.City,
	}
}
