package model

import "strings"

type ChatType string

const (
	ChatTypeP2P   ChatType = "p2p"
	ChatTypeGroup ChatType = "group"
)

// Event is a normalized inbound chat message. It is built once per request
// by the platform adapter and never mutated afterwards.
type Event struct {
	EventID   string   `json:"event_id"`
	EventType string   `json:"event_type" validate:"required"`
	Platform  string   `json:"platform"` // "feishu", "api"
	ChatType  ChatType `json:"chat_type" validate:"oneof=p2p group"`
	MessageID string   `json:"message_id"`
	ChatID    string   `json:"chat_id"`
	SenderID  string   `json:"sender_id" validate:"required_if=ChatType p2p"`
	RawText   string   `json:"raw_text"`
	Text      string   `json:"text" validate:"required"` // mention tokens stripped, trimmed
	Mentions  []string `json:"mentions"`
}

type Delivery int

const (
	DeliverNone Delivery = iota
	DeliverThreadReply
	DeliverGroup
	DeliverDirect
)

func (d Delivery) String() string {
	switch d {
	case DeliverThreadReply:
		return "thread_reply"
	case DeliverGroup:
		return "group"
	case DeliverDirect:
		return "direct"
	default:
		return "none"
	}
}

// Delivery picks the outbound path for a reply to this event and the
// identifier it should be addressed to.
func (e *Event) Delivery() (Delivery, string) {
	switch e.ChatType {
	case ChatTypeGroup:
		if e.MessageID != "" {
			return DeliverThreadReply, e.MessageID
		}
		if e.ChatID != "" {
			return DeliverGroup, e.ChatID
		}
	case ChatTypeP2P:
		if e.SenderID != "" {
			return DeliverDirect, e.SenderID
		}
	}
	return DeliverNone, ""
}

// SessionKey identifies the conversation an event belongs to.
func (e *Event) SessionKey() string {
	id := e.ChatID
	if id == "" {
		id = e.SenderID
	}
	return e.Platform + ":" + id
}

// Command is the text of an event prepared for routing.
type Command struct {
	Text      string // original casing, whitespace collapsed
	Canonical string // lower-cased Text
	Args      string // tail after the matched command literal, original casing
	Session   string
	UserID    string
}

func NewCommand(text string) Command {
	collapsed := strings.Join(strings.Fields(text), " ")
	return Command{
		Text:      collapsed,
		Canonical: strings.ToLower(collapsed),
	}
}

type ReplyKind string

const (
	ReplyText ReplyKind = "text"
	ReplyCard ReplyKind = "card"
)

// Reply is what a responder produces: plain text or an interactive card.
type Reply struct {
	Kind ReplyKind
	Text string
	Card any
}

func TextReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text}
}

func CardReply(card any) Reply {
	return Reply{Kind: ReplyCard, Card: card}
}

func (r Reply) IsEmpty() bool {
	if r.Kind == ReplyCard {
		return r.Card == nil
	}
	return strings.TrimSpace(r.Text) == ""
}

// String renders the reply for channels that only carry text.
func (r Reply) String() string {
	if r.Kind == ReplyCard {
		return "[card]"
	}
	return r.Text
}

// Keys of a card button's value.
const (
	CardValueCommand = "command"
	CardValueRefresh = "refresh"
)

// CardAction is a button click on an interactive card the bot sent. The
// button's value carries the command to run and, optionally, the command
// whose card replaces the clicked one.
type CardAction struct {
	EventID    string `json:"event_id"`
	Platform   string `json:"platform"`
	OperatorID string `json:"operator_id" validate:"required"`
	MessageID  string `json:"message_id"` // the message holding the card
	ChatID     string `json:"chat_id"`
	Command    string `json:"command" validate:"required"`
	Refresh    string `json:"refresh"`
}

// Delivery picks where a text answer to the click goes: a thread on the
// card's message, the card's chat, or the clicking user.
func (a *CardAction) Delivery() (Delivery, string) {
	switch {
	case a.MessageID != "":
		return DeliverThreadReply, a.MessageID
	case a.ChatID != "":
		return DeliverGroup, a.ChatID
	case a.OperatorID != "":
		return DeliverDirect, a.OperatorID
	}
	return DeliverNone, ""
}

func (a *CardAction) SessionKey() string {
	id := a.ChatID
	if id == "" {
		id = a.OperatorID
	}
	return a.Platform + ":" + id
}

// CardActionResult is the synchronous answer to a card click. A non-nil
// Card replaces the clicked card in place.
type CardActionResult struct {
	Toast string
	Card  any
}
