// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once appended to the log.
package domain

import "time"

// Broadcast is the recipient meaning "all participants".
const Broadcast = "Todos"

// TimeLayout is the hour:minute:second format stamped on every message.
// Clients rely on it, so it carries no date and no zone.
const TimeLayout = "15:04:05"

const (
	JoinNotice  = "entra na sala..."
	LeaveNotice = "sai da sala..."
)

type MessageType string

const (
	MessageTypeMessage MessageType = "message"
	MessageTypePrivate MessageType = "private_message"
	MessageTypeStatus  MessageType = "status"
)

type MessageID string

type Message struct {
	ID   MessageID
	From string
	To   string
	Text string
	Type MessageType
	Time string
}

// IsStatus reports whether the message is a system-generated join/leave notice.
func (m Message) IsStatus() bool {
	return m.Type == MessageTypeStatus
}

// VisibleTo reports whether participant may read the message: broadcasts,
// messages addressed to them, and messages they sent.
func (m Message) VisibleTo(participant string) bool {
	return m.To == Broadcast || m.To == participant || m.From == participant
}

func JoinMessage(name string) Message {
	return Message{From: name, To: Broadcast, Text: JoinNotice, Type: MessageTypeStatus}
}

func LeaveMessage(name string) Message {
	return Message{From: name, To: Broadcast, Text: LeaveNotice, Type: MessageTypeStatus}
}

func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
