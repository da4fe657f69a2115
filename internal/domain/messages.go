package domain

import (
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeEmoji  MessageType = "emoji"
	MessageTypeGIF    MessageType = "gif"
	MessageTypeSystem MessageType = "system"
)

type GIFRef struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// MessageContent holds exactly one of its fields, selected by the message type.
type MessageContent struct {
	Text  string  `json:"text,omitempty"`
	Emoji string  `json:"emoji,omitempty"`
	GIF   *GIFRef `json:"gif,omitempty"`
}

type Message struct {
	ID         string         `json:"id"`
	Seq        uint64         `json:"seq"`
	AuthorID   string         `json:"author_id"`
	AuthorName string         `json:"author_name"`
	Type       MessageType    `json:"type"`
	Content    MessageContent `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
}

// MessageDraft is a message before the log assigns its sequence number.
type MessageDraft struct {
	AuthorID   string
	AuthorName string
	Type       MessageType
	Content    MessageContent
}

func SystemMessageDraft(text string) MessageDraft {
	return MessageDraft{
		Type:    MessageTypeSystem,
		Content: MessageContent{Text: text},
	}
}

// Validate checks that the content matches the message type and drops
// fields that do not belong to it.
func (d *MessageDraft) Validate() error {
	switch d.Type {
	case MessageTypeText, MessageTypeSystem:
		if strings.TrimSpace(d.Content.Text) == "" {
			return fmt.Errorf("%s message requires text: %w", d.Type, ErrInvalidInput)
		}
		d.Content = MessageContent{Text: d.Content.Text}
	case MessageTypeEmoji:
		if d.Content.Emoji == "" {
			return fmt.Errorf("emoji message requires emoji: %w", ErrInvalidInput)
		}
		d.Content = MessageContent{Emoji: d.Content.Emoji}
	case MessageTypeGIF:
		if d.Content.GIF == nil || d.Content.GIF.URL == "" {
			return fmt.Errorf("gif message requires url: %w", ErrInvalidInput)
		}
		gif := *d.Content.GIF
		d.Content = MessageContent{GIF: &gif}
	default:
		return fmt.Errorf("unknown message type %q: %w", d.Type, ErrInvalidInput)
	}

	return nil
}

// MessageLog is an append-only, sequence-ordered record of room messages.
type MessageLog struct {
	entries []Message
	nextSeq uint64
}

func NewMessageLog() *MessageLog {
	return &MessageLog{
		entries: make([]Message, 0, 16),
		nextSeq: 1,
	}
}

func (l MessageLog) Len() int {
	return len(l.entries)
}

// LastSeq returns the sequence number of the newest entry, 0 when empty.
func (l MessageLog) LastSeq() uint64 {
	return l.nextSeq - 1
}

// Append stores the draft under the next sequence number. The draft is
// expected to be validated by the caller.
func (l *MessageLog) Append(draft MessageDraft, id string, at time.Time) Message {
	msg := Message{
		ID:         id,
		Seq:        l.nextSeq,
		AuthorID:   draft.AuthorID,
		AuthorName: draft.AuthorName,
		Type:       draft.Type,
		Content:    draft.Content,
		CreatedAt:  at,
	}
	l.nextSeq++
	l.entries = append(l.entries, msg)

	return msg
}

// List yields messages with a sequence number greater than since, in order.
// The sequence is bound to the entries present at call time and may be
// ranged over any number of times.
func (l MessageLog) List(since uint64) iter.Seq[Message] {
	entries := l.entries[:len(l.entries):len(l.entries)]
	start := sort.Search(len(entries), func(i int) bool {
		return entries[i].Seq > since
	})

	return func(yield func(Message) bool) {
		for _, msg := range entries[start:] {
			if !yield(msg) {
				return
			}
		}
	}
}

func restoreMessageLog(messages []Message) (*MessageLog, error) {
	l := NewMessageLog()
	for _, msg := range messages {
		if msg.Seq < l.nextSeq {
			return nil, fmt.Errorf("restore message %q: sequence %d out of order: %w", msg.ID, msg.Seq, ErrInvalidInput)
		}

		l.entries = append(l.entries, msg)
		l.nextSeq = msg.Seq + 1
	}

	return l, nil
}
