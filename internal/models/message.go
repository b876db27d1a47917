package models

// ContentKind tags what a message's Content holds.
type ContentKind string

const (
	// KindText messages carry their text in Content.
	KindText ContentKind = "text"
	// KindImage messages carry an opaque attachment ref in Content.
	KindImage ContentKind = "image"
)

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	return k == KindText || k == KindImage
}

// Message is sent by a user to exactly one conversation or post.
type Message struct {
	ID       string
	SenderID string

	// ConversationID and PostID are mutually exclusive; exactly one is set.
	ConversationID string
	PostID         string

	Content string
	Kind    ContentKind

	CreatedAt int64
	UpdatedAt int64
}

// HasAttachment reports whether Content is an attachment ref.
func (m *Message) HasAttachment() bool {
	return m.Kind == KindImage && m.Content != ""
}

// Destination addresses a message to a conversation or a post.
type Destination struct {
	ConversationID string
	PostID         string
}

// Valid reports whether exactly one destination field is set.
func (d Destination) Valid() bool {
	return (d.ConversationID == "") != (d.PostID == "")
}

// MessageUpdate is a partial update of a message.
type MessageUpdate struct {
	Content *string
}
