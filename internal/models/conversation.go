package models

// Conversation is a direct-message thread. Membership is flat: no approval or
// admin flags. A conversation is deleted, with its messages, when its last member
// leaves.
type Conversation struct {
	ID   string
	Name string

	CreatedAt int64
	UpdatedAt int64
}

// ConversationUpdate is a partial update of a conversation.
type ConversationUpdate struct {
	Name *string
}

// ConversationSummary is a conversation as listed for one of its members.
type ConversationSummary struct {
	Conversation *Conversation

	// Snippet is the newest message, nil for an empty conversation.
	Snippet *Message

	// LastReadMessageID is the member's read pointer, empty when unset.
	LastReadMessageID string
}
