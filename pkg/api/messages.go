package api

type CreateConversationRequest struct {
	Name      string   `json:"name" validate:"max=128"`
	Usernames []string `json:"usernames" validate:"max=256,dive,max=32"`
}

type CreateConversationResponse struct {
	Conversation *Conversation `json:"conversation"`
	Members      []*User       `json:"members"`
}

type ListConversationsRequest struct{}

type ListConversationsResponse struct {
	Conversations []*Conversation `json:"conversations"`
}

type ConversationRequest struct {
	ConversationID string `json:"convoId" validate:"required"`
}

type GetConversationRequest struct {
	ConversationID string `json:"convoId" validate:"required"`
	Limit          int    `json:"limit" validate:"min=0,max=1000"`
	Offset         int    `json:"offset" validate:"min=0"`
}

type GetConversationResponse struct {
	Conversation *Conversation `json:"conversation"`
	Members      []*User       `json:"members"`
	Messages     []*Message    `json:"messages"`
}

type RenameConversationRequest struct {
	ConversationID string `json:"convoId" validate:"required"`
	Name           string `json:"name" validate:"required,max=128"`
}

type RenameConversationResponse struct {
	Conversation *Conversation `json:"conversation"`
}

type LeaveConversationResponse struct {
	ConversationDeleted bool `json:"convoDeleted"`
}

// SendMessageRequest needs exactly one of ConversationID and PostID.
type SendMessageRequest struct {
	ConversationID string `json:"convoId" validate:"required_without=PostID,excluded_with=PostID"`
	PostID         string `json:"postId" validate:"required_without=ConversationID,excluded_with=ConversationID"`
	Content        string `json:"content" validate:"required,max=4096"`
	Kind           string `json:"type" validate:"omitempty,oneof=text image"`
}

type MessageResponse struct {
	Message *Message `json:"message"`
}

type ListMessagesRequest struct {
	ConversationID string `json:"convoId" validate:"required_without=PostID,excluded_with=PostID"`
	PostID         string `json:"postId" validate:"required_without=ConversationID,excluded_with=ConversationID"`
	Limit          int    `json:"limit" validate:"min=0,max=1000"`
	Offset         int    `json:"offset" validate:"min=0"`
}

type ListMessagesResponse struct {
	Messages []*Message `json:"messages"`
}

type MessageRequest struct {
	MessageID string `json:"messageId" validate:"required"`
}

type EditMessageRequest struct {
	MessageID string  `json:"messageId" validate:"required"`
	Content   *string `json:"content,omitempty" validate:"omitnil,min=1,max=4096"`
}

type MarkReadRequest struct {
	ConversationID string `json:"convoId" validate:"required"`
	MessageID      string `json:"messageId" validate:"required"`
}

type LastReadResponse struct {
	MessageID string `json:"messageId"`
}

// UploadResponse is returned by the attachment upload endpoint.
type UploadResponse struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}
