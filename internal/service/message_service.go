package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
	"github.com/appdevjohn/Social-Network-Backend/internal/messaging"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/pkg/api"
)

// GroupMembership answers whether a user may see a group's posts.
type GroupMembership interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// MessageService implements the MessageService RPC interface.
type MessageService struct {
	messaging *messaging.Service
	groups    GroupMembership
	conv      converter
	logger    *slog.Logger
}

// NewMessageService creates a new MessageService.
func NewMessageService(svc *messaging.Service, groups GroupMembership, urlPrefix string, logger *slog.Logger) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		messaging: svc,
		groups:    groups,
		conv:      converter{urlPrefix: urlPrefix},
		logger:    logger,
	}
}

// NewMessageServiceHandler returns the mount path and handler of the service.
func NewMessageServiceHandler(s *MessageService, opts ...connect.HandlerOption) (string, http.Handler) {
	o := handlerOptions(opts)
	mux := http.NewServeMux()
	handle(mux, api.MessageServiceCreateConversationProcedure, s.CreateConversation, o)
	handle(mux, api.MessageServiceListConversationsProcedure, s.ListConversations, o)
	handle(mux, api.MessageServiceGetConversationProcedure, s.GetConversation, o)
	handle(mux, api.MessageServiceRenameConversationProcedure, s.RenameConversation, o)
	handle(mux, api.MessageServiceLeaveConversationProcedure, s.LeaveConversation, o)
	handle(mux, api.MessageServiceSendMessageProcedure, s.SendMessage, o)
	handle(mux, api.MessageServiceListMessagesProcedure, s.ListMessages, o)
	handle(mux, api.MessageServiceGetMessageProcedure, s.GetMessage, o)
	handle(mux, api.MessageServiceEditMessageProcedure, s.EditMessage, o)
	handle(mux, api.MessageServiceDeleteMessageProcedure, s.DeleteMessage, o)
	handle(mux, api.MessageServiceMarkReadProcedure, s.MarkRead, o)
	handle(mux, api.MessageServiceGetLastReadProcedure, s.GetLastRead, o)
	return "/" + api.MessageServiceName + "/", mux
}

// CreateConversation starts a conversation between the caller and the named users.
func (s *MessageService) CreateConversation(ctx context.Context, req *connect.Request[api.CreateConversationRequest]) (*connect.Response[api.CreateConversationResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	conversation, err := s.messaging.CreateConversation(ctx, req.Msg.Name, caller, req.Msg.Usernames)
	if err != nil {
		return nil, toConnectError(s.logger, "CreateConversation", err)
	}
	members, err := s.messaging.Members(ctx, conversation.ID)
	if err != nil {
		return nil, toConnectError(s.logger, "CreateConversation", err)
	}
	return connect.NewResponse(&api.CreateConversationResponse{
		Conversation: s.conv.conversation(conversation),
		Members:      s.conv.users(members),
	}), nil
}

// ListConversations lists the caller's conversations, most recently active first.
func (s *MessageService) ListConversations(ctx context.Context, req *connect.Request[api.ListConversationsRequest]) (*connect.Response[api.ListConversationsResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	summaries, err := s.messaging.ListConversations(ctx, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "ListConversations", err)
	}
	out := make([]*api.Conversation, len(summaries))
	for i, summary := range summaries {
		out[i] = s.conv.summary(summary)
	}
	return connect.NewResponse(&api.ListConversationsResponse{Conversations: out}), nil
}

// GetConversation returns a conversation with its members, the caller's read
// pointer and the newest page of messages.
func (s *MessageService) GetConversation(ctx context.Context, req *connect.Request[api.GetConversationRequest]) (*connect.Response[api.GetConversationResponse], error) {
	caller, err := s.requireConversationMember(ctx, req.Msg.ConversationID)
	if err != nil {
		return nil, err
	}
	id := req.Msg.ConversationID

	conversation, err := s.messaging.GetConversation(ctx, id)
	if err != nil {
		return nil, toConnectError(s.logger, "GetConversation", err)
	}
	members, err := s.messaging.Members(ctx, id)
	if err != nil {
		return nil, toConnectError(s.logger, "GetConversation", err)
	}
	messages, err := s.messaging.ListMessages(ctx, models.Destination{ConversationID: id}, req.Msg.Limit, req.Msg.Offset)
	if err != nil {
		return nil, toConnectError(s.logger, "GetConversation", err)
	}
	lastRead, err := s.messaging.GetLastReadMessageID(ctx, id, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "GetConversation", err)
	}

	out := s.conv.conversation(conversation)
	out.LastReadMessageID = lastRead
	if len(messages) > 0 {
		out.Snippet = s.conv.message(messages[0])
	}
	return connect.NewResponse(&api.GetConversationResponse{
		Conversation: out,
		Members:      s.conv.users(members),
		Messages:     s.conv.messages(messages),
	}), nil
}

// RenameConversation changes a conversation's name. Members only.
func (s *MessageService) RenameConversation(ctx context.Context, req *connect.Request[api.RenameConversationRequest]) (*connect.Response[api.RenameConversationResponse], error) {
	if _, err := s.requireConversationMember(ctx, req.Msg.ConversationID); err != nil {
		return nil, err
	}

	name := req.Msg.Name
	conversation, err := s.messaging.RenameConversation(ctx, req.Msg.ConversationID, models.ConversationUpdate{Name: &name})
	if err != nil {
		return nil, toConnectError(s.logger, "RenameConversation", err)
	}
	return connect.NewResponse(&api.RenameConversationResponse{Conversation: s.conv.conversation(conversation)}), nil
}

// LeaveConversation removes the caller. The last member out deletes it.
func (s *MessageService) LeaveConversation(ctx context.Context, req *connect.Request[api.ConversationRequest]) (*connect.Response[api.LeaveConversationResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	deleted, err := s.messaging.RemoveConversationMember(ctx, req.Msg.ConversationID, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "LeaveConversation", err)
	}
	return connect.NewResponse(&api.LeaveConversationResponse{ConversationDeleted: deleted}), nil
}

// SendMessage posts to a conversation the caller is in, or comments on a
// post of a group the caller belongs to.
func (s *MessageService) SendMessage(ctx context.Context, req *connect.Request[api.SendMessageRequest]) (*connect.Response[api.MessageResponse], error) {
	dest := models.Destination{ConversationID: req.Msg.ConversationID, PostID: req.Msg.PostID}
	caller, err := s.authorizeDestination(ctx, dest)
	if err != nil {
		return nil, err
	}

	message, err := s.messaging.SendMessage(ctx, caller, dest, req.Msg.Content, models.ContentKind(req.Msg.Kind))
	if err != nil {
		return nil, toConnectError(s.logger, "SendMessage", err)
	}
	return connect.NewResponse(&api.MessageResponse{Message: s.conv.message(message)}), nil
}

// ListMessages returns a page of a destination's messages, newest first.
func (s *MessageService) ListMessages(ctx context.Context, req *connect.Request[api.ListMessagesRequest]) (*connect.Response[api.ListMessagesResponse], error) {
	dest := models.Destination{ConversationID: req.Msg.ConversationID, PostID: req.Msg.PostID}
	if _, err := s.authorizeDestination(ctx, dest); err != nil {
		return nil, err
	}

	messages, err := s.messaging.ListMessages(ctx, dest, req.Msg.Limit, req.Msg.Offset)
	if err != nil {
		return nil, toConnectError(s.logger, "ListMessages", err)
	}
	return connect.NewResponse(&api.ListMessagesResponse{Messages: s.conv.messages(messages)}), nil
}

// GetMessage returns a message the caller can see.
func (s *MessageService) GetMessage(ctx context.Context, req *connect.Request[api.MessageRequest]) (*connect.Response[api.MessageResponse], error) {
	message, err := s.messaging.GetMessage(ctx, req.Msg.MessageID)
	if err != nil {
		return nil, toConnectError(s.logger, "GetMessage", err)
	}
	dest := models.Destination{ConversationID: message.ConversationID, PostID: message.PostID}
	if _, err := s.authorizeDestination(ctx, dest); err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.MessageResponse{Message: s.conv.message(message)}), nil
}

// EditMessage changes the text of the caller's own message.
func (s *MessageService) EditMessage(ctx context.Context, req *connect.Request[api.EditMessageRequest]) (*connect.Response[api.MessageResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	message, err := s.messaging.EditMessage(ctx, req.Msg.MessageID, caller, models.MessageUpdate{Content: req.Msg.Content})
	if err != nil {
		return nil, toConnectError(s.logger, "EditMessage", err)
	}
	return connect.NewResponse(&api.MessageResponse{Message: s.conv.message(message)}), nil
}

// DeleteMessage deletes the caller's own message.
func (s *MessageService) DeleteMessage(ctx context.Context, req *connect.Request[api.MessageRequest]) (*connect.Response[api.Empty], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.messaging.DeleteMessage(ctx, req.Msg.MessageID, caller); err != nil {
		return nil, toConnectError(s.logger, "DeleteMessage", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

// MarkRead moves the caller's read pointer in a conversation.
func (s *MessageService) MarkRead(ctx context.Context, req *connect.Request[api.MarkReadRequest]) (*connect.Response[api.LastReadResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := s.messaging.MarkRead(ctx, req.Msg.ConversationID, caller, req.Msg.MessageID)
	if err != nil {
		return nil, toConnectError(s.logger, "MarkRead", err)
	}
	return connect.NewResponse(&api.LastReadResponse{MessageID: stored}), nil
}

// GetLastRead returns the caller's read pointer, empty when unset.
func (s *MessageService) GetLastRead(ctx context.Context, req *connect.Request[api.ConversationRequest]) (*connect.Response[api.LastReadResponse], error) {
	caller, err := s.requireConversationMember(ctx, req.Msg.ConversationID)
	if err != nil {
		return nil, err
	}

	messageID, err := s.messaging.GetLastReadMessageID(ctx, req.Msg.ConversationID, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "GetLastRead", err)
	}
	return connect.NewResponse(&api.LastReadResponse{MessageID: messageID}), nil
}

// authorizeDestination returns the caller when they may read and write dest:
// a conversation they are in, or a post in a group they are an approved
// member of.
func (s *MessageService) authorizeDestination(ctx context.Context, dest models.Destination) (string, error) {
	if !dest.Valid() {
		return "", toConnectError(s.logger, "authorize", apperr.ErrInvalidDestination)
	}
	if dest.ConversationID != "" {
		return s.requireConversationMember(ctx, dest.ConversationID)
	}

	caller, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	post, err := s.messaging.GetPost(ctx, dest.PostID)
	if err != nil {
		return "", toConnectError(s.logger, "GetPost", err)
	}
	ok, err := s.groups.IsMember(ctx, post.GroupID, caller)
	if err != nil {
		return "", toConnectError(s.logger, "IsMember", err)
	}
	if !ok {
		return "", toConnectError(s.logger, "IsMember", apperr.ErrNotGroupMember)
	}
	return caller, nil
}

func (s *MessageService) requireConversationMember(ctx context.Context, conversationID string) (string, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	ok, err := s.messaging.IsMember(ctx, conversationID, caller)
	if err != nil {
		return "", toConnectError(s.logger, "IsMember", err)
	}
	if !ok {
		return "", toConnectError(s.logger, "IsMember", apperr.ErrNotConversationMember)
	}
	return caller, nil
}
