package service

import (
	"github.com/appdevjohn/Social-Network-Backend/internal/attachments"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/pkg/api"
)

// converter renders models as API messages. Attachment refs become URLs
// under urlPrefix.
type converter struct {
	urlPrefix string
}

func (c converter) user(u *models.User) *api.User {
	if u == nil {
		return nil
	}
	out := &api.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
	}
	if u.ProfilePic != "" {
		out.ProfilePicURL = attachments.URL(c.urlPrefix, u.ProfilePic)
	}
	return out
}

func (c converter) users(us []*models.User) []*api.User {
	out := make([]*api.User, len(us))
	for i, u := range us {
		out[i] = c.user(u)
	}
	return out
}

func (c converter) group(g *models.Group) *api.Group {
	if g == nil {
		return nil
	}
	return &api.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func (c converter) groups(gs []*models.Group) []*api.Group {
	out := make([]*api.Group, len(gs))
	for i, g := range gs {
		out[i] = c.group(g)
	}
	return out
}

func (c converter) userGroups(ugs []*models.UserGroup) []*api.UserGroup {
	out := make([]*api.UserGroup, len(ugs))
	for i, ug := range ugs {
		out[i] = &api.UserGroup{Group: c.group(ug.Group), Approved: ug.Approved, Admin: ug.Admin}
	}
	return out
}

func (c converter) members(ms []*models.Member) []*api.Member {
	out := make([]*api.Member, len(ms))
	for i, m := range ms {
		out[i] = &api.Member{User: c.user(m.User), Approved: m.Approved, Admin: m.Admin}
	}
	return out
}

func (c converter) message(m *models.Message) *api.Message {
	if m == nil {
		return nil
	}
	content := m.Content
	if m.HasAttachment() {
		content = attachments.URL(c.urlPrefix, m.Content)
	}
	return &api.Message{
		ID:             m.ID,
		SenderID:       m.SenderID,
		ConversationID: m.ConversationID,
		PostID:         m.PostID,
		Content:        content,
		Kind:           string(m.Kind),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (c converter) messages(ms []*models.Message) []*api.Message {
	out := make([]*api.Message, len(ms))
	for i, m := range ms {
		out[i] = c.message(m)
	}
	return out
}

func (c converter) conversation(conv *models.Conversation) *api.Conversation {
	if conv == nil {
		return nil
	}
	return &api.Conversation{
		ID:        conv.ID,
		Name:      conv.Name,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}

func (c converter) summary(s *models.ConversationSummary) *api.Conversation {
	out := c.conversation(s.Conversation)
	out.Snippet = c.message(s.Snippet)
	out.LastReadMessageID = s.LastReadMessageID
	return out
}

// RenderMessage renders m the way the RPC services do, for other transports.
func RenderMessage(urlPrefix string, m *models.Message) *api.Message {
	return converter{urlPrefix: urlPrefix}.message(m)
}
