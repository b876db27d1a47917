// Package api defines the request and response messages of the RPC services.
// They travel as JSON over Connect; validate tags are checked by the server
// before a handler runs.
package api

// Service names and procedure paths.
const (
	AuthServiceName    = "social.v1.AuthService"
	GroupServiceName   = "social.v1.GroupService"
	MessageServiceName = "social.v1.MessageService"
)

const (
	AuthServiceRegisterProcedure       = "/" + AuthServiceName + "/Register"
	AuthServiceLoginProcedure          = "/" + AuthServiceName + "/Login"
	AuthServiceGetCurrentUserProcedure = "/" + AuthServiceName + "/GetCurrentUser"
	AuthServiceCanMessageUserProcedure = "/" + AuthServiceName + "/CanMessageUser"

	GroupServiceCreateGroupProcedure       = "/" + GroupServiceName + "/CreateGroup"
	GroupServiceValidateGroupNameProcedure = "/" + GroupServiceName + "/ValidateGroupName"
	GroupServiceGetGroupProcedure          = "/" + GroupServiceName + "/GetGroup"
	GroupServiceListMyGroupsProcedure      = "/" + GroupServiceName + "/ListMyGroups"
	GroupServiceSearchGroupsProcedure      = "/" + GroupServiceName + "/SearchGroups"
	GroupServiceUpdateGroupProcedure       = "/" + GroupServiceName + "/UpdateGroup"
	GroupServiceDeleteGroupProcedure       = "/" + GroupServiceName + "/DeleteGroup"
	GroupServiceRequestToJoinProcedure     = "/" + GroupServiceName + "/RequestToJoin"
	GroupServiceAddMemberProcedure         = "/" + GroupServiceName + "/AddMember"
	GroupServiceApproveMemberProcedure     = "/" + GroupServiceName + "/ApproveMember"
	GroupServiceSetAdminProcedure          = "/" + GroupServiceName + "/SetAdmin"
	GroupServiceRemoveMemberProcedure      = "/" + GroupServiceName + "/RemoveMember"
	GroupServiceLeaveGroupProcedure        = "/" + GroupServiceName + "/LeaveGroup"
	GroupServiceListMembersProcedure       = "/" + GroupServiceName + "/ListMembers"
	GroupServiceListAdminsProcedure        = "/" + GroupServiceName + "/ListAdmins"
	GroupServiceListRequestsProcedure      = "/" + GroupServiceName + "/ListRequests"

	MessageServiceCreateConversationProcedure = "/" + MessageServiceName + "/CreateConversation"
	MessageServiceListConversationsProcedure  = "/" + MessageServiceName + "/ListConversations"
	MessageServiceGetConversationProcedure    = "/" + MessageServiceName + "/GetConversation"
	MessageServiceRenameConversationProcedure = "/" + MessageServiceName + "/RenameConversation"
	MessageServiceLeaveConversationProcedure  = "/" + MessageServiceName + "/LeaveConversation"
	MessageServiceSendMessageProcedure        = "/" + MessageServiceName + "/SendMessage"
	MessageServiceListMessagesProcedure       = "/" + MessageServiceName + "/ListMessages"
	MessageServiceGetMessageProcedure         = "/" + MessageServiceName + "/GetMessage"
	MessageServiceEditMessageProcedure        = "/" + MessageServiceName + "/EditMessage"
	MessageServiceDeleteMessageProcedure      = "/" + MessageServiceName + "/DeleteMessage"
	MessageServiceMarkReadProcedure           = "/" + MessageServiceName + "/MarkRead"
	MessageServiceGetLastReadProcedure        = "/" + MessageServiceName + "/GetLastRead"
)

// User is the public view of an account.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	ProfilePicURL string `json:"profilePicUrl,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// Member is a user with their flags in one group.
type Member struct {
	User     *User `json:"user"`
	Approved bool  `json:"approved"`
	Admin    bool  `json:"admin"`
}

// UserGroup is a group with the caller's flags in it.
type UserGroup struct {
	Group    *Group `json:"group"`
	Approved bool   `json:"approved"`
	Admin    bool   `json:"admin"`
}

// Message content is text, or for kind "image" a URL.
type Message struct {
	ID             string `json:"id"`
	SenderID       string `json:"userId"`
	ConversationID string `json:"convoId,omitempty"`
	PostID         string `json:"postId,omitempty"`
	Content        string `json:"content"`
	Kind           string `json:"type"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

type Conversation struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	CreatedAt         int64    `json:"createdAt"`
	UpdatedAt         int64    `json:"updatedAt"`
	Snippet           *Message `json:"snippet,omitempty"`
	LastReadMessageID string   `json:"lastReadMessageId,omitempty"`
}

type Empty struct{}
