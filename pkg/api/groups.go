package api

type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=1024"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type ValidateGroupNameRequest struct {
	Name string `json:"name" validate:"max=64"`
}

type ValidateGroupNameResponse struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
}

// GetGroupRequest looks a group up by ID or, when GroupID is empty, by name.
type GetGroupRequest struct {
	GroupID string `json:"groupId" validate:"required_without=Name"`
	Name    string `json:"name" validate:"required_without=GroupID"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`

	// Membership is the caller's row, absent when the caller has none.
	Membership *UserGroup `json:"membership,omitempty"`
}

type ListMyGroupsRequest struct{}

type ListMyGroupsResponse struct {
	Groups []*UserGroup `json:"groups"`
}

type SearchGroupsRequest struct {
	Query string `json:"query" validate:"required,max=64"`
	Limit int    `json:"limit" validate:"min=0,max=100"`
}

type SearchGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

// UpdateGroupRequest changes the fields that are present.
type UpdateGroupRequest struct {
	GroupID     string  `json:"groupId" validate:"required"`
	Name        *string `json:"name,omitempty" validate:"omitnil,min=1,max=64"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=1024"`
}

type UpdateGroupResponse struct {
	Group *Group `json:"group"`
}

type GroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type MemberRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
}

type AddMemberRequest struct {
	GroupID  string `json:"groupId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Approved bool   `json:"approved"`
	Admin    bool   `json:"admin"`
}

type SetAdminRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
	Admin   bool   `json:"admin"`
}

type RemoveMemberResponse struct {
	GroupDeleted bool `json:"groupDeleted"`
}

type ListMembersResponse struct {
	Members []*Member `json:"members"`
}
