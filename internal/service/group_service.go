package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
	"github.com/appdevjohn/Social-Network-Backend/internal/groups"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/pkg/api"
)

// GroupService implements the GroupService RPC interface. It authorizes the
// caller against the group's membership before delegating to groups.Service.
type GroupService struct {
	groups *groups.Service
	conv   converter
	logger *slog.Logger
}

// NewGroupService creates a new GroupService.
func NewGroupService(svc *groups.Service, urlPrefix string, logger *slog.Logger) *GroupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupService{groups: svc, conv: converter{urlPrefix: urlPrefix}, logger: logger}
}

// NewGroupServiceHandler returns the mount path and handler of the service.
// Every procedure needs an authenticated caller.
func NewGroupServiceHandler(s *GroupService, opts ...connect.HandlerOption) (string, http.Handler) {
	o := handlerOptions(opts)
	mux := http.NewServeMux()
	handle(mux, api.GroupServiceCreateGroupProcedure, s.CreateGroup, o)
	handle(mux, api.GroupServiceValidateGroupNameProcedure, s.ValidateGroupName, o)
	handle(mux, api.GroupServiceGetGroupProcedure, s.GetGroup, o)
	handle(mux, api.GroupServiceListMyGroupsProcedure, s.ListMyGroups, o)
	handle(mux, api.GroupServiceSearchGroupsProcedure, s.SearchGroups, o)
	handle(mux, api.GroupServiceUpdateGroupProcedure, s.UpdateGroup, o)
	handle(mux, api.GroupServiceDeleteGroupProcedure, s.DeleteGroup, o)
	handle(mux, api.GroupServiceRequestToJoinProcedure, s.RequestToJoin, o)
	handle(mux, api.GroupServiceAddMemberProcedure, s.AddMember, o)
	handle(mux, api.GroupServiceApproveMemberProcedure, s.ApproveMember, o)
	handle(mux, api.GroupServiceSetAdminProcedure, s.SetAdmin, o)
	handle(mux, api.GroupServiceRemoveMemberProcedure, s.RemoveMember, o)
	handle(mux, api.GroupServiceLeaveGroupProcedure, s.LeaveGroup, o)
	handle(mux, api.GroupServiceListMembersProcedure, s.ListMembers, o)
	handle(mux, api.GroupServiceListAdminsProcedure, s.ListAdmins, o)
	handle(mux, api.GroupServiceListRequestsProcedure, s.ListRequests, o)
	return "/" + api.GroupServiceName + "/", mux
}

// CreateGroup creates a group with the caller as its admin.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	group, err := s.groups.CreateGroup(ctx, req.Msg.Name, req.Msg.Description, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "CreateGroup", err)
	}
	return connect.NewResponse(&api.CreateGroupResponse{Group: s.conv.group(group)}), nil
}

// ValidateGroupName reports whether a group name is still free.
func (s *GroupService) ValidateGroupName(ctx context.Context, req *connect.Request[api.ValidateGroupNameRequest]) (*connect.Response[api.ValidateGroupNameResponse], error) {
	valid, err := s.groups.ValidateGroupName(ctx, req.Msg.Name)
	if err != nil {
		return nil, toConnectError(s.logger, "ValidateGroupName", err)
	}
	return connect.NewResponse(&api.ValidateGroupNameResponse{Name: req.Msg.Name, Valid: valid}), nil
}

// GetGroup retrieves a group by ID or name, with the caller's membership.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var group *models.Group
	if req.Msg.GroupID != "" {
		group, err = s.groups.GetGroup(ctx, req.Msg.GroupID)
	} else {
		group, err = s.groups.GetGroupByName(ctx, req.Msg.Name)
	}
	if err != nil {
		return nil, toConnectError(s.logger, "GetGroup", err)
	}

	resp := &api.GetGroupResponse{Group: s.conv.group(group)}
	membership, err := s.groups.Membership(ctx, group.ID, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "GetGroup", err)
	}
	if membership != nil {
		resp.Membership = &api.UserGroup{Group: resp.Group, Approved: membership.Approved, Admin: membership.Admin}
	}
	return connect.NewResponse(resp), nil
}

// ListMyGroups lists the caller's groups, pending requests included.
func (s *GroupService) ListMyGroups(ctx context.Context, req *connect.Request[api.ListMyGroupsRequest]) (*connect.Response[api.ListMyGroupsResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.groups.ListUserGroups(ctx, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "ListMyGroups", err)
	}
	return connect.NewResponse(&api.ListMyGroupsResponse{Groups: s.conv.userGroups(list)}), nil
}

// SearchGroups finds groups by name.
func (s *GroupService) SearchGroups(ctx context.Context, req *connect.Request[api.SearchGroupsRequest]) (*connect.Response[api.SearchGroupsResponse], error) {
	found, err := s.groups.SearchGroups(ctx, req.Msg.Query, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(s.logger, "SearchGroups", err)
	}
	return connect.NewResponse(&api.SearchGroupsResponse{Groups: s.conv.groups(found)}), nil
}

// UpdateGroup changes a group's name or description. Admins only.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	if err := s.requireAdmin(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}

	group, err := s.groups.UpdateGroup(ctx, req.Msg.GroupID, models.GroupUpdate{
		Name:        req.Msg.Name,
		Description: req.Msg.Description,
	})
	if err != nil {
		return nil, toConnectError(s.logger, "UpdateGroup", err)
	}
	return connect.NewResponse(&api.UpdateGroupResponse{Group: s.conv.group(group)}), nil
}

// DeleteGroup removes a group with everything in it. Admins only.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.GroupRequest]) (*connect.Response[api.Empty], error) {
	if err := s.requireAdmin(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	if err := s.groups.DeleteGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, toConnectError(s.logger, "DeleteGroup", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

// RequestToJoin files a pending membership for the caller.
func (s *GroupService) RequestToJoin(ctx context.Context, req *connect.Request[api.GroupRequest]) (*connect.Response[api.Empty], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.groups.RequestToJoin(ctx, req.Msg.GroupID, caller); err != nil {
		return nil, toConnectError(s.logger, "RequestToJoin", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

// AddMember adds a user directly. Admins only.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.Empty], error) {
	if err := s.requireAdmin(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	err := s.groups.AddMember(ctx, req.Msg.GroupID, req.Msg.UserID, req.Msg.Approved, req.Msg.Admin)
	if err != nil {
		return nil, toConnectError(s.logger, "AddMember", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

// ApproveMember approves a pending request. Admins only.
func (s *GroupService) ApproveMember(ctx context.Context, req *connect.Request[api.MemberRequest]) (*connect.Response[api.Empty], error) {
	if err := s.requireAdmin(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	if err := s.groups.ApproveMember(ctx, req.Msg.GroupID, req.Msg.UserID); err != nil {
		return nil, toConnectError(s.logger, "ApproveMember", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

// SetAdmin promotes or demotes a member. Admins only.
func (s *GroupService) SetAdmin(ctx context.Context, req *connect.Request[api.SetAdminRequest]) (*connect.Response[api.Empty], error) {
	if err := s.requireAdmin(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	if err := s.groups.SetAdmin(ctx, req.Msg.GroupID, req.Msg.UserID, req.Msg.Admin); err != nil {
		return nil, toConnectError(s.logger, "SetAdmin", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

// RemoveMember removes a user from the group. Removing anyone but yourself
// takes an admin.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.MemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.UserID != caller {
		if err := s.requireAdmin(ctx, req.Msg.GroupID); err != nil {
			return nil, err
		}
	}
	return s.remove(ctx, req.Msg.GroupID, req.Msg.UserID)
}

// LeaveGroup removes the caller from the group.
func (s *GroupService) LeaveGroup(ctx context.Context, req *connect.Request[api.GroupRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.remove(ctx, req.Msg.GroupID, caller)
}

func (s *GroupService) remove(ctx context.Context, groupID, userID string) (*connect.Response[api.RemoveMemberResponse], error) {
	deleted, err := s.groups.RemoveMember(ctx, groupID, userID)
	if err != nil {
		return nil, toConnectError(s.logger, "RemoveMember", err)
	}
	return connect.NewResponse(&api.RemoveMemberResponse{GroupDeleted: deleted}), nil
}

// ListMembers lists approved members. Members only.
func (s *GroupService) ListMembers(ctx context.Context, req *connect.Request[api.GroupRequest]) (*connect.Response[api.ListMembersResponse], error) {
	if err := s.requireMember(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	return s.list(ctx, "ListMembers", s.groups.Members, req.Msg.GroupID)
}

// ListAdmins lists approved admins. Members only.
func (s *GroupService) ListAdmins(ctx context.Context, req *connect.Request[api.GroupRequest]) (*connect.Response[api.ListMembersResponse], error) {
	if err := s.requireMember(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	return s.list(ctx, "ListAdmins", s.groups.Admins, req.Msg.GroupID)
}

// ListRequests lists pending join requests. Admins only.
func (s *GroupService) ListRequests(ctx context.Context, req *connect.Request[api.GroupRequest]) (*connect.Response[api.ListMembersResponse], error) {
	if err := s.requireAdmin(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	return s.list(ctx, "ListRequests", s.groups.PendingRequests, req.Msg.GroupID)
}

func (s *GroupService) list(
	ctx context.Context,
	op string,
	fn func(context.Context, string) ([]*models.Member, error),
	groupID string,
) (*connect.Response[api.ListMembersResponse], error) {
	members, err := fn(ctx, groupID)
	if err != nil {
		return nil, toConnectError(s.logger, op, err)
	}
	return connect.NewResponse(&api.ListMembersResponse{Members: s.conv.members(members)}), nil
}

func (s *GroupService) requireAdmin(ctx context.Context, groupID string) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	ok, err := s.groups.IsAdmin(ctx, groupID, caller)
	if err != nil {
		return toConnectError(s.logger, "IsAdmin", err)
	}
	if !ok {
		return toConnectError(s.logger, "IsAdmin", apperr.ErrNotGroupAdmin)
	}
	return nil
}

func (s *GroupService) requireMember(ctx context.Context, groupID string) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	ok, err := s.groups.IsMember(ctx, groupID, caller)
	if err != nil {
		return toConnectError(s.logger, "IsMember", err)
	}
	if !ok {
		return toConnectError(s.logger, "IsMember", apperr.ErrNotGroupMember)
	}
	return nil
}
