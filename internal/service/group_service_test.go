package service

import (
	"testing"

	"connectrpc.com/connect"

	"github.com/appdevjohn/Social-Network-Backend/pkg/api"
)

func createGroup(t *testing.T, ts *testServer, token, name string) *api.Group {
	t.Helper()
	resp, err := call[api.CreateGroupResponse](t, ts, api.GroupServiceCreateGroupProcedure, token,
		&api.CreateGroupRequest{Name: name, Description: "test group"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return resp.Group
}

func listMembers(t *testing.T, ts *testServer, procedure, token, groupID string) []*api.Member {
	t.Helper()
	resp, err := call[api.ListMembersResponse](t, ts, procedure, token, &api.GroupRequest{GroupID: groupID})
	if err != nil {
		t.Fatalf("%s failed: %v", procedure, err)
	}
	return resp.Members
}

// joinAndApprove makes user an approved member through the public flow.
func joinAndApprove(t *testing.T, ts *testServer, adminToken, userToken, groupID, userID string) {
	t.Helper()
	if _, err := call[api.Empty](t, ts, api.GroupServiceRequestToJoinProcedure, userToken,
		&api.GroupRequest{GroupID: groupID}); err != nil {
		t.Fatalf("RequestToJoin failed: %v", err)
	}
	if _, err := call[api.Empty](t, ts, api.GroupServiceApproveMemberProcedure, adminToken,
		&api.MemberRequest{GroupID: groupID, UserID: userID}); err != nil {
		t.Fatalf("ApproveMember failed: %v", err)
	}
}

func TestCreateGroup(t *testing.T) {
	ts := setupTestServer(t)
	alice, token := ts.register(t, "alice")

	group := createGroup(t, ts, token, "Hikers")

	if group.ID == "" {
		t.Error("expected non-empty group ID")
	}
	if group.Name != "Hikers" {
		t.Errorf("name: expected 'Hikers', got '%s'", group.Name)
	}
	if group.CreatedAt == 0 {
		t.Error("expected non-zero CreatedAt")
	}

	admins := listMembers(t, ts, api.GroupServiceListAdminsProcedure, token, group.ID)
	if len(admins) != 1 || admins[0].User.ID != alice.ID {
		t.Fatalf("expected creator as only admin, got %+v", admins)
	}

	mine, err := call[api.ListMyGroupsResponse](t, ts, api.GroupServiceListMyGroupsProcedure, token, &api.ListMyGroupsRequest{})
	if err != nil {
		t.Fatalf("ListMyGroups failed: %v", err)
	}
	if len(mine.Groups) != 1 || !mine.Groups[0].Admin || !mine.Groups[0].Approved {
		t.Errorf("expected one approved admin membership, got %+v", mine.Groups)
	}
}

func TestCreateGroup_Errors(t *testing.T) {
	ts := setupTestServer(t)
	_, token := ts.register(t, "alice")
	createGroup(t, ts, token, "Hikers")

	tests := []struct {
		name  string
		token string
		req   *api.CreateGroupRequest
		code  connect.Code
	}{
		{"duplicate name", token, &api.CreateGroupRequest{Name: "Hikers"}, connect.CodeAlreadyExists},
		{"empty name", token, &api.CreateGroupRequest{Name: ""}, connect.CodeInvalidArgument},
		{"unauthenticated", "", &api.CreateGroupRequest{Name: "Climbers"}, connect.CodeUnauthenticated},
		{"bad token", "not-a-jwt", &api.CreateGroupRequest{Name: "Climbers"}, connect.CodeUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call[api.CreateGroupResponse](t, ts, api.GroupServiceCreateGroupProcedure, tt.token, tt.req)
			wantCode(t, err, tt.code)
		})
	}
}

func TestGetGroup(t *testing.T) {
	ts := setupTestServer(t)
	_, aliceToken := ts.register(t, "alice")
	_, bobToken := ts.register(t, "bob")
	group := createGroup(t, ts, aliceToken, "Work Lunch")

	t.Run("by name with membership", func(t *testing.T) {
		resp, err := call[api.GetGroupResponse](t, ts, api.GroupServiceGetGroupProcedure, aliceToken,
			&api.GetGroupRequest{Name: "Work Lunch"})
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if resp.Group.ID != group.ID {
			t.Errorf("expected group %s, got %s", group.ID, resp.Group.ID)
		}
		if resp.Membership == nil || !resp.Membership.Admin {
			t.Errorf("expected admin membership, got %+v", resp.Membership)
		}
	})

	t.Run("by id without membership", func(t *testing.T) {
		resp, err := call[api.GetGroupResponse](t, ts, api.GroupServiceGetGroupProcedure, bobToken,
			&api.GetGroupRequest{GroupID: group.ID})
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if resp.Membership != nil {
			t.Errorf("expected no membership, got %+v", resp.Membership)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := call[api.GetGroupResponse](t, ts, api.GroupServiceGetGroupProcedure, aliceToken,
			&api.GetGroupRequest{GroupID: "nonexistent-id"})
		wantCode(t, err, connect.CodeNotFound)
	})

	t.Run("needs id or name", func(t *testing.T) {
		_, err := call[api.GetGroupResponse](t, ts, api.GroupServiceGetGroupProcedure, aliceToken,
			&api.GetGroupRequest{})
		wantCode(t, err, connect.CodeInvalidArgument)
	})
}

func TestValidateAndSearchGroups(t *testing.T) {
	ts := setupTestServer(t)
	_, token := ts.register(t, "alice")
	createGroup(t, ts, token, "Trail Runners")
	createGroup(t, ts, token, "Book Club")

	resp, err := call[api.ValidateGroupNameResponse](t, ts, api.GroupServiceValidateGroupNameProcedure, token,
		&api.ValidateGroupNameRequest{Name: "Book Club"})
	if err != nil {
		t.Fatalf("ValidateGroupName failed: %v", err)
	}
	if resp.Valid {
		t.Error("expected taken name to be invalid")
	}

	resp, err = call[api.ValidateGroupNameResponse](t, ts, api.GroupServiceValidateGroupNameProcedure, token,
		&api.ValidateGroupNameRequest{Name: "Chess"})
	if err != nil {
		t.Fatalf("ValidateGroupName failed: %v", err)
	}
	if !resp.Valid {
		t.Error("expected free name to be valid")
	}

	found, err := call[api.SearchGroupsResponse](t, ts, api.GroupServiceSearchGroupsProcedure, token,
		&api.SearchGroupsRequest{Query: "trail"})
	if err != nil {
		t.Fatalf("SearchGroups failed: %v", err)
	}
	if len(found.Groups) != 1 || found.Groups[0].Name != "Trail Runners" {
		t.Errorf("expected Trail Runners, got %+v", found.Groups)
	}
}

func TestJoinRequestFlow(t *testing.T) {
	ts := setupTestServer(t)
	_, aliceToken := ts.register(t, "alice")
	bob, bobToken := ts.register(t, "bob")
	group := createGroup(t, ts, aliceToken, "Hikers")

	if _, err := call[api.Empty](t, ts, api.GroupServiceRequestToJoinProcedure, bobToken,
		&api.GroupRequest{GroupID: group.ID}); err != nil {
		t.Fatalf("RequestToJoin failed: %v", err)
	}

	_, err := call[api.Empty](t, ts, api.GroupServiceRequestToJoinProcedure, bobToken,
		&api.GroupRequest{GroupID: group.ID})
	wantCode(t, err, connect.CodeAlreadyExists)

	// A pending requester is not a member yet.
	_, err = call[api.ListMembersResponse](t, ts, api.GroupServiceListMembersProcedure, bobToken,
		&api.GroupRequest{GroupID: group.ID})
	wantCode(t, err, connect.CodePermissionDenied)

	requests := listMembers(t, ts, api.GroupServiceListRequestsProcedure, aliceToken, group.ID)
	if len(requests) != 1 || requests[0].User.ID != bob.ID || requests[0].Approved {
		t.Fatalf("expected bob's pending request, got %+v", requests)
	}

	_, err = call[api.Empty](t, ts, api.GroupServiceApproveMemberProcedure, bobToken,
		&api.MemberRequest{GroupID: group.ID, UserID: bob.ID})
	wantCode(t, err, connect.CodePermissionDenied)

	if _, err := call[api.Empty](t, ts, api.GroupServiceApproveMemberProcedure, aliceToken,
		&api.MemberRequest{GroupID: group.ID, UserID: bob.ID}); err != nil {
		t.Fatalf("ApproveMember failed: %v", err)
	}

	_, err = call[api.Empty](t, ts, api.GroupServiceApproveMemberProcedure, aliceToken,
		&api.MemberRequest{GroupID: group.ID, UserID: bob.ID})
	wantCode(t, err, connect.CodeNotFound)

	members := listMembers(t, ts, api.GroupServiceListMembersProcedure, bobToken, group.ID)
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}
	if requests := listMembers(t, ts, api.GroupServiceListRequestsProcedure, aliceToken, group.ID); len(requests) != 0 {
		t.Errorf("expected no pending requests, got %d", len(requests))
	}
}

func TestAdminLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	alice, aliceToken := ts.register(t, "alice")
	bob, bobToken := ts.register(t, "bob")
	group := createGroup(t, ts, aliceToken, "Hikers")
	joinAndApprove(t, ts, aliceToken, bobToken, group.ID, bob.ID)

	// The only admin of a group with other members cannot leave or step down.
	_, err := call[api.RemoveMemberResponse](t, ts, api.GroupServiceLeaveGroupProcedure, aliceToken,
		&api.GroupRequest{GroupID: group.ID})
	wantCode(t, err, connect.CodeFailedPrecondition)

	_, err = call[api.Empty](t, ts, api.GroupServiceSetAdminProcedure, aliceToken,
		&api.SetAdminRequest{GroupID: group.ID, UserID: alice.ID, Admin: false})
	wantCode(t, err, connect.CodeFailedPrecondition)

	// Members cannot remove others.
	_, err = call[api.RemoveMemberResponse](t, ts, api.GroupServiceRemoveMemberProcedure, bobToken,
		&api.MemberRequest{GroupID: group.ID, UserID: alice.ID})
	wantCode(t, err, connect.CodePermissionDenied)

	if _, err := call[api.Empty](t, ts, api.GroupServiceSetAdminProcedure, aliceToken,
		&api.SetAdminRequest{GroupID: group.ID, UserID: bob.ID, Admin: true}); err != nil {
		t.Fatalf("SetAdmin failed: %v", err)
	}
	if admins := listMembers(t, ts, api.GroupServiceListAdminsProcedure, bobToken, group.ID); len(admins) != 2 {
		t.Fatalf("expected 2 admins, got %d", len(admins))
	}

	left, err := call[api.RemoveMemberResponse](t, ts, api.GroupServiceLeaveGroupProcedure, aliceToken,
		&api.GroupRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}
	if left.GroupDeleted {
		t.Error("group should survive while bob remains")
	}

	left, err = call[api.RemoveMemberResponse](t, ts, api.GroupServiceLeaveGroupProcedure, bobToken,
		&api.GroupRequest{GroupID: group.ID})
	if err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}
	if !left.GroupDeleted {
		t.Error("expected the last member leaving to delete the group")
	}

	_, err = call[api.GetGroupResponse](t, ts, api.GroupServiceGetGroupProcedure, bobToken,
		&api.GetGroupRequest{GroupID: group.ID})
	wantCode(t, err, connect.CodeNotFound)
}

func TestRemoveMemberByAdmin(t *testing.T) {
	ts := setupTestServer(t)
	_, aliceToken := ts.register(t, "alice")
	bob, _ := ts.register(t, "bob")
	group := createGroup(t, ts, aliceToken, "Hikers")

	if _, err := call[api.Empty](t, ts, api.GroupServiceAddMemberProcedure, aliceToken,
		&api.AddMemberRequest{GroupID: group.ID, UserID: bob.ID, Approved: true}); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	resp, err := call[api.RemoveMemberResponse](t, ts, api.GroupServiceRemoveMemberProcedure, aliceToken,
		&api.MemberRequest{GroupID: group.ID, UserID: bob.ID})
	if err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if resp.GroupDeleted {
		t.Error("group should survive removing a regular member")
	}

	_, err = call[api.RemoveMemberResponse](t, ts, api.GroupServiceRemoveMemberProcedure, aliceToken,
		&api.MemberRequest{GroupID: group.ID, UserID: bob.ID})
	wantCode(t, err, connect.CodeNotFound)
}

func TestUpdateAndDeleteGroup(t *testing.T) {
	ts := setupTestServer(t)
	_, aliceToken := ts.register(t, "alice")
	_, bobToken := ts.register(t, "bob")
	group := createGroup(t, ts, aliceToken, "Hikers")
	createGroup(t, ts, aliceToken, "Climbers")

	name := "Weekend Hikers"
	resp, err := call[api.UpdateGroupResponse](t, ts, api.GroupServiceUpdateGroupProcedure, aliceToken,
		&api.UpdateGroupRequest{GroupID: group.ID, Name: &name})
	if err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
	if resp.Group.Name != name || resp.Group.Description != "test group" {
		t.Errorf("unexpected group after update: %+v", resp.Group)
	}

	taken := "Climbers"
	_, err = call[api.UpdateGroupResponse](t, ts, api.GroupServiceUpdateGroupProcedure, aliceToken,
		&api.UpdateGroupRequest{GroupID: group.ID, Name: &taken})
	wantCode(t, err, connect.CodeAlreadyExists)

	_, err = call[api.UpdateGroupResponse](t, ts, api.GroupServiceUpdateGroupProcedure, bobToken,
		&api.UpdateGroupRequest{GroupID: group.ID, Name: &name})
	wantCode(t, err, connect.CodePermissionDenied)

	_, err = call[api.Empty](t, ts, api.GroupServiceDeleteGroupProcedure, bobToken,
		&api.GroupRequest{GroupID: group.ID})
	wantCode(t, err, connect.CodePermissionDenied)

	if _, err := call[api.Empty](t, ts, api.GroupServiceDeleteGroupProcedure, aliceToken,
		&api.GroupRequest{GroupID: group.ID}); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	_, err = call[api.GetGroupResponse](t, ts, api.GroupServiceGetGroupProcedure, aliceToken,
		&api.GetGroupRequest{GroupID: group.ID})
	wantCode(t, err, connect.CodeNotFound)
}
