// Package groups enforces the group membership lifecycle.
//
// Every change to a group's membership set that depends on the current admin
// or member count runs inside storage.GroupStore.UpdateMemberships, so the
// count it checks is the count it changes. Two concurrent demotions on a
// two-admin group therefore cannot both pass the admin floor.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
	"github.com/appdevjohn/Social-Network-Backend/internal/metrics"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/internal/storage"
)

// DefaultSearchLimit caps SearchGroups when the caller passes no limit.
const DefaultSearchLimit = 20

// Rejection reasons recorded in metrics.
const (
	reasonSoleAdmin = "sole_admin_cannot_leave"
	reasonLastAdmin = "last_admin_required"
)

// AttachmentReleaser deletes stored attachments in the background.
type AttachmentReleaser interface {
	Release(refs []string)
}

// Service implements group creation, membership changes and the read-only
// projections the authorization layer relies on.
type Service struct {
	store    storage.GroupStore
	releaser AttachmentReleaser
	logger   *slog.Logger
}

// NewService creates a group service. releaser may be nil.
func NewService(store storage.GroupStore, releaser AttachmentReleaser, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, releaser: releaser, logger: logger}
}

// CreateGroup creates the group with creatorID as its first approved admin.
// The name's uniqueness is enforced by the store, not pre-checked.
func (s *Service) CreateGroup(ctx context.Context, name, description, creatorID string) (*models.Group, error) {
	group := &models.Group{Name: strings.TrimSpace(name), Description: description}
	if group.Name == "" {
		return nil, apperr.New(apperr.Invalid, "group name is required")
	}

	if err := s.store.CreateGroup(ctx, group, creatorID); err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return nil, apperr.ErrGroupNameTaken
		}
		return nil, err
	}

	s.logger.Info("Group created", "group_id", group.ID, "name", group.Name, "creator_id", creatorID)
	return group, nil
}

// ValidateGroupName reports whether name is free. The answer is advisory: a
// concurrent CreateGroup can still take it.
func (s *Service) ValidateGroupName(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	_, err := s.store.GetGroupByName(ctx, name)
	if apperr.Is(err, apperr.NotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// GetGroup returns a group by ID.
func (s *Service) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// GetGroupByName returns a group by its unique name.
func (s *Service) GetGroupByName(ctx context.Context, name string) (*models.Group, error) {
	return s.store.GetGroupByName(ctx, name)
}

// ListUserGroups returns every group userID has a row in, pending requests included.
func (s *Service) ListUserGroups(ctx context.Context, userID string) ([]*models.UserGroup, error) {
	return s.store.ListGroupsByUser(ctx, userID)
}

// SearchGroups matches names by case-insensitive substring.
func (s *Service) SearchGroups(ctx context.Context, query string, limit int) ([]*models.Group, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return s.store.SearchGroups(ctx, strings.TrimSpace(query), limit)
}

// UpdateGroup applies update. A name clash fails with ErrGroupNameTaken. An
// empty update writes nothing and returns the stored group.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, update models.GroupUpdate) (*models.Group, error) {
	if update.Empty() {
		return s.store.GetGroup(ctx, groupID)
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperr.New(apperr.Invalid, "group name cannot be empty")
		}
		update.Name = &name
	}

	group, err := s.store.UpdateGroup(ctx, groupID, update)
	if err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return nil, apperr.ErrGroupNameTaken
		}
		return nil, err
	}

	s.logger.Info("Group updated", "group_id", groupID)
	return group, nil
}

// DeleteGroup deletes the group with its memberships, posts and comments.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	refs, err := s.store.DeleteGroup(ctx, groupID)
	if err != nil {
		return err
	}
	s.release(refs)
	s.logger.Info("Group deleted", "group_id", groupID, "attachments", len(refs))
	return nil
}

// AddMember inserts a membership row. An existing row for the pair fails with
// ErrAlreadyMember.
func (s *Service) AddMember(ctx context.Context, groupID, userID string, approved, admin bool) error {
	err := s.store.AddMember(ctx, &models.Membership{
		GroupID:  groupID,
		UserID:   userID,
		Approved: approved,
		Admin:    admin,
	})
	switch {
	case err == nil:
	case apperr.Is(err, apperr.Conflict):
		return apperr.ErrAlreadyMember
	case apperr.Is(err, apperr.NotFound):
		return apperr.Wrap(apperr.NotFound, err, "group or user not found")
	default:
		return err
	}

	s.logger.Info("Member added",
		"group_id", groupID,
		"user_id", userID,
		"approved", approved,
		"admin", admin,
	)
	return nil
}

// RequestToJoin records a pending, non-admin membership for userID.
func (s *Service) RequestToJoin(ctx context.Context, groupID, userID string) error {
	return s.AddMember(ctx, groupID, userID, false, false)
}

// RemoveMember removes userID from the group and reports whether that emptied
// and deleted the group.
//
// The sole admin of a group with other approved members cannot leave. When no
// approved member remains the group is deleted, taking pending requests, posts
// and comments with it.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID string) (bool, error) {
	var (
		groupDeleted bool
		refs         []string
	)

	err := s.store.UpdateMemberships(ctx, groupID, func(tx storage.MembershipTx) error {
		target, err := tx.Membership(ctx, userID)
		if err != nil {
			return err
		}

		if target.Approved && target.Admin {
			admins, err := tx.CountAdmins(ctx)
			if err != nil {
				return err
			}
			members, err := tx.CountMembers(ctx)
			if err != nil {
				return err
			}
			if admins == 1 && members > 1 {
				metrics.MembershipRejections.WithLabelValues(reasonSoleAdmin).Inc()
				return apperr.ErrSoleAdminCannotLeave
			}
		}

		deleted, err := tx.DeleteMembership(ctx, userID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.ErrNotAMember
		}

		remaining, err := tx.CountMembers(ctx)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		refs, err = tx.DeleteGroup(ctx)
		if err != nil {
			return err
		}
		groupDeleted = true
		return nil
	})
	if err != nil {
		return false, s.membershipError("RemoveMember", groupID, userID, err)
	}

	s.logger.Info("Member removed", "group_id", groupID, "user_id", userID, "group_deleted", groupDeleted)
	if groupDeleted {
		s.release(refs)
	}
	return groupDeleted, nil
}

// ApproveMember approves a pending request. It fails with ErrNoPendingRequest
// when the pair has no pending row.
func (s *Service) ApproveMember(ctx context.Context, groupID, userID string) error {
	err := s.store.UpdateMemberships(ctx, groupID, func(tx storage.MembershipTx) error {
		approved, err := tx.Approve(ctx, userID)
		if err != nil {
			return err
		}
		if !approved {
			return apperr.ErrNoPendingRequest
		}
		return nil
	})
	if err != nil {
		return s.membershipError("ApproveMember", groupID, userID, err)
	}

	s.logger.Info("Member approved", "group_id", groupID, "user_id", userID)
	return nil
}

// SetAdmin sets userID's admin flag. Setting it also approves a pending row.
// Demoting the group's only admin fails with ErrLastAdminRequired.
func (s *Service) SetAdmin(ctx context.Context, groupID, userID string, admin bool) error {
	err := s.store.UpdateMemberships(ctx, groupID, func(tx storage.MembershipTx) error {
		target, err := tx.Membership(ctx, userID)
		if err != nil {
			return err
		}

		if !admin && target.Approved && target.Admin {
			admins, err := tx.CountAdmins(ctx)
			if err != nil {
				return err
			}
			if admins <= 1 {
				metrics.MembershipRejections.WithLabelValues(reasonLastAdmin).Inc()
				return apperr.ErrLastAdminRequired
			}
		}

		updated, err := tx.SetAdmin(ctx, userID, admin)
		if err != nil {
			return err
		}
		if !updated {
			return apperr.ErrNotAMember
		}
		return nil
	})
	if err != nil {
		return s.membershipError("SetAdmin", groupID, userID, err)
	}

	s.logger.Info("Admin status set", "group_id", groupID, "user_id", userID, "admin", admin)
	return nil
}

// Members lists approved members, admins included.
func (s *Service) Members(ctx context.Context, groupID string) ([]*models.Member, error) {
	return s.store.ListMembers(ctx, groupID, models.ApprovedMembers)
}

// Admins lists approved admins.
func (s *Service) Admins(ctx context.Context, groupID string) ([]*models.Member, error) {
	return s.store.ListMembers(ctx, groupID, models.ApprovedAdmins)
}

// PendingRequests lists users waiting for approval.
func (s *Service) PendingRequests(ctx context.Context, groupID string) ([]*models.Member, error) {
	return s.store.ListMembers(ctx, groupID, models.PendingRequests)
}

// IsMember reports whether userID is an approved member of the group.
func (s *Service) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	m, err := s.Membership(ctx, groupID, userID)
	if err != nil || m == nil {
		return false, err
	}
	return m.Approved, nil
}

// IsAdmin reports whether userID is an approved admin of the group.
func (s *Service) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	m, err := s.Membership(ctx, groupID, userID)
	if err != nil || m == nil {
		return false, err
	}
	return m.Approved && m.Admin, nil
}

// Membership returns userID's row in the group, or nil without error when the
// pair has no row.
func (s *Service) Membership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	m, err := s.store.GetMembership(ctx, groupID, userID)
	if errors.Is(err, apperr.ErrNotAMember) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// membershipError logs invariant rejections and normalizes missing-row errors.
func (s *Service) membershipError(op, groupID, userID string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.InvariantViolation:
		s.logger.Warn(op+" rejected", "group_id", groupID, "user_id", userID, "reason", err)
		return err
	case apperr.NotFound:
		if errors.Is(err, apperr.ErrNotAMember) {
			return apperr.ErrNotAMember
		}
		if errors.Is(err, apperr.ErrNoPendingRequest) {
			return apperr.ErrNoPendingRequest
		}
		return err
	case apperr.Unavailable:
		return fmt.Errorf("%s: %w", op, err)
	default:
		s.logger.Error(op+" failed", "group_id", groupID, "user_id", userID, "error", err)
		return err
	}
}

func (s *Service) release(refs []string) {
	if s.releaser != nil && len(refs) > 0 {
		s.releaser.Release(refs)
	}
}
