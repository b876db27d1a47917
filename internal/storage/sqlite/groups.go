package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/internal/storage"
)

const groupColumns = `g.id, g.name, g.description, g.created_at, g.updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanGroup(row rowScanner) (*models.Group, error) {
	group := &models.Group{}
	if err := row.Scan(&group.ID, &group.Name, &group.Description, &group.CreatedAt, &group.UpdatedAt); err != nil {
		return nil, err
	}
	return group, nil
}

// CreateGroup inserts a group and its creator's approved admin membership.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group, creatorID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	group.CreatedAt = now
	group.UpdatedAt = now

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO groups (id, name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, group.ID, group.Name, group.Description, group.CreatedAt, group.UpdatedAt)
		if err != nil {
			return classify(err, "failed to insert group")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_members (group_id, user_id, approved, admin, created_at)
			VALUES (?, ?, 1, 1, ?)
		`, group.ID, creatorID, now)
		if err != nil {
			return classify(err, "failed to insert creator membership")
		}
		return nil
	})
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return getGroup(ctx, s.db, "id", groupID)
}

// GetGroupByName retrieves a group by its unique name.
func (s *SQLiteStore) GetGroupByName(ctx context.Context, name string) (*models.Group, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return getGroup(ctx, s.db, "name", name)
}

func getGroup(ctx context.Context, q querier, column, value string) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.` + column + ` = ?`
	group, err := scanGroup(q.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get group by %s: %w", column, apperr.ErrGroupNotFound)
	}
	if err != nil {
		return nil, classify(err, "failed to get group")
	}
	return group, nil
}

// ListGroupsByUser returns all groups the user has a membership row in.
func (s *SQLiteStore) ListGroupsByUser(ctx context.Context, userID string) ([]*models.UserGroup, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+groupColumns+`, m.approved, m.admin
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?
		ORDER BY g.name
	`, userID)
	if err != nil {
		return nil, classify(err, "failed to list groups")
	}
	defer rows.Close()

	var groups []*models.UserGroup
	for rows.Next() {
		group := &models.Group{}
		var approved, admin int
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatedAt, &group.UpdatedAt, &approved, &admin); err != nil {
			return nil, classify(err, "failed to scan group")
		}
		groups = append(groups, &models.UserGroup{Group: group, Approved: approved != 0, Admin: admin != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating groups")
	}
	return groups, nil
}

// SearchGroups matches group names containing query, ignoring case.
func (s *SQLiteStore) SearchGroups(ctx context.Context, query string, limit int) ([]*models.Group, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM groups g
		WHERE lower(g.name) LIKE ? ESCAPE '\'
		ORDER BY g.name
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, classify(err, "failed to search groups")
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, classify(err, "failed to scan group")
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating groups")
	}
	return groups, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// UpdateGroup applies the set fields of update.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, groupID string, update models.GroupUpdate) (*models.Group, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var group *models.Group
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var sets []string
		var args []any
		if update.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *update.Name)
		}
		if update.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, *update.Description)
		}
		if len(sets) > 0 {
			sets = append(sets, "updated_at = ?")
			args = append(args, time.Now().Unix(), groupID)
			res, err := tx.ExecContext(ctx, `UPDATE groups SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
			if err != nil {
				return classify(err, "failed to update group")
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("failed to update group: %w", apperr.ErrGroupNotFound)
			}
		}

		var err error
		group, err = getGroup(ctx, tx, "id", groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteGroup removes a group and everything that cascades from it.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var refs []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		refs, err = deleteGroup(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// deleteGroup collects the attachment refs of the group's post comments and
// deletes the group. Memberships, posts and comments go with it by cascade.
func deleteGroup(ctx context.Context, tx *sql.Tx, groupID string) ([]string, error) {
	refs, err := attachmentRefs(ctx, tx, `
		SELECT m.content FROM messages m
		JOIN posts p ON p.id = m.post_id
		WHERE p.group_id = ? AND m.kind = 'image' AND m.content <> ''
	`, groupID)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, groupID)
	if err != nil {
		return nil, classify(err, "failed to delete group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("failed to delete group: %w", apperr.ErrGroupNotFound)
	}
	return refs, nil
}

func attachmentRefs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "failed to collect attachments")
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, classify(err, "failed to scan attachment")
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating attachments")
	}
	return refs, nil
}

// AddMember inserts a membership row.
func (s *SQLiteStore) AddMember(ctx context.Context, membership *models.Membership) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if membership.CreatedAt == 0 {
		membership.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, approved, admin, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, membership.GroupID, membership.UserID, boolInt(membership.Approved), boolInt(membership.Admin), membership.CreatedAt)
	if err != nil {
		return classify(err, "failed to add member")
	}
	return nil
}

// GetMembership returns the membership row for the pair.
func (s *SQLiteStore) GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return getMembership(ctx, s.db, groupID, userID)
}

func getMembership(ctx context.Context, q querier, groupID, userID string) (*models.Membership, error) {
	m := &models.Membership{GroupID: groupID, UserID: userID}
	var approved, admin int
	err := q.QueryRowContext(ctx, `
		SELECT approved, admin, created_at FROM group_members
		WHERE group_id = ? AND user_id = ?
	`, groupID, userID).Scan(&approved, &admin, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get membership: %w", apperr.ErrNotAMember)
	}
	if err != nil {
		return nil, classify(err, "failed to get membership")
	}
	m.Approved = approved != 0
	m.Admin = admin != 0
	return m, nil
}

// ListMembers returns the users of a group selected by filter, ordered by username.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID string, filter models.MemberFilter) ([]*models.Member, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var where string
	switch filter {
	case models.ApprovedMembers:
		where = "m.approved = 1"
	case models.ApprovedAdmins:
		where = "m.approved = 1 AND m.admin = 1"
	case models.PendingRequests:
		where = "m.approved = 0"
	default:
		return nil, apperr.Newf(apperr.Invalid, "unknown member filter %d", filter)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash,
		       u.profile_pic, u.activated, u.created_at, u.updated_at, m.approved, m.admin
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ? AND `+where+`
		ORDER BY u.username
	`, groupID)
	if err != nil {
		return nil, classify(err, "failed to list members")
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		user := &models.User{}
		var activated, approved, admin int
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName,
			&user.PasswordHash, &user.ProfilePic, &activated, &user.CreatedAt, &user.UpdatedAt,
			&approved, &admin); err != nil {
			return nil, classify(err, "failed to scan member")
		}
		user.Activated = activated != 0
		members = append(members, &models.Member{User: user, Approved: approved != 0, Admin: admin != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating members")
	}
	return members, nil
}

// UpdateMemberships runs fn in an IMMEDIATE transaction. The write lock is
// taken at BEGIN, so the reads fn makes cannot go stale before its writes.
func (s *SQLiteStore) UpdateMemberships(ctx context.Context, groupID string, fn func(tx storage.MembershipTx) error) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&membershipTx{tx: tx, groupID: groupID})
	})
}

type membershipTx struct {
	tx      *sql.Tx
	groupID string
}

var _ storage.MembershipTx = (*membershipTx)(nil)

func (m *membershipTx) GroupID() string { return m.groupID }

func (m *membershipTx) Membership(ctx context.Context, userID string) (*models.Membership, error) {
	return getMembership(ctx, m.tx, m.groupID, userID)
}

func (m *membershipTx) CountAdmins(ctx context.Context) (int, error) {
	return m.count(ctx, "approved = 1 AND admin = 1")
}

func (m *membershipTx) CountMembers(ctx context.Context) (int, error) {
	return m.count(ctx, "approved = 1")
}

func (m *membershipTx) count(ctx context.Context, where string) (int, error) {
	var n int
	err := m.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = ? AND `+where, m.groupID).Scan(&n)
	if err != nil {
		return 0, classify(err, "failed to count members")
	}
	return n, nil
}

func (m *membershipTx) DeleteMembership(ctx context.Context, userID string) (bool, error) {
	return m.exec(ctx, "failed to delete membership",
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, m.groupID, userID)
}

func (m *membershipTx) Approve(ctx context.Context, userID string) (bool, error) {
	return m.exec(ctx, "failed to approve member",
		`UPDATE group_members SET approved = 1 WHERE group_id = ? AND user_id = ? AND approved = 0`, m.groupID, userID)
}

func (m *membershipTx) SetAdmin(ctx context.Context, userID string, admin bool) (bool, error) {
	return m.exec(ctx, "failed to set admin",
		`UPDATE group_members SET admin = ?, approved = 1 WHERE group_id = ? AND user_id = ?`, boolInt(admin), m.groupID, userID)
}

func (m *membershipTx) DeleteGroup(ctx context.Context) ([]string, error) {
	return deleteGroup(ctx, m.tx, m.groupID)
}

func (m *membershipTx) exec(ctx context.Context, msg, query string, args ...any) (bool, error) {
	res, err := m.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, classify(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, msg)
	}
	return n > 0, nil
}
