package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/schedulehq/schedulehq/internal/models"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// User methods

// CreateUser creates a new user.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO users (id, oidc_subject, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.OIDCSubject, user.Email, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByOIDCSubject returns a user by their OIDC subject.
func (db *DB) GetUserByOIDCSubject(ctx context.Context, subject string) (*models.User, error) {
	return db.getUser(ctx, "oidc_subject = $1", subject)
}

// GetUserByID returns a user by their ID.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return db.getUser(ctx, "id = $1", id)
}

// GetUserByEmail returns a user by their email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, "email = $1", email)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	err := db.Pool.QueryRow(ctx, `
		SELECT id, oidc_subject, email, name, created_at, updated_at
		FROM users
		WHERE `+where,
		arg,
	).Scan(&user.ID, &user.OIDCSubject, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateUserProfile updates the user's display name.
func (db *DB) UpdateUserProfile(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users SET name = $2, updated_at = $3 WHERE id = $1
	`, id, name, time.Now())
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Organization methods

// CreateOrganization creates an organization and the creator's owner
// membership in one transaction, so an organization never exists without
// exactly one owner.
func (db *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	return db.ExecTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO organizations (id, name, slug, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, org.ID, org.Name, org.Slug, org.OwnerID, org.CreatedAt, org.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create organization: %w", err)
		}

		m := models.NewMembership(org.OwnerID, org.ID, models.MembershipRoleOwner)
		_, err = tx.Exec(ctx, `
			INSERT INTO organization_members (id, user_id, org_id, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, m.UserID, m.OrgID, string(m.Role), m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
}

// GetOrganizationByID returns an organization by its ID.
func (db *DB) GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, slug, owner_id, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// GetUserOrganizations returns all organizations the user is a member of,
// ordered by name.
func (db *DB) GetUserOrganizations(ctx context.Context, userID uuid.UUID) ([]*models.Organization, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT o.id, o.name, o.slug, o.owner_id, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.org_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, &org)
	}
	return orgs, rows.Err()
}

// CountOrganizationsOwnedBy returns how many organizations the user created.
func (db *DB) CountOrganizationsOwnedBy(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM organizations WHERE owner_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count owned organizations: %w", err)
	}
	return count, nil
}

// Membership methods

// CreateMembership creates a new membership row. A duplicate (user, org)
// pair returns models.ErrAlreadyMember.
func (db *DB) CreateMembership(ctx context.Context, m *models.Membership) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO organization_members (id, user_id, org_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.UserID, m.OrgID, string(m.Role), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyMember
		}
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// GetMembershipByUserAndOrg returns the membership row for a (user, org) pair.
func (db *DB) GetMembershipByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	var role string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, org_id, role, created_at, updated_at
		FROM organization_members
		WHERE user_id = $1 AND org_id = $2
	`, userID, orgID).Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	m.Role = models.MembershipRole(role)
	return &m, nil
}

// GetMembershipsByUserID returns all memberships for a user.
func (db *DB) GetMembershipsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, org_id, role, created_at, updated_at
		FROM organization_members
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		var m models.Membership
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.Role = models.MembershipRole(role)
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

// GetMembershipsByOrgID returns all memberships for an organization with
// user details, ordered by name then email.
func (db *DB) GetMembershipsByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.MembershipWithUser, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT m.id, m.user_id, m.org_id, m.role, u.email, u.name, m.created_at
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1
		ORDER BY u.name, u.email
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list organization members: %w", err)
	}
	defer rows.Close()

	var members []*models.MembershipWithUser
	for rows.Next() {
		var m models.MembershipWithUser
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.Email, &m.Name, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan organization member: %w", err)
		}
		m.Role = models.MembershipRole(role)
		members = append(members, &m)
	}
	return members, rows.Err()
}

// OwnsOrganizationWithMember reports whether ownerID created an organization
// that memberID holds a membership in.
func (db *DB) OwnsOrganizationWithMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM organizations o
			JOIN organization_members m ON m.org_id = o.id
			WHERE o.owner_id = $1 AND m.user_id = $2
		)
	`, ownerID, memberID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check organization link: %w", err)
	}
	return exists, nil
}
