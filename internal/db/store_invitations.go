package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/schedulehq/schedulehq/internal/models"
)

// CreateInvitation creates a new invitation.
func (db *DB) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO invitations (id, org_id, email, token, invited_by, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, inv.ID, inv.OrgID, inv.Email, inv.Token, inv.InvitedBy, inv.ExpiresAt, inv.Used, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// GetInvitationByID returns an invitation by its ID.
func (db *DB) GetInvitationByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	return db.getInvitation(ctx, "id = $1", id)
}

// GetInvitationByToken returns an invitation by its token.
func (db *DB) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	return db.getInvitation(ctx, "token = $1", token)
}

func (db *DB) getInvitation(ctx context.Context, where string, arg any) (*models.Invitation, error) {
	var inv models.Invitation
	err := db.Pool.QueryRow(ctx, `
		SELECT id, org_id, email, token, invited_by, expires_at, used, created_at
		FROM invitations
		WHERE `+where,
		arg,
	).Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Token, &inv.InvitedBy, &inv.ExpiresAt, &inv.Used, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return &inv, nil
}

// GetPendingInvitationsByOrgID returns all unused, unexpired invitations for
// an organization with inviter details, newest first.
func (db *DB) GetPendingInvitationsByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.InvitationWithDetails, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT i.id, i.org_id, o.name, i.email, i.invited_by, u.name, i.expires_at, i.used, i.created_at
		FROM invitations i
		JOIN organizations o ON o.id = i.org_id
		JOIN users u ON u.id = i.invited_by
		WHERE i.org_id = $1 AND i.used = FALSE AND i.expires_at > NOW()
		ORDER BY i.created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close()
	return scanInvitationDetails(rows)
}

// GetPendingInvitationsByEmail returns all unused, unexpired invitations
// addressed to the given email.
func (db *DB) GetPendingInvitationsByEmail(ctx context.Context, email string) ([]*models.InvitationWithDetails, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT i.id, i.org_id, o.name, i.email, i.invited_by, u.name, i.expires_at, i.used, i.created_at
		FROM invitations i
		JOIN organizations o ON o.id = i.org_id
		JOIN users u ON u.id = i.invited_by
		WHERE i.email = $1 AND i.used = FALSE AND i.expires_at > NOW()
		ORDER BY i.created_at DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations by email: %w", err)
	}
	defer rows.Close()
	return scanInvitationDetails(rows)
}

func scanInvitationDetails(rows pgx.Rows) ([]*models.InvitationWithDetails, error) {
	var invitations []*models.InvitationWithDetails
	for rows.Next() {
		var inv models.InvitationWithDetails
		if err := rows.Scan(
			&inv.ID, &inv.OrgID, &inv.OrgName, &inv.Email,
			&inv.InvitedBy, &inv.InviterName, &inv.ExpiresAt, &inv.Used, &inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, &inv)
	}
	return invitations, rows.Err()
}

// DeleteInvitation deletes an invitation (revocation).
func (db *DB) DeleteInvitation(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RedeemInvitation atomically consumes an invitation token and creates the
// member's membership row. The two writes happen in one transaction so a
// token can never be marked used without the membership existing, or the
// other way around.
//
// The UPDATE's predicate (used = FALSE AND expires_at > NOW()) makes the
// row transition to used at most once: when two redemptions race, the row
// lock serializes them and the loser sees zero rows and gets
// models.ErrInvalidInvitation. Expired tokens never transition; reads simply treat
// them as invalid.
func (db *DB) RedeemInvitation(ctx context.Context, token string, userID uuid.UUID) (*models.Organization, error) {
	var org *models.Organization

	err := db.ExecTx(ctx, func(tx pgx.Tx) error {
		var orgID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE invitations
			SET used = TRUE
			WHERE token = $1 AND used = FALSE AND expires_at > NOW()
			RETURNING org_id
		`, token).Scan(&orgID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrInvalidInvitation
			}
			return fmt.Errorf("consume invitation token: %w", err)
		}

		m := models.NewMembership(userID, orgID, models.MembershipRoleMember)
		_, err = tx.Exec(ctx, `
			INSERT INTO organization_members (id, user_id, org_id, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, m.UserID, m.OrgID, string(m.Role), m.CreatedAt, m.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrAlreadyMember
			}
			return fmt.Errorf("create membership: %w", err)
		}

		var o models.Organization
		err = tx.QueryRow(ctx, `
			SELECT id, name, slug, owner_id, created_at, updated_at
			FROM organizations WHERE id = $1
		`, orgID).Scan(&o.ID, &o.Name, &o.Slug, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("get organization: %w", err)
		}
		org = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// PurgeExpiredInvitations deletes unused invitations that expired before the
// cutoff. Used tokens are kept as an audit trail.
func (db *DB) PurgeExpiredInvitations(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM invitations WHERE used = FALSE AND expires_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("purge expired invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}
