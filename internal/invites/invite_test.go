package invites

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedulehq/schedulehq/internal/models"
	"github.com/schedulehq/schedulehq/internal/notifications"
)

var errNotFound = errors.New("not found")

type mockStore struct {
	users       map[uuid.UUID]*models.User
	usersByMail map[string]*models.User
	orgs        map[uuid.UUID]*models.Organization
	memberships map[string]*models.Membership
	invitations map[uuid.UUID]*models.Invitation

	redeemErr error
	createErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:       make(map[uuid.UUID]*models.User),
		usersByMail: make(map[string]*models.User),
		orgs:        make(map[uuid.UUID]*models.Organization),
		memberships: make(map[string]*models.Membership),
		invitations: make(map[uuid.UUID]*models.Invitation),
	}
}

func (m *mockStore) addUser(email, name string) *models.User {
	u := models.NewUser("sub-"+email, email, name)
	m.users[u.ID] = u
	m.usersByMail[email] = u
	return u
}

func (m *mockStore) addOrg(name string, ownerID uuid.UUID) *models.Organization {
	o := models.NewOrganization(name, name, ownerID)
	m.orgs[o.ID] = o
	return o
}

func (m *mockStore) addMembership(userID, orgID uuid.UUID, role models.MembershipRole) {
	mem := models.NewMembership(userID, orgID, role)
	m.memberships[userID.String()+"|"+orgID.String()] = mem
}

func (m *mockStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.invitations[inv.ID] = inv
	return nil
}

func (m *mockStore) GetInvitationByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	inv, ok := m.invitations[id]
	if !ok {
		return nil, errNotFound
	}
	return inv, nil
}

func (m *mockStore) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	for _, inv := range m.invitations {
		if inv.Token == token {
			return inv, nil
		}
	}
	return nil, errNotFound
}

func (m *mockStore) GetPendingInvitationsByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.InvitationWithDetails, error) {
	var out []*models.InvitationWithDetails
	for _, inv := range m.invitations {
		if inv.OrgID == orgID && inv.IsPending() {
			out = append(out, &models.InvitationWithDetails{ID: inv.ID, OrgID: inv.OrgID, Email: inv.Email})
		}
	}
	return out, nil
}

func (m *mockStore) GetPendingInvitationsByEmail(ctx context.Context, email string) ([]*models.InvitationWithDetails, error) {
	var out []*models.InvitationWithDetails
	for _, inv := range m.invitations {
		if inv.Email == email && inv.IsPending() {
			out = append(out, &models.InvitationWithDetails{ID: inv.ID, OrgID: inv.OrgID, Email: inv.Email})
		}
	}
	return out, nil
}

func (m *mockStore) DeleteInvitation(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.invitations[id]; !ok {
		return errNotFound
	}
	delete(m.invitations, id)
	return nil
}

func (m *mockStore) RedeemInvitation(ctx context.Context, token string, userID uuid.UUID) (*models.Organization, error) {
	if m.redeemErr != nil {
		return nil, m.redeemErr
	}
	for _, inv := range m.invitations {
		if inv.Token == token {
			if !inv.IsPending() {
				return nil, models.ErrInvalidInvitation
			}
			if _, ok := m.memberships[userID.String()+"|"+inv.OrgID.String()]; ok {
				return nil, models.ErrAlreadyMember
			}
			inv.Used = true
			m.addMembership(userID, inv.OrgID, models.MembershipRoleMember)
			return m.orgs[inv.OrgID], nil
		}
	}
	return nil, models.ErrInvalidInvitation
}

func (m *mockStore) GetMembershipByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	mem, ok := m.memberships[userID.String()+"|"+orgID.String()]
	if !ok {
		return nil, errNotFound
	}
	return mem, nil
}

func (m *mockStore) GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, errNotFound
	}
	return org, nil
}

func (m *mockStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errNotFound
	}
	return u, nil
}

func (m *mockStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := m.usersByMail[email]
	if !ok {
		return nil, errNotFound
	}
	return u, nil
}

type mockMailer struct {
	sent    []notifications.InvitationData
	sendErr error
}

func (m *mockMailer) SendInvitation(to []string, data notifications.InvitationData) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, data)
	return nil
}

func newTestService(store *mockStore, mailer Mailer) *Service {
	return NewService(store, mailer, "https://app.example.com/", zerolog.Nop())
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestCreateInvitation(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	store.addMembership(owner.ID, org.ID, models.MembershipRoleOwner)
	mailer := &mockMailer{}
	svc := newTestService(store, mailer)

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email:     "New.Person@Example.com ",
		OrgID:     org.ID,
		InvitedBy: owner.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "new.person@example.com", inv.Email)
	assert.False(t, inv.Used)
	assert.WithinDuration(t, time.Now().Add(DefaultExpiryDuration), inv.ExpiresAt, time.Minute)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Acme", mailer.sent[0].OrgName)
	assert.Contains(t, mailer.sent[0].InviteLink, "https://app.example.com/invite/")
}

func TestCreateInvitationExistingMember(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	member := store.addUser("member@example.com", "Member")
	store.addMembership(member.ID, org.ID, models.MembershipRoleMember)
	svc := newTestService(store, &mockMailer{})

	_, err := svc.Create(context.Background(), InviteRequest{
		Email:     "member@example.com",
		OrgID:     org.ID,
		InvitedBy: owner.ID,
	})
	assert.ErrorIs(t, err, models.ErrAlreadyMember)
}

func TestCreateInvitationDuplicatePending(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	svc := newTestService(store, &mockMailer{})

	req := InviteRequest{Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	assert.Error(t, err)
}

func TestCreateInvitationEmailFailureIsNonFatal(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	svc := newTestService(store, &mockMailer{sendErr: errors.New("smtp down")})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email:     "new@example.com",
		OrgID:     org.ID,
		InvitedBy: owner.ID,
	})
	require.NoError(t, err)
	assert.NotNil(t, store.invitations[inv.ID])
}

func TestResend(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	mailer := &mockMailer{}
	svc := newTestService(store, mailer)

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)
	tokenBefore := inv.Token

	require.NoError(t, svc.Resend(context.Background(), inv.ID))
	assert.Len(t, mailer.sent, 2)
	assert.Equal(t, tokenBefore, store.invitations[inv.ID].Token)
}

func TestResendUsedInvitation(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)
	inv.Used = true

	err = svc.Resend(context.Background(), inv.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInvitation)
}

func TestResendExpiredInvitation(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)
	inv.ExpiresAt = time.Now().Add(-time.Hour)

	err = svc.Resend(context.Background(), inv.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInvitation)
}

func TestRevoke(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), inv.ID, owner.ID))
	assert.NotContains(t, store.invitations, inv.ID)
}

func TestRevokeUsedInvitation(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)
	inv.Used = true

	err = svc.Revoke(context.Background(), inv.ID, owner.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInvitation)
	assert.Contains(t, store.invitations, inv.ID)
}

func TestAccept(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	invitee := store.addUser("new@example.com", "New Person")
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)

	got, err := svc.Accept(context.Background(), inv.Token, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	mem, err := store.GetMembershipByUserAndOrg(context.Background(), invitee.ID, org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRoleMember, mem.Role)
}

func TestAcceptTwiceFails(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	invitee := store.addUser("new@example.com", "New Person")
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), inv.Token, invitee.ID)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), inv.Token, invitee.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInvitation)
}

func TestAcceptWrongEmail(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	other := store.addUser("other@example.com", "Other")
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), inv.Token, other.ID)
	assert.ErrorIs(t, err, models.ErrInvitationEmailMismatch)

	// The token was never consumed, so the right user can still accept it.
	invited := store.addUser("new@example.com", "New Person")
	_, err = svc.Accept(context.Background(), inv.Token, invited.ID)
	assert.NoError(t, err)
}

func TestAcceptUnknownToken(t *testing.T) {
	store := newMockStore()
	user := store.addUser("new@example.com", "New Person")
	svc := newTestService(store, &mockMailer{})

	_, err := svc.Accept(context.Background(), "deadbeef", user.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInvitation)
}

func TestDetails(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner Name")
	org := store.addOrg("Acme", owner.ID)
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)

	details, err := svc.Details(context.Background(), inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "Acme", details.OrgName)
	assert.Equal(t, "Owner Name", details.InviterName)
	assert.Equal(t, "new@example.com", details.Email)
}

func TestDetailsExpiredToken(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("owner@example.com", "Owner")
	org := store.addOrg("Acme", owner.ID)
	svc := newTestService(store, &mockMailer{})

	inv, err := svc.Create(context.Background(), InviteRequest{
		Email: "new@example.com", OrgID: org.ID, InvitedBy: owner.ID,
	})
	require.NoError(t, err)
	inv.ExpiresAt = time.Now().Add(-time.Minute)

	_, err = svc.Details(context.Background(), inv.Token)
	assert.ErrorIs(t, err, models.ErrInvalidInvitation)
}

func TestInviteLink(t *testing.T) {
	svc := newTestService(newMockStore(), nil)
	assert.Equal(t, "https://app.example.com/invite/tok123", svc.InviteLink("tok123"))
}
