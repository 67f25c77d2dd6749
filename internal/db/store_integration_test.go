//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schedulehq/schedulehq/internal/models"
	"github.com/schedulehq/schedulehq/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *DB

func TestMain(m *testing.M) {
	if !dockerAvailable() {
		fmt.Println("Docker is not available, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("schedulehq_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter())
	cfg := DefaultConfig(connStr)
	cfg.MaxConns = 5
	cfg.MinConns = 1

	testDB, err = New(ctx, cfg, logger)
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := testDB.Migrate(ctx); err != nil {
		testDB.Close()
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to run migrations: %v", err)
	}

	code := m.Run()

	testDB.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

// dockerAvailable returns true if a Docker daemon is reachable.
func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB returns the shared test database after cleaning all tables.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	for _, table := range []string{"user_availability", "invitations", "organization_members", "organizations", "users"} {
		_, err := testDB.Pool.Exec(context.Background(), "DELETE FROM "+table)
		require.NoError(t, err)
	}
	return testDB
}

func createTestUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	user := models.NewUser("sub-"+uuid.NewString(), email, "Test User")
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func createTestOrg(t *testing.T, db *DB, owner *models.User) *models.Organization {
	t.Helper()
	org := models.NewOrganization("Acme Agency", "acme-"+uuid.NewString()[:8], owner.ID)
	require.NoError(t, db.CreateOrganization(context.Background(), org))
	return org
}

func TestUserRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "alice@example.com")

	byID, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	bySubject, err := db.GetUserByOIDCSubject(ctx, user.OIDCSubject)
	require.NoError(t, err)
	assert.Equal(t, user.ID, bySubject.ID)

	require.NoError(t, db.UpdateUserProfile(ctx, user.ID, "Alice"))
	updated, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.Name)

	_, err = db.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrganizationCreatesOwnerMembership(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com")
	org := createTestOrg(t, db, owner)

	m, err := db.GetMembershipByUserAndOrg(ctx, owner.ID, org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRoleOwner, m.Role)

	count, err := db.CountOrganizationsOwnedBy(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateMembershipDuplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com")
	member := createTestUser(t, db, "member@example.com")
	org := createTestOrg(t, db, owner)

	require.NoError(t, db.CreateMembership(ctx, models.NewMembership(member.ID, org.ID, models.MembershipRoleMember)))
	err := db.CreateMembership(ctx, models.NewMembership(member.ID, org.ID, models.MembershipRoleMember))
	assert.ErrorIs(t, err, models.ErrAlreadyMember)
}

func TestOwnsOrganizationWithMember(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com")
	member := createTestUser(t, db, "member@example.com")
	outsider := createTestUser(t, db, "outsider@example.com")
	org := createTestOrg(t, db, owner)

	require.NoError(t, db.CreateMembership(ctx, models.NewMembership(member.ID, org.ID, models.MembershipRoleMember)))

	ok, err := db.OwnsOrganizationWithMember(ctx, owner.ID, member.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.OwnsOrganizationWithMember(ctx, member.ID, owner.ID)
	require.NoError(t, err)
	assert.False(t, ok, "member does not own an org containing the owner")

	ok, err = db.OwnsOrganizationWithMember(ctx, owner.ID, outsider.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedeemInvitation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com")
	invitee := createTestUser(t, db, "invitee@example.com")
	org := createTestOrg(t, db, owner)

	inv := models.NewInvitation(org.ID, invitee.Email, "tok-"+uuid.NewString(), owner.ID, time.Now().Add(time.Hour))
	require.NoError(t, db.CreateInvitation(ctx, inv))

	redeemed, err := db.RedeemInvitation(ctx, inv.Token, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, redeemed.ID)

	m, err := db.GetMembershipByUserAndOrg(ctx, invitee.ID, org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRoleMember, m.Role)

	stored, err := db.GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Used)

	// Second redemption must fail.
	_, err = db.RedeemInvitation(ctx, inv.Token, invitee.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInvitation)
}

func TestRedeemInvitationExpired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com")
	invitee := createTestUser(t, db, "invitee@example.com")
	org := createTestOrg(t, db, owner)

	inv := models.NewInvitation(org.ID, invitee.Email, "tok-"+uuid.NewString(), owner.ID, time.Now().Add(-time.Minute))
	require.NoError(t, db.CreateInvitation(ctx, inv))

	_, err := db.RedeemInvitation(ctx, inv.Token, invitee.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInvitation)

	// Expiry is derived state only, never written back.
	stored, err := db.GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.False(t, stored.Used)
}

func TestRedeemInvitationConcurrent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com")
	invitee := createTestUser(t, db, "invitee@example.com")
	org := createTestOrg(t, db, owner)

	inv := models.NewInvitation(org.ID, invitee.Email, "tok-"+uuid.NewString(), owner.ID, time.Now().Add(time.Hour))
	require.NoError(t, db.CreateInvitation(ctx, inv))

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = db.RedeemInvitation(ctx, inv.Token, invitee.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidInvitation)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one redemption must win")

	// Exactly one membership row was ever created for the token.
	var count int
	require.NoError(t, db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM organization_members WHERE user_id = $1 AND org_id = $2",
		invitee.ID, org.ID,
	).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPurgeExpiredInvitations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com")
	org := createTestOrg(t, db, owner)

	stale := models.NewInvitation(org.ID, "old@example.com", "tok-"+uuid.NewString(), owner.ID, time.Now().Add(-48*time.Hour))
	fresh := models.NewInvitation(org.ID, "new@example.com", "tok-"+uuid.NewString(), owner.ID, time.Now().Add(time.Hour))
	require.NoError(t, db.CreateInvitation(ctx, stale))
	require.NoError(t, db.CreateInvitation(ctx, fresh))

	purged, err := db.PurgeExpiredInvitations(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = db.GetInvitationByID(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetInvitationByID(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestReplaceAndListAvailability(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "alice@example.com")
	day, err := schedule.ParseDate("2025-03-10")
	require.NoError(t, err)

	require.NoError(t, db.ReplaceAvailability(ctx, user.ID, day, []schedule.SlotStart{14, 9}))

	days, err := db.ListAvailability(ctx, user.ID, day, day)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, []schedule.SlotStart{9, 14}, days["2025-03-10"])

	// Replacing with the complete desired state supersedes prior rows.
	require.NoError(t, db.ReplaceAvailability(ctx, user.ID, day, []schedule.SlotStart{9, 15}))
	days, err = db.ListAvailability(ctx, user.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, []schedule.SlotStart{9, 15}, days["2025-03-10"])

	// Empty set clears the day.
	require.NoError(t, db.ReplaceAvailability(ctx, user.ID, day, nil))
	days, err = db.ListAvailability(ctx, user.ID, day, day)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestReplaceAvailabilityRejectsOutOfCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "alice@example.com")
	day, err := schedule.ParseDate("2025-03-10")
	require.NoError(t, err)

	require.NoError(t, db.ReplaceAvailability(ctx, user.ID, day, []schedule.SlotStart{9}))
	err = db.ReplaceAvailability(ctx, user.ID, day, []schedule.SlotStart{10, 23})
	assert.ErrorIs(t, err, schedule.ErrSlotNotInCatalog)

	// The failed replace wrote nothing; the prior day is intact.
	days, err := db.ListAvailability(ctx, user.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, []schedule.SlotStart{9}, days["2025-03-10"])
}

func TestListAvailabilityRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "alice@example.com")
	other := createTestUser(t, db, "bob@example.com")

	d1, _ := schedule.ParseDate("2025-03-10")
	d2, _ := schedule.ParseDate("2025-03-12")
	outside, _ := schedule.ParseDate("2025-04-01")

	require.NoError(t, db.ReplaceAvailability(ctx, user.ID, d1, []schedule.SlotStart{9}))
	require.NoError(t, db.ReplaceAvailability(ctx, user.ID, d2, []schedule.SlotStart{14}))
	require.NoError(t, db.ReplaceAvailability(ctx, user.ID, outside, []schedule.SlotStart{6}))
	require.NoError(t, db.ReplaceAvailability(ctx, other.ID, d1, []schedule.SlotStart{20}))

	from, _ := schedule.ParseDate("2025-03-01")
	to, _ := schedule.ParseDate("2025-03-31")
	days, err := db.ListAvailability(ctx, user.ID, from, to)
	require.NoError(t, err)

	require.Len(t, days, 2)
	assert.Equal(t, []schedule.SlotStart{9}, days["2025-03-10"])
	assert.Equal(t, []schedule.SlotStart{14}, days["2025-03-12"])
}
