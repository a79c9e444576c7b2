package points

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unicampus/campus-backend/internal/clubs"
	"github.com/unicampus/campus-backend/pkg/db/dbtest"
	"github.com/unicampus/campus-backend/pkg/db/models"
	"github.com/unicampus/campus-backend/pkg/enums"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/outbox"
	"github.com/unicampus/campus-backend/pkg/pagination"
)

type allowClub struct {
	clubID uuid.UUID
}

func (a allowClub) CanManage(ctx context.Context, actor clubs.Actor, clubID uuid.UUID) (bool, error) {
	return actor.Role == enums.UserRoleClubAdmin && clubID == a.clubID, nil
}

func setup(t *testing.T, managedClub uuid.UUID) (*gorm.DB, Service, uuid.UUID) {
	t.Helper()
	conn := dbtest.Open(t, dbtest.Users, dbtest.Engagement, dbtest.ActivityPointsHistory, dbtest.OutboxEvents)
	svc, err := NewService(ServiceParams{
		Ledger: NewLedger(conn),
		Tx:     dbtest.Client(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		Clubs:  allowClub{clubID: managedClub},
	})
	require.NoError(t, err)

	student := models.User{ID: uuid.New(), Email: "nur@campus.edu", PasswordHash: "x", FullName: "Nur", Role: enums.UserRoleStudent, IsActive: true}
	require.NoError(t, conn.Create(&student).Error)
	return conn, svc, student.ID
}

func TestRecordEngagementCreditsBalance(t *testing.T) {
	club := uuid.New()
	conn, svc, student := setup(t, club)
	ctx := context.Background()
	lead := clubs.Actor{UserID: uuid.New(), Role: enums.UserRoleClubAdmin}

	first, err := svc.RecordEngagement(ctx, lead, EngagementInput{UserID: student, ClubID: &club, Activity: "Beach cleanup", Points: 30})
	require.NoError(t, err)
	assert.Equal(t, 30, first.BalanceAfter)

	admin := clubs.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	second, err := svc.RecordEngagement(ctx, admin, EngagementInput{UserID: student, Activity: "Orientation volunteer", Points: 15})
	require.NoError(t, err)
	assert.Equal(t, 45, second.BalanceAfter)

	balance, err := svc.Balance(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 45, balance.Balance)

	page, err := svc.History(ctx, student, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.NotEmpty(t, page.NextCursor)

	rest, err := svc.History(ctx, student, pagination.Params{Limit: 10, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Entries, 1)
	assert.NotEqual(t, page.Entries[0].ID, rest.Entries[0].ID)

	var events int64
	require.NoError(t, conn.Table("outbox_events").Where("event_type = ?", enums.EventPointsAwarded).Count(&events).Error)
	assert.EqualValues(t, 2, events)
}

func TestRecordEngagementAuthorization(t *testing.T) {
	club := uuid.New()
	conn, svc, student := setup(t, club)
	ctx := context.Background()
	otherClub := uuid.New()
	lead := clubs.Actor{UserID: uuid.New(), Role: enums.UserRoleClubAdmin}

	_, err := svc.RecordEngagement(ctx, lead, EngagementInput{UserID: student, ClubID: &otherClub, Activity: "Talk", Points: 5})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = svc.RecordEngagement(ctx, lead, EngagementInput{UserID: student, Activity: "Talk", Points: 5})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = svc.RecordEngagement(ctx, lead, EngagementInput{UserID: student, ClubID: &club, Activity: "Talk", Points: 0})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	var rows int64
	require.NoError(t, conn.Table("engagement").Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestRecordEngagementUnknownUserRollsBack(t *testing.T) {
	conn, svc, _ := setup(t, uuid.New())
	admin := clubs.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.RecordEngagement(context.Background(), admin, EngagementInput{UserID: uuid.New(), Activity: "Ghost", Points: 10})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	var rows int64
	require.NoError(t, conn.Table("engagement").Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestLedgerDebitRequiresFunds(t *testing.T) {
	conn, _, student := setup(t, uuid.New())
	ctx := context.Background()
	ledger := NewLedger(conn)

	_, err := ledger.Credit(ctx, student, 20)
	require.NoError(t, err)

	ok, _, err := ledger.Debit(ctx, student, 25)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, balance, err := ledger.Debit(ctx, student, 20)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, balance)
}
