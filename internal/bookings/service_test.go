package bookings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/timecredit-backend/internal/balances"
	"github.com/angelmondragon/timecredit-backend/internal/capacity"
	"github.com/angelmondragon/timecredit-backend/internal/ledger"
	"github.com/angelmondragon/timecredit-backend/internal/skills"
	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/db/dbtest"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/observer"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox"
	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

type fixture struct {
	client    *db.Client
	svc       Service
	repo      Repository
	hub       *observer.Hub[BookingChange]
	requester uuid.UUID
	provider  uuid.UUID
	skillID   uuid.UUID
}

func newFixture(t *testing.T, requesterCredits, providerCredits, slots int) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	f := &fixture{
		client:    client,
		repo:      NewRepository(client.DB()),
		hub:       observer.NewHub[BookingChange](nil),
		requester: uuid.New(),
		provider:  uuid.New(),
	}
	t.Cleanup(f.hub.Close)

	conn := client.DB()
	require.NoError(t, conn.Create(&models.UserBalance{UserID: f.requester, Credits: requesterCredits}).Error)
	require.NoError(t, conn.Create(&models.UserBalance{UserID: f.provider, Credits: providerCredits}).Error)
	skill := &models.Skill{ProviderID: f.provider, Title: "Bread baking", CreditsPerHour: 4, AvailableSlots: slots, IsActive: true}
	require.NoError(t, conn.Create(skill).Error)
	f.skillID = skill.ID

	balanceRepo := balances.NewRepository(conn)
	skillRepo := skills.NewRepository(conn)
	slotManager, err := capacity.NewManager(skillRepo)
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	engine, err := ledger.NewEngine(balanceRepo, ledger.NewRepository(conn), emitter)
	require.NoError(t, err)

	f.svc, err = NewService(ServiceDeps{
		Repo:     f.repo,
		Skills:   skillRepo,
		Balances: balanceRepo,
		Slots:    slotManager,
		Credits:  engine,
		Runner:   db.NewAtomicRunner(client, dbtest.AtomicConfig(5), nil, nil),
		Outbox:   emitter,
		Changes:  f.hub,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) create(t *testing.T, confirmed bool, credits int) *models.Booking {
	t.Helper()
	booking, err := f.svc.Create(context.Background(), CreateBookingInput{
		SkillID:       f.skillID,
		RequesterID:   f.requester,
		ScheduledDate: "2026-11-02",
		ScheduledTime: "18:30",
		Credits:       credits,
		Confirmed:     confirmed,
	})
	require.NoError(t, err)
	return booking
}

func (f *fixture) transition(bookingID uuid.UUID, to enums.BookingStatus) (*models.Booking, error) {
	return f.svc.RequestTransition(context.Background(), bookingID, to, TransitionContext{ActorID: f.provider})
}

func (f *fixture) credits(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	var balance models.UserBalance
	require.NoError(t, f.client.DB().Where("user_id = ?", userID).First(&balance).Error)
	return balance.Credits
}

func (f *fixture) skill(t *testing.T) models.Skill {
	t.Helper()
	var skill models.Skill
	require.NoError(t, f.client.DB().Where("id = ?", f.skillID).First(&skill).Error)
	return skill
}

func (f *fixture) entries(t *testing.T, bookingID uuid.UUID) []models.LedgerEntry {
	t.Helper()
	var rows []models.LedgerEntry
	require.NoError(t, f.client.DB().Where("booking_id = ?", bookingID).Find(&rows).Error)
	return rows
}

func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	var negativeBalances, negativeSlots int64
	require.NoError(t, f.client.DB().Model(&models.UserBalance{}).Where("credits < 0").Count(&negativeBalances).Error)
	require.NoError(t, f.client.DB().Model(&models.Skill{}).Where("available_slots < 0").Count(&negativeSlots).Error)
	require.Zero(t, negativeBalances)
	require.Zero(t, negativeSlots)

	missing, err := f.repo.ListCompletedWithoutLedgerPair(context.Background())
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestCreateDefaultsCreditsFromSkill(t *testing.T) {
	f := newFixture(t, 10, 0, 2)
	booking := f.create(t, false, 0)

	require.Equal(t, enums.BookingStatusPending, booking.Status)
	require.Equal(t, 4, booking.Credits)
	require.Equal(t, f.provider, booking.ProviderID)
	require.Equal(t, 2, f.skill(t).AvailableSlots)

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventBookingCreated).Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestCreateConfirmedReservesSlot(t *testing.T) {
	f := newFixture(t, 10, 0, 1)
	booking := f.create(t, true, 0)
	require.Equal(t, enums.BookingStatusConfirmed, booking.Status)
	require.Zero(t, f.skill(t).AvailableSlots)

	_, err := f.svc.Create(context.Background(), CreateBookingInput{
		SkillID: f.skillID, RequesterID: f.requester, ScheduledDate: "2026-11-02", ScheduledTime: "09:00", Confirmed: true,
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNoCapacity), "got %v", err)

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Booking{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateGuards(t *testing.T) {
	f := newFixture(t, 10, 0, 1)
	ctx := context.Background()
	base := CreateBookingInput{SkillID: f.skillID, RequesterID: f.requester, ScheduledDate: "2026-11-02", ScheduledTime: "09:00"}

	bad := base
	bad.ScheduledDate = "02/11/2026"
	_, err := f.svc.Create(ctx, bad)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	bad = base
	bad.ScheduledTime = "9pm"
	_, err = f.svc.Create(ctx, bad)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	own := base
	own.RequesterID = f.provider
	_, err = f.svc.Create(ctx, own)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	stranger := base
	stranger.RequesterID = uuid.New()
	_, err = f.svc.Create(ctx, stranger)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodePrecondition), "got %v", err)

	missingSkill := base
	missingSkill.SkillID = uuid.New()
	_, err = f.svc.Create(ctx, missingSkill)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)

	require.NoError(t, f.client.DB().Model(&models.Skill{}).Where("id = ?", f.skillID).Update("is_active", false).Error)
	_, err = f.svc.Create(ctx, base)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodePrecondition), "got %v", err)
}

func TestConfirmWithoutCapacityDeclines(t *testing.T) {
	f := newFixture(t, 10, 0, 1)
	first := f.create(t, false, 0)
	second := f.create(t, false, 0)

	confirmed, err := f.transition(first.ID, enums.BookingStatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusConfirmed, confirmed.Status)
	require.Zero(t, f.skill(t).AvailableSlots)

	declined, err := f.transition(second.ID, enums.BookingStatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusDeclined, declined.Status)
	require.NotNil(t, declined.DeclineReason)
	require.Equal(t, DeclineReasonNoCapacity, *declined.DeclineReason)
	require.Zero(t, f.skill(t).AvailableSlots)
	f.assertInvariants(t)
}

func TestCompleteMovesCredits(t *testing.T) {
	f := newFixture(t, 10, 0, 1)
	booking := f.create(t, true, 4)

	completed, err := f.transition(booking.ID, enums.BookingStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	require.Equal(t, 6, f.credits(t, f.requester))
	require.Equal(t, 4, f.credits(t, f.provider))
	require.Equal(t, 1, f.skill(t).TotalSessions)

	entries := f.entries(t, booking.ID)
	require.Len(t, entries, 2)
	kinds := map[enums.LedgerEntryKind]bool{}
	for _, e := range entries {
		require.Equal(t, 4, e.Credits)
		require.Equal(t, enums.LedgerEntryStatusCompleted, e.Status)
		require.Equal(t, "Session: Bread baking", e.Description)
		kinds[e.Kind] = true
	}
	require.True(t, kinds[enums.LedgerEntryKindSpent])
	require.True(t, kinds[enums.LedgerEntryKindEarned])
	f.assertInvariants(t)
}

func TestCompleteWithInsufficientCreditsLeavesBookingConfirmed(t *testing.T) {
	f := newFixture(t, 2, 0, 1)
	booking := f.create(t, true, 5)

	_, err := f.transition(booking.ID, enums.BookingStatusCompleted)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientCredits), "got %v", err)

	require.Equal(t, 2, f.credits(t, f.requester))
	require.Equal(t, 0, f.credits(t, f.provider))
	got, err := f.svc.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusConfirmed, got.Status)
	require.Empty(t, f.entries(t, booking.ID))
	require.Zero(t, f.skill(t).TotalSessions)
}

func TestCancelCompletedReversesOnce(t *testing.T) {
	f := newFixture(t, 10, 0, 1)
	booking := f.create(t, true, 4)
	_, err := f.transition(booking.ID, enums.BookingStatusCompleted)
	require.NoError(t, err)

	cancelled, err := f.transition(booking.ID, enums.BookingStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusCancelled, cancelled.Status)
	require.Equal(t, 10, f.credits(t, f.requester))
	require.Equal(t, 0, f.credits(t, f.provider))
	for _, e := range f.entries(t, booking.ID) {
		require.Equal(t, enums.LedgerEntryStatusCancelled, e.Status)
	}

	_, err = f.transition(booking.ID, enums.BookingStatusCancelled)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyCancelled), "got %v", err)
	require.Equal(t, 10, f.credits(t, f.requester))
	require.Equal(t, 0, f.credits(t, f.provider))
	f.assertInvariants(t)
}

func TestReverseLedgerEntryCancelsBooking(t *testing.T) {
	f := newFixture(t, 10, 0, 1)
	booking := f.create(t, true, 3)
	_, err := f.transition(booking.ID, enums.BookingStatusCompleted)
	require.NoError(t, err)
	entries := f.entries(t, booking.ID)
	require.Len(t, entries, 2)

	got, err := f.svc.ReverseLedgerEntry(context.Background(), entries[0].ID, TransitionContext{ActorID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusCancelled, got.Status)
	require.Equal(t, 10, f.credits(t, f.requester))

	_, err = f.svc.ReverseLedgerEntry(context.Background(), entries[1].ID, TransitionContext{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyCancelled), "got %v", err)

	_, err = f.svc.ReverseLedgerEntry(context.Background(), uuid.New(), TransitionContext{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestDeclineAndCancelReleaseSlot(t *testing.T) {
	f := newFixture(t, 10, 0, 2)
	a := f.create(t, true, 0)
	b := f.create(t, true, 0)
	require.Zero(t, f.skill(t).AvailableSlots)

	_, err := f.transition(a.ID, enums.BookingStatusDeclined)
	require.NoError(t, err)
	require.Equal(t, 1, f.skill(t).AvailableSlots)

	_, err = f.transition(b.ID, enums.BookingStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, 2, f.skill(t).AvailableSlots)

	c := f.create(t, false, 0)
	_, err = f.transition(c.ID, enums.BookingStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, 2, f.skill(t).AvailableSlots)
}

func TestRejectsDisallowedTransitions(t *testing.T) {
	f := newFixture(t, 10, 0, 3)
	pending := f.create(t, false, 0)
	declined := f.create(t, false, 0)
	_, err := f.transition(declined.ID, enums.BookingStatusDeclined)
	require.NoError(t, err)
	completed := f.create(t, true, 1)
	_, err = f.transition(completed.ID, enums.BookingStatusCompleted)
	require.NoError(t, err)

	cases := []struct {
		id uuid.UUID
		to enums.BookingStatus
	}{
		{pending.ID, enums.BookingStatusCompleted},
		{pending.ID, enums.BookingStatusPending},
		{declined.ID, enums.BookingStatusConfirmed},
		{declined.ID, enums.BookingStatusCancelled},
		{completed.ID, enums.BookingStatusCompleted},
		{completed.ID, enums.BookingStatusDeclined},
	}
	for _, tc := range cases {
		_, err := f.transition(tc.id, tc.to)
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "to %s got %v", tc.to, err)
	}

	_, err = f.transition(uuid.New(), enums.BookingStatusConfirmed)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
	_, err = f.transition(pending.ID, enums.BookingStatus("archived"))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestConcurrentConfirmsNeverOverbook(t *testing.T) {
	const slots, requests = 3, 8
	f := newFixture(t, 10, 0, slots)

	ids := make([]uuid.UUID, requests)
	for i := range ids {
		ids[i] = f.create(t, false, 0).ID
	}

	var wg sync.WaitGroup
	statuses := make([]enums.BookingStatus, requests)
	errs := make([]error, requests)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			booking, err := f.transition(id, enums.BookingStatusConfirmed)
			errs[i] = err
			if booking != nil {
				statuses[i] = booking.Status
			}
		}(i, id)
	}
	wg.Wait()

	confirmed, declined := 0, 0
	for i := range ids {
		require.NoError(t, errs[i])
		switch statuses[i] {
		case enums.BookingStatusConfirmed:
			confirmed++
		case enums.BookingStatusDeclined:
			declined++
		}
	}
	require.Equal(t, slots, confirmed)
	require.Equal(t, requests-slots, declined)
	require.Zero(t, f.skill(t).AvailableSlots)
	f.assertInvariants(t)
}

func TestTransitionsPublishChanges(t *testing.T) {
	f := newFixture(t, 10, 0, 1)
	sub := f.hub.Subscribe("test", 8)

	booking := f.create(t, false, 0)
	_, err := f.transition(booking.ID, enums.BookingStatusConfirmed)
	require.NoError(t, err)

	created := <-sub.C()
	require.Equal(t, enums.BookingStatus(""), created.From)
	require.Equal(t, enums.BookingStatusPending, created.To)
	change := <-sub.C()
	require.Equal(t, booking.ID, change.BookingID)
	require.Equal(t, enums.BookingStatusPending, change.From)
	require.Equal(t, enums.BookingStatusConfirmed, change.To)
}

func TestListForUserFiltersByRole(t *testing.T) {
	f := newFixture(t, 10, 0, 5)
	for i := 0; i < 3; i++ {
		f.create(t, false, 0)
	}
	confirmed := f.create(t, true, 0)
	ctx := context.Background()

	page, err := f.svc.ListForUser(ctx, f.requester, ListFilter{Role: enums.BookingRoleRequester}, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Bookings, 3)
	require.NotEmpty(t, page.NextCursor)
	require.Equal(t, "Bread baking", page.Bookings[0].SkillTitle)

	rest, err := f.svc.ListForUser(ctx, f.requester, ListFilter{Role: enums.BookingRoleRequester}, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Bookings, 1)

	none, err := f.svc.ListForUser(ctx, f.requester, ListFilter{Role: enums.BookingRoleProvider}, pagination.Params{})
	require.NoError(t, err)
	require.Empty(t, none.Bookings)

	status := enums.BookingStatusConfirmed
	onlyConfirmed, err := f.svc.ListForUser(ctx, f.provider, ListFilter{Status: &status}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, onlyConfirmed.Bookings, 1)
	require.Equal(t, confirmed.ID, onlyConfirmed.Bookings[0].ID)
}

func TestListStalePending(t *testing.T) {
	f := newFixture(t, 10, 0, 5)
	old := f.create(t, false, 0)
	f.create(t, false, 0)
	require.NoError(t, f.client.DB().Model(&models.Booking{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().UTC().Add(-72*time.Hour)).Error)

	stale, err := f.repo.ListStalePending(context.Background(), time.Now().UTC().Add(-48*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, old.ID, stale[0].ID)
}

func TestExpectedFromGuardsTransition(t *testing.T) {
	f := newFixture(t, 10, 0, 1)
	booking := f.create(t, true, 0)

	_, err := f.svc.RequestTransition(context.Background(), booking.ID, enums.BookingStatusCancelled, TransitionContext{
		Reason:       CancelReasonExpired,
		ExpectedFrom: enums.BookingStatusPending,
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "got %v", err)

	got, err := f.svc.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusConfirmed, got.Status)
}
