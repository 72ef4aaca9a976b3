package timeoff_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/workday/calendar"
	"github.com/warp/workday/generic"
	"github.com/warp/workday/store/memory"
	"github.com/warp/workday/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	hr    = generic.Actor{EmployeeID: "hr-1", Role: generic.RoleHR}
	alice = generic.Actor{EmployeeID: "emp-1", Role: generic.RoleEmployee}
	bob   = generic.Actor{EmployeeID: "emp-2", Role: generic.RoleEmployee}
)

func date(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

func days(n int) generic.Amount {
	return generic.NewAmountFromInt(n, generic.UnitDays)
}

func newClock() *generic.ManualClock {
	return generic.NewManualClock(time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC))
}

// newService provisions hr-1, emp-1 and emp-2, each with 22 days.
func newService(t *testing.T) (*timeoff.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := timeoff.NewService(store, store, calendar.New(), newClock(), zap.NewNop())
	provision(t, svc)
	return svc, store
}

func provision(t *testing.T, svc *timeoff.Service) {
	t.Helper()
	ctx := context.Background()
	for _, a := range []generic.Actor{hr, alice, bob} {
		_, err := svc.ProvisionEmployee(ctx, hr, timeoff.NewEmployee{
			ID:             a.EmployeeID,
			Name:           string(a.EmployeeID),
			Role:           a.Role,
			HireDate:       date(2024, time.January, 1),
			OpeningBalance: days(22),
		})
		require.NoError(t, err)
	}
}

func assertBalance(t *testing.T, svc *timeoff.Service, employee generic.EmployeeID, want int64) {
	t.Helper()
	bal, err := svc.Balance(context.Background(), hr, employee)
	require.NoError(t, err)
	assert.Truef(t, bal.Value.Equal(decimal.NewFromInt(want)), "balance is %s, want %d", bal, want)
}

// vacationWeek is Mon 10 .. Fri 14 March 2025: five business days.
func vacationWeek(kind timeoff.Kind) timeoff.CreateInput {
	return timeoff.CreateInput{
		EmployeeID: alice.EmployeeID,
		Kind:       kind,
		StartDate:  date(2025, time.March, 10),
		EndDate:    date(2025, time.March, 14),
	}
}

func createApproved(t *testing.T, svc *timeoff.Service, in timeoff.CreateInput) *timeoff.Request {
	t.Helper()
	ctx := context.Background()
	r, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)
	r, err = svc.Approve(ctx, hr, r.ID, "enjoy")
	require.NoError(t, err)
	return r
}

// =============================================================================
// BALANCE EFFECTS
// =============================================================================

func TestVacation_ApproveThenCancelRoundTrip(t *testing.T) {
	// GIVEN: an employee with 22 days
	// WHEN: a five-day vacation is approved, then its cancellation finalized
	// THEN: the balance drops by exactly 5 and comes back by exactly 5
	svc, _ := newService(t)
	ctx := context.Background()

	r := createApproved(t, svc, vacationWeek(timeoff.KindVacation))
	assert.Equal(t, timeoff.StateApproved, r.State)
	assert.Equal(t, 5, r.BusinessDaysConsumed)
	assert.True(t, r.EverApproved)
	assertBalance(t, svc, alice.EmployeeID, 17)

	r, err := svc.RequestCancellation(ctx, alice, r.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateCancellationRequested, r.State)
	assertBalance(t, svc, alice.EmployeeID, 17)

	r, err = svc.FinalizeCancellation(ctx, hr, r.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateCancelled, r.State)
	assertBalance(t, svc, alice.EmployeeID, 22)

	txs, err := svc.Transactions(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, generic.TxGrant, txs[0].Type)
	assert.Equal(t, generic.TxConsumption, txs[1].Type)
	assert.Equal(t, generic.TxReversal, txs[2].Type)
	assert.Equal(t, string(r.ID), txs[1].ReferenceID)
}

func TestSickLeave_NeverTouchesBalance(t *testing.T) {
	// GIVEN: a sick leave request over a full week
	// WHEN: HR approves it
	// THEN: the balance is unchanged
	svc, _ := newService(t)

	r := createApproved(t, svc, vacationWeek(timeoff.KindSickLeave))
	assert.Equal(t, timeoff.StateApproved, r.State)
	assertBalance(t, svc, alice.EmployeeID, 22)
}

func TestPartialDay_NeverTouchesBalance(t *testing.T) {
	// GIVEN: a 09:00-13:00 vacation absence on a single working day
	// WHEN: it is approved
	// THEN: no days are consumed
	svc, _ := newService(t)

	in := vacationWeek(timeoff.KindVacation)
	in.EndDate = in.StartDate
	in.IsPartialDay = true
	in.PartialStart, in.PartialEnd = "09:00", "13:00"

	r := createApproved(t, svc, in)
	assert.Equal(t, 0, r.BusinessDaysConsumed)
	assertBalance(t, svc, alice.EmployeeID, 22)
}

func TestRejected_CannotBeApproved(t *testing.T) {
	// GIVEN: a rejected vacation request
	// WHEN: HR tries to approve it
	// THEN: InvalidStateError and the balance is untouched
	svc, _ := newService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindVacation))
	require.NoError(t, err)
	_, err = svc.Reject(ctx, hr, r.ID, "team offsite")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, hr, r.ID, "")
	var stateErr *generic.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "rejected", stateErr.State)
	assert.ErrorIs(t, err, generic.ErrInvalidState)
	assertBalance(t, svc, alice.EmployeeID, 22)

	got, err := svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateRejected, got.State)
}

func TestHROnBehalf_ApprovedAndDebitedAtCreation(t *testing.T) {
	// GIVEN: HR records a vacation for someone else
	// WHEN: the request is created
	// THEN: it starts approved and the balance is debited at once
	svc, _ := newService(t)

	r, err := svc.Create(context.Background(), hr, vacationWeek(timeoff.KindVacation))
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateApproved, r.State)
	assert.Equal(t, hr.EmployeeID, r.CreatedBy)
	assert.Equal(t, hr.EmployeeID, r.ReviewedBy)
	assertBalance(t, svc, alice.EmployeeID, 17)
}

func TestHRForThemselves_StartsPending(t *testing.T) {
	svc, _ := newService(t)

	in := vacationWeek(timeoff.KindVacation)
	in.EmployeeID = hr.EmployeeID
	r, err := svc.Create(context.Background(), hr, in)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatePending, r.State)
	assertBalance(t, svc, hr.EmployeeID, 22)
}

func TestReinstatement_DoesNotDebitTwice(t *testing.T) {
	// GIVEN: an approved vacation whose cancellation was requested
	// WHEN: HR reinstates it, by approving or by declining the cancellation
	// THEN: it is approved again and the balance still reflects one debit
	svc, _ := newService(t)
	ctx := context.Background()

	r := createApproved(t, svc, vacationWeek(timeoff.KindVacation))
	_, err := svc.RequestCancellation(ctx, alice, r.ID, "")
	require.NoError(t, err)

	r, err = svc.Approve(ctx, hr, r.ID, "still needed")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateApproved, r.State)
	assertBalance(t, svc, alice.EmployeeID, 17)

	_, err = svc.RequestCancellation(ctx, alice, r.ID, "")
	require.NoError(t, err)
	r, err = svc.FinalizeCancellation(ctx, hr, r.ID, false, "declined")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateApproved, r.State)
	assertBalance(t, svc, alice.EmployeeID, 17)

	// A second finalization has nothing to act on.
	_, err = svc.FinalizeCancellation(ctx, hr, r.ID, true, "")
	assert.ErrorIs(t, err, generic.ErrInvalidState)
	assertBalance(t, svc, alice.EmployeeID, 17)
}

func TestCancel_ApprovedRequiresHR(t *testing.T) {
	// GIVEN: an approved vacation
	// WHEN: the owner cancels directly, then HR does
	// THEN: the owner is refused; HR cancels and the days come back
	svc, _ := newService(t)
	ctx := context.Background()

	r := createApproved(t, svc, vacationWeek(timeoff.KindVacation))

	_, err := svc.Cancel(ctx, alice, r.ID, "")
	assert.ErrorIs(t, err, generic.ErrInvalidState)
	assertBalance(t, svc, alice.EmployeeID, 17)

	r, err = svc.Cancel(ctx, hr, r.ID, "sick instead")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateCancelled, r.State)
	assertBalance(t, svc, alice.EmployeeID, 22)

	_, err = svc.Cancel(ctx, hr, r.ID, "")
	assert.ErrorIs(t, err, generic.ErrInvalidState)
}

func TestCancel_PendingByOwner(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindVacation))
	require.NoError(t, err)

	r, err = svc.Cancel(ctx, alice, r.ID, "")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateCancelled, r.State)
	assertBalance(t, svc, alice.EmployeeID, 22)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCreate_WeekendOnlyIsEmptyRange(t *testing.T) {
	// GIVEN: a vacation over Saturday and Sunday
	// WHEN: it is created
	// THEN: EmptyRangeError with a correctable message
	svc, _ := newService(t)

	in := vacationWeek(timeoff.KindVacation)
	in.StartDate, in.EndDate = date(2025, time.March, 8), date(2025, time.March, 9)

	_, err := svc.Create(context.Background(), alice, in)
	assert.ErrorIs(t, err, generic.ErrEmptyRange)
	assert.Contains(t, err.Error(), "0 working days")
	assert.True(t, generic.IsClientError(err))
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *timeoff.CreateInput)
		want   error
	}{
		{"end before start", func(in *timeoff.CreateInput) {
			in.EndDate = date(2025, time.March, 9)
		}, generic.ErrInvalidRange},
		{"unknown kind", func(in *timeoff.CreateInput) {
			in.Kind = "sabbatical"
		}, generic.ErrValidation},
		{"partial spans days", func(in *timeoff.CreateInput) {
			in.IsPartialDay, in.PartialStart, in.PartialEnd = true, "09:00", "13:00"
		}, generic.ErrValidation},
		{"partial start after end", func(in *timeoff.CreateInput) {
			in.EndDate = in.StartDate
			in.IsPartialDay, in.PartialStart, in.PartialEnd = true, "14:00", "13:00"
		}, generic.ErrValidation},
		{"partial bad clock", func(in *timeoff.CreateInput) {
			in.EndDate = in.StartDate
			in.IsPartialDay, in.PartialStart, in.PartialEnd = true, "9am", "13:00"
		}, generic.ErrValidation},
		{"unknown employee", func(in *timeoff.CreateInput) {
			in.EmployeeID = "ghost"
		}, generic.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := vacationWeek(timeoff.KindVacation)
			tt.mutate(&in)
			actor := alice
			if in.EmployeeID != alice.EmployeeID {
				actor = hr
			}
			_, err := svc.Create(ctx, actor, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEditPending_OnlyWhilePending(t *testing.T) {
	// GIVEN: a pending vacation
	// WHEN: the owner edits it, HR approves, the owner edits again
	// THEN: the first edit applies; the second is InvalidStateError
	svc, _ := newService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindVacation))
	require.NoError(t, err)

	end := date(2025, time.March, 12)
	note := "shorter trip"
	r, err = svc.EditPending(ctx, alice, r.ID, timeoff.EditInput{EndDate: &end, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, end, r.EndDate)
	assert.Equal(t, "shorter trip", r.Note)
	assert.Equal(t, timeoff.StatePending, r.State)

	weekend := date(2025, time.March, 8)
	_, err = svc.EditPending(ctx, alice, r.ID, timeoff.EditInput{StartDate: &weekend, EndDate: &weekend})
	assert.ErrorIs(t, err, generic.ErrEmptyRange)

	r, err = svc.Approve(ctx, hr, r.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, r.BusinessDaysConsumed)
	assertBalance(t, svc, alice.EmployeeID, 19)

	_, err = svc.EditPending(ctx, alice, r.ID, timeoff.EditInput{Note: &note})
	assert.ErrorIs(t, err, generic.ErrInvalidState)

	_, err = svc.EditPending(ctx, bob, r.ID, timeoff.EditInput{Note: &note})
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestAttachDocument_AnyState(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	approved := createApproved(t, svc, vacationWeek(timeoff.KindSickLeave))
	r, err := svc.AttachDocument(ctx, alice, approved.ID, "docs/medical-note.pdf")
	require.NoError(t, err)
	assert.Equal(t, "docs/medical-note.pdf", r.AttachmentRef)
	assert.Equal(t, timeoff.StateApproved, r.State)

	pending, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindStudyLeave))
	require.NoError(t, err)
	rejected, err := svc.Reject(ctx, hr, pending.ID, "")
	require.NoError(t, err)
	r, err = svc.AttachDocument(ctx, hr, rejected.ID, "docs/exam.pdf")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StateRejected, r.State)

	_, err = svc.AttachDocument(ctx, alice, approved.ID, "   ")
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.AttachDocument(ctx, bob, approved.ID, "x")
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestWithdraw_DeletesPendingOnly(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindPersonal))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Withdraw(ctx, bob, r.ID), generic.ErrForbidden)
	require.NoError(t, svc.Withdraw(ctx, alice, r.ID))

	_, err = svc.Get(ctx, alice, r.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	approved := createApproved(t, svc, vacationWeek(timeoff.KindPersonal))
	assert.ErrorIs(t, svc.Withdraw(ctx, alice, approved.ID), generic.ErrInvalidState)
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func TestAuthorization(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindVacation))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, alice, r.ID, "")
	assert.ErrorIs(t, err, generic.ErrForbidden, "employees cannot approve")

	_, err = svc.Create(ctx, bob, vacationWeek(timeoff.KindVacation))
	assert.ErrorIs(t, err, generic.ErrForbidden, "no requests for others")

	_, err = svc.Get(ctx, bob, r.ID)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = svc.Balance(ctx, generic.Actor{}, alice.EmployeeID)
	assert.ErrorIs(t, err, generic.ErrUnauthenticated)

	_, err = svc.Approve(ctx, generic.Actor{EmployeeID: "x", Role: "boss"}, r.ID, "")
	assert.ErrorIs(t, err, generic.ErrUnauthenticated)
}

func TestList_EmployeesSeeOnlyTheirOwn(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindVacation))
	require.NoError(t, err)
	in := vacationWeek(timeoff.KindPersonal)
	in.EmployeeID = bob.EmployeeID
	_, err = svc.Create(ctx, bob, in)
	require.NoError(t, err)

	mine, err := svc.List(ctx, alice, timeoff.Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, alice.EmployeeID, mine[0].EmployeeID)

	_, err = svc.List(ctx, alice, timeoff.Filter{EmployeeID: bob.EmployeeID})
	assert.ErrorIs(t, err, generic.ErrForbidden)

	queue, err := svc.List(ctx, hr, timeoff.Filter{States: []timeoff.State{timeoff.StatePending}})
	require.NoError(t, err)
	assert.Len(t, queue, 2)
}

// =============================================================================
// ATOMICITY
// =============================================================================

// failingLedger refuses every ledger write.
type failingLedger struct {
	*memory.Store
}

func (failingLedger) Append(context.Context, generic.Transaction) error {
	return errors.New("disk full")
}

func TestApprove_LedgerFailureRollsBackState(t *testing.T) {
	// GIVEN: a pending vacation and a ledger that cannot be written
	// WHEN: HR approves
	// THEN: a retryable storage error, and the request is still pending
	mem := memory.New()
	cal := calendar.New()
	provision(t, timeoff.NewService(mem, mem, cal, newClock(), zap.NewNop()))

	svc := timeoff.NewService(failingLedger{mem}, mem, cal, newClock(), zap.NewNop())
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindVacation))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, hr, r.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrStorage)
	assert.True(t, generic.IsRetryable(err))

	got, err := svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatePending, got.State)
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.EverApproved)
	assertBalance(t, svc, alice.EmployeeID, 22)
}

// racingStore lets another writer update the request between read and write.
type racingStore struct {
	*memory.Store
}

func (s racingStore) UpdateRequest(ctx context.Context, r *timeoff.Request) error {
	other := *r
	other.ReviewNote = "concurrent writer"
	if err := s.Store.UpdateRequest(ctx, &other); err != nil {
		return err
	}
	return s.Store.UpdateRequest(ctx, r)
}

func TestApprove_VersionConflictAppliesNothing(t *testing.T) {
	// GIVEN: another writer bumps the request version mid-transition
	// WHEN: HR approves
	// THEN: ErrConcurrentModification, retryable, and no debit
	mem := memory.New()
	cal := calendar.New()
	provision(t, timeoff.NewService(mem, mem, cal, newClock(), zap.NewNop()))

	svc := timeoff.NewService(racingStore{mem}, mem, cal, newClock(), zap.NewNop())
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindVacation))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, hr, r.ID, "")
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.True(t, generic.IsRetryable(err))
	assertBalance(t, svc, alice.EmployeeID, 22)

	got, err := svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatePending, got.State)
}

// =============================================================================
// LEDGER QUERIES & FEEDS
// =============================================================================

func TestAdjustBalance(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AdjustBalance(ctx, hr, alice.EmployeeID, days(-2), "")
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.AdjustBalance(ctx, alice, alice.EmployeeID, days(5), "gift")
	assert.ErrorIs(t, err, generic.ErrForbidden)

	tx, err := svc.AdjustBalance(ctx, hr, alice.EmployeeID, days(-2), "carried over too much")
	require.NoError(t, err)
	assert.Equal(t, generic.TxAdjustment, tx.Type)
	assertBalance(t, svc, alice.EmployeeID, 20)
}

func TestCalendarFeed_ListsApprovedLeave(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	createApproved(t, svc, vacationWeek(timeoff.KindVacation))
	_, err := svc.Create(ctx, alice, vacationWeek(timeoff.KindPersonal))
	require.NoError(t, err)

	out, err := svc.CalendarFeed(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	assert.Contains(t, out, "SUMMARY:Vacation")

	parsed, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, parsed.Events(), 1, "pending requests stay off the calendar")
}
