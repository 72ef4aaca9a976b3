package attendance_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/warp/workday/attendance"
	"github.com/warp/workday/generic"
	"github.com/warp/workday/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	hr    = generic.Actor{EmployeeID: "hr-1", Role: generic.RoleHR}
	alice = generic.Actor{EmployeeID: "emp-1", Role: generic.RoleEmployee}
	bob   = generic.Actor{EmployeeID: "emp-2", Role: generic.RoleEmployee}
)

// monday is 10 March 2025, 09:00 UTC.
var monday = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*attendance.Service, *generic.ManualClock) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, a := range []generic.Actor{hr, alice, bob} {
		require.NoError(t, store.SaveEmployee(ctx, generic.Employee{
			ID: a.EmployeeID, Name: "Name " + string(a.EmployeeID), Role: a.Role,
		}))
	}
	clock := generic.NewManualClock(monday)
	svc := attendance.NewService(store, store, clock, zap.NewNop(), attendance.Options{
		Location:         time.UTC,
		DailyStipend:     decimal.RequireFromString("7.50"),
		MinWorkedMinutes: 240,
	})
	return svc, clock
}

// workDay runs start, optional lunch pause and finish.
func workDay(t *testing.T, svc *attendance.Service, clock *generic.ManualClock, start time.Time, morning, lunch, afternoon time.Duration) *attendance.Session {
	t.Helper()
	ctx := context.Background()
	clock.Set(start)
	sess, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	clock.Advance(morning)
	if lunch > 0 {
		_, err = svc.Pause(ctx, alice, sess.ID)
		require.NoError(t, err)
		clock.Advance(lunch)
		_, err = svc.Resume(ctx, alice, sess.ID)
		require.NoError(t, err)
	}
	clock.Advance(afternoon)
	sess, err = svc.Finish(ctx, alice, sess.ID, "done")
	require.NoError(t, err)
	return sess
}

// =============================================================================
// CLOCK OPERATIONS
// =============================================================================

func TestWorkDay_NineToSixWithLunch(t *testing.T) {
	// GIVEN: start 09:00, pause 12:00, resume 13:00
	// WHEN: the session is finished at 18:00 with a note
	// THEN: one hour of pause and eight hours worked
	svc, clock := newService(t)

	sess := workDay(t, svc, clock, monday, 3*time.Hour, time.Hour, 5*time.Hour)

	assert.Equal(t, attendance.StatusStopped, sess.Status())
	assert.Equal(t, int64(3600), sess.AccumulatedPauseSeconds)
	assert.Equal(t, 8*time.Hour, sess.Elapsed(*sess.EndTime))
	assert.Equal(t, "done", sess.ClosingNote)
	assert.Equal(t, generic.NewDate(2025, time.March, 10), sess.WorkDate)
}

func TestStart_SecondOpenSessionRejected(t *testing.T) {
	// GIVEN: a running session
	// WHEN: the employee starts another
	// THEN: ConcurrentSessionError naming the open session, which is unchanged
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)

	_, err = svc.Start(ctx, alice, alice.EmployeeID)
	var concErr *generic.ConcurrentSessionError
	require.ErrorAs(t, err, &concErr)
	assert.Equal(t, string(first.ID), concErr.OpenSessionID)
	assert.ErrorIs(t, err, generic.ErrConcurrentSession)

	open, err := svc.ListOpenSession(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, first.ID, open.ID)
	assert.Equal(t, first.Version, open.Version)
	assert.Equal(t, attendance.StatusRunning, open.Status())
}

func TestStart_ConcurrentCallsExactlyOneWins(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	const callers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Start(ctx, alice, alice.EmployeeID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, generic.ErrConcurrentSession) {
				conflict++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflict)
}

func TestPauseResume_AddsExactlyTheElapsedSeconds(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)

	// No time passes.
	_, err = svc.Pause(ctx, alice, sess.ID)
	require.NoError(t, err)
	sess, err = svc.Resume(ctx, alice, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sess.AccumulatedPauseSeconds)

	// 42 seconds pass.
	_, err = svc.Pause(ctx, alice, sess.ID)
	require.NoError(t, err)
	clock.Advance(42 * time.Second)
	sess, err = svc.Resume(ctx, alice, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sess.AccumulatedPauseSeconds)
	assert.Nil(t, sess.PauseStartTime)
}

func TestTransitions_InvalidFromWrongState(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)

	_, err = svc.Resume(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidState, "resume while running")

	_, err = svc.Pause(ctx, alice, sess.ID)
	require.NoError(t, err)
	_, err = svc.Pause(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidState, "pause while paused")

	_, err = svc.Finish(ctx, alice, sess.ID, "bye")
	require.NoError(t, err)
	_, err = svc.Finish(ctx, alice, sess.ID, "bye")
	assert.ErrorIs(t, err, generic.ErrInvalidState, "finish while stopped")
	_, err = svc.Pause(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidState, "pause while stopped")
}

func TestFinish_RequiresNote(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)

	_, err = svc.Finish(ctx, alice, sess.ID, "  ")
	assert.ErrorIs(t, err, generic.ErrValidation)

	open, err := svc.ListOpenSession(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, attendance.StatusRunning, open.Status())
}

func TestFinish_WhilePausedFoldsThePause(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = svc.Pause(ctx, alice, sess.ID)
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	sess, err = svc.Finish(ctx, alice, sess.ID, "left from lunch")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), sess.AccumulatedPauseSeconds)
	assert.Equal(t, 2*time.Hour, sess.Elapsed(*sess.EndTime))
}

func TestOwnership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)

	_, err = svc.Pause(ctx, bob, sess.ID)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = svc.Start(ctx, bob, alice.EmployeeID)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = svc.ListOpenSession(ctx, generic.Actor{}, alice.EmployeeID)
	assert.ErrorIs(t, err, generic.ErrUnauthenticated)

	_, err = svc.Pause(ctx, hr, sess.ID)
	assert.NoError(t, err, "HR may act on any session")
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestAutoClose_NextDayThenStartAgain(t *testing.T) {
	// GIVEN: a session opened on day D and never finished, paused at 18:00
	// WHEN: the open session is listed on D+1
	// THEN: it is closed at D 23:59:59 with the system note, and a new
	//       session can be started on D+1
	svc, clock := newService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	clock.Set(time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))
	_, err = svc.Pause(ctx, alice, sess.ID)
	require.NoError(t, err)

	clock.Set(time.Date(2025, time.March, 11, 8, 30, 0, 0, time.UTC))
	open, err := svc.ListOpenSession(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	assert.Nil(t, open)

	closed, err := svc.ListForDate(ctx, alice, alice.EmployeeID, generic.NewDate(2025, time.March, 10))
	require.NoError(t, err)
	require.Len(t, closed, 1)
	got := closed[0]
	require.NotNil(t, got.EndTime)
	assert.Equal(t, time.Date(2025, time.March, 10, 23, 59, 59, 0, time.UTC), *got.EndTime)
	assert.Equal(t, attendance.AutoCloseNote, got.ClosingNote)
	assert.Nil(t, got.PauseStartTime)
	assert.Equal(t, int64(5*3600+59*60+59), got.AccumulatedPauseSeconds)
	assert.Equal(t, 9*time.Hour, got.Elapsed(*got.EndTime))

	next, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	assert.Equal(t, generic.NewDate(2025, time.March, 11), next.WorkDate)
}

func TestCloseStaleSessions_OnlyEarlierDates(t *testing.T) {
	// GIVEN: alice left a session open yesterday, bob started one today
	svc, clock := newService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	clock.Set(time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC))
	_, err = svc.Start(ctx, bob, bob.EmployeeID)
	require.NoError(t, err)

	// WHEN: the sweep runs
	_, err = svc.CloseStaleSessions(ctx, alice)
	assert.ErrorIs(t, err, generic.ErrForbidden)
	n, err := svc.CloseStaleSessions(ctx, generic.SystemActor)
	require.NoError(t, err)

	// THEN: only alice's session was closed
	assert.Equal(t, 1, n)
	open, err := svc.ListOpenSession(ctx, bob, bob.EmployeeID)
	require.NoError(t, err)
	assert.NotNil(t, open)
	open, err = svc.ListOpenSession(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestStart_DoesNotReconcileImplicitly(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)

	_, err = svc.Start(ctx, alice, alice.EmployeeID)
	assert.ErrorIs(t, err, generic.ErrConcurrentSession)

	check, err := svc.CheckSession(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	assert.Nil(t, check.Session)
	assert.Equal(t, attendance.StatusStopped, check.Status)

	_, err = svc.Start(ctx, alice, alice.EmployeeID)
	assert.NoError(t, err)
}

func TestCheckSession_ReportsLiveElapsed(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	clock.Advance(90 * time.Minute)

	check, err := svc.CheckSession(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	require.NotNil(t, check.Session)
	assert.Equal(t, attendance.StatusRunning, check.Status)
	assert.Equal(t, 90*time.Minute, check.Elapsed)
}

func TestElapsed_NeverNegative(t *testing.T) {
	start := monday
	sess := attendance.Session{StartTime: start, AccumulatedPauseSeconds: 7200}
	assert.Equal(t, time.Duration(0), sess.Elapsed(start.Add(time.Hour)))

	// Clock skew: now before start.
	sess = attendance.Session{StartTime: start}
	assert.Equal(t, time.Duration(0), sess.Elapsed(start.Add(-time.Minute)))

	// Frozen at the pause start while paused.
	pausedAt := start.Add(2 * time.Hour)
	sess = attendance.Session{StartTime: start, PauseStartTime: &pausedAt}
	assert.Equal(t, 2*time.Hour, sess.Elapsed(start.Add(5*time.Hour)))
}

// =============================================================================
// HR OPERATIONS
// =============================================================================

func ptr[T any](v T) *T { return &v }

func TestCorrect_RequiresReasonAndHR(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()
	sess := workDay(t, svc, clock, monday, 3*time.Hour, time.Hour, 5*time.Hour)

	_, err := svc.Correct(ctx, hr, sess.ID, attendance.Correction{PauseMinutes: ptr(int64(30))})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.Correct(ctx, alice, sess.ID, attendance.Correction{PauseMinutes: ptr(int64(30)), Reason: "me"})
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = svc.Correct(ctx, hr, sess.ID, attendance.Correction{PauseMinutes: ptr(int64(-1)), Reason: "typo"})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.Correct(ctx, hr, sess.ID, attendance.Correction{EndTime: ptr(monday.Add(-time.Hour)), Reason: "typo"})
	assert.ErrorIs(t, err, generic.ErrValidation, "end before start")
}

func TestCorrect_OverwritesAndAudits(t *testing.T) {
	// GIVEN: a closed 09:00-18:00 session with one hour of pause
	// WHEN: HR moves the start to 08:00 and sets the pause to 30 minutes
	// THEN: the values change and the correction is attributed
	svc, clock := newService(t)
	ctx := context.Background()
	sess := workDay(t, svc, clock, monday, 3*time.Hour, time.Hour, 5*time.Hour)

	got, err := svc.Correct(ctx, hr, sess.ID, attendance.Correction{
		StartTime:    ptr(monday.Add(-time.Hour)),
		PauseMinutes: ptr(int64(30)),
		Reason:       "badge reader was down",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1800), got.AccumulatedPauseSeconds)
	assert.Equal(t, 9*time.Hour+30*time.Minute, got.Elapsed(*got.EndTime))
	assert.Equal(t, "badge reader was down", got.CorrectionReason)
	assert.Equal(t, hr.EmployeeID, got.CorrectedBy)
	require.NotNil(t, got.CorrectedAt)

	// Moving the start to the previous day moves the work date with it.
	got, err = svc.Correct(ctx, hr, sess.ID, attendance.Correction{
		StartTime: ptr(time.Date(2025, time.March, 9, 22, 0, 0, 0, time.UTC)),
		Reason:    "night shift",
	})
	require.NoError(t, err)
	assert.Equal(t, generic.NewDate(2025, time.March, 9), got.WorkDate)
}

func TestCorrect_ClosingAnOpenSession(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, alice, alice.EmployeeID)
	require.NoError(t, err)
	clock.Advance(4 * time.Hour)
	_, err = svc.Pause(ctx, alice, sess.ID)
	require.NoError(t, err)

	end := monday.Add(5 * time.Hour)
	_, err = svc.Correct(ctx, hr, sess.ID, attendance.Correction{EndTime: &end, Reason: "forgot"})
	assert.ErrorIs(t, err, generic.ErrValidation, "closing needs a note")

	got, err := svc.Correct(ctx, hr, sess.ID, attendance.Correction{
		EndTime:     &end,
		ClosingNote: ptr("closed by HR"),
		Reason:      "forgot",
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusStopped, got.Status())
	assert.Equal(t, int64(3600), got.AccumulatedPauseSeconds, "open pause folded up to the end")
	assert.Equal(t, 4*time.Hour, got.Elapsed(*got.EndTime))
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()
	sess := workDay(t, svc, clock, monday, 8*time.Hour, 0, 0)

	err := svc.Delete(ctx, hr, sess.ID, false)
	assert.ErrorIs(t, err, generic.ErrValidation)

	err = svc.Delete(ctx, alice, sess.ID, true)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, hr, sess.ID, true))

	left, err := svc.ListForDate(ctx, alice, alice.EmployeeID, generic.DateOf(monday))
	require.NoError(t, err)
	assert.Empty(t, left)

	err = svc.Delete(ctx, hr, sess.ID, true)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// HISTORY & EXPORT
// =============================================================================

func TestMonthlySummary_CountsQualifyingDays(t *testing.T) {
	// GIVEN: an eight-hour Monday and a two-hour Tuesday, four-hour minimum
	// WHEN: the March summary is computed
	// THEN: one day qualifies for the 7.50 stipend
	svc, clock := newService(t)
	ctx := context.Background()

	workDay(t, svc, clock, monday, 3*time.Hour, time.Hour, 5*time.Hour)
	workDay(t, svc, clock, monday.Add(24*time.Hour), 2*time.Hour, 0, 0)

	sum, err := svc.MonthlySummary(ctx, alice, alice.EmployeeID, 2025, time.March)
	require.NoError(t, err)
	require.Len(t, sum.Days, 2)
	assert.Equal(t, int64(8*3600), sum.Days[0].WorkedSeconds)
	assert.True(t, sum.Days[0].Qualifies)
	assert.False(t, sum.Days[1].Qualifies)
	assert.Equal(t, int64(10*3600), sum.TotalWorkedSeconds)
	assert.Equal(t, 1, sum.DaysWorked)
	assert.True(t, sum.Stipend.Equal(decimal.RequireFromString("7.5")), "stipend %s", sum.Stipend)

	_, err = svc.MonthlySummary(ctx, alice, alice.EmployeeID, 2025, 13)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestListRange_InvalidRange(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.ListRange(context.Background(), alice, alice.EmployeeID,
		generic.NewDate(2025, time.March, 10), generic.NewDate(2025, time.March, 9))
	assert.ErrorIs(t, err, generic.ErrInvalidRange)
}

func TestExportXLSX_OneRowPerClosedSession(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()

	workDay(t, svc, clock, monday, 3*time.Hour, time.Hour, 5*time.Hour)
	clock.Set(monday.Add(25 * time.Hour))
	_, err := svc.Start(ctx, bob, bob.EmployeeID)
	require.NoError(t, err)

	_, _, err = svc.ExportXLSX(ctx, alice, generic.DateOf(monday), generic.DateOf(monday))
	assert.ErrorIs(t, err, generic.ErrForbidden)

	buf, name, err := svc.ExportXLSX(ctx, hr, generic.NewDate(2025, time.March, 1), generic.NewDate(2025, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, "attendance_2025-03-01_2025-03-31.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sessions")
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus alice's closed session")
	assert.Equal(t, "Employee ID", rows[0][0])
	assert.Equal(t, "emp-1", rows[1][0])
	assert.Equal(t, "Name emp-1", rows[1][1])
	assert.Equal(t, "09:00", rows[1][3])
	assert.Equal(t, "18:00", rows[1][4])
	assert.Equal(t, "60", rows[1][5])
	assert.Equal(t, "8.00", rows[1][6])
}
