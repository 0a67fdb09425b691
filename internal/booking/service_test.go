package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adilbekov/ridepool/internal/model"
)

var (
	baseTime = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

	driverA uint64 = 101
	riderB  uint64 = 202
	riderC  uint64 = 303
	riderD  uint64 = 404
)

// testClock lets tests move time forward instead of sleeping through hold
// windows.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recorder captures emitted events so tests can assert on the emission
// boundary without a broker.
type recorder struct {
	mu         sync.Mutex
	confirmed  []model.Booking
	cancelled  []model.Booking
	reasons    []string
	completed  []model.Ride
	riderLists [][]uint64
}

func (r *recorder) BookingConfirmed(_ context.Context, b model.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, b)
}

func (r *recorder) BookingCancelled(_ context.Context, b model.Booking, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, b)
	r.reasons = append(r.reasons, reason)
}

func (r *recorder) RideCompleted(_ context.Context, ride model.Ride, riderIDs []uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, ride)
	r.riderLists = append(r.riderLists, riderIDs)
}

func newTestEngine(t *testing.T) (*Service, *memStore, *testClock, *recorder) {
	t.Helper()
	store := newMemStore()
	clock := &testClock{t: baseTime}
	rec := &recorder{}
	svc := NewService(store, rec, DefaultHoldTTL, nil)
	svc.now = clock.Now
	return svc, store, clock, rec
}

func mustCreateRide(t *testing.T, svc *Service, driverID uint64, seats int, departure time.Time) model.Ride {
	t.Helper()
	ride, err := svc.CreateRide(context.Background(), RideSpec{
		DriverID:    driverID,
		FromLabel:   "Campus",
		ToLabel:     "Airport",
		TotalSeats:  seats,
		DepartureAt: departure,
		DistanceKm:  15.2,
	})
	if err != nil {
		t.Fatalf("CreateRide: %v", err)
	}
	return ride
}

// checkInvariant asserts the global seat equation for one ride:
// available_seats + active lock seats + confirmed booking seats == total.
func checkInvariant(t *testing.T, store *memStore, rideID uint64) {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	ride := store.rides[rideID]
	if ride.Status != model.RideActive {
		return
	}
	held := 0
	for _, l := range store.locks {
		if l.RideID == rideID && l.Status == model.LockActive {
			held += l.SeatsLocked
		}
	}
	confirmed := 0
	for _, b := range store.bookings {
		if b.RideID == rideID && b.Status == model.BookingConfirmed {
			confirmed++
		}
	}
	if got := ride.AvailableSeats + held + confirmed; got != ride.TotalSeats {
		t.Fatalf("seat invariant broken: available=%d held=%d confirmed=%d total=%d",
			ride.AvailableSeats, held, confirmed, ride.TotalSeats)
	}
}

func availableSeats(store *memStore, rideID uint64) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.rides[rideID].AvailableSeats
}

func bookingState(store *memStore, id uint64) model.Booking {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.bookings[id]
}

func TestCreateRideValidation(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := svc.CreateRide(ctx, RideSpec{DriverID: driverA, TotalSeats: 0, DepartureAt: baseTime.Add(time.Hour)})
	if !errors.Is(err, ErrInvalidRideSpec) {
		t.Errorf("zero seats: got %v, want ErrInvalidRideSpec", err)
	}
	_, err = svc.CreateRide(ctx, RideSpec{DriverID: driverA, TotalSeats: 2, DepartureAt: baseTime.Add(-time.Minute)})
	if !errors.Is(err, ErrDepartureInPast) {
		t.Errorf("past departure: got %v, want ErrDepartureInPast", err)
	}
}

func TestCreateRideScheduleConflict(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreateRide(t, svc, driverA, 3, baseTime.Add(2*time.Hour))

	// 30 minutes after the first ride: same date, inside the window.
	_, err := svc.CreateRide(ctx, RideSpec{
		DriverID: driverA, TotalSeats: 2, DepartureAt: baseTime.Add(2*time.Hour + 30*time.Minute),
	})
	if !errors.Is(err, ErrScheduleConflict) {
		t.Errorf("30min gap: got %v, want ErrScheduleConflict", err)
	}

	// Two hours later is fine, and another driver is never in conflict.
	if _, err := svc.CreateRide(ctx, RideSpec{
		DriverID: driverA, TotalSeats: 2, DepartureAt: baseTime.Add(4 * time.Hour),
	}); err != nil {
		t.Errorf("2h gap: got %v, want nil", err)
	}
	if _, err := svc.CreateRide(ctx, RideSpec{
		DriverID: driverA + 1, TotalSeats: 2, DepartureAt: baseTime.Add(2*time.Hour + 10*time.Minute),
	}); err != nil {
		t.Errorf("other driver: got %v, want nil", err)
	}
}

func TestLockSeat(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 3, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	if grant.LockID == 0 || grant.BookingID == 0 {
		t.Fatalf("grant missing ids: %+v", grant)
	}
	if want := baseTime.Add(DefaultHoldTTL); !grant.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt: got %v, want %v", grant.ExpiresAt, want)
	}
	if got := availableSeats(store, ride.ID); got != 2 {
		t.Errorf("available seats: got %d, want 2", got)
	}
	if b := bookingState(store, grant.BookingID); b.Status != model.BookingPending {
		t.Errorf("booking status: got %s, want pending", b.Status)
	}
	checkInvariant(t, store, ride.ID)
}

func TestLockSeatPreconditions(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	if _, err := svc.LockSeat(ctx, 9999, riderB); !errors.Is(err, ErrRideNotFound) {
		t.Errorf("missing ride: got %v, want ErrRideNotFound", err)
	}
	if _, err := svc.LockSeat(ctx, ride.ID, driverA); !errors.Is(err, ErrSelfBooking) {
		t.Errorf("self booking: got %v, want ErrSelfBooking", err)
	}

	if err := svc.CancelRide(ctx, ride.ID, driverA); err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if _, err := svc.LockSeat(ctx, ride.ID, riderB); !errors.Is(err, ErrRideNotActive) {
		t.Errorf("cancelled ride: got %v, want ErrRideNotActive", err)
	}
}

func TestLockSeatIdempotentRetry(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	first, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("first LockSeat: %v", err)
	}
	retry, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("retried LockSeat: %v", err)
	}
	if retry != first {
		t.Errorf("retry produced a new hold: first %+v, retry %+v", first, retry)
	}
	if got := availableSeats(store, ride.ID); got != 1 {
		t.Errorf("available seats after retry: got %d, want 1", got)
	}
	checkInvariant(t, store, ride.ID)
}

func TestLockSeatDuplicateAfterConfirm(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	if _, err := svc.ConfirmBooking(ctx, grant.BookingID, riderB); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if _, err := svc.LockSeat(ctx, ride.ID, riderB); !errors.Is(err, ErrDuplicateBooking) {
		t.Errorf("lock with confirmed booking: got %v, want ErrDuplicateBooking", err)
	}
}

func TestLockSeatLastSeatRace(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 1, baseTime.Add(2*time.Hour))

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		noSeats int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rider uint64) {
			defer wg.Done()
			_, err := svc.LockSeat(ctx, ride.ID, rider)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrNoSeats):
				noSeats++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(1000 + i))
	}
	wg.Wait()

	if wins != 1 || noSeats != n-1 {
		t.Errorf("last seat race: %d winners and %d ErrNoSeats, want 1 and %d", wins, noSeats, n-1)
	}
	if got := availableSeats(store, ride.ID); got != 0 {
		t.Errorf("available seats: got %d, want 0", got)
	}
	checkInvariant(t, store, ride.ID)
}

func TestConfirmBooking(t *testing.T) {
	t.Parallel()
	svc, store, _, rec := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	b, err := svc.ConfirmBooking(ctx, grant.BookingID, riderB)
	if err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if b.Status != model.BookingConfirmed || b.ConfirmedAt == nil {
		t.Errorf("booking after confirm: %+v", b)
	}
	// Confirmed seat stays allocated.
	if got := availableSeats(store, ride.ID); got != 1 {
		t.Errorf("available seats: got %d, want 1", got)
	}
	checkInvariant(t, store, ride.ID)
	if len(rec.confirmed) != 1 {
		t.Errorf("confirmed events: got %d, want 1", len(rec.confirmed))
	}
}

func TestConfirmBookingGuards(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))
	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}

	if _, err := svc.ConfirmBooking(ctx, 9999, riderB); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("missing booking: got %v, want ErrBookingNotFound", err)
	}
	if _, err := svc.ConfirmBooking(ctx, grant.BookingID, riderC); !errors.Is(err, ErrNotBookingOwner) {
		t.Errorf("wrong owner: got %v, want ErrNotBookingOwner", err)
	}
	if _, err := svc.ConfirmBooking(ctx, grant.BookingID, riderB); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if _, err := svc.ConfirmBooking(ctx, grant.BookingID, riderB); !errors.Is(err, ErrBookingNotPending) {
		t.Errorf("double confirm: got %v, want ErrBookingNotPending", err)
	}
}

func TestConfirmExpiredLock(t *testing.T) {
	t.Parallel()
	svc, store, clock, rec := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	clock.Advance(DefaultHoldTTL + time.Second)

	if _, err := svc.ConfirmBooking(ctx, grant.BookingID, riderB); !errors.Is(err, ErrLockExpired) {
		t.Fatalf("confirm after TTL: got %v, want ErrLockExpired", err)
	}
	// The lazy expiry restored the seat and cancelled the booking.
	if got := availableSeats(store, ride.ID); got != 2 {
		t.Errorf("available seats: got %d, want 2", got)
	}
	b := bookingState(store, grant.BookingID)
	if b.Status != model.BookingCancelled || b.CancelReason == nil || *b.CancelReason != model.ReasonLockExpired {
		t.Errorf("booking after expiry: %+v", b)
	}
	checkInvariant(t, store, ride.ID)
	if len(rec.cancelled) != 1 || rec.reasons[0] != model.ReasonLockExpired {
		t.Errorf("cancelled events: %v %v", rec.cancelled, rec.reasons)
	}
}

func TestStaleLockReclaimedOnRetry(t *testing.T) {
	t.Parallel()
	svc, store, clock, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 1, baseTime.Add(2*time.Hour))

	first, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("first LockSeat: %v", err)
	}
	clock.Advance(DefaultHoldTTL + time.Second)

	// The reaper has not run; the retry itself reclaims the stale hold and
	// takes a fresh one on the last seat.
	second, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("retry after expiry: %v", err)
	}
	if second.LockID == first.LockID || second.BookingID == first.BookingID {
		t.Errorf("stale hold was reused: first %+v, second %+v", first, second)
	}
	if b := bookingState(store, first.BookingID); b.Status != model.BookingCancelled {
		t.Errorf("first booking: got %s, want cancelled", b.Status)
	}
	if got := availableSeats(store, ride.ID); got != 0 {
		t.Errorf("available seats: got %d, want 0", got)
	}
	checkInvariant(t, store, ride.ID)
}

func TestIdempotentExpiry(t *testing.T) {
	t.Parallel()
	svc, store, clock, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	clock.Advance(DefaultHoldTTL + time.Second)

	// Confirm path and reaper race to expire the same lock: exactly one
	// seat comes back, never two, never zero.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = svc.ConfirmBooking(ctx, grant.BookingID, riderB)
	}()
	go func() {
		defer wg.Done()
		_ = svc.expireLock(ctx, grant.LockID)
	}()
	wg.Wait()

	if got := availableSeats(store, ride.ID); got != 2 {
		t.Fatalf("available seats after racing expiry: got %d, want 2", got)
	}
	// A second sweep over the same lock is a no-op.
	if err := svc.expireLock(ctx, grant.LockID); err != nil {
		t.Fatalf("repeat expireLock: %v", err)
	}
	if got := availableSeats(store, ride.ID); got != 2 {
		t.Errorf("available seats after repeat sweep: got %d, want 2", got)
	}
	checkInvariant(t, store, ride.ID)
}

func TestReaperSweep(t *testing.T) {
	t.Parallel()
	svc, store, clock, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	if got := availableSeats(store, ride.ID); got != 1 {
		t.Fatalf("available seats after lock: got %d, want 1", got)
	}

	// Nothing to reap while the hold is live.
	reaper := NewReaper(svc, time.Minute, nil)
	reaper.Sweep(ctx)
	if got := availableSeats(store, ride.ID); got != 1 {
		t.Fatalf("sweep of live hold restored a seat: available=%d", got)
	}

	clock.Advance(DefaultHoldTTL + time.Second)
	reaper.Sweep(ctx)

	if got := availableSeats(store, ride.ID); got != 2 {
		t.Errorf("available seats after sweep: got %d, want 2", got)
	}
	b := bookingState(store, grant.BookingID)
	if b.Status != model.BookingCancelled || b.CancelReason == nil || *b.CancelReason != model.ReasonLockExpired {
		t.Errorf("booking after sweep: %+v", b)
	}
	checkInvariant(t, store, ride.ID)
}

func TestSingleSeatLifecycle(t *testing.T) {
	t.Parallel()
	svc, store, _, rec := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 1, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	if _, err := svc.LockSeat(ctx, ride.ID, riderC); !errors.Is(err, ErrNoSeats) {
		t.Errorf("second rider: got %v, want ErrNoSeats", err)
	}
	if _, err := svc.ConfirmBooking(ctx, grant.BookingID, riderB); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if err := svc.CompleteRide(ctx, ride.ID, driverA); err != nil {
		t.Fatalf("CompleteRide: %v", err)
	}

	if b := bookingState(store, grant.BookingID); b.Status != model.BookingCompleted {
		t.Errorf("booking after completion: got %s, want completed", b.Status)
	}
	// Seat was consumed, not restored.
	if got := availableSeats(store, ride.ID); got != 0 {
		t.Errorf("available seats after completion: got %d, want 0", got)
	}
	if len(rec.completed) != 1 {
		t.Fatalf("ride completed events: got %d, want 1", len(rec.completed))
	}
	if riders := rec.riderLists[0]; len(riders) != 1 || riders[0] != riderB {
		t.Errorf("completed rider list: got %v, want [%d]", riders, riderB)
	}
	if rec.completed[0].DistanceKm != 15.2 {
		t.Errorf("completed distance: got %v, want 15.2", rec.completed[0].DistanceKm)
	}
}

func TestCompleteRideGuards(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	if err := svc.CompleteRide(ctx, ride.ID, riderB); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-driver complete: got %v, want ErrForbidden", err)
	}
	if err := svc.CompleteRide(ctx, ride.ID, driverA); err != nil {
		t.Fatalf("CompleteRide: %v", err)
	}
	if err := svc.CompleteRide(ctx, ride.ID, driverA); !errors.Is(err, ErrRideNotActive) {
		t.Errorf("double complete: got %v, want ErrRideNotActive", err)
	}
}

func TestCancelBookingConfirmed(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	if _, err := svc.ConfirmBooking(ctx, grant.BookingID, riderB); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}

	if err := svc.CancelBooking(ctx, grant.BookingID, riderD, "changed plans"); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger cancel: got %v, want ErrForbidden", err)
	}
	if err := svc.CancelBooking(ctx, grant.BookingID, riderB, "changed plans"); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if got := availableSeats(store, ride.ID); got != 2 {
		t.Errorf("available seats after cancel: got %d, want 2", got)
	}
	store.mu.Lock()
	cancels := store.cancellations[riderB]
	store.mu.Unlock()
	if cancels != 1 {
		t.Errorf("rider cancellation counter: got %d, want 1", cancels)
	}
	if err := svc.CancelBooking(ctx, grant.BookingID, riderB, "again"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double cancel: got %v, want ErrInvalidState", err)
	}
	checkInvariant(t, store, ride.ID)
}

func TestCancelBookingPendingByDriver(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	if err := svc.CancelBooking(ctx, grant.BookingID, driverA, "driver declined"); err != nil {
		t.Fatalf("CancelBooking by driver: %v", err)
	}
	if got := availableSeats(store, ride.ID); got != 2 {
		t.Errorf("available seats: got %d, want 2", got)
	}
	// Driver-initiated cancellation does not count against the rider.
	store.mu.Lock()
	cancels := store.cancellations[riderB]
	store.mu.Unlock()
	if cancels != 0 {
		t.Errorf("rider cancellation counter: got %d, want 0", cancels)
	}
	checkInvariant(t, store, ride.ID)
}

func TestMarkNoShow(t *testing.T) {
	t.Parallel()
	svc, store, clock, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 2, baseTime.Add(2*time.Hour))

	grant, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	if _, err := svc.ConfirmBooking(ctx, grant.BookingID, riderB); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}

	// Before departure the call is rejected outright.
	if err := svc.MarkNoShow(ctx, grant.BookingID, driverA); !errors.Is(err, ErrInvalidState) {
		t.Errorf("no-show before departure: got %v, want ErrInvalidState", err)
	}

	clock.Advance(3 * time.Hour)
	if err := svc.MarkNoShow(ctx, grant.BookingID, riderC); !errors.Is(err, ErrForbidden) {
		t.Errorf("no-show by non-driver: got %v, want ErrForbidden", err)
	}
	if err := svc.MarkNoShow(ctx, grant.BookingID, driverA); err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	if b := bookingState(store, grant.BookingID); b.Status != model.BookingNoShow {
		t.Errorf("booking status: got %s, want no_show", b.Status)
	}
	// A no-show consumed a slot that cannot be resold for a departed ride.
	if got := availableSeats(store, ride.ID); got != 1 {
		t.Errorf("available seats: got %d, want 1", got)
	}
	store.mu.Lock()
	noShows := store.noShows[riderB]
	store.mu.Unlock()
	if noShows != 1 {
		t.Errorf("rider no-show counter: got %d, want 1", noShows)
	}
}

func TestCancelRideCascade(t *testing.T) {
	t.Parallel()
	svc, store, _, rec := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 3, baseTime.Add(2*time.Hour))

	pending, err := svc.LockSeat(ctx, ride.ID, riderB)
	if err != nil {
		t.Fatalf("LockSeat rider B: %v", err)
	}
	confirmed, err := svc.LockSeat(ctx, ride.ID, riderC)
	if err != nil {
		t.Fatalf("LockSeat rider C: %v", err)
	}
	if _, err := svc.ConfirmBooking(ctx, confirmed.BookingID, riderC); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}

	if err := svc.CancelRide(ctx, ride.ID, riderB); !errors.Is(err, ErrForbidden) {
		t.Errorf("cancel by rider: got %v, want ErrForbidden", err)
	}
	if err := svc.CancelRide(ctx, ride.ID, driverA); err != nil {
		t.Fatalf("CancelRide: %v", err)
	}

	for _, id := range []uint64{pending.BookingID, confirmed.BookingID} {
		b := bookingState(store, id)
		if b.Status != model.BookingCancelled || b.CancelReason == nil || *b.CancelReason != model.ReasonRideCancelled {
			t.Errorf("booking %d after ride cancel: %+v", id, b)
		}
	}
	// One cancellation event per dropped booking, none charged to riders.
	if len(rec.cancelled) != 2 {
		t.Errorf("cancellation events: got %d, want 2", len(rec.cancelled))
	}
	store.mu.Lock()
	charged := store.cancellations[riderB] + store.cancellations[riderC]
	store.mu.Unlock()
	if charged != 0 {
		t.Errorf("rider cancellation counters after ride cancel: got %d, want 0", charged)
	}
	if err := svc.CancelRide(ctx, ride.ID, driverA); !errors.Is(err, ErrRideNotActive) {
		t.Errorf("double cancel: got %v, want ErrRideNotActive", err)
	}
}

func TestNoDuplicateActiveState(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	ride := mustCreateRide(t, svc, driverA, 3, baseTime.Add(2*time.Hour))

	// Hammer LockSeat from one rider concurrently; however the calls
	// interleave, the rider must end up with exactly one active lock and
	// one open booking.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.LockSeat(ctx, ride.ID, riderB)
		}()
	}
	wg.Wait()

	store.mu.Lock()
	activeLocks, openBookings := 0, 0
	for _, l := range store.locks {
		if l.RideID == ride.ID && l.HolderID == riderB && l.Status == model.LockActive {
			activeLocks++
		}
	}
	for _, b := range store.bookings {
		if b.RideID == ride.ID && b.RiderID == riderB && b.Status.Open() {
			openBookings++
		}
	}
	store.mu.Unlock()

	if activeLocks != 1 {
		t.Errorf("active locks: got %d, want 1", activeLocks)
	}
	if openBookings != 1 {
		t.Errorf("open bookings: got %d, want 1", openBookings)
	}
	checkInvariant(t, store, ride.ID)
}
