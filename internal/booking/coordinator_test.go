package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/clock"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/outbox"
)

// fakeRepo is the in-memory Repository used by coordinator tests. WithTx
// just runs fn; rollback behavior is the database's job, not the
// coordinator's, so the tests only assert on what the coordinator attempts.
type fakeRepo struct {
	merchant  Merchant
	staff     map[uuid.UUID]Staff
	services  map[uuid.UUID]Service
	customers map[uuid.UUID]Customer
	schedules map[uuid.UUID]map[time.Weekday]ScheduleEntry
	conflicts map[uuid.UUID][]ConflictingBooking
	occupied  map[uuid.UUID][]OccupiedInterval
	bookings  map[uuid.UUID]*Booking

	events     []outbox.Event
	lockOrder  []uuid.UUID
	createErrs []error
}

func newFakeRepo() *fakeRepo {
	tenantID := uuid.New()
	allWeek := make(BusinessHours)
	for day := time.Sunday; day <= time.Saturday; day++ {
		allWeek[day] = DayWindow{Open: true, OpenMins: 9 * 60, CloseMins: 17 * 60}
	}
	return &fakeRepo{
		merchant: Merchant{
			ID:                  tenantID,
			Slug:                "test-salon",
			Name:                "Test Salon",
			Timezone:            "UTC",
			BusinessHours:       allWeek,
			AutoConfirmBookings: true,
		},
		staff:     map[uuid.UUID]Staff{},
		services:  map[uuid.UUID]Service{},
		customers: map[uuid.UUID]Customer{},
		schedules: map[uuid.UUID]map[time.Weekday]ScheduleEntry{},
		conflicts: map[uuid.UUID][]ConflictingBooking{},
		occupied:  map[uuid.UUID][]OccupiedInterval{},
		bookings:  map[uuid.UUID]*Booking{},
	}
}

func (f *fakeRepo) addStaff(name string) uuid.UUID {
	id := uuid.New()
	f.staff[id] = Staff{ID: id, TenantID: f.merchant.ID, Name: name}
	days := map[time.Weekday]ScheduleEntry{}
	for day := time.Sunday; day <= time.Saturday; day++ {
		days[day] = ScheduleEntry{StaffID: id, Day: day, StartMins: 9 * 60, EndMins: 17 * 60}
	}
	f.schedules[id] = days
	return id
}

func (f *fakeRepo) addService(duration time.Duration, price int64) uuid.UUID {
	id := uuid.New()
	f.services[id] = Service{
		ID:       id,
		TenantID: f.merchant.ID,
		Name:     "service",
		Duration: duration,
		Price:    decimal.NewFromInt(price),
	}
	return id
}

func (f *fakeRepo) addCustomer() uuid.UUID {
	id := uuid.New()
	f.customers[id] = Customer{ID: id, TenantID: f.merchant.ID, Name: "customer"}
	return id
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeRepo) LockStaff(_ context.Context, _ uuid.UUID, staffID uuid.UUID) error {
	if _, ok := f.staff[staffID]; !ok {
		return ErrStaffNotFound
	}
	f.lockOrder = append(f.lockOrder, staffID)
	return nil
}

func (f *fakeRepo) GetMerchant(_ context.Context, tenantID uuid.UUID) (Merchant, error) {
	if tenantID != f.merchant.ID {
		return Merchant{}, ErrMerchantNotFound
	}
	return f.merchant, nil
}

func (f *fakeRepo) GetStaff(_ context.Context, _ uuid.UUID, staffID uuid.UUID) (Staff, error) {
	st, ok := f.staff[staffID]
	if !ok {
		return Staff{}, ErrStaffNotFound
	}
	return st, nil
}

func (f *fakeRepo) GetService(_ context.Context, _ uuid.UUID, serviceID uuid.UUID) (Service, error) {
	svc, ok := f.services[serviceID]
	if !ok {
		return Service{}, ErrServiceNotFound
	}
	return svc, nil
}

func (f *fakeRepo) GetCustomer(_ context.Context, _ uuid.UUID, customerID uuid.UUID) (Customer, error) {
	c, ok := f.customers[customerID]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

func (f *fakeRepo) GetScheduleEntry(_ context.Context, _ uuid.UUID, staffID uuid.UUID, day time.Weekday) (*ScheduleEntry, error) {
	entry, ok := f.schedules[staffID][day]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeRepo) ListScheduleEntries(_ context.Context, _ uuid.UUID, staffID uuid.UUID) ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	for day := time.Sunday; day <= time.Saturday; day++ {
		if entry, ok := f.schedules[staffID][day]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (f *fakeRepo) FindConflicts(_ context.Context, _ uuid.UUID, staffID uuid.UUID, interval TimeSlot, excludeBookingID uuid.UUID) ([]ConflictingBooking, error) {
	var out []ConflictingBooking
	for _, c := range f.conflicts[staffID] {
		if c.ID == excludeBookingID {
			continue
		}
		if Overlaps(interval, TimeSlot{Start: c.StartTime, End: c.EndTime}) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateBooking(_ context.Context, b *Booking) error {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	clone := *b
	f.bookings[b.ID] = &clone
	return nil
}

func (f *fakeRepo) GetBooking(_ context.Context, _ uuid.UUID, id uuid.UUID) (*Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	clone := *b
	clone.events = nil
	return &clone, nil
}

func (f *fakeRepo) UpdateBooking(_ context.Context, b *Booking) error {
	if _, ok := f.bookings[b.ID]; !ok {
		return ErrBookingNotFound
	}
	clone := *b
	f.bookings[b.ID] = &clone
	return nil
}

func (f *fakeRepo) ListOccupied(_ context.Context, _ uuid.UUID, staffID uuid.UUID, _ time.Time, _ time.Time) ([]OccupiedInterval, error) {
	return f.occupied[staffID], nil
}

func (f *fakeRepo) AppendEvent(_ context.Context, event outbox.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRepo) eventTypes() []string {
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.EventType
	}
	return out
}

var testNow = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC) // Monday

func newTestCoordinator(repo *fakeRepo, opts ...CoordinatorOption) *Coordinator {
	return NewCoordinator(repo, clock.NewFixed(testNow), opts...)
}

func mondayAt(hour int) time.Time {
	return time.Date(2026, 1, 5, hour, 0, 0, 0, time.UTC)
}

func TestCreateBooking_ConfirmedWithEvents(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)

	b, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(10),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
		Source:     "WALK_IN",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if b.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", b.Status)
	}
	if b.Number == "" {
		t.Fatalf("expected a booking number")
	}
	if !b.Slot.End.Equal(mondayAt(11)) {
		t.Fatalf("expected slot end 11:00, got %s", b.Slot.End)
	}
	if !b.TotalAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected total 50, got %s", b.TotalAmount)
	}

	types := repo.eventTypes()
	if len(types) != 2 || types[0] != EventCreated || types[1] != EventConfirmed {
		t.Fatalf("expected created+confirmed outbox rows, got %v", types)
	}
	for _, ev := range repo.events {
		if ev.TenantID != repo.merchant.ID || ev.AggregateID != b.ID || ev.AggregateType != outbox.AggregateTypeBooking {
			t.Fatalf("outbox identity fields wrong: %+v", ev)
		}
	}
}

func TestCreateBooking_OnlineStaysPendingWithoutAutoConfirm(t *testing.T) {
	repo := newFakeRepo()
	repo.merchant.AutoConfirmBookings = false
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)

	b, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(10),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
		Source:     SourceOnline,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if b.Status != StatusPending {
		t.Fatalf("expected pending for online booking, got %s", b.Status)
	}
	types := repo.eventTypes()
	if len(types) != 1 || types[0] != EventCreated {
		t.Fatalf("expected only created event, got %v", types)
	}
}

func TestCreateBooking_ConflictRejected(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	repo.conflicts[staffID] = []ConflictingBooking{{
		ID:            uuid.New(),
		BookingNumber: "BKEXIST",
		StartTime:     mondayAt(10),
		EndTime:       mondayAt(11),
		Status:        StatusConfirmed,
		StaffID:       staffID,
		StaffName:     "Alice",
	}}
	c := newTestCoordinator(repo)

	_, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(10).Add(30 * time.Minute),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
	})

	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflictErr.Conflicts) != 1 || conflictErr.Conflicts[0].BookingNumber != "BKEXIST" {
		t.Fatalf("conflict detail wrong: %+v", conflictErr.Conflicts)
	}
	if conflictErr.StaffName != "Alice" {
		t.Fatalf("expected staff name in error, got %q", conflictErr.StaffName)
	}
	if len(repo.events) != 0 || len(repo.bookings) != 0 {
		t.Fatalf("rejected booking must not persist anything")
	}
}

func TestCreateBooking_OverrideBypassesChecks(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	repo.conflicts[staffID] = []ConflictingBooking{{
		ID:        uuid.New(),
		StartTime: mondayAt(10),
		EndTime:   mondayAt(11),
		StaffID:   staffID,
	}}
	c := newTestCoordinator(repo)

	input := CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(10),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
		Override:   true,
	}
	if _, err := c.CreateBooking(context.Background(), input); !errors.Is(err, ErrOverrideReasonRequired) {
		t.Fatalf("expected override reason to be required, got %v", err)
	}

	input.OverrideReason = "double-booked on purpose"
	b, err := c.CreateBooking(context.Background(), input)
	if err != nil {
		t.Fatalf("override create: %v", err)
	}
	if !b.IsOverride || b.OverrideReason != "double-booked on purpose" {
		t.Fatalf("override flags not set: %+v", b)
	}
}

func TestCreateBooking_OutsideBusinessHours(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)

	_, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(18),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
	})

	var schedErr *ScheduleError
	if !errors.As(err, &schedErr) {
		t.Fatalf("expected ScheduleError, got %v", err)
	}
}

func TestCreateBooking_OvernightIntervalRejected(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(240*time.Minute, 200)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)

	// 22:00 plus 240 minutes ends at 02:00 the next day. Measured as
	// minutes past midnight the end looks earlier than close; the check
	// must still reject it.
	_, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(22),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
	})

	var schedErr *ScheduleError
	if !errors.As(err, &schedErr) {
		t.Fatalf("expected ScheduleError for overnight interval, got %v", err)
	}
	if len(repo.bookings) != 0 {
		t.Fatalf("overnight booking must not be persisted")
	}
}

func TestCreateBooking_OutsideStaffRoster(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	// Not rostered on Mondays.
	delete(repo.schedules[staffID], time.Monday)
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)

	_, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(10),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
	})

	var schedErr *ScheduleError
	if !errors.As(err, &schedErr) {
		t.Fatalf("expected ScheduleError, got %v", err)
	}
}

func TestCreateBooking_NoItems(t *testing.T) {
	repo := newFakeRepo()
	c := newTestCoordinator(repo)
	_, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: uuid.New(),
		StartTime:  mondayAt(10),
	})
	if !errors.Is(err, ErrServiceRequired) {
		t.Fatalf("expected ErrServiceRequired, got %v", err)
	}
}

func TestCreateBooking_NumberRetry(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()

	input := CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(10),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
	}

	// Two collisions, then success.
	repo.createErrs = []error{ErrDuplicateBookingNumber, ErrDuplicateBookingNumber}
	c := newTestCoordinator(repo, WithNumberAttempts(3))
	if _, err := c.CreateBooking(context.Background(), input); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}

	// Collisions on every attempt.
	repo.createErrs = []error{ErrDuplicateBookingNumber, ErrDuplicateBookingNumber, ErrDuplicateBookingNumber}
	if _, err := c.CreateBooking(context.Background(), input); !errors.Is(err, ErrBookingNumberExhausted) {
		t.Fatalf("expected ErrBookingNumberExhausted, got %v", err)
	}
}

func TestCreateBooking_LocksStaffInSortedOrder(t *testing.T) {
	repo := newFakeRepo()
	staffA := repo.addStaff("Alice")
	staffB := repo.addStaff("Bob")
	serviceID := repo.addService(30*time.Minute, 25)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)

	// Submit in descending id order; locks must still come out ascending.
	first, second := staffA, staffB
	if first.String() < second.String() {
		first, second = second, first
	}
	_, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(10),
		Items: []LineItemInput{
			{ServiceID: serviceID, StaffID: first},
			{ServiceID: serviceID, StaffID: second},
		},
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if len(repo.lockOrder) != 2 {
		t.Fatalf("expected 2 locks, got %d", len(repo.lockOrder))
	}
	if repo.lockOrder[0].String() > repo.lockOrder[1].String() {
		t.Fatalf("locks not sorted: %v", repo.lockOrder)
	}
}

func createTestBooking(t *testing.T, c *Coordinator, repo *fakeRepo, staffID, serviceID, customerID uuid.UUID) *Booking {
	t.Helper()
	b, err := c.CreateBooking(context.Background(), CreateBookingInput{
		TenantID:   repo.merchant.ID,
		CustomerID: customerID,
		StartTime:  mondayAt(10),
		Items:      []LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	repo.events = nil
	return b
}

func TestReschedule_MovesSlotAndExcludesSelf(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)
	b := createTestBooking(t, c, repo, staffID, serviceID, customerID)

	// The booking's own interval shows up in the conflict scan; it must be
	// excluded when rescheduling to an overlapping time.
	repo.conflicts[staffID] = []ConflictingBooking{{
		ID:        b.ID,
		StartTime: b.Slot.Start,
		EndTime:   b.Slot.End,
		StaffID:   staffID,
	}}

	moved, err := c.Reschedule(context.Background(), RescheduleInput{
		TenantID:     repo.merchant.ID,
		BookingID:    b.ID,
		NewStartTime: mondayAt(10).Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !moved.Slot.Start.Equal(mondayAt(10).Add(30 * time.Minute)) {
		t.Fatalf("slot did not move: %s", moved.Slot.Start)
	}
	if !moved.Slot.End.Equal(mondayAt(11).Add(30 * time.Minute)) {
		t.Fatalf("duration not preserved: %s", moved.Slot.End)
	}
	types := repo.eventTypes()
	if len(types) != 1 || types[0] != EventRescheduled {
		t.Fatalf("expected rescheduled event, got %v", types)
	}
}

func TestReschedule_ReassignsStaff(t *testing.T) {
	repo := newFakeRepo()
	staffA := repo.addStaff("Alice")
	staffB := repo.addStaff("Bob")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)
	b := createTestBooking(t, c, repo, staffA, serviceID, customerID)

	moved, err := c.Reschedule(context.Background(), RescheduleInput{
		TenantID:     repo.merchant.ID,
		BookingID:    b.ID,
		NewStartTime: mondayAt(13),
		NewStaffID:   staffB,
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	for _, item := range moved.Items {
		if item.StaffID != staffB {
			t.Fatalf("item not reassigned: %s", item.StaffID)
		}
	}

	// Both the old and the new staff member must be locked.
	locked := map[uuid.UUID]bool{}
	for _, id := range repo.lockOrder {
		locked[id] = true
	}
	if !locked[staffA] || !locked[staffB] {
		t.Fatalf("expected both staff locked, got %v", repo.lockOrder)
	}

	_, err = c.Reschedule(context.Background(), RescheduleInput{
		TenantID:     repo.merchant.ID,
		BookingID:    b.ID,
		NewStartTime: mondayAt(14),
		NewStaffID:   uuid.New(),
	})
	if !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound for unknown staff, got %v", err)
	}
}

func TestReschedule_ConflictWithOtherBooking(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)
	b := createTestBooking(t, c, repo, staffID, serviceID, customerID)

	repo.conflicts[staffID] = []ConflictingBooking{{
		ID:        uuid.New(),
		StartTime: mondayAt(14),
		EndTime:   mondayAt(15),
		StaffID:   staffID,
		StaffName: "Alice",
	}}

	_, err := c.Reschedule(context.Background(), RescheduleInput{
		TenantID:     repo.merchant.ID,
		BookingID:    b.ID,
		NewStartTime: mondayAt(14),
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestReschedule_TerminalRejected(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)
	b := createTestBooking(t, c, repo, staffID, serviceID, customerID)

	if _, err := c.Cancel(context.Background(), repo.merchant.ID, b.ID, "test"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := c.Reschedule(context.Background(), RescheduleInput{
		TenantID:     repo.merchant.ID,
		BookingID:    b.ID,
		NewStartTime: mondayAt(14),
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateServices_RecomputesTotalAndChain(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	extraID := repo.addService(30*time.Minute, 20)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)
	b := createTestBooking(t, c, repo, staffID, serviceID, customerID)

	updated, err := c.UpdateServices(context.Background(), UpdateServicesInput{
		TenantID:  repo.merchant.ID,
		BookingID: b.ID,
		Items: []LineItemInput{
			{ServiceID: serviceID, StaffID: staffID},
			{ServiceID: extraID, StaffID: staffID},
		},
	})
	if err != nil {
		t.Fatalf("update services: %v", err)
	}
	if !updated.TotalAmount.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected total 70, got %s", updated.TotalAmount)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(updated.Items))
	}
	if !updated.Items[1].Slot.Start.Equal(updated.Items[0].Slot.End) {
		t.Fatalf("items must chain back to back")
	}
	if !updated.Slot.End.Equal(mondayAt(11).Add(30 * time.Minute)) {
		t.Fatalf("slot end not extended: %s", updated.Slot.End)
	}
	types := repo.eventTypes()
	if len(types) != 1 || types[0] != EventServicesUpdated {
		t.Fatalf("expected services_updated event, got %v", types)
	}
}

func TestChangeCustomer_UnknownCustomer(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)
	b := createTestBooking(t, c, repo, staffID, serviceID, customerID)

	if _, err := c.ChangeCustomer(context.Background(), repo.merchant.ID, b.ID, uuid.New()); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestTransitions_PersistAndEmit(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)
	customerID := repo.addCustomer()
	c := newTestCoordinator(repo)
	b := createTestBooking(t, c, repo, staffID, serviceID, customerID)

	if _, err := c.Start(context.Background(), repo.merchant.ID, b.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := c.Complete(context.Background(), repo.merchant.ID, b.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if stored := repo.bookings[b.ID]; stored.Status != StatusCompleted {
		t.Fatalf("completion not persisted, stored %s", stored.Status)
	}
	types := repo.eventTypes()
	if len(types) != 1 || types[0] != EventCompleted {
		t.Fatalf("expected completed event, got %v", types)
	}

	if _, err := c.Start(context.Background(), repo.merchant.ID, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected restart of completed booking to fail, got %v", err)
	}
}
