package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"turnero/database"
	"turnero/database/repository"
	"turnero/models"
	"turnero/services/availability"

	"go.uber.org/zap"
)

// now is Sunday 2030-01-06 10:00 UTC; monday is the next day.
var (
	now    = time.Date(2030, 1, 6, 10, 0, 0, 0, time.UTC)
	monday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
)

func at(hour, min int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

type fixture struct {
	svc   *Service
	repos *repository.Set
}

func drA(mode models.AttendanceMode) models.Agent {
	return models.Agent{
		ID:              "dr-a",
		TenantID:        "t1",
		FirstName:       "Dr.",
		LastName:        "A",
		Mode:            mode,
		DefaultDuration: 30,
		Active:          true,
		Availability: []models.AvailabilityWindow{
			{DayOfWeek: 1, Start: "08:00", End: "12:00", Active: true},
		},
	}
}

func newFixture(t *testing.T, configure func(*models.TenantSettings), agents ...models.Agent) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewMemorySet()

	settings := models.DefaultTenantSettings("t1")
	settings.Schedule.MinLeadHours = 1
	settings.Schedule.CancellationWindowHours = 2
	if configure != nil {
		configure(&settings)
	}
	if err := repos.Settings.Put(ctx, &settings); err != nil {
		t.Fatal(err)
	}
	for i := range agents {
		if err := repos.Agents.Create(ctx, &agents[i]); err != nil {
			t.Fatal(err)
		}
	}

	svc := NewService(repos, availability.NewEngine(repos), zap.NewNop())
	svc.Now = func() time.Time { return now }
	return &fixture{svc: svc, repos: repos}
}

func (f *fixture) create(t *testing.T, in CreateInput) (*models.Appointment, error) {
	t.Helper()
	if in.TenantID == "" {
		in.TenantID = "t1"
	}
	if in.ClientID == "" {
		in.ClientID = "c1"
	}
	return f.svc.Create(context.Background(), in)
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	ve, ok := AsValidation(err)
	if !ok {
		t.Fatalf("error = %v, want validation error %s", err, code)
	}
	if ve.Code != code {
		t.Fatalf("code = %s (%s), want %s", ve.Code, ve.Message, code)
	}
}

func TestCreatePendingThenConfirm(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *models.TenantSettings) { s.Schedule.RequiresConfirmation = true }, drA(models.ModeScheduled))

	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(8, 0)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.Status != models.StatusPending || appt.Confirmed {
		t.Fatalf("status = %s confirmed = %v, want pending/false", appt.Status, appt.Confirmed)
	}
	if !appt.End.Equal(at(8, 30)) || appt.Duration != 30 {
		t.Fatalf("end = %v duration = %d", appt.End, appt.Duration)
	}

	confirmed, err := f.svc.UpdateStatus(context.Background(), "t1", appt.ID, models.StatusConfirmed, "")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !confirmed.Confirmed || confirmed.ConfirmedAt == nil {
		t.Fatalf("confirmed flag not stamped: %+v", confirmed)
	}
}

func TestCreateConfirmedWithoutConfirmationRequirement(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, drA(models.ModeScheduled))
	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != models.StatusConfirmed || !appt.Confirmed {
		t.Fatalf("status = %s confirmed = %v", appt.Status, appt.Confirmed)
	}
}

func TestCreateRejectsOverlapInScheduledMode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, drA(models.ModeScheduled))
	if _, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)}); err != nil {
		t.Fatal(err)
	}
	_, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 15), ClientID: "c2"})
	wantCode(t, err, CodeSlotUnavailable)
}

func TestCreateConcurrentSameSlotAdmitsOne(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, drA(models.ModeScheduled))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, rejected int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), CreateInput{
				TenantID: "t1", AgentID: "dr-a", ClientID: "c1", Start: at(10, 0),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if _, isVE := AsValidation(err); isVE {
				rejected++
			}
		}()
	}
	wg.Wait()

	if ok != 1 || rejected != 9 {
		t.Fatalf("ok = %d rejected = %d, want 1 and 9", ok, rejected)
	}
}

func TestCreateMixedModeAdmitsConflict(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, drA(models.ModeMixed))
	if _, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0), ClientID: "c2"}); err != nil {
		t.Fatalf("mixed mode rejected an overlapping booking: %v", err)
	}

	appts, err := f.svc.ListForDay(context.Background(), "t1", "dr-a", monday)
	if err != nil {
		t.Fatal(err)
	}
	if len(appts) != 2 {
		t.Fatalf("got %d appointments, want 2", len(appts))
	}
}

func TestCreateFreeFormCapacity(t *testing.T) {
	t.Parallel()

	agent := drA(models.ModeFreeForm)
	agent.SimultaneousCapacity = 2
	f := newFixture(t, nil, agent)

	for i := 0; i < 2; i++ {
		if _, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(10, 0)}); err != nil {
			t.Fatalf("booking %d: %v", i+1, err)
		}
	}
	_, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(10, 0)})
	wantCode(t, err, CodeNoCapacity)
	if ve, _ := AsValidation(err); ve.Message != availability.ReasonNoCapacity {
		t.Fatalf("message = %q", ve.Message)
	}
}

func TestCreateFreeFormDailyCap(t *testing.T) {
	t.Parallel()

	agent := drA(models.ModeFreeForm)
	agent.SimultaneousCapacity = 5
	agent.MaxPerDay = 1
	f := newFixture(t, nil, agent)

	if _, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(10, 0)}); err != nil {
		t.Fatal(err)
	}
	_, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(15, 0)})
	wantCode(t, err, CodeDailyLimit)
}

func TestCreateLeadTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *models.TenantSettings) {
		s.Schedule.MinLeadHours = 2
		s.Schedule.MaxLeadDays = 7
	}, drA(models.ModeScheduled))

	_, err := f.create(t, CreateInput{AgentID: "dr-a", Start: now.Add(time.Hour)})
	wantCode(t, err, CodeLeadTime)

	_, err = f.create(t, CreateInput{AgentID: "dr-a", Start: now.AddDate(0, 0, 8)})
	wantCode(t, err, CodeLeadTime)
}

func TestCreateInactiveAgent(t *testing.T) {
	t.Parallel()

	agent := drA(models.ModeScheduled)
	agent.Active = false
	f := newFixture(t, nil, agent)

	_, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)})
	wantCode(t, err, CodeAgentUnavailable)
}

func TestCreateFieldBagRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *models.TenantSettings) {
		s.Schedule.Fields = []models.FieldSpec{
			{Key: "motivo", Label: "Motivo", Kind: models.FieldText, Required: true},
			{Key: "edad", Label: "Edad", Kind: models.FieldNumber},
			{Key: "obra_social", Label: "Obra social", Kind: models.FieldEnum, Options: []string{"OSDE", "Particular"}},
		}
	}, drA(models.ModeScheduled))

	created, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(11, 0), Fields: map[string]any{
		"motivo":      "control anual",
		"edad":        "34",
		"obra_social": "osde",
	}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Get(context.Background(), "t1", created.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"motivo": "control anual", "edad": 34.0, "obra_social": "OSDE"}
	if len(got.Fields) != len(want) {
		t.Fatalf("fields = %v, want %v", got.Fields, want)
	}
	for k, v := range want {
		if got.Fields[k] != v {
			t.Fatalf("field %s = %v, want %v", k, got.Fields[k], v)
		}
	}

	_, err = f.create(t, CreateInput{AgentID: "dr-a", Start: at(11, 30), Fields: map[string]any{"edad": "x"}})
	wantCode(t, err, CodeInvalidField)
}

func TestCancelWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *models.TenantSettings) { s.Schedule.CancellationWindowHours = 24 }, drA(models.ModeScheduled))
	ctx := context.Background()

	soon, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(8, 0)}) // 22h ahead
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Cancel(ctx, "t1", soon.ID, "no puedo")
	wantCode(t, err, CodeCancelWindow)

	later, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(8, 0).AddDate(0, 0, 7)})
	if err != nil {
		t.Fatal(err)
	}
	cancelled, err := f.svc.Cancel(ctx, "t1", later.ID, "no puedo")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.StatusCancelled || cancelled.CancellationReason != "no puedo" || cancelled.CancelledAt == nil {
		t.Fatalf("cancel not recorded: %+v", cancelled)
	}

	// The freed slot can be booked again.
	if _, err := f.create(t, CreateInput{AgentID: "dr-a", Start: later.Start, ClientID: "c9"}); err != nil {
		t.Fatalf("rebooking a cancelled slot: %v", err)
	}
}

func TestUpdateStatusTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to models.AppointmentStatus
		ok       bool
	}{
		{models.StatusPending, models.StatusConfirmed, true},
		{models.StatusConfirmed, models.StatusInProgress, true},
		{models.StatusInProgress, models.StatusCompleted, true},
		{models.StatusInProgress, models.StatusCancelled, true},
		{models.StatusPending, models.StatusNoShow, true},
		{models.StatusConfirmed, models.StatusNoShow, true},
		{models.StatusPending, models.StatusCompleted, false},
		{models.StatusInProgress, models.StatusNoShow, false},
		{models.StatusCompleted, models.StatusCancelled, false},
		{models.StatusCancelled, models.StatusConfirmed, false},
		{models.StatusNoShow, models.StatusPending, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}

	f := newFixture(t, nil, drA(models.ModeScheduled))
	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.UpdateStatus(context.Background(), "t1", appt.ID, models.StatusCompleted, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, drA(models.ModeFreeForm))
	ctx := context.Background()

	stats, err := f.svc.Stats(ctx, "t1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.AttendanceRate != 0 || stats.CancellationRate != 0 {
		t.Fatalf("empty stats = %+v", stats)
	}

	set := func(status models.AppointmentStatus, hour int) {
		t.Helper()
		err := f.repos.Appointments.Create(ctx, &models.Appointment{
			TenantID: "t1", AgentID: "dr-a", ClientID: "c1", Status: status,
			Start: at(hour, 0), End: at(hour, 30),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	set(models.StatusCompleted, 8)
	set(models.StatusCompleted, 9)
	set(models.StatusCompleted, 10)
	set(models.StatusNoShow, 11)
	set(models.StatusCancelled, 12)

	stats, err = f.svc.Stats(ctx, "t1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 5 || stats.AttendanceRate != 0.75 || stats.CancellationRate != 0.2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestConfirmWithReply(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *models.TenantSettings) { s.Schedule.RequiresConfirmation = true }, drA(models.ModeScheduled))
	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)})
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.ConfirmWithReply(context.Background(), "t1", appt.ID, ConfirmationReply)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusConfirmed || !got.Confirmed {
		t.Fatalf("status = %s", got.Status)
	}
	last := got.Notifications[len(got.Notifications)-1]
	if last.Type != models.NotificationConfirmation || last.Reply != ConfirmationReply || last.RepliedAt == nil {
		t.Fatalf("confirmation record = %+v", last)
	}
}

func TestRescheduleExcludesItself(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, drA(models.ModeScheduled))
	ctx := context.Background()

	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)})
	if err != nil {
		t.Fatal(err)
	}
	other, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(10, 0), ClientID: "c2"})
	if err != nil {
		t.Fatal(err)
	}

	moved, err := f.svc.Reschedule(ctx, "t1", appt.ID, at(9, 15))
	if err != nil {
		t.Fatalf("overlapping itself should be allowed: %v", err)
	}
	if !moved.End.Equal(at(9, 45)) {
		t.Fatalf("end = %v", moved.End)
	}

	_, err = f.svc.Reschedule(ctx, "t1", appt.ID, other.Start)
	wantCode(t, err, CodeSlotUnavailable)

	if _, err := f.svc.Reschedule(ctx, "t1", appt.ID, at(11, 0)); err != nil {
		t.Fatal(err)
	}
	// The original start is free again.
	if _, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0), ClientID: "c3"}); err != nil {
		t.Fatalf("old slot still occupied: %v", err)
	}
}

func TestCreateSchedulesNotifications(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *models.TenantSettings) {
		s.Schedule.NotificationRules = []models.NotificationRule{
			{Active: true, Type: models.NotificationConfirmation, Moment: models.MomentHoursBefore, HoursBefore: 2, Template: "¿Confirmás tu turno del {fecha} a las {hora}?"},
			{Active: true, Type: models.NotificationReminder, Moment: models.MomentDayBefore, SendAt: "20:00"},
			{Active: false, Moment: models.MomentSameDay},
		}
	}, drA(models.ModeScheduled))

	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(11, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(appt.Notifications) != 2 {
		t.Fatalf("notifications = %+v", appt.Notifications)
	}
	if want := time.Date(2030, 1, 6, 20, 0, 0, 0, time.UTC); !appt.Notifications[0].ScheduledFor.Equal(want) {
		t.Fatalf("first notification at %v, want %v", appt.Notifications[0].ScheduledFor, want)
	}
	if !appt.Notifications[1].ScheduledFor.Equal(at(9, 0)) || appt.Notifications[1].Type != models.NotificationConfirmation {
		t.Fatalf("second notification = %+v", appt.Notifications[1])
	}
}

func TestUpdateFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *models.TenantSettings) {
		s.Schedule.Fields = []models.FieldSpec{{Key: "nota", Label: "Nota", Kind: models.FieldText}}
	}, drA(models.ModeScheduled))
	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)})
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.UpdateFields(context.Background(), "t1", appt.ID, map[string]any{"nota": "llevar estudios"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Fields["nota"] != "llevar estudios" {
		t.Fatalf("fields = %v", got.Fields)
	}

	_, err = f.svc.UpdateFields(context.Background(), "t1", appt.ID, map[string]any{"color": "rojo"})
	wantCode(t, err, CodeInvalidField)
}

// interleavedRepo runs between once after the first read, standing in for a
// worker that writes while the service holds a stale copy.
type interleavedRepo struct {
	repository.AppointmentRepository
	once    sync.Once
	between func()
	updates int
}

func (r *interleavedRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Appointment, error) {
	appt, err := r.AppointmentRepository.GetByID(ctx, tenantID, id)
	r.once.Do(r.between)
	return appt, err
}

func (r *interleavedRepo) Update(ctx context.Context, appt *models.Appointment) error {
	r.updates++
	return r.AppointmentRepository.Update(ctx, appt)
}

func TestUpdateKeepsConcurrentNotificationMark(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *models.TenantSettings) {
		s.Schedule.NotificationRules = []models.NotificationRule{
			{Active: true, Type: models.NotificationReminder, Moment: models.MomentHoursBefore, HoursBefore: 2},
		}
	}, drA(models.ModeScheduled))
	ctx := context.Background()
	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(11, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(appt.Notifications) != 1 {
		t.Fatalf("notifications = %+v", appt.Notifications)
	}

	repo := &interleavedRepo{AppointmentRepository: f.repos.Appointments}
	repo.between = func() {
		if err := f.repos.Appointments.MarkNotificationSent(ctx, "t1", appt.ID, 0, now); err != nil {
			t.Errorf("MarkNotificationSent: %v", err)
		}
	}
	f.svc.Repo = repo

	got, err := f.svc.UpdateFields(ctx, "t1", appt.ID, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if repo.updates != 2 {
		t.Fatalf("updates = %d, want a retry after the conflict", repo.updates)
	}
	stored, err := f.repos.Appointments.GetByID(ctx, "t1", appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Notifications[0].Sent || !got.Notifications[0].Sent {
		t.Fatal("update reverted a notification marked sent concurrently")
	}
}

func TestUpdateRejectsStaleVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, drA(models.ModeScheduled))
	ctx := context.Background()
	appt, err := f.create(t, CreateInput{AgentID: "dr-a", Start: at(9, 0)})
	if err != nil {
		t.Fatal(err)
	}
	stale, err := f.repos.Appointments.GetByID(ctx, "t1", appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateStatus(ctx, "t1", appt.ID, models.StatusConfirmed, ""); err != nil {
		t.Fatal(err)
	}

	stale.Notes = "stale"
	if err := f.repos.Appointments.Update(ctx, stale); !errors.Is(err, database.ErrConflict) {
		t.Fatalf("Update with stale version = %v, want ErrConflict", err)
	}
}
