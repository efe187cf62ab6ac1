package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"turnero/database/repository"
	"turnero/models"
	"turnero/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

var now = time.Date(2030, 1, 6, 10, 0, 0, 0, time.UTC)

type fakeQueue struct {
	mu  sync.Mutex
	ids map[string]*asynq.Task
	err error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	p, err := tasks.ParseNotificationTask(task)
	if err != nil {
		return nil, err
	}
	id := tasks.NotificationTaskID(p)
	if _, ok := q.ids[id]; ok {
		return nil, asynq.ErrTaskIDConflict
	}
	q.ids[id] = task
	return &asynq.TaskInfo{ID: id}, nil
}

type sent struct{ tenant, phone, text string }

type fakeMessenger struct {
	out []sent
	err error
}

func (m *fakeMessenger) Send(_ context.Context, tenantID, phone, text string) error {
	if m.err != nil {
		return m.err
	}
	m.out = append(m.out, sent{tenantID, phone, text})
	return nil
}

type fixture struct {
	repos     *repository.Set
	queue     *fakeQueue
	messenger *fakeMessenger
	d         *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewMemorySet()

	settings := models.DefaultTenantSettings("t1")
	settings.Schedule.Fields = []models.FieldSpec{{Key: "origen", Label: "Origen", Kind: models.FieldText}}
	if err := repos.Settings.Put(ctx, &settings); err != nil {
		t.Fatal(err)
	}
	if err := repos.Agents.Create(ctx, &models.Agent{ID: "dr-a", TenantID: "t1", FirstName: "Laura", LastName: "Gómez", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := repos.Clients.Create(ctx, &models.Client{ID: "c1", TenantID: "t1", FirstName: "Ana", LastName: "Paz", Phone: "5491155551234"}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{repos: repos, queue: &fakeQueue{ids: map[string]*asynq.Task{}}, messenger: &fakeMessenger{}}
	f.d = NewDispatcher(repos, f.queue, f.messenger, zap.NewNop())
	f.d.Now = func() time.Time { return now }
	return f
}

func (f *fixture) appointment(t *testing.T, id string, status models.AppointmentStatus, recs ...models.NotificationRecord) {
	t.Helper()
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	err := f.repos.Appointments.Create(context.Background(), &models.Appointment{
		ID: id, TenantID: "t1", AgentID: "dr-a", ClientID: "c1",
		Start: start, End: start.Add(30 * time.Minute), Duration: 30,
		Status: status, Fields: map[string]any{"origen": "Centro"},
		Notifications: recs,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func due(offset time.Duration, tmpl string) models.NotificationRecord {
	return models.NotificationRecord{Type: models.NotificationReminder, ScheduledFor: now.Add(offset), Template: tmpl}
}

func TestDispatchDueEnqueuesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.appointment(t, "a1", models.StatusPending, due(-time.Hour, ""), due(time.Hour, ""))
	f.appointment(t, "a2", models.StatusConfirmed, due(-time.Minute, ""))
	f.appointment(t, "a3", models.StatusCancelled, due(-time.Minute, ""))

	n, err := f.d.DispatchDue(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("DispatchDue = %d, %v; want 2", n, err)
	}
	for _, id := range []string{"a1:0", "a2:0"} {
		if _, ok := f.queue.ids[id]; !ok {
			t.Fatalf("task %s not enqueued", id)
		}
	}

	n, err = f.d.DispatchDue(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second DispatchDue = %d, %v; want 0", n, err)
	}
}

func TestDispatchDueQueueError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.appointment(t, "a1", models.StatusPending, due(-time.Hour, ""))
	f.queue.err = errors.New("redis down")
	if _, err := f.d.DispatchDue(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeliver(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "a1", models.StatusPending, due(-time.Hour, "Hola {cliente}: {turno} {fecha} {hora} ({duracion} min) con {agente} desde {origen} {desconocido}"))

	p := models.NotificationPayload{TenantID: "t1", AppointmentID: "a1", Index: 0}
	if err := f.d.Deliver(ctx, p); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(f.messenger.out) != 1 {
		t.Fatalf("sent %d messages", len(f.messenger.out))
	}
	want := "Hola Ana Paz: turno 07/01/2030 09:00 (30 min) con Laura Gómez desde Centro {desconocido}"
	if got := f.messenger.out[0]; got.text != want || got.phone != "5491155551234" {
		t.Fatalf("sent %+v\nwant text %q", got, want)
	}

	appt, err := f.repos.Appointments.GetByID(ctx, "t1", "a1")
	if err != nil {
		t.Fatal(err)
	}
	if !appt.Notifications[0].Sent || appt.Notifications[0].SentAt == nil {
		t.Fatal("record not marked sent")
	}

	// A retried task must not send twice.
	if err := f.d.Deliver(ctx, p); err != nil {
		t.Fatal(err)
	}
	if len(f.messenger.out) != 1 {
		t.Fatal("record delivered twice")
	}
}

func TestDeliverSkipsAndFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.appointment(t, "cancelled", models.StatusCancelled, due(-time.Hour, ""))
	f.appointment(t, "pending", models.StatusPending, models.NotificationRecord{Type: models.NotificationConfirmation, ScheduledFor: now})

	for _, p := range []models.NotificationPayload{
		{TenantID: "t1", AppointmentID: "missing"},
		{TenantID: "t1", AppointmentID: "cancelled"},
		{TenantID: "t1", AppointmentID: "pending", Index: 4},
	} {
		if err := f.d.Deliver(ctx, p); err != nil {
			t.Fatalf("Deliver(%+v): %v", p, err)
		}
	}
	if len(f.messenger.out) != 0 {
		t.Fatal("stale notification sent")
	}

	f.messenger.err = errors.New("channel down")
	p := models.NotificationPayload{TenantID: "t1", AppointmentID: "pending"}
	if err := f.d.Deliver(ctx, p); err == nil {
		t.Fatal("send failure swallowed")
	}
	appt, _ := f.repos.Appointments.GetByID(ctx, "t1", "pending")
	if appt.Notifications[0].Sent {
		t.Fatal("failed send marked as sent")
	}

	f.messenger.err = nil
	if err := f.d.Deliver(ctx, p); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.messenger.out[0].text, "Responde *SI* para confirmar") {
		t.Fatalf("confirmation text = %q", f.messenger.out[0].text)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	got := Render("{a}{b} {a}", map[string]string{"a": "x", "b": "{a}"})
	if got != "x{a} x" {
		t.Fatalf("Render = %q", got)
	}
}
