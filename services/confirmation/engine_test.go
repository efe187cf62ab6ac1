package confirmation

import (
	"context"
	"strings"
	"testing"
	"time"

	"turnero/database/repository"
	"turnero/models"
	"turnero/services/appointment"
	"turnero/services/availability"
	"turnero/services/session"

	"go.uber.org/zap"
)

const phone = "5491155551234"

// now is Sunday 2030-01-06 10:00 UTC.
var now = time.Date(2030, 1, 6, 10, 0, 0, 0, time.UTC)

func monday(hour, min int) time.Time {
	return time.Date(2030, 1, 7, hour, min, 0, 0, time.UTC)
}

type harness struct {
	engine    *Engine
	repos     *repository.Set
	store     *session.MemoryStore[*models.ConfirmationSession]
	lifecycle *appointment.Service
	client    *models.Client
	clock     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewMemorySet()

	settings := models.DefaultTenantSettings("t1")
	settings.Schedule.RequiresConfirmation = true
	settings.Schedule.Fields = []models.FieldSpec{
		{Key: "motivo", Label: "Motivo", Kind: models.FieldText},
		{Key: "origen", Label: "Origen", Kind: models.FieldText, System: true},
	}
	settings.Schedule.NotificationRules = []models.NotificationRule{
		{Active: true, Type: models.NotificationConfirmation, Moment: models.MomentHoursBefore, HoursBefore: 2},
	}
	if err := repos.Settings.Put(ctx, &settings); err != nil {
		t.Fatal(err)
	}
	agent := models.Agent{
		ID: "dr-a", TenantID: "t1", FirstName: "Dr.", LastName: "A",
		Mode: models.ModeScheduled, DefaultDuration: 30, Active: true,
		Availability: []models.AvailabilityWindow{{DayOfWeek: 1, Start: "08:00", End: "12:00", Active: true}},
	}
	if err := repos.Agents.Create(ctx, &agent); err != nil {
		t.Fatal(err)
	}
	client := &models.Client{TenantID: "t1", FirstName: "Ana", LastName: "Paz", Phone: phone}
	if err := repos.Clients.Create(ctx, client); err != nil {
		t.Fatal(err)
	}

	h := &harness{repos: repos, client: client, clock: now}
	clock := func() time.Time { return h.clock }
	h.lifecycle = appointment.NewService(repos, availability.NewEngine(repos), zap.NewNop())
	h.lifecycle.Now = clock
	h.store = session.NewMemoryStore[*models.ConfirmationSession]()
	h.engine = NewEngine(repos, h.store, h.lifecycle, zap.NewNop())
	h.engine.Now = clock
	return h
}

// book creates a pending appointment whose confirmation request went out.
func (h *harness) book(t *testing.T, start time.Time, notified bool) *models.Appointment {
	t.Helper()
	ctx := context.Background()
	appt, err := h.lifecycle.Create(ctx, appointment.CreateInput{
		TenantID: "t1", AgentID: "dr-a", ClientID: h.client.ID, Start: start,
		Fields: map[string]any{"motivo": "control"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if notified {
		if err := h.repos.Appointments.MarkNotificationSent(ctx, "t1", appt.ID, 0, now); err != nil {
			t.Fatal(err)
		}
	}
	return appt
}

func (h *harness) send(text string) models.OutboundMessage {
	return h.engine.Handle(context.Background(), models.InboundMessage{TenantID: "t1", Phone: "+" + phone, Text: text})
}

func (h *harness) get(t *testing.T, id string) *models.Appointment {
	t.Helper()
	a, err := h.lifecycle.Get(context.Background(), "t1", id)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func (h *harness) session(t *testing.T) *models.ConfirmationSession {
	t.Helper()
	s, err := h.store.Load(context.Background(), session.Key{TenantID: "t1", Phone: phone})
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return s
}

func wantReply(t *testing.T, out models.OutboundMessage, substr string) {
	t.Helper()
	if !out.Handled {
		t.Fatalf("message not handled")
	}
	if !strings.Contains(out.Text, substr) {
		t.Fatalf("reply %q does not contain %q", out.Text, substr)
	}
}

func TestAffirmativeConfirmsAll(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.book(t, monday(9, 0), true)
	b := h.book(t, monday(11, 0), true)

	out := h.send("Si")
	wantReply(t, out, "Confirmamos tus 2 turnos")
	wantReply(t, out, "07/01/2030 a las 09:00")

	for _, id := range []string{a.ID, b.ID} {
		got := h.get(t, id)
		if got.Status != models.StatusConfirmed || !got.Confirmed {
			t.Fatalf("appointment %s status = %s", id, got.Status)
		}
		last := got.Notifications[len(got.Notifications)-1]
		if last.Reply != appointment.ConfirmationReply || last.Type != models.NotificationConfirmation {
			t.Fatalf("appointment %s last record = %+v", id, last)
		}
	}
	if h.store.Len() != 0 {
		t.Fatal("confirming everything left a session behind")
	}

	// Nothing is awaiting confirmation any more.
	if out := h.send("si"); out.Handled {
		t.Fatalf("second reply handled: %q", out.Text)
	}
}

func TestNotHandled(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if out := h.send("si"); out.Handled {
		t.Fatal("phone without notified appointments was handled")
	}

	h.book(t, monday(9, 0), false)
	if out := h.send("si"); out.Handled {
		t.Fatal("appointment without a sent notification was handled")
	}

	h.book(t, monday(10, 0), true)
	for _, text := range []string{"hola", "7", "quiero otro turno"} {
		if out := h.send(text); out.Handled {
			t.Fatalf("%q was handled", text)
		}
	}

	unknown := h.engine.Handle(context.Background(), models.InboundMessage{TenantID: "t1", Phone: "999", Text: "si"})
	if unknown.Handled {
		t.Fatal("unknown phone was handled")
	}
}

func TestEditThenConfirmAndCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.book(t, monday(9, 0), true)
	b := h.book(t, monday(11, 0), true)

	out := h.send("2")
	wantReply(t, out, "Editar turno del 07/01/2030 a las 11:00")
	wantReply(t, out, "1. Hora (11:00)")
	wantReply(t, out, "2. Motivo (control)")
	wantReply(t, out, "3. ✅ Confirmar")
	wantReply(t, out, "4. ❌ Cancelar")
	if strings.Contains(out.Text, "Origen") {
		t.Fatal("system field offered for editing")
	}

	wantReply(t, h.send("9"), "Opción inválida")
	wantReply(t, h.send("1"), "nueva hora")
	wantReply(t, h.send("25:00"), "Hora inválida")
	wantReply(t, h.send("9:15"), "Ese horario no está disponible")
	wantReply(t, h.send("11:30"), "1. Hora (11:30)")
	if got := h.get(t, b.ID); !got.Start.Equal(monday(11, 30)) || !got.End.Equal(monday(12, 0)) {
		t.Fatalf("rescheduled to %v-%v", got.Start, got.End)
	}

	wantReply(t, h.send("2"), "nuevo valor para *Motivo*")
	wantReply(t, h.send("Dolor de cabeza"), "2. Motivo (Dolor de cabeza)")

	out = h.send("3")
	wantReply(t, out, "confirmado")
	wantReply(t, out, "1. 07/01/2030 a las 09:00")
	if s := h.session(t); s.Step != models.ConfirmSelecting || len(s.Targets) != 1 {
		t.Fatalf("session = %+v", s)
	}
	if got := h.get(t, b.ID); got.Status != models.StatusConfirmed {
		t.Fatalf("status = %s", got.Status)
	}

	wantReply(t, h.send("1"), "Editar turno del 07/01/2030 a las 09:00")
	wantReply(t, h.send("4"), "cancelado")
	if got := h.get(t, a.ID); got.Status != models.StatusCancelled || got.CancellationReason != cancelReason {
		t.Fatalf("appointment = %s (%q)", got.Status, got.CancellationReason)
	}
	if h.store.Len() != 0 {
		t.Fatal("session kept after the last appointment was handled")
	}
}

func TestBackToSelection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.book(t, monday(9, 0), true)
	h.book(t, monday(11, 0), true)

	h.send("2")
	out := h.send("0")
	wantReply(t, out, "por confirmar")
	wantReply(t, out, "2. 07/01/2030 a las 11:00")
	if s := h.session(t); s.Step != models.ConfirmSelecting {
		t.Fatalf("step = %s", s.Step)
	}
	wantReply(t, h.send("5"), "Opción inválida")
	wantReply(t, h.send("1"), "a las 09:00")
}

func TestSessionExpiryAndSweep(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.book(t, monday(9, 0), true)
	h.book(t, monday(11, 0), true)

	h.send("2")
	if active, _ := h.engine.Active(ctx, "t1", phone); !active {
		t.Fatal("session not active")
	}

	h.clock = now.Add(9 * time.Minute)
	if n, err := h.engine.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("early sweep removed %d (%v)", n, err)
	}

	h.clock = now.Add(20 * time.Minute)
	if active, _ := h.engine.Active(ctx, "t1", phone); active {
		t.Fatal("idle session still active")
	}
	if n, err := h.engine.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("sweep removed %d (%v), want 1", n, err)
	}
}

func TestExpiredSessionStartsOver(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.book(t, monday(9, 0), true)
	h.book(t, monday(11, 0), true)

	h.send("2")
	h.clock = now.Add(30 * time.Minute)

	// "1" would pick a menu entry in the stale session; fresh it confirms all.
	wantReply(t, h.send("1"), "Confirmamos tus 2 turnos")
	if got := h.get(t, a.ID); got.Status != models.StatusConfirmed {
		t.Fatalf("status = %s", got.Status)
	}
}
