package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"turnero/database"
	"turnero/models"
	"turnero/services/appointment"
	"turnero/services/fields"
	"turnero/utils"
)

const (
	keyDate         = "fecha"
	keyTime         = "hora"
	keyAgent        = "agenteId"
	keyCancelTarget = "turnos"
	fieldPrefix     = "campo_"

	consultLimit = 5
	cancelReason = "Cancelado por el cliente vía bot"
	botNotes     = "Creado por el bot de turnos"
)

var timeSpec = models.FieldSpec{Key: keyTime, Label: "Hora", Kind: models.FieldTime, Required: true}

func (e *Engine) selectOption(ctx context.Context, t *turn, input string) (string, error) {
	switch input {
	case "1":
		t.sess.Flow = FlowCreate
		t.sess.Step = StepDate
		t.sess.Captured = nil
		t.sess.FieldIndex = 0
		return fmt.Sprintf("📅 ¡Perfecto! Vamos a agendar tu %s.\n\n%s", t.noun(), msgAskDate), nil
	case "2":
		return e.consult(ctx, t)
	default:
		if !t.settings.Bot.AllowCancellation {
			return msgCancelDisabled, nil
		}
		return e.startCancellation(ctx, t)
	}
}

func (e *Engine) selectDate(ctx context.Context, t *turn, input string) (string, error) {
	day, err := fields.ParseDate(input, t.loc())
	if err != nil {
		return msgBadDate, nil
	}
	if day.Before(models.StartOfDay(t.now, t.loc())) {
		return msgPastDate, nil
	}
	t.sess.Set(keyDate, day.Format(fields.StoredDateLayout))
	return e.advance(ctx, t)
}

func (e *Engine) selectTime(ctx context.Context, t *turn, input string) (string, error) {
	v, err := fields.Parse(timeSpec, input)
	if err != nil {
		return msgBadTime, nil
	}
	t.sess.Set(keyTime, v.(string))
	return e.advance(ctx, t)
}

func (e *Engine) selectAgent(ctx context.Context, t *turn, input string) (string, error) {
	agents, err := e.Agents.List(ctx, t.sess.TenantID, true)
	if err != nil {
		return "", err
	}
	n, _ := strconv.Atoi(input)
	if n < 1 || n > len(agents) {
		return msgBadOption, nil
	}
	t.sess.Set(keyAgent, agents[n-1].ID)
	return e.advance(ctx, t)
}

func (e *Engine) captureField(ctx context.Context, t *turn, input string) (string, error) {
	specs := fields.Editable(t.settings.Schedule.Fields)
	if t.sess.FieldIndex >= len(specs) {
		return e.advance(ctx, t)
	}
	spec := specs[t.sess.FieldIndex]
	if input == fields.SkipToken && !spec.Required {
		t.sess.Unset(fieldPrefix + spec.Key)
	} else {
		if _, err := fields.Parse(spec, input); err != nil {
			var fe *fields.Error
			if errors.As(err, &fe) {
				return fmt.Sprintf("❌ %s\n\nPor favor intenta nuevamente.", fe.Message), nil
			}
			return "", err
		}
		t.sess.Set(fieldPrefix+spec.Key, input)
	}
	t.sess.FieldIndex++
	return e.advance(ctx, t)
}

// advance moves to the first piece of the booking still missing and returns
// its prompt. Values captured on an earlier pass are not asked again.
func (e *Engine) advance(ctx context.Context, t *turn) (string, error) {
	s := t.sess
	if _, ok := s.Get(keyDate); !ok {
		s.Step = StepDate
		return msgAskDate, nil
	}
	if _, ok := s.Get(keyTime); !ok {
		s.Step = StepTime
		return msgAskTime, nil
	}
	if t.settings.Schedule.UsesAgents {
		if _, ok := s.Get(keyAgent); !ok {
			return e.agentMenu(ctx, t)
		}
	}
	specs := fields.Editable(t.settings.Schedule.Fields)
	if s.FieldIndex < len(specs) {
		s.Step = StepFields
		return fields.Prompt(specs[s.FieldIndex]), nil
	}
	s.Step = StepConfirm
	return e.summary(ctx, t)
}

func (e *Engine) agentMenu(ctx context.Context, t *turn) (string, error) {
	agents, err := e.Agents.List(ctx, t.sess.TenantID, true)
	if err != nil {
		return "", err
	}
	if len(agents) == 0 {
		t.reset()
		return msgNoAgents + "\n\n" + t.settings.Bot.WelcomeTemplate, nil
	}
	t.sess.Step = StepAgent

	var b strings.Builder
	fmt.Fprintf(&b, "👤 Selecciona un %s:\n\n", agentNoun(t))
	for i, a := range agents {
		fmt.Fprintf(&b, "%s %s", bullet(i+1), a.FullName())
		if a.Specialty != "" {
			fmt.Fprintf(&b, " - %s", a.Specialty)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nEscribe el número de tu elección.")
	return b.String(), nil
}

func (e *Engine) summary(ctx context.Context, t *turn) (string, error) {
	s := t.sess
	date, _ := s.Get(keyDate)
	clock, _ := s.Get(keyTime)

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Resumen de tu %s:*\n\n", t.noun())
	fmt.Fprintf(&b, "📅 Fecha: %s\n", displayDate(date))
	fmt.Fprintf(&b, "🕐 Hora: %s\n", clock)

	if id, ok := s.Get(keyAgent); ok {
		agent, err := e.Agents.GetByID(ctx, s.TenantID, id)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return "", err
		}
		if agent != nil {
			fmt.Fprintf(&b, "👤 %s: %s\n", capitalize(agentNoun(t)), agent.FullName())
		}
	}

	var details []string
	for _, spec := range fields.Editable(t.settings.Schedule.Fields) {
		raw, ok := s.Get(fieldPrefix + spec.Key)
		if !ok {
			continue
		}
		v, err := fields.Parse(spec, raw)
		if err != nil {
			continue
		}
		details = append(details, fmt.Sprintf("• %s: %s", spec.Label, fields.Display(spec, v)))
	}
	if len(details) > 0 {
		b.WriteString("\n📝 *Detalles:*\n")
		b.WriteString(strings.Join(details, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n¿Confirmas estos datos?\n1️⃣ Sí, confirmar\n2️⃣ No, cancelar")
	return b.String(), nil
}

func (e *Engine) confirm(ctx context.Context, t *turn, input string) (string, error) {
	if input == "2" {
		t.end(false)
		return fmt.Sprintf("❌ %s cancelado.\n\n%s", capitalize(t.noun()), t.settings.Bot.WelcomeTemplate), nil
	}

	s := t.sess
	start, day, err := t.start()
	if err != nil {
		// Captured values are written by this package; a bad one means the
		// session was edited elsewhere.
		t.reset()
		return msgLost + "\n\n" + t.settings.Bot.WelcomeTemplate, nil
	}

	client, err := e.findOrCreateClient(ctx, s.TenantID, s.Phone, t.now)
	if err != nil {
		return "", err
	}

	bag := make(map[string]any)
	for _, spec := range fields.Editable(t.settings.Schedule.Fields) {
		if raw, ok := s.Get(fieldPrefix + spec.Key); ok {
			bag[spec.Key] = raw
		}
	}
	agentID, _ := s.Get(keyAgent)

	appt, err := e.Lifecycle.Create(ctx, appointment.CreateInput{
		TenantID:  s.TenantID,
		AgentID:   agentID,
		ClientID:  client.ID,
		Start:     start,
		Fields:    bag,
		Notes:     botNotes,
		CreatedBy: models.CreatedByBot,
	})
	if ve, ok := appointment.AsValidation(err); ok {
		return e.retryTime(ctx, t, agentID, day, ve)
	}
	if err != nil {
		return "", err
	}

	s.AppointmentID = appt.ID
	t.end(true)
	clock, _ := s.Get(keyTime)
	return fmt.Sprintf("✅ *¡Listo!* Tu %s ha sido agendado.\n\n📅 %s a las %s\n\n📱 Recibirás una confirmación antes de tu %s.\n\n%s",
		t.noun(), start.In(t.loc()).Format(fields.DateLayout), clock, t.noun(), t.settings.Bot.GoodbyeTemplate), nil
}

// retryTime sends the client back to the time step after a rejected booking,
// listing what is still free that day. With nothing free the date is asked again.
func (e *Engine) retryTime(ctx context.Context, t *turn, agentID string, day time.Time, ve *appointment.ValidationError) (string, error) {
	if ve.Code == appointment.CodeAgentUnavailable {
		t.sess.Unset(keyAgent)
		prompt, err := e.advance(ctx, t)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("❌ %s\n\n%s", rejectionText(ve), prompt), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❌ %s\n\n", rejectionText(ve))

	var free []models.Slot
	if agentID != "" {
		slots, err := e.Slots.ComputeSlots(ctx, t.sess.TenantID, agentID, day, 0)
		if err != nil {
			return "", err
		}
		free = slots
	}

	t.sess.Unset(keyTime)
	if agentID != "" && len(free) == 0 {
		t.sess.Unset(keyDate)
		t.sess.Step = StepDate
		b.WriteString("No quedan horarios disponibles para esa fecha.\n\n")
		b.WriteString(msgAskDate)
		return b.String(), nil
	}
	if len(free) > 0 {
		clocks := make([]string, len(free))
		for i, sl := range free {
			clocks[i] = sl.Start.In(t.loc()).Format("15:04")
		}
		fmt.Fprintf(&b, "🕐 Horarios disponibles el %s:\n%s\n\n", day.Format(fields.DateLayout), strings.Join(clocks, ", "))
	}
	t.sess.Step = StepTime
	b.WriteString(msgAskTime)
	return b.String(), nil
}

func (e *Engine) findOrCreateClient(ctx context.Context, tenantID, phone string, now time.Time) (*models.Client, error) {
	phone = utils.NormalizePhone(phone)
	client, err := e.Clients.FindByPhone(ctx, tenantID, phone)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	client = &models.Client{
		TenantID:  tenantID,
		FirstName: "Cliente",
		LastName:  "WhatsApp",
		Phone:     phone,
		Source:    "chatbot",
		CreatedAt: now,
	}
	if err := e.Clients.Create(ctx, client); err != nil {
		if !errors.Is(err, database.ErrDuplicate) {
			return nil, err
		}
		return e.Clients.FindByPhone(ctx, tenantID, phone)
	}
	return client, nil
}

// clientAppointments returns the phone's upcoming active appointments, or nil
// when the phone belongs to no client.
func (e *Engine) clientAppointments(ctx context.Context, t *turn, limit int) ([]models.Appointment, bool, error) {
	client, err := e.Clients.FindByPhone(ctx, t.sess.TenantID, utils.NormalizePhone(t.sess.Phone))
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	appts, err := e.Lifecycle.UpcomingForClient(ctx, t.sess.TenantID, client.ID, limit)
	if err != nil {
		return nil, false, err
	}
	return appts, true, nil
}

func (e *Engine) consult(ctx context.Context, t *turn) (string, error) {
	appts, known, err := e.clientAppointments(ctx, t, consultLimit)
	if err != nil {
		return "", err
	}
	if !known {
		return msgUnknownClient, nil
	}
	if len(appts) == 0 {
		return fmt.Sprintf("📅 No tienes %s próximos agendados.", plural(t)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 *Tus próximos %s:*\n\n", plural(t))
	for i, a := range appts {
		fmt.Fprintf(&b, "%s %s\n   Estado: %s\n\n", bullet(i+1), whenText(a.Start, t.loc()), statusText(a.Status))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (e *Engine) startCancellation(ctx context.Context, t *turn) (string, error) {
	appts, known, err := e.clientAppointments(ctx, t, 0)
	if err != nil {
		return "", err
	}
	if !known {
		return msgUnknownClient, nil
	}
	if len(appts) == 0 {
		return fmt.Sprintf("📅 No tienes %s próximos para cancelar.", plural(t)), nil
	}

	ids := make([]string, len(appts))
	var b strings.Builder
	fmt.Fprintf(&b, "❌ *Cancelar %s*\n\nSelecciona el %s que deseas cancelar:\n\n", t.noun(), t.noun())
	for i, a := range appts {
		ids[i] = a.ID
		fmt.Fprintf(&b, "%s %s\n", bullet(i+1), whenText(a.Start, t.loc()))
	}
	fmt.Fprintf(&b, "\nEscribe el número del %s a cancelar.", t.noun())

	t.sess.Flow = FlowCancel
	t.sess.Step = StepPick
	t.sess.Captured = nil
	t.sess.Set(keyCancelTarget, strings.Join(ids, ","))
	return b.String(), nil
}

func (e *Engine) pickCancellation(ctx context.Context, t *turn, input string) (string, error) {
	raw, _ := t.sess.Get(keyCancelTarget)
	var ids []string
	if raw != "" {
		ids = strings.Split(raw, ",")
	}
	n, _ := strconv.Atoi(input)
	if n < 1 || n > len(ids) {
		return fmt.Sprintf("❌ Número de %s inválido.", t.noun()), nil
	}

	// The client's own cancellation is not bound by the admin cancellation window.
	_, err := e.Lifecycle.UpdateStatus(ctx, t.sess.TenantID, ids[n-1], models.StatusCancelled, cancelReason)
	if errors.Is(err, appointment.ErrInvalidTransition) {
		t.end(false)
		return fmt.Sprintf("❌ Ese %s ya no puede cancelarse por este medio. Por favor contacta directamente.", t.noun()), nil
	}
	if err != nil {
		return "", err
	}
	t.end(true)
	return fmt.Sprintf("✅ %s cancelado exitosamente.\n\n%s", capitalize(t.noun()), t.settings.Bot.GoodbyeTemplate), nil
}

// start combines the captured date and time in the tenant's zone.
func (t *turn) start() (time.Time, time.Time, error) {
	date, _ := t.sess.Get(keyDate)
	clock, _ := t.sess.Get(keyTime)
	day, err := time.ParseInLocation(fields.StoredDateLayout, date, t.loc())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	minutes, err := models.ParseClock(clock)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return models.AtClock(day, minutes, t.loc()), day, nil
}
