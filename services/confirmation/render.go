package confirmation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"turnero/models"
	"turnero/services/appointment"
	"turnero/services/fields"
)

// timeKey names the fixed "time" entry of the edit menu. Tenant field keys
// cannot start with "@".
const timeKey = "@hora"

const (
	msgBadOption = "❌ Opción inválida. Por favor elige un número de la lista."
	msgBadTime   = "❌ Hora inválida. Por favor usa el formato HH:MM\nEjemplo: 14:30"
)

var timeField = models.FieldSpec{Key: timeKey, Label: "Hora", Kind: models.FieldTime, Required: true}

// editableFields is the edit menu: time first, then the tenant's own fields.
func editableFields(sched models.ScheduleConfiguration) []models.FieldSpec {
	return append([]models.FieldSpec{timeField}, fields.Editable(sched.Fields)...)
}

func fieldPrompt(spec models.FieldSpec) string {
	if spec.Key == timeKey {
		return "🕐 Escribe la nueva hora en formato HH:MM\nEjemplo: 14:30"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✏️ Escribe el nuevo valor para *%s*", spec.Label)
	switch spec.Kind {
	case models.FieldEnum:
		b.WriteString("\n")
		for i, opt := range spec.Options {
			fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
		}
	case models.FieldDate:
		b.WriteString(" (DD/MM/AAAA)")
	case models.FieldTime:
		b.WriteString(" (HH:MM)")
	}
	return b.String()
}

func (e *Engine) editMenu(ctx context.Context, t *turn, notice string) (string, error) {
	appt, err := e.Lifecycle.Get(ctx, t.key.TenantID, t.target())
	if err != nil {
		return "", err
	}
	loc := t.settings.Schedule.Location()

	var b strings.Builder
	if notice != "" {
		b.WriteString(notice + "\n\n")
	}
	fmt.Fprintf(&b, "✏️ *Editar %s del %s*\n\n", noun(t), when(appt.Start, t))
	editable := editableFields(t.settings.Schedule)
	for i, spec := range editable {
		value := "sin completar"
		if spec.Key == timeKey {
			value = appt.Start.In(loc).Format("15:04")
		} else if v, ok := appt.Fields[spec.Key]; ok {
			value = fields.Display(spec, v)
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, spec.Label, value)
	}
	k := len(editable)
	fmt.Fprintf(&b, "%d. ✅ Confirmar este %s\n", k+1, noun(t))
	fmt.Fprintf(&b, "%d. ❌ Cancelar este %s\n", k+2, noun(t))
	b.WriteString("0. Volver a la lista\n\nEscribe el número de la opción.")
	return b.String(), nil
}

func (e *Engine) selectionList(ctx context.Context, t *turn, notice string) (string, error) {
	var b strings.Builder
	if notice != "" {
		b.WriteString(notice + "\n\n")
	}
	fmt.Fprintf(&b, "📋 Tus %s por confirmar:\n\n", plural(t))
	for i, id := range t.sess.Targets {
		appt, err := e.Lifecycle.Get(ctx, t.key.TenantID, id)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, when(appt.Start, t))
	}
	fmt.Fprintf(&b, "\nEscribe el número del %s que quieres revisar.", noun(t))
	return b.String(), nil
}

func confirmedText(t *turn, appts []models.Appointment) string {
	var b strings.Builder
	if len(appts) == 1 {
		fmt.Fprintf(&b, "✅ ¡Gracias! Confirmamos tu %s:\n\n", noun(t))
	} else {
		fmt.Fprintf(&b, "✅ ¡Gracias! Confirmamos tus %d %s:\n\n", len(appts), plural(t))
	}
	for _, a := range appts {
		fmt.Fprintf(&b, "• %s\n", when(a.Start, t))
	}
	b.WriteString("\n" + t.settings.Bot.GoodbyeTemplate)
	return b.String()
}

func msgNotActionable(t *turn) string {
	return fmt.Sprintf("❌ Ese %s ya no puede modificarse por este medio. Por favor contacta directamente.", noun(t))
}

var rejections = map[string]string{
	appointment.CodeSlotUnavailable:  "Ese horario no está disponible.",
	appointment.CodeLeadTime:         "Ese horario está fuera del rango permitido.",
	appointment.CodeNoCapacity:       "No quedan lugares en ese horario.",
	appointment.CodeDailyLimit:       "No quedan turnos disponibles para ese día.",
	appointment.CodeAgentUnavailable: "El profesional no está disponible.",
	appointment.CodeInvalidInput:     "Ese cambio no es posible.",
}

func rejectionText(ve *appointment.ValidationError) string {
	if msg, ok := rejections[ve.Code]; ok {
		return msg
	}
	return ve.Message
}

func when(t time.Time, tr *turn) string {
	local := t.In(tr.settings.Schedule.Location())
	return local.Format(fields.DateLayout) + " a las " + local.Format("15:04")
}

func noun(t *turn) string {
	if n := t.settings.Schedule.Nomenclature.Appointment; n != "" {
		return n
	}
	return "turno"
}

func plural(t *turn) string {
	if n := t.settings.Schedule.Nomenclature.Appointments; n != "" {
		return n
	}
	return noun(t) + "s"
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func parseClock(raw string) (int, error) {
	v, err := fields.Parse(timeField, raw)
	if err != nil {
		return 0, err
	}
	return models.ParseClock(v.(string))
}
