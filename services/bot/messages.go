package bot

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"turnero/models"
	"turnero/services/appointment"
	"turnero/services/fields"
)

const (
	msgAskDate        = "📆 Por favor, envíame la fecha deseada en formato DD/MM/AAAA\nEjemplo: 25/10/2025"
	msgAskTime        = "🕐 Ahora dime la hora deseada en formato HH:MM\nEjemplo: 14:30"
	msgBadDate        = "❌ Fecha inválida. Por favor usa el formato DD/MM/AAAA\nEjemplo: 25/10/2025"
	msgPastDate       = "❌ La fecha no puede ser en el pasado. Por favor elige una fecha futura."
	msgBadTime        = "❌ Hora inválida. Por favor usa el formato HH:MM\nEjemplo: 14:30"
	msgBadOption      = "❌ Opción inválida. Por favor elige un número de la lista."
	msgConfirmChoice  = "❌ Por favor responde 1 para confirmar o 2 para cancelar."
	msgCancelPick     = "❌ Por favor escribe el número del turno a cancelar."
	msgCancelDisabled = "❌ La cancelación de turnos no está disponible. Por favor contacta directamente."
	msgUnknownClient  = "❌ No encontré turnos asociados a este número."
	msgNoAgents       = "❌ No hay profesionales disponibles en este momento."
	msgLost           = "❌ Ocurrió un error. Volvamos al inicio."
)

var rejections = map[string]string{
	appointment.CodeSlotUnavailable:  "Ese horario no está disponible.",
	appointment.CodeLeadTime:         "Ese horario está fuera del rango permitido para reservar.",
	appointment.CodeNoCapacity:       "No quedan lugares en ese horario.",
	appointment.CodeDailyLimit:       "No quedan turnos disponibles para ese día.",
	appointment.CodeAgentUnavailable: "El profesional elegido no está disponible.",
}

func rejectionText(ve *appointment.ValidationError) string {
	if msg, ok := rejections[ve.Code]; ok {
		return msg
	}
	return ve.Message
}

var statusLabels = map[models.AppointmentStatus]string{
	models.StatusPending:    "pendiente",
	models.StatusConfirmed:  "confirmado",
	models.StatusInProgress: "en curso",
	models.StatusCompleted:  "completado",
	models.StatusCancelled:  "cancelado",
	models.StatusNoShow:     "ausente",
}

func statusText(s models.AppointmentStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// bullet renders n as a keycap emoji for 1-9.
func bullet(n int) string {
	if n >= 1 && n <= 9 {
		return fmt.Sprintf("%d️⃣", n)
	}
	return fmt.Sprintf("%d.", n)
}

func whenText(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return local.Format(fields.DateLayout) + " - " + local.Format("15:04")
}

func displayDate(stored string) string {
	d, err := time.Parse(fields.StoredDateLayout, stored)
	if err != nil {
		return stored
	}
	return d.Format(fields.DateLayout)
}

func agentNoun(t *turn) string {
	if n := t.settings.Schedule.Nomenclature.Agent; n != "" {
		return n
	}
	return "profesional"
}

func plural(t *turn) string {
	if n := t.settings.Schedule.Nomenclature.Appointments; n != "" {
		return n
	}
	return t.noun() + "s"
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
