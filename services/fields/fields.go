// Package fields validates tenant-declared appointment fields.
package fields

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"turnero/models"
)

const (
	// DateLayout is how dates are written by clients.
	DateLayout = "02/01/2006"
	// StoredDateLayout is how date values are kept in the field bag.
	StoredDateLayout = "2006-01-02"
	// SkipToken lets a client leave an optional field empty.
	SkipToken = "-"
)

var (
	datePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	timePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)
)

// Error is a validation failure on one field. Message is shown to clients.
type Error struct {
	Key     string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

func newError(spec models.FieldSpec, format string, args ...any) *Error {
	return &Error{Key: spec.Key, Message: fmt.Sprintf(format, args...)}
}

// Parse validates raw against spec and returns the value to store.
func Parse(spec models.FieldSpec, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, newError(spec, "El campo %s es obligatorio.", spec.Label)
	}

	switch spec.Kind {
	case models.FieldNumber:
		n, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, newError(spec, "%s debe ser un número.", spec.Label)
		}
		if spec.Min != nil && n < *spec.Min {
			return nil, newError(spec, "%s debe ser mayor o igual a %s.", spec.Label, formatNumber(*spec.Min))
		}
		if spec.Max != nil && n > *spec.Max {
			return nil, newError(spec, "%s debe ser menor o igual a %s.", spec.Label, formatNumber(*spec.Max))
		}
		return n, nil

	case models.FieldEnum:
		if idx, err := strconv.Atoi(raw); err == nil && idx >= 1 && idx <= len(spec.Options) {
			return spec.Options[idx-1], nil
		}
		for _, opt := range spec.Options {
			if strings.EqualFold(opt, raw) {
				return opt, nil
			}
		}
		return nil, newError(spec, "Elige una de las opciones de %s.", spec.Label)

	case models.FieldDate:
		d, err := ParseDate(raw, time.UTC)
		if err != nil {
			return nil, newError(spec, "Formato de fecha inválido. Usa DD/MM/AAAA.")
		}
		return d.Format(StoredDateLayout), nil

	case models.FieldTime:
		if !timePattern.MatchString(raw) {
			return nil, newError(spec, "Formato de hora inválido. Usa HH:MM.")
		}
		m, _ := models.ParseClock(raw)
		return fmt.Sprintf("%02d:%02d", m/60, m%60), nil

	default:
		return raw, nil
	}
}

// ParseDate parses a DD/MM/YYYY calendar date, rejecting impossible days.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if !datePattern.MatchString(raw) {
		return time.Time{}, fmt.Errorf("expected DD/MM/YYYY, got %q", raw)
	}
	return time.ParseInLocation("2/1/2006", raw, loc)
}

// ValidateBag checks a whole field bag against the declared specs. Unknown
// keys are rejected; required keys must be present.
func ValidateBag(specs []models.FieldSpec, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	known := make(map[string]bool, len(specs))
	for _, spec := range specs {
		known[spec.Key] = true
		v, ok := values[spec.Key]
		if !ok || v == nil || stringify(v) == "" {
			if spec.Required && !spec.System {
				return nil, newError(spec, "El campo %s es obligatorio.", spec.Label)
			}
			continue
		}
		parsed, err := Parse(spec, stringify(v))
		if err != nil {
			return nil, err
		}
		out[spec.Key] = parsed
	}

	var unknown []string
	for k := range values {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &Error{Key: unknown[0], Message: fmt.Sprintf("Campo desconocido: %s.", strings.Join(unknown, ", "))}
	}
	return out, nil
}

// Editable returns the specs a client may change after booking.
func Editable(specs []models.FieldSpec) []models.FieldSpec {
	var out []models.FieldSpec
	for _, s := range specs {
		if !s.System {
			out = append(out, s)
		}
	}
	return out
}

// Prompt renders the question asked for a field.
func Prompt(spec models.FieldSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 %s", spec.Label)
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
	if spec.Placeholder != "" {
		fmt.Fprintf(&b, "\nEjemplo: %s", spec.Placeholder)
	}
	if !spec.Required {
		fmt.Fprintf(&b, "\n(Escribe %s para omitir)", SkipToken)
	}
	return b.String()
}

// Display formats a stored value for clients.
func Display(spec models.FieldSpec, v any) string {
	if spec.Kind == models.FieldDate {
		if s, ok := v.(string); ok {
			if d, err := time.Parse(StoredDateLayout, s); err == nil {
				return d.Format(DateLayout)
			}
		}
	}
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
