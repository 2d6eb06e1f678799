package medications

import (
	"fmt"
	"strconv"
	"strings"
)

// Form define la presentación del medicamento.
// @Enum pill, liquid, syringe
type Form string

const (
	FormPill    Form = "pill"
	FormLiquid  Form = "liquid"
	FormSyringe Form = "syringe"
)

func ValidForm(f Form) bool {
	switch f {
	case FormPill, FormLiquid, FormSyringe:
		return true
	}
	return false
}

// Interval define la repetición del medicamento.
// @Enum daily, weekly, monthly
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

func ValidInterval(i Interval) bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// Slot define el bloque del día (independiente de Frequency).
// @Enum morning, afternoon, night
type Slot string

const (
	SlotMorning   Slot = "morning"
	SlotAfternoon Slot = "afternoon"
	SlotNight     Slot = "night"
)

func ValidSlot(s Slot) bool {
	switch s {
	case SlotMorning, SlotAfternoon, SlotNight:
		return true
	}
	return false
}

// Status define la acción diaria sobre el medicamento.
// @Enum take, skip
type Status string

const (
	StatusNone Status = ""
	StatusTake Status = "take"
	StatusSkip Status = "skip"
)

func ValidStatus(s Status) bool {
	return s == StatusTake || s == StatusSkip
}

// AllowedInstructions es el set fijo que ofrece el formulario de alta.
var AllowedInstructions = []string{
	"Before meal",
	"After meal",
	"With meal",
	"With water",
	"Without water",
}

func ValidInstruction(s string) bool {
	for _, v := range AllowedInstructions {
		if v == s {
			return true
		}
	}
	return false
}

// ParseClock convierte "HH:MM" (o "H:MM") a minutos desde medianoche.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// FormatClock devuelve minutos desde medianoche como "HH:MM" con cero a la izquierda.
func FormatClock(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}
