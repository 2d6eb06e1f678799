package medications

import "time"

// NextDose es la próxima toma proyectada: nombre del medicamento y hora
// reformateada con cero a la izquierda.
type NextDose struct {
	Name string
	Time string // HH:MM
}

// ProjectNextDose devuelve el registro con el trigger mínimo estrictamente
// posterior a "now" (en minutos desde medianoche). Si todos los triggers ya
// pasaron hoy, devuelve false: no hay rollover al día siguiente.
func ProjectNextDose(meds []Medication, now time.Time) (NextDose, bool) {
	current := now.Hour()*60 + now.Minute()

	best := -1
	name := ""
	for _, m := range meds {
		mins, err := ParseClock(m.Frequency)
		if err != nil {
			continue
		}
		if mins > current && (best == -1 || mins < best) {
			best = mins
			name = m.Name
		}
	}

	if best == -1 {
		return NextDose{}, false
	}
	return NextDose{Name: name, Time: FormatClock(best)}, true
}
