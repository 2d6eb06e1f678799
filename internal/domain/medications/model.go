package medications

import "time"

// Medication representa un registro de medicación de un usuario.
// Frequency es la hora exacta del recordatorio (HH:MM); Slot es el bloque
// del día para agrupar en la UI. No hay invariante que los ligue: se editan
// por separado y pueden quedar inconsistentes.
type Medication struct {
	ID          string
	OwnerUserID string

	Name      string
	Dosage    string
	Frequency string // HH:MM
	StartDate *time.Time
	EndDate   *time.Time

	Form        Form     // pill, liquid, syringe
	Interval    Interval // daily, weekly, monthly
	Instruction string   // set fijo, ver AllowedInstructions
	Slot        Slot     // morning, afternoon, night

	ImageURL string
	Status   Status // take, skip o vacío; acumulativo, no se resetea por día

	CreatedAt time.Time
	UpdatedAt time.Time
}
