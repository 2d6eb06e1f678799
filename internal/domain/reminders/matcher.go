package reminders

import (
	"context"
	"strings"
	"sync"
	"time"

	"medpal/internal/domain/medications"

	"github.com/rs/zerolog"
)

// Reminder es un recordatorio armado para un owner.
type Reminder struct {
	MedicationID string
	Name         string
	Time         string // HH:MM del trigger
	Message      string
	RaisedAt     time.Time
}

// Matcher es la máquina de estados idle/armed por owner.
//
// En cada tick compara el trigger de cada registro contra "ahora" a
// granularidad de minuto. El primer registro que matchea en orden de
// iteración arma el recordatorio del owner; matches simultáneos posteriores
// no disparan. armed→idle solo por dismiss explícito.
//
// Los disparos se dedupean por registro + fecha + minuto: un recordatorio
// descartado dentro del mismo minuto no se re-arma en el siguiente tick.
type Matcher struct {
	repo medications.Repository
	log  zerolog.Logger
	now  func() time.Time

	mu    sync.Mutex
	armed map[string]Reminder  // ownerUserID -> recordatorio visible
	fired map[string]time.Time // medID|fecha|HH:MM -> cuándo disparó
}

func NewMatcher(repo medications.Repository, log zerolog.Logger) *Matcher {
	return &Matcher{
		repo:  repo,
		log:   log,
		now:   time.Now,
		armed: make(map[string]Reminder),
		fired: make(map[string]time.Time),
	}
}

// WithNow inyecta el reloj para poder testear sin esperas de wall-clock.
func (m *Matcher) WithNow(now func() time.Time) *Matcher {
	if now != nil {
		m.now = now
	}
	return m
}

// Check corre un tick del matcher sobre el set completo de registros.
func (m *Matcher) Check(ctx context.Context) error {
	meds, err := m.repo.ListAll(ctx)
	if err != nil {
		return err
	}

	now := m.now()
	current := now.Hour()*60 + now.Minute()
	day := now.Format("2006-01-02")

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneFired(day)

	for _, med := range meds {
		if _, ok := m.armed[med.OwnerUserID]; ok {
			continue // ya hay un recordatorio visible para este owner
		}

		mins, err := medications.ParseClock(med.Frequency)
		if err != nil || mins != current {
			continue
		}

		key := med.ID + "|" + day + "|" + med.Frequency
		if _, ok := m.fired[key]; ok {
			continue
		}

		rem := Reminder{
			MedicationID: med.ID,
			Name:         med.Name,
			Time:         medications.FormatClock(mins),
			Message:      "Time to take your medication: " + med.Name,
			RaisedAt:     now,
		}
		m.armed[med.OwnerUserID] = rem
		m.fired[key] = now

		m.log.Info().
			Str("owner", med.OwnerUserID).
			Str("medication_id", med.ID).
			Str("time", rem.Time).
			Msg("reminder raised")
	}

	return nil
}

// Current devuelve el recordatorio armado del owner, si hay.
func (m *Matcher) Current(ownerUserID string) (Reminder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.armed[ownerUserID]
	return r, ok
}

// Dismiss pasa el owner de armed a idle.
func (m *Matcher) Dismiss(ownerUserID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.armed, ownerUserID)
}

// pruneFired descarta las keys de días anteriores. Se llama con mu tomado.
func (m *Matcher) pruneFired(day string) {
	marker := "|" + day + "|"
	for k := range m.fired {
		if !strings.Contains(k, marker) {
			delete(m.fired, k)
		}
	}
}
