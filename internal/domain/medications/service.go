package medications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"medpal/internal/ports/blob"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("medication not found")
)

// ImageUpload es la imagen opcional adjunta a un alta/edición.
type ImageUpload struct {
	MimeType string
	Data     io.Reader
}

type Service struct {
	repo   Repository
	blobs  blob.Store
	broker *Broker
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, blobs blob.Store, broker *Broker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		blobs:  blobs,
		broker: broker,
		log:    log,
		now:    time.Now,
	}
}

// WithNow inyecta el reloj (para tests y para el router).
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

type CreateInput struct {
	Name        string
	Dosage      string
	Frequency   string // HH:MM
	StartDate   *time.Time
	EndDate     *time.Time
	Form        string
	Interval    string
	Instruction string
	Slot        string
}

// Create persiste el registro primero y recién después sube la imagen y
// parchea ImageURL. Si el paso de imagen falla, el registro queda persistido
// sin imagen (no hay rollback entre los dos stores); el error se propaga.
func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput, image *ImageUpload) (Medication, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Medication{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Medication{}, ErrInvalidInput
	}
	if _, err := ParseClock(in.Frequency); err != nil {
		return Medication{}, ErrInvalidInput
	}
	form := Form(strings.ToLower(strings.TrimSpace(in.Form)))
	if !ValidForm(form) {
		return Medication{}, ErrInvalidInput
	}
	interval := Interval(strings.ToLower(strings.TrimSpace(in.Interval)))
	if !ValidInterval(interval) {
		return Medication{}, ErrInvalidInput
	}
	slot := Slot(strings.ToLower(strings.TrimSpace(in.Slot)))
	if !ValidSlot(slot) {
		return Medication{}, ErrInvalidInput
	}
	instruction := strings.TrimSpace(in.Instruction)
	if !ValidInstruction(instruction) {
		return Medication{}, ErrInvalidInput
	}

	now := s.now()
	m := Medication{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Name:        strings.TrimSpace(in.Name),
		Dosage:      strings.TrimSpace(in.Dosage),
		Frequency:   strings.TrimSpace(in.Frequency),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Form:        form,
		Interval:    interval,
		Instruction: instruction,
		Slot:        slot,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, err
	}

	if image != nil {
		if err := s.attachImage(ctx, &m, image); err != nil {
			s.publish(ctx, ownerUserID)
			return m, fmt.Errorf("medication created without image: %w", err)
		}
	}

	s.publish(ctx, ownerUserID)
	return m, nil
}

type UpdateInput struct {
	// Punteros para PATCH real: nil = no tocar.
	Name        *string
	Dosage      *string
	Frequency   *string
	StartDate   *time.Time
	EndDate     PatchDate
	Form        *string
	Interval    *string
	Instruction *string
	Slot        *string
}

// PatchDate distingue "no enviado" de "enviar null" (limpiar fecha).
type PatchDate struct {
	Present bool
	Value   *time.Time
}

// Update aplica un merge parcial de campos y repite, si corresponde, el paso
// de subida de imagen con la misma semántica que Create.
func (s *Service) Update(ctx context.Context, id, ownerUserID string, in UpdateInput, image *ImageUpload) (Medication, error) {
	m, err := s.GetByID(ctx, id, ownerUserID)
	if err != nil {
		return Medication{}, err
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return Medication{}, ErrInvalidInput
		}
		m.Name = strings.TrimSpace(*in.Name)
	}
	if in.Dosage != nil {
		m.Dosage = strings.TrimSpace(*in.Dosage)
	}
	if in.Frequency != nil {
		if _, err := ParseClock(*in.Frequency); err != nil {
			return Medication{}, ErrInvalidInput
		}
		m.Frequency = strings.TrimSpace(*in.Frequency)
	}
	if in.StartDate != nil {
		m.StartDate = in.StartDate
	}
	if in.EndDate.Present {
		m.EndDate = in.EndDate.Value
	}
	if in.Form != nil {
		f := Form(strings.ToLower(strings.TrimSpace(*in.Form)))
		if !ValidForm(f) {
			return Medication{}, ErrInvalidInput
		}
		m.Form = f
	}
	if in.Interval != nil {
		iv := Interval(strings.ToLower(strings.TrimSpace(*in.Interval)))
		if !ValidInterval(iv) {
			return Medication{}, ErrInvalidInput
		}
		m.Interval = iv
	}
	if in.Instruction != nil {
		ins := strings.TrimSpace(*in.Instruction)
		if !ValidInstruction(ins) {
			return Medication{}, ErrInvalidInput
		}
		m.Instruction = ins
	}
	if in.Slot != nil {
		sl := Slot(strings.ToLower(strings.TrimSpace(*in.Slot)))
		if !ValidSlot(sl) {
			return Medication{}, ErrInvalidInput
		}
		m.Slot = sl
	}

	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}

	if image != nil {
		if err := s.attachImage(ctx, &m, image); err != nil {
			s.publish(ctx, ownerUserID)
			return m, fmt.Errorf("medication updated without image: %w", err)
		}
	}

	s.publish(ctx, ownerUserID)
	return m, nil
}

// SetStatus marca el medicamento como tomado o salteado. El status no tiene
// dimensión de fecha: una vez seteado persiste hasta que se edite el registro.
func (s *Service) SetStatus(ctx context.Context, id, ownerUserID string, status Status) (Medication, error) {
	if !ValidStatus(status) {
		return Medication{}, ErrInvalidInput
	}

	m, err := s.GetByID(ctx, id, ownerUserID)
	if err != nil {
		return Medication{}, err
	}

	m.Status = status
	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}

	s.publish(ctx, ownerUserID)
	return m, nil
}

// Delete borra el registro y después intenta borrar el blob asociado.
// El borrado del blob es best-effort: si falla se loguea y se traga, porque
// el registro dueño ya no existe.
func (s *Service) Delete(ctx context.Context, id, ownerUserID string) error {
	if _, err := s.GetByID(ctx, id, ownerUserID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, id); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.log.Warn().Err(err).Str("medication_id", id).Msg("failed to delete medication image")
	}

	s.publish(ctx, ownerUserID)
	return nil
}

// GetByID rechaza acceso cross-owner devolviendo ErrNotFound, aunque el
// registro exista: no se distingue de una ausencia genuina.
func (s *Service) GetByID(ctx context.Context, id, ownerUserID string) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrNotFound
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Medication{}, err
	}
	if m.OwnerUserID != ownerUserID {
		return Medication{}, ErrNotFound
	}
	return m, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Medication, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

// NextDose proyecta la próxima toma del owner relativa a "ahora".
func (s *Service) NextDose(ctx context.Context, ownerUserID string) (NextDose, bool, error) {
	meds, err := s.repo.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return NextDose{}, false, err
	}
	nd, ok := ProjectNextDose(meds, s.now())
	return nd, ok, nil
}

// OpenImage devuelve la imagen asociada al registro (owner-filtered).
func (s *Service) OpenImage(ctx context.Context, id, ownerUserID string) (io.ReadCloser, string, error) {
	if _, err := s.GetByID(ctx, id, ownerUserID); err != nil {
		return nil, "", err
	}
	return s.blobs.Get(ctx, id)
}

// Watch abre una suscripción owner-filtered; cada cambio reemplaza el set
// completo con el snapshot (sin diffs incrementales).
func (s *Service) Watch(ctx context.Context, ownerUserID string) (<-chan []Medication, func()) {
	return s.broker.Subscribe(ownerUserID)
}

func (s *Service) attachImage(ctx context.Context, m *Medication, image *ImageUpload) error {
	if err := s.blobs.Save(ctx, m.ID, image.MimeType, image.Data); err != nil {
		return err
	}

	m.ImageURL = "/medications/" + m.ID + "/image"
	m.UpdatedAt = s.now()
	return s.repo.Update(ctx, *m)
}

func (s *Service) publish(ctx context.Context, ownerUserID string) {
	if s.broker == nil {
		return
	}
	meds, err := s.repo.ListByOwner(ctx, ownerUserID)
	if err != nil {
		// El error se reporta pero la suscripción sigue abierta.
		s.log.Error().Err(err).Str("owner", ownerUserID).Msg("failed to build watch snapshot")
		return
	}
	s.broker.Publish(ownerUserID, meds)
}
