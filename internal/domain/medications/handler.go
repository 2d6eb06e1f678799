package medications

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"medpal/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/medications", func(mr chi.Router) {
		mr.Post("/", createMedicationHandler(svc))
		mr.Get("/", listMedicationsHandler(svc))

		// Próxima toma proyectada (antes de {medID} para no capturar el path)
		mr.Get("/next-dose", nextDoseHandler(svc))

		// Suscripción push owner-filtered (snapshots completos)
		mr.Get("/watch", watchMedicationsHandler(svc))

		mr.Get("/{medID}", getMedicationHandler(svc))
		mr.Patch("/{medID}", updateMedicationHandler(svc))
		mr.Delete("/{medID}", deleteMedicationHandler(svc))

		mr.Post("/{medID}/status", statusMedicationHandler(svc))
		mr.Get("/{medID}/image", medicationImageHandler(svc))
	})
}

type medicationRequest struct {
	Name        string `json:"name"`
	Dosage      string `json:"dosage"`
	Frequency   string `json:"frequency"` // HH:MM
	StartDate   string `json:"start_date"` // YYYY-MM-DD opcional
	EndDate     string `json:"end_date"`   // YYYY-MM-DD opcional
	Form        string `json:"form"`
	Interval    string `json:"interval"`
	Instruction string `json:"instruction"`
	Slot        string `json:"slot"`
}

type updateMedicationRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name        *string `json:"name"`
	Dosage      *string `json:"dosage"`
	Frequency   *string `json:"frequency"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"` // para limpiar: enviar null
	Form        *string `json:"form"`
	Interval    *string `json:"interval"`
	Instruction *string `json:"instruction"`
	Slot        *string `json:"slot"`
}

type statusRequest struct {
	Action string `json:"action"` // take | skip
}

type medicationResponse struct {
	ID          string     `json:"id"`
	OwnerUserID string     `json:"owner_user_id"`
	Name        string     `json:"name"`
	Dosage      string     `json:"dosage"`
	Frequency   string     `json:"frequency"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Form        string     `json:"form"`
	Interval    string     `json:"interval"`
	Instruction string     `json:"instruction"`
	Slot        string     `json:"slot"`
	ImageURL    string     `json:"image_url,omitempty"`
	Status      string     `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type nextDoseResponse struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// maxImageMemory limita el buffering en memoria del multipart.
const maxImageMemory = 10 << 20

func createMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req medicationRequest
		var image *ImageUpload

		if isMultipart(r) {
			if err := r.ParseMultipartForm(maxImageMemory); err != nil {
				http.Error(w, "invalid multipart form", http.StatusBadRequest)
				return
			}
			if err := json.Unmarshal([]byte(r.FormValue("data")), &req); err != nil {
				http.Error(w, "invalid json in data field", http.StatusBadRequest)
				return
			}
			image = formImage(r)
		} else {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		start, err := parseDate(req.StartDate)
		if err != nil {
			http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end, err := parseDate(req.EndDate)
		if err != nil {
			http.Error(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		m, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			Name:        req.Name,
			Dosage:      req.Dosage,
			Frequency:   req.Frequency,
			StartDate:   start,
			EndDate:     end,
			Form:        req.Form,
			Interval:    req.Interval,
			Instruction: req.Instruction,
			Slot:        req.Slot,
		}, image)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			// El registro puede haber quedado persistido sin imagen; no hay
			// indicación de éxito parcial, igual que con cualquier falla de store.
			http.Error(w, "failed to add medication", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toMedicationResponse(m))
	}
}

func listMedicationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "failed to fetch medications", http.StatusInternalServerError)
			return
		}

		// Filtros de vista: ?slot=morning|afternoon|night, ?pending=true
		if slot := strings.ToLower(r.URL.Query().Get("slot")); slot != "" {
			filtered := items[:0]
			for _, m := range items {
				if string(m.Slot) == slot {
					filtered = append(filtered, m)
				}
			}
			items = filtered
		}
		if r.URL.Query().Get("pending") == "true" {
			filtered := items[:0]
			for _, m := range items {
				if m.Status == StatusNone {
					filtered = append(filtered, m)
				}
			}
			items = filtered
		}

		out := make([]medicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMedicationResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.GetByID(r.Context(), chi.URLParam(r, "medID"), claims.UserID)
		if err != nil {
			// Cross-owner y ausencia genuina son indistinguibles a propósito.
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toMedicationResponse(m))
	}
}

func updateMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body []byte
		var image *ImageUpload
		if isMultipart(r) {
			if err := r.ParseMultipartForm(maxImageMemory); err != nil {
				http.Error(w, "invalid multipart form", http.StatusBadRequest)
				return
			}
			body = []byte(r.FormValue("data"))
			image = formImage(r)
		} else {
			b, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "invalid body", http.StatusBadRequest)
				return
			}
			body = b
		}

		// Para soportar end_date: null, detectamos presencia del campo
		// decodificando primero a map.
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var req updateMedicationRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var start *time.Time
		if req.StartDate != nil {
			t, err := parseDate(*req.StartDate)
			if err != nil {
				http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			start = t
		}

		end := PatchDate{}
		if v, exists := raw["end_date"]; exists {
			end.Present = true
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					http.Error(w, "end_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				t, err := parseDate(s)
				if err != nil {
					http.Error(w, "end_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				end.Value = t
			}
		}

		m, err := svc.Update(r.Context(), chi.URLParam(r, "medID"), claims.UserID, UpdateInput{
			Name:        req.Name,
			Dosage:      req.Dosage,
			Frequency:   req.Frequency,
			StartDate:   start,
			EndDate:     end,
			Form:        req.Form,
			Interval:    req.Interval,
			Instruction: req.Instruction,
			Slot:        req.Slot,
		}, image)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "medication not found", http.StatusNotFound)
			default:
				http.Error(w, "failed to update medication", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(m))
	}
}

func deleteMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		err := svc.Delete(r.Context(), chi.URLParam(r, "medID"), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "medication not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to delete medication", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func statusMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.SetStatus(r.Context(), chi.URLParam(r, "medID"), claims.UserID, Status(strings.ToLower(req.Action)))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "action must be take or skip", http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "medication not found", http.StatusNotFound)
			default:
				http.Error(w, "failed to update medication status", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, toMedicationResponse(m))
	}
}

func nextDoseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		nd, ok, err := svc.NextDose(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "failed to fetch medications", http.StatusInternalServerError)
			return
		}
		if !ok {
			// Todos los triggers ya pasaron hoy: no hay rollover al día siguiente.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, nextDoseResponse{Name: nd.Name, Time: nd.Time})
	}
}

func medicationImageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rc, mimeType, err := svc.OpenImage(r.Context(), chi.URLParam(r, "medID"), claims.UserID)
		if err != nil {
			http.Error(w, "image not found", http.StatusNotFound)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", mimeType)
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
	}
}

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// El frontend vive en otro origin; el token ya autentica.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func watchMedicationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := watchUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return // Upgrade ya respondió el error
		}
		defer conn.Close()

		ch, cancel := svc.Watch(r.Context(), claims.UserID)
		defer cancel()

		// Snapshot inicial: el watcher siempre arranca con el set completo.
		meds, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err == nil {
			if err := writeSnapshot(conn, meds); err != nil {
				return
			}
		}

		// Read pump: solo para detectar el cierre del cliente.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case snapshot, open := <-ch:
				if !open {
					return
				}
				if err := writeSnapshot(conn, snapshot); err != nil {
					return
				}
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, meds []Medication) error {
	out := make([]medicationResponse, 0, len(meds))
	for _, m := range meds {
		out = append(out, toMedicationResponse(m))
	}
	return conn.WriteJSON(out)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func formImage(r *http.Request) *ImageUpload {
	f, hdr, err := r.FormFile("image")
	if err != nil {
		return nil
	}
	return &ImageUpload{
		MimeType: hdr.Header.Get("Content-Type"),
		Data:     f,
	}
}

func parseDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toMedicationResponse(m Medication) medicationResponse {
	return medicationResponse{
		ID:          m.ID,
		OwnerUserID: m.OwnerUserID,
		Name:        m.Name,
		Dosage:      m.Dosage,
		Frequency:   m.Frequency,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		Form:        string(m.Form),
		Interval:    string(m.Interval),
		Instruction: m.Instruction,
		Slot:        string(m.Slot),
		ImageURL:    m.ImageURL,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
