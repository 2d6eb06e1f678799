package reminders

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"medpal/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, matcher *Matcher) {
	r.Route("/reminders", func(rr chi.Router) {
		rr.Get("/current", currentReminderHandler(matcher))
		rr.Post("/dismiss", dismissReminderHandler(matcher))
	})
}

type reminderResponse struct {
	MedicationID string    `json:"medication_id"`
	Name         string    `json:"name"`
	Time         string    `json:"time"`
	Message      string    `json:"message"`
	RaisedAt     time.Time `json:"raised_at"`
}

func currentReminderHandler(matcher *Matcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rem, ok := matcher.Current(claims.UserID)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		writeJSON(w, http.StatusOK, reminderResponse{
			MedicationID: rem.MedicationID,
			Name:         rem.Name,
			Time:         rem.Time,
			Message:      rem.Message,
			RaisedAt:     rem.RaisedAt,
		})
	}
}

func dismissReminderHandler(matcher *Matcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		matcher.Dismiss(claims.UserID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
