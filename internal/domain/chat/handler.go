package chat

import (
	"encoding/json"
	"net/http"
	"strings"

	"medpal/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/chat", askHandler(svc))
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer     string `json:"answer"`
	Matched    bool   `json:"matched"`
	Disclaimer string `json:"disclaimer"`
}

func askHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			http.Error(w, "question is required", http.StatusBadRequest)
			return
		}

		answer, matched := svc.Answer(req.Question)
		writeJSON(w, http.StatusOK, askResponse{
			Answer:     answer,
			Matched:    matched,
			Disclaimer: Disclaimer,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
