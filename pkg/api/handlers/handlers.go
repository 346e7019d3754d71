package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cbodonnell/gameflow/pkg/api/middleware"
	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/repositories/models"
	"github.com/cbodonnell/gameflow/pkg/session"
	"github.com/cbodonnell/gameflow/pkg/statemachine"
)

// SessionController is the part of session.Controller the API drives.
type SessionController interface {
	Snapshot() session.Session
	StartNewGame(ctx context.Context) error
	PauseGame(ctx context.Context) error
	ResumeGame(ctx context.Context) error
	RunGameOver(ctx context.Context) error
	RestartGame(ctx context.Context) error
	QuitGame(ctx context.Context) error
	GoToMainMenu(ctx context.Context) error
	AddScore(value int64) error
	HandleCharacterDead(score int64) error
}

type StatisticsReader interface {
	Statistics(ctx context.Context) (*models.Statistics, error)
	Sessions(ctx context.Context, limit int) ([]*models.SessionRecord, error)
}

// Action is a controller operation exposed as a POST endpoint.
type Action func(ctx context.Context) error

type addScoreRequest struct {
	Value *int64 `json:"value"`
}

type characterDeadRequest struct {
	Score *int64 `json:"score"`
}

func HandleGetSession(controller SessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, controller.Snapshot())
	}
}

// HandleAction runs the action and responds with the resulting session.
// The action is not cancelled when the client goes away so that a ramp or
// transition is never left half done.
func HandleAction(name string, action Action, controller SessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
			log.Info("%s requested by %s", name, claims.UID)
		}
		if err := action(context.WithoutCancel(r.Context())); err != nil {
			log.Error("failed to %s: %v", name, err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, controller.Snapshot())
	}
}

func HandleAddScore(controller SessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := addScoreRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
			http.Error(w, "Request body must be {\"value\": <integer>}", http.StatusBadRequest)
			return
		}

		if err := controller.AddScore(*req.Value); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, controller.Snapshot())
	}
}

// HandleCharacterDead credits the score of a defeated character.
func HandleCharacterDead(controller SessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := characterDeadRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
			http.Error(w, "Request body must be {\"score\": <integer>}", http.StatusBadRequest)
			return
		}

		if err := controller.HandleCharacterDead(*req.Score); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, controller.Snapshot())
	}
}

func HandleGetStatistics(statistics StatisticsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := statistics.Statistics(r.Context())
		if err != nil {
			log.Error("failed to load statistics: %v", err)
			http.Error(w, "Failed to load statistics", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func HandleListSessions(statistics StatisticsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		sessions, err := statistics.Sessions(r.Context(), limit)
		if err != nil {
			log.Error("failed to list sessions: %v", err)
			http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, statemachine.ErrTransitionInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, statemachine.ErrHookTimeout):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
