package main

import (
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/AdamBeresnev/tourney-bot/internal/httputil"
	"github.com/AdamBeresnev/tourney-bot/internal/middleware"
	"github.com/AdamBeresnev/tourney-bot/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type application struct {
	tournament   *service.TournamentService
	matches      *service.MatchService
	registration *service.RegistrationService
	admins       middleware.Privileges
	hub          http.Handler
}

type textRequest struct {
	Text string `json:"text"`
}

type modeRequest struct {
	Mode bracket.RegistrationMode `json:"mode"`
}

type winRequest struct {
	WinnerID uuid.UUID `json:"winner_id"`
}

// disqualifyRequest removes player_id from the match, or both players when
// both is set.
type disqualifyRequest struct {
	PlayerID *uuid.UUID `json:"player_id"`
	Both     bool       `json:"both"`
}

func newRouter(app *application, origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.CallerIDHeader},
		MaxAge:         300,
	}))

	r.Get("/bracket", func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := app.tournament.Snapshot(r.Context())
		if err != nil {
			httputil.ServiceError(w, "Failed to load bracket", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, snapshot)
	})

	r.Handle("/ws/bracket", app.hub)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCaller)

		r.Route("/registration", func(r chi.Router) {
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				step, err := app.registration.Begin(r.Context(), callerID(r))
				writeStep(w, step, err)
			})

			r.Post("/nickname", func(w http.ResponseWriter, r *http.Request) {
				var req textRequest
				if err := httputil.ReadJSON(w, r, &req); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				step, err := app.registration.SubmitNickname(r.Context(), callerID(r), req.Text)
				writeStep(w, step, err)
			})

			r.Post("/character", func(w http.ResponseWriter, r *http.Request) {
				var req textRequest
				if err := httputil.ReadJSON(w, r, &req); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				step, err := app.registration.SubmitCharacterChoice(r.Context(), callerID(r), req.Text)
				writeStep(w, step, err)
			})

			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				step, err := app.registration.Cancel(r.Context(), callerID(r))
				writeStep(w, step, err)
			})
		})

		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			status, err := app.tournament.CurrentMatch(r.Context(), callerID(r))
			if err != nil {
				httputil.ServiceError(w, "Failed to get current match", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, status)
		})

		r.Route("/matches/{id}", func(r chi.Router) {
			r.Post("/win", func(w http.ResponseWriter, r *http.Request) {
				matchID, ok := parseMatchID(w, r)
				if !ok {
					return
				}
				var req winRequest
				if err := httputil.ReadJSON(w, r, &req); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				res, err := app.matches.ResolveWin(r.Context(), callerID(r), matchID, req.WinnerID)
				if err != nil {
					httputil.ServiceError(w, "Failed to resolve match", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, res)
			})

			r.Post("/disqualify", func(w http.ResponseWriter, r *http.Request) {
				matchID, ok := parseMatchID(w, r)
				if !ok {
					return
				}
				var req disqualifyRequest
				if err := httputil.ReadJSON(w, r, &req); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}

				var dq bracket.Disqualification
				switch {
				case req.Both && req.PlayerID == nil:
					dq = bracket.DisqualifyBoth()
				case !req.Both && req.PlayerID != nil:
					dq = bracket.DisqualifyPlayer(*req.PlayerID)
				default:
					httputil.BadRequest(w, "Set exactly one of player_id or both", nil)
					return
				}

				res, err := app.matches.ResolveDisqualification(r.Context(), callerID(r), matchID, dq)
				if err != nil {
					httputil.ServiceError(w, "Failed to disqualify", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, res)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/registration/open", func(w http.ResponseWriter, r *http.Request) {
				writeDone(w, "Failed to open registration", app.tournament.OpenRegistration(r.Context(), callerID(r)))
			})

			r.Post("/registration/close", func(w http.ResponseWriter, r *http.Request) {
				writeDone(w, "Failed to close registration", app.tournament.CloseRegistration(r.Context(), callerID(r)))
			})

			r.Put("/mode", func(w http.ResponseWriter, r *http.Request) {
				var req modeRequest
				if err := httputil.ReadJSON(w, r, &req); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				writeDone(w, "Failed to set mode", app.tournament.SetMode(r.Context(), callerID(r), req.Mode))
			})

			r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
				gen, err := app.tournament.Start(r.Context(), callerID(r))
				if err != nil {
					httputil.ServiceError(w, "Failed to start tournament", err)
					return
				}
				httputil.WriteJSON(w, http.StatusCreated, gen)
			})

			r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
				writeDone(w, "Failed to reset tournament", app.tournament.Reset(r.Context(), callerID(r)))
			})

			r.Post("/broadcast", func(w http.ResponseWriter, r *http.Request) {
				var req textRequest
				if err := httputil.ReadJSON(w, r, &req); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				result, err := app.tournament.Broadcast(r.Context(), callerID(r), req.Text)
				if err != nil {
					httputil.ServiceError(w, "Failed to broadcast", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, map[string]int{"sent": result.Sent, "failed": result.Failed})
			})

			// Re-runs the completion check for a round, e.g. after a crash
			// between resolution and advancement.
			r.With(middleware.RequirePrivileged(app.admins)).Post("/rounds/{round}/advance", func(w http.ResponseWriter, r *http.Request) {
				round, err := strconv.Atoi(chi.URLParam(r, "round"))
				if err != nil || round < 1 {
					httputil.BadRequest(w, "Invalid round number", err)
					return
				}
				adv, err := app.matches.AdvanceRound(r.Context(), round)
				if err != nil {
					httputil.ServiceError(w, "Failed to advance round", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, map[string]any{"advanced": adv != nil, "advancement": adv})
			})
		})
	})

	return r
}

func callerID(r *http.Request) string {
	id, _ := middleware.GetCallerIDFromContext(r.Context())
	return id
}

func parseMatchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid match ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func writeStep(w http.ResponseWriter, step *service.RegistrationStep, err error) {
	switch {
	case err != nil && step != nil:
		httputil.WriteStepError(w, err, step)
	case err != nil:
		httputil.ServiceError(w, "Registration failed", err)
	default:
		httputil.WriteJSON(w, http.StatusOK, step)
	}
}

func writeDone(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		httputil.ServiceError(w, msg, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
