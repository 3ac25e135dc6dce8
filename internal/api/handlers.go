// Package api exposes the HTTP surface the chat gateway calls.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/challenge/internal/auth"
	"example.com/challenge/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	clock   domain.Clock
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, clock domain.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/challenges", h.challenges)
	mux.HandleFunc("/v1/challenges/", h.challengeAction)
	mux.HandleFunc("/v1/status", h.status)
	mux.HandleFunc("/v1/reminders", h.reminders)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) challenges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createChallenge(w, r)
	case http.MethodGet:
		h.listChallenges(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// challengeAction dispatches /v1/challenges/{id}/{action}.
func (h *Handler) challengeAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/challenges/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing challenge id")
		return
	}

	if len(parts) == 1 || parts[1] == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.getChallenge(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	switch parts[1] {
	case "join":
		h.joinChallenge(w, r, id)
	case "leave":
		h.leaveChallenge(w, r, id)
	case "complete":
		h.completeChallenge(w, r, id)
	case "exercises":
		h.addExercise(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown action")
	}
}

func (h *Handler) createChallenge(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireScope(w, r, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	var req CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	exercises := make([]domain.ExerciseInput, 0, len(req.Exercises))
	for _, ex := range req.Exercises {
		exercises = append(exercises, domain.ExerciseInput{Name: ex.Name, TargetReps: ex.TargetReps})
	}

	ch, err := h.service.CreateChallenge(r.Context(), req.Name, claims.Subject, exercises)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChallengeView(*ch))
}

func (h *Handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireRead(w, r); !ok {
		return
	}

	challenges, err := h.service.ListChallenges(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ChallengeView, 0, len(challenges))
	for _, ch := range challenges {
		items = append(items, toChallengeView(ch))
	}
	writeJSON(w, http.StatusOK, ListChallengesResponse{Items: items})
}

func (h *Handler) getChallenge(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.requireRead(w, r); !ok {
		return
	}

	ch, err := h.service.GetChallenge(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeView(*ch))
}

func (h *Handler) joinChallenge(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := h.requireScope(w, r, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	if err := h.service.JoinChallenge(r.Context(), id, claims.Subject); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) leaveChallenge(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := h.requireScope(w, r, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	if err := h.service.LeaveChallenge(r.Context(), id, claims.Subject); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completeChallenge(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := h.requireScope(w, r, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	var req CompleteChallengeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
	}

	date := h.clock.Today()
	if req.Date != "" {
		parsed, err := domain.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid date")
			return
		}
		date = parsed
	}

	if err := h.service.CompleteChallenge(r.Context(), id, claims.Subject, date, req.ExerciseID, req.Reps); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addExercise(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := h.requireScope(w, r, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	var req AddExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	ex, err := h.service.AddExercise(r.Context(), id, claims.Subject, req.Name, req.TargetReps)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExerciseView(*ex))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.requireRead(w, r)
	if !ok {
		return
	}

	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	statuses, err := h.service.StatusFor(r.Context(), claims.Subject, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]StatusView, 0, len(statuses))
	for _, st := range statuses {
		items = append(items, StatusView{
			ID:          st.Challenge.ID,
			Name:        st.Challenge.Name,
			Completed:   st.Completed,
			MemberCount: st.MemberCount,
		})
	}
	writeJSON(w, http.StatusOK, StatusResponse{Date: date.String(), Items: items})
}

func (h *Handler) reminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := h.requireScope(w, r, auth.ScopeChallengesRead); !ok {
		return
	}

	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	targets, err := h.service.ReminderTargets(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make(map[string][]ChallengeRefView, len(targets))
	for userID, challenges := range targets {
		refs := make([]ChallengeRefView, 0, len(challenges))
		for _, ch := range challenges {
			refs = append(refs, ChallengeRefView{ID: ch.ID, Name: ch.Name})
		}
		out[userID] = refs
	}
	writeJSON(w, http.StatusOK, RemindersResponse{Date: date.String(), Targets: out})
}

func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (domain.Date, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.clock.Today(), true
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid date")
		return "", false
	}
	return date, true
}

func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

// requireRead accepts either the read or write scope, matching how the
// gateway provisions tokens.
func (h *Handler) requireRead(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(auth.ScopeChallengesRead) && !claims.HasScope(auth.ScopeChallengesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeChallengesRead+" required")
		return nil, false
	}
	return claims, true
}

// CreateChallengeRequest is the payload for POST /v1/challenges.
type CreateChallengeRequest struct {
	Name      string            `json:"name"`
	Exercises []ExerciseRequest `json:"exercises"`
}

// ExerciseRequest describes one target metric.
type ExerciseRequest struct {
	Name       string `json:"name"`
	TargetReps int    `json:"target_reps"`
}

// Validate ensures request correctness before touching the service.
func (r CreateChallengeRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	for _, ex := range r.Exercises {
		if strings.TrimSpace(ex.Name) == "" {
			return errors.New("exercise name is required")
		}
		if ex.TargetReps <= 0 {
			return errors.New("target_reps must be > 0")
		}
	}
	return nil
}

// AddExerciseRequest is the payload for POST /v1/challenges/{id}/exercises.
type AddExerciseRequest struct {
	Name       string `json:"name"`
	TargetReps int    `json:"target_reps"`
}

// CompleteChallengeRequest is the optional payload for complete.
type CompleteChallengeRequest struct {
	Date       string `json:"date"`
	ExerciseID string `json:"exercise_id"`
	Reps       int    `json:"reps"`
}

// ChallengeView exposes full challenge details.
type ChallengeView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatorID string         `json:"creator_id"`
	Exercises []ExerciseView `json:"exercises"`
	CreatedAt time.Time      `json:"created_at"`
}

// ExerciseView exposes one target metric.
type ExerciseView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TargetReps int    `json:"target_reps"`
}

// ListChallengesResponse packages list results.
type ListChallengesResponse struct {
	Items []ChallengeView `json:"items"`
}

// StatusView is one row of a user's daily status.
type StatusView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Completed   bool   `json:"completed"`
	MemberCount int    `json:"member_count"`
}

// StatusResponse packages a user's daily status.
type StatusResponse struct {
	Date  string       `json:"date"`
	Items []StatusView `json:"items"`
}

// ChallengeRefView names one incomplete challenge in a reminder entry.
type ChallengeRefView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RemindersResponse maps users to their incomplete challenges.
type RemindersResponse struct {
	Date    string                        `json:"date"`
	Targets map[string][]ChallengeRefView `json:"targets"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, "not_found", "challenge not found")
	case errors.Is(err, domain.ErrNotCreator):
		writeError(w, http.StatusForbidden, "forbidden", "only the creator may modify the challenge")
	case errors.Is(err, domain.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "already_member", "user already joined")
	case errors.Is(err, domain.ErrNotMember):
		writeError(w, http.StatusConflict, "not_member", "user is not a member")
	case errors.Is(err, domain.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "already_completed", "already completed for date")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toChallengeView(ch domain.Challenge) ChallengeView {
	view := ChallengeView{
		ID:        ch.ID,
		Name:      ch.Name,
		CreatorID: ch.CreatorID,
		Exercises: make([]ExerciseView, 0, len(ch.Exercises)),
		CreatedAt: ch.CreatedAt,
	}
	for _, ex := range ch.Exercises {
		view.Exercises = append(view.Exercises, toExerciseView(ex))
	}
	return view
}

func toExerciseView(ex domain.Exercise) ExerciseView {
	return ExerciseView{ID: ex.ID, Name: ex.Name, TargetReps: ex.TargetReps}
}
