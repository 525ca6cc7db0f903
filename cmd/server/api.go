package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-adaptive/internal/coach"
	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/locale"
	"github.com/p-n-ai/pai-adaptive/internal/mastery"
	"github.com/p-n-ai/pai-adaptive/internal/profile"
	"github.com/p-n-ai/pai-adaptive/internal/recommend"
	"github.com/p-n-ai/pai-adaptive/internal/report"
	"github.com/p-n-ai/pai-adaptive/internal/review"
)

const (
	maxBodyBytes      = 1 << 20
	defaultConfidence = 0.95
)

type namedCheck struct {
	name  string
	check func(context.Context) error
}

// appConfig carries the assembled dependencies. Nil stores fall back to
// in-memory implementations.
type appConfig struct {
	Graph          *knowledge.Graph
	MasteryStore   mastery.Store
	Events         mastery.EventLogger
	ReviewStore    review.Store
	Grades         profile.Resolver
	AI             coach.Completer
	Weights        recommend.Weights
	DefaultGrade   int
	MemoryStrength float64
	Language       language.Tag
	Checks         []namedCheck
	Now            func() time.Time
}

type app struct {
	graph     *knowledge.Graph
	tracker   *mastery.Tracker
	engine    *recommend.Engine
	adjuster  *recommend.Adjuster
	planner   *recommend.Planner
	scheduler *review.Scheduler
	coach     *coach.Coach
	reports   report.Collector
	language  language.Tag
	checks    []namedCheck
}

func newApp(cfg appConfig) *app {
	if cfg.MasteryStore == nil {
		cfg.MasteryStore = mastery.NewMemoryStore()
	}
	if cfg.Events == nil {
		cfg.Events = mastery.NopEventLogger{}
	}
	if cfg.ReviewStore == nil {
		cfg.ReviewStore = review.NewMemoryStore()
	}
	if cfg.Grades == nil {
		cfg.Grades = profile.NewMemoryResolver()
	}
	if cfg.Language == language.Und {
		cfg.Language = locale.Default
	}

	tracker := mastery.NewTracker(mastery.TrackerConfig{
		Store:  cfg.MasteryStore,
		Events: cfg.Events,
		Grades: cfg.Grades,
		Now:    cfg.Now,
	})
	engine := recommend.NewEngine(recommend.EngineConfig{
		Graph:        cfg.Graph,
		Tracker:      tracker,
		Grades:       cfg.Grades,
		DefaultGrade: cfg.DefaultGrade,
		Weights:      cfg.Weights,
		Now:          cfg.Now,
	})
	planner := recommend.NewPlanner(engine)
	scheduler := review.NewScheduler(review.SchedulerConfig{
		Store:          cfg.ReviewStore,
		Graph:          cfg.Graph,
		Grades:         cfg.Grades,
		Tracker:        tracker,
		MemoryStrength: cfg.MemoryStrength,
		Now:            cfg.Now,
	})

	return &app{
		graph:     cfg.Graph,
		tracker:   tracker,
		engine:    engine,
		adjuster:  recommend.NewAdjuster(cfg.Graph, tracker),
		planner:   planner,
		scheduler: scheduler,
		coach: coach.New(coach.Config{
			AI:      cfg.AI,
			Engine:  engine,
			Planner: planner,
			Reviews: scheduler,
		}),
		reports: report.Collector{
			Graph:     cfg.Graph,
			Engine:    engine,
			Tracker:   tracker,
			Schedules: scheduler,
			Now:       cfg.Now,
		},
		language: cfg.Language,
		checks:   cfg.Checks,
	}
}

// newMux creates the HTTP router.
func newMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)

	mux.HandleFunc("GET /v1/knowledge", a.handleKnowledge)

	mux.HandleFunc("PUT /v1/users/{userID}/grade", a.handleSetGrade)
	mux.HandleFunc("POST /v1/users/{userID}/actions", a.handleAction)
	mux.HandleFunc("GET /v1/users/{userID}/recommendations", a.handleRecommendations)
	mux.HandleFunc("GET /v1/users/{userID}/progress", a.handleProgress)
	mux.HandleFunc("GET /v1/users/{userID}/plan", a.handlePlan)
	mux.HandleFunc("GET /v1/users/{userID}/mastery/{knowledgeID}", a.handleMastery)
	mux.HandleFunc("POST /v1/users/{userID}/mastery/{knowledgeID}/difficulty", a.handleDifficulty)

	mux.HandleFunc("GET /v1/users/{userID}/reviews", a.handleListReviews)
	mux.HandleFunc("POST /v1/users/{userID}/reviews", a.handleCreateReview)
	mux.HandleFunc("POST /v1/users/{userID}/reviews/{reviewID}/complete", a.handleCompleteReview)
	mux.HandleFunc("GET /v1/users/{userID}/reviews/today", a.handleTodayReviews)
	mux.HandleFunc("GET /v1/users/{userID}/reviews/reminder", a.handleReminder)
	mux.HandleFunc("GET /v1/users/{userID}/reviews/stats", a.handleReviewStats)

	mux.HandleFunc("GET /v1/users/{userID}/report.xlsx", a.handleReport)
	mux.HandleFunc("GET /v1/users/{userID}/coach", a.handleCoach)

	return a.withLanguage(mux)
}

// withLanguage stores the Accept-Language choice in the request context.
func (a *app) withLanguage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := a.language
		if accept := r.Header.Get("Accept-Language"); accept != "" {
			tag = locale.Match(accept)
		}
		next.ServeHTTP(w, r.WithContext(locale.WithLanguage(r.Context(), tag)))
	})
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (a *app) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, c := range a.checks {
		if err := c.check(r.Context()); err != nil {
			slog.Warn("readiness check failed", "dependency", c.name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "dependency": c.name})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (a *app) handleKnowledge(w http.ResponseWriter, r *http.Request) {
	grade, err := strconv.Atoi(r.URL.Query().Get("grade"))
	if err != nil || grade < knowledge.MinGrade || grade > knowledge.MaxGrade {
		writeError(w, http.StatusBadRequest, "grade must be 4, 5 or 6")
		return
	}
	path, err := a.graph.LearningPath(r.Context(), grade)
	if err != nil {
		writeServerError(w, "learning path", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grade": grade, "learningPath": path})
}

type gradeRequest struct {
	Grade int `json:"grade"`
}

func (a *app) handleSetGrade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if !decode(w, r, &req) {
		return
	}
	userID := r.PathValue("userID")
	if err := a.engine.SetUserGrade(r.Context(), userID, req.Grade); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "grade": req.Grade})
}

type actionRequest struct {
	Action      recommend.Action `json:"action"`
	KnowledgeID string           `json:"knowledgeId"`
	Correct     bool             `json:"isCorrect"`
	TimeSpentMS int64            `json:"timeSpentMs"`
}

func (a *app) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	userID := r.PathValue("userID")
	if _, err := a.graph.Node(ctx, req.KnowledgeID); err != nil {
		writeDomainError(w, err)
		return
	}

	err := a.engine.RecordUserAction(ctx, userID, req.Action, req.KnowledgeID, recommend.ActionData{
		Correct:   req.Correct,
		TimeSpent: time.Duration(req.TimeSpentMS) * time.Millisecond,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, _ := a.tracker.Lookup(ctx, userID, req.KnowledgeID)
	writeJSON(w, http.StatusOK, rec)
}

func (a *app) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	count := recommend.DefaultCount
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = n
	}
	results := a.engine.Recommend(r.Context(), r.PathValue("userID"), count)
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": results})
}

func (a *app) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	writeJSON(w, http.StatusOK, map[string]any{
		"grade":            a.engine.Grade(ctx, userID),
		"progress":         a.engine.LearningProgress(ctx, userID),
		"estimatedAbility": a.engine.EstimatedAbility(ctx, userID),
	})
}

func (a *app) handlePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	writeJSON(w, http.StatusOK, map[string]any{
		"plan":             a.planner.TodayPlan(ctx, userID),
		"suggestedMinutes": int(a.planner.SuggestedDuration(ctx, userID).Minutes()),
		"advice":           a.planner.Advice(ctx, userID),
	})
}

func (a *app) handleMastery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, knowledgeID := r.PathValue("userID"), r.PathValue("knowledgeID")
	if _, err := a.graph.Node(ctx, knowledgeID); err != nil {
		writeDomainError(w, err)
		return
	}

	lo, hi := a.tracker.ConfidenceInterval(ctx, userID, knowledgeID, defaultConfidence)
	rec, recorded := a.tracker.Lookup(ctx, userID, knowledgeID)
	writeJSON(w, http.StatusOK, map[string]any{
		"knowledgeId":          knowledgeID,
		"mastery":              a.tracker.GetMastery(ctx, userID, knowledgeID),
		"recorded":             recorded,
		"record":               rec,
		"predictedCorrectness": a.tracker.PredictCorrectness(ctx, userID, knowledgeID),
		"confidenceInterval":   []float64{lo, hi},
		"predictedDifficulty":  a.engine.PredictDifficulty(ctx, userID, knowledgeID),
		"appropriate":          a.adjuster.IsAppropriateDifficulty(ctx, userID, knowledgeID),
		"reason":               a.engine.Reason(ctx, userID, knowledgeID),
	})
}

type difficultyRequest struct {
	Recent []struct {
		Correct     bool  `json:"isCorrect"`
		TimeSpentMS int64 `json:"timeSpentMs"`
	} `json:"recentAnswers"`
}

func (a *app) handleDifficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	userID, knowledgeID := r.PathValue("userID"), r.PathValue("knowledgeID")
	if _, err := a.graph.Node(ctx, knowledgeID); err != nil {
		writeDomainError(w, err)
		return
	}

	answers := make([]recommend.Answer, len(req.Recent))
	for i, ans := range req.Recent {
		answers[i] = recommend.Answer{Correct: ans.Correct, TimeSpent: time.Duration(ans.TimeSpentMS) * time.Millisecond}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"knowledgeId":      knowledgeID,
		"targetDifficulty": a.adjuster.AdjustDifficulty(ctx, userID, knowledgeID, answers),
	})
}

func (a *app) handleListReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reviews": a.scheduler.Schedules(r.Context(), r.PathValue("userID"))})
}

type createReviewRequest struct {
	KnowledgeID string `json:"knowledgeId"`
	Stage       int    `json:"reviewStage"`
}

func (a *app) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	if _, err := a.graph.Node(ctx, req.KnowledgeID); err != nil {
		writeDomainError(w, err)
		return
	}
	sc, err := a.scheduler.CreateReviewSchedule(ctx, r.PathValue("userID"), req.KnowledgeID, req.Stage)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

type completeReviewRequest struct {
	Performance review.Performance `json:"performance"`
}

func (a *app) handleCompleteReview(w http.ResponseWriter, r *http.Request) {
	var req completeReviewRequest
	if !decode(w, r, &req) {
		return
	}
	done, err := a.scheduler.CompleteReview(r.Context(), r.PathValue("userID"), r.PathValue("reviewID"), req.Performance)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, done)
}

func (a *app) handleTodayReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reviews": a.scheduler.TodayReviews(r.Context(), r.PathValue("userID"))})
}

func (a *app) handleReminder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.scheduler.Reminder(r.Context(), r.PathValue("userID")))
}

func (a *app) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.scheduler.Stats(r.Context(), r.PathValue("userID")))
}

func (a *app) handleReport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	data := a.reports.Collect(r.Context(), userID)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="progress-`+userID+`.xlsx"`)
	if err := report.WriteProgressWorkbook(w, data); err != nil {
		slog.Error("writing progress workbook failed", "user_id", userID, "error", err)
	}
}

func (a *app) handleCoach(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.coach.Encourage(r.Context(), r.PathValue("userID")))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeDomainError maps package sentinel errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, knowledge.ErrNodeNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, mastery.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, review.ErrInvalidInput),
		errors.Is(err, mastery.ErrInvalidInput),
		errors.Is(err, recommend.ErrUnknownAction),
		errors.Is(err, profile.ErrInvalidGrade):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeServerError(w, "request", err)
	}
}

func writeServerError(w http.ResponseWriter, op string, err error) {
	slog.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response failed", "error", err)
	}
}
