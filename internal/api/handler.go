package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dishahealth/coach/internal/chat"
	"github.com/dishahealth/coach/internal/conversation"
	"github.com/dishahealth/coach/internal/memory"
	"github.com/dishahealth/coach/internal/protocol"
	"github.com/dishahealth/coach/internal/typing"
	"github.com/dishahealth/coach/internal/user"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the services behind the HTTP handlers.
type Deps struct {
	Users     user.Repository
	Turns     conversation.Repository
	Memory    *memory.Service
	Protocols protocol.Repository
	Typing    typing.Store
	Chat      *chat.Orchestrator

	// Database and Redis may be nil when the dependency is not configured.
	Database HealthCheck
	Redis    HealthCheck

	CORSOrigins []string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	users     user.Repository
	turns     conversation.Repository
	memory    *memory.Service
	protocols protocol.Repository
	typing    typing.Store
	chat      *chat.Orchestrator
	database  HealthCheck
	redis     HealthCheck
	origins   []string
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps, logger *zap.Logger) *Handler {
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{
		users:     d.Users,
		turns:     d.Turns,
		memory:    d.Memory,
		protocols: d.Protocols,
		typing:    d.Typing,
		chat:      d.Chat,
		database:  d.Database,
		redis:     d.Redis,
		origins:   origins,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.healthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", h.createUser)
		r.Get("/users/me", h.currentUserInfo)
		r.Put("/users/me/onboarding", h.completeOnboarding)

		r.Post("/chat", h.sendMessage)
		r.Get("/messages", h.listMessages)

		r.Post("/typing", h.updateTyping)
		r.Get("/typing", h.typingStatus)

		r.Post("/memories", h.createMemory)
		r.Get("/memories", h.listMemories)

		r.Post("/protocols/seed", h.seedProtocols)
		r.Get("/protocols", h.listProtocols)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"database":  probe(ctx, h.database),
		"redis":     probe(ctx, h.redis),
	}
	status := http.StatusOK
	if body["database"] == "unhealthy" || body["redis"] == "unhealthy" {
		body["status"] = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func probe(ctx context.Context, check HealthCheck) string {
	if check == nil {
		return "not_configured"
	}
	if err := check(ctx); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// currentUser resolves ?username=, creating the user on first use.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		username = user.DefaultUsername
	}
	if err := h.validate.Var(username, "min=3,max=100"); err != nil {
		writeError(w, http.StatusBadRequest, "username must be 3 to 100 characters")
		return nil, false
	}
	u, err := h.users.GetOrCreate(r.Context(), username)
	if err != nil {
		h.logger.Error("error resolving user", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error resolving user")
		return nil, false
	}
	return u, true
}

// decode reads a JSON body into v and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.users.GetOrCreate(r.Context(), req.Username)
	if err == nil && req.FullName != "" {
		u, err = h.users.SetFullName(r.Context(), u.ID, req.FullName)
	}
	if err != nil {
		h.logger.Error("error creating user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error creating user")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) currentUserInfo(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req onboardingRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.users.UpdateProfile(r.Context(), u.ID, req.profile())
	if errors.Is(err, user.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("error updating profile", zap.Int64("user", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error updating profile")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		writeError(w, http.StatusUnprocessableEntity, "message cannot be empty")
		return
	}

	result, err := h.chat.Chat(r.Context(), u.ID, text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrGeneration) {
			status = http.StatusBadGateway
		}
		h.logger.Error("error processing message", zap.Int64("user", u.ID), zap.Error(err))
		writeError(w, status, "error processing message: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	req := conversation.PageRequest{Limit: conversation.DefaultPageLimit}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, conversation.ErrInvalidLimit.Error())
			return
		}
		req.Limit = n
	}
	if v := q.Get("before_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before_id must be an integer")
			return
		}
		req.BeforeID = &id
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.turns.Page(r.Context(), u.ID, req)
	if err != nil {
		h.logger.Error("error fetching messages", zap.Int64("user", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error fetching messages")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) updateTyping(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req typingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.typing.Set(r.Context(), u.ID, *req.IsTyping); err != nil {
		h.logger.Error("error updating typing status", zap.Int64("user", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error updating typing status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) typingStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	st, err := h.typing.Get(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("error getting typing status", zap.Int64("user", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error getting typing status")
		return
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) createMemory(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req memoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Importance == 0 {
		req.Importance = memory.MinImportance
	}
	f, err := h.memory.Upsert(r.Context(), u.ID, req.Category, req.Key, req.Value, req.Importance)
	if errors.Is(err, memory.ErrInvalidFact) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("error creating memory", zap.Int64("user", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error creating memory")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) listMemories(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	facts, err := h.memory.List(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("error fetching memories", zap.Int64("user", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error fetching memories")
		return
	}
	if facts == nil {
		facts = []memory.Fact{}
	}
	writeJSON(w, http.StatusOK, facts)
}

func (h *Handler) seedProtocols(w http.ResponseWriter, r *http.Request) {
	n, err := h.protocols.Seed(r.Context(), protocol.DefaultProtocols())
	if err != nil {
		h.logger.Error("error seeding protocols", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error seeding protocols")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Protocols seeded successfully",
		"added":   n,
	})
}

func (h *Handler) listProtocols(w http.ResponseWriter, r *http.Request) {
	protocols, err := h.protocols.ListActive(r.Context())
	if err != nil {
		h.logger.Error("error fetching protocols", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error fetching protocols")
		return
	}
	if protocols == nil {
		protocols = []protocol.Protocol{}
	}
	writeJSON(w, http.StatusOK, protocols)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
