package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yukinko0825/recipe-site/pkg/artifacts"
	"github.com/yukinko0825/recipe-site/pkg/images"
	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

// LoginFunc exchanges the operator passphrase for a session token.
type LoginFunc func(ctx context.Context, passphrase string) (token string, expiresAt time.Time, err error)

// Middleware wraps the route mux.
type Middleware func(http.Handler) http.Handler

// Server exposes the recipe repository over HTTP.
type Server struct {
	repo        *recipe.Repository
	images      artifacts.Store
	login       LoginFunc
	previews    *images.PreviewRegistry
	schema      *jsonschema.Schema
	placeholder string
	health      func(context.Context) error
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithImageStore serves images from store under /images/. Only needed for
// the filesystem store; hosted stores serve their own URLs.
func WithImageStore(store artifacts.Store) Option {
	return func(s *Server) { s.images = store }
}

// WithLogin enables POST /api/auth/login.
func WithLogin(fn LoginFunc) Option {
	return func(s *Server) { s.login = fn }
}

// WithPlaceholder sets the image shown for recipes without one.
func WithPlaceholder(url string) Option {
	return func(s *Server) { s.placeholder = url }
}

// WithHealthCheck sets the dependency probe behind GET /health.
func WithHealthCheck(fn func(context.Context) error) Option {
	return func(s *Server) { s.health = fn }
}

// NewServer creates a server over repo.
func NewServer(repo *recipe.Repository, opts ...Option) (*Server, error) {
	schema, err := compileDraftSchema()
	if err != nil {
		return nil, err
	}
	s := &Server{
		repo:     repo,
		previews: images.NewPreviewRegistry(),
		schema:   schema,
		logger:   slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the route mux wrapped in middleware, outermost first.
func (s *Server) Handler(middleware ...Middleware) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/recipes", s.handleList)
	mux.HandleFunc("POST /api/recipes", s.handleCreate)
	mux.HandleFunc("GET /api/recipes/{id}", s.handleDetail)
	mux.HandleFunc("PUT /api/recipes/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/recipes/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/recipes/{id}/steps", s.handleSteps)
	if s.images != nil {
		mux.HandleFunc("GET /images/{key}", s.handleImage)
	}

	var h http.Handler = mux
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// recipeView adds display fields to a recipe.
type recipeView struct {
	recipe.Recipe
	DisplayImage string `json:"display_image"`
}

type detailResponse struct {
	Recipe      recipeView    `json:"recipe"`
	KeywordText string        `json:"keyword_text"`
	SoakDisplay string        `json:"soak_time_display"`
	CookDisplay string        `json:"cook_time_display"`
	Steps       []recipe.Step `json:"steps"`
}

func (s *Server) view(r recipe.Recipe) recipeView {
	return recipeView{Recipe: r, DisplayImage: recipe.DisplayImage(r, s.placeholder)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "health check failed", "error", err)
			WriteErrorR(w, r, http.StatusServiceUnavailable, "Service Unavailable", "A dependency is unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.login == nil {
		WriteErrorR(w, r, http.StatusNotImplemented, "Not Implemented", "Operator login is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Passphrase == "" {
		WriteBadRequest(w, "Body must be {\"passphrase\": \"...\"}")
		return
	}

	token, expires, err := s.login(r.Context(), req.Passphrase)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": expires})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": recipe.Categories(),
		"default":    recipe.DefaultCategory,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.repo.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	views := make([]recipeView, len(recipes))
	for i, rec := range recipes {
		views[i] = s.view(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipes": views})
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, steps, err := s.repo.Detail(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{
		Recipe:      s.view(*rec),
		KeywordText: rec.KeywordText(),
		SoakDisplay: recipe.OrDash(rec.SoakTime),
		CookDisplay: recipe.OrDash(rec.CookTime),
		Steps:       steps,
	})
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	steps, err := s.repo.LoadSteps(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"steps": steps})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, nil)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.save(w, r, &id)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, editingID *int64) {
	parsed, err := s.parseDraft(w, r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	defer parsed.editor.Close()

	res, err := s.repo.Save(r.Context(), parsed.draft, parsed.editor.Drafts(), editingID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/recipes/"+strconv.FormatInt(res.Recipe.ID, 10))
	}
	writeJSON(w, status, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := s.repo.Delete(r.Context(), id, confirmed); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	data, err := s.images.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) || errors.Is(err, artifacts.ErrInvalidKey) {
			WriteNotFound(w, "Image not found")
			return
		}
		WriteInternal(w, err)
		return
	}

	// Only the accepted image types are served as such; anything else that
	// ended up in the store goes out as opaque bytes.
	contentType := images.ExtensionType(path.Ext(key))
	if contentType == "" {
		contentType = images.SniffImageType(data)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}

// writeDomainError maps repository and request errors to problem details.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr  *requestError
		partial *recipe.PartialSaveError
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &reqErr):
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", reqErr.msg)
	case errors.As(err, &tooBig):
		WriteErrorR(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body is too large")
	case errors.Is(err, recipe.ErrValidation), errors.Is(err, recipe.ErrIndexOutOfRange),
		errors.Is(err, images.ErrNotImage), errors.Is(err, images.ErrTooLarge):
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, recipe.ErrUnauthorized):
		WriteErrorR(w, r, http.StatusUnauthorized, "Unauthorized", "Operator sign-in required")
	case errors.Is(err, recipe.ErrForbidden):
		WriteErrorR(w, r, http.StatusForbidden, "Forbidden", "Insufficient permissions")
	case errors.Is(err, recipe.ErrNotFound):
		WriteErrorR(w, r, http.StatusNotFound, "Not Found", "Recipe not found")
	case errors.Is(err, recipe.ErrNotConfirmed):
		WriteErrorR(w, r, http.StatusPreconditionRequired, "Confirmation Required",
			"Deleting a recipe cannot be undone; repeat the request with confirm=true")
	case errors.As(err, &partial):
		s.logger.ErrorContext(r.Context(), "partial save", "recipe_id", partial.RecipeID, "phase", partial.Phase, "error", partial.Err)
		WritePartialSave(w, r, partial.RecipeID, "The recipe was saved but its steps were not; save it again")
	case errors.Is(err, images.ErrUploadFailed):
		s.logger.ErrorContext(r.Context(), "image upload failed", "error", err)
		WriteErrorR(w, r, http.StatusBadGateway, "Bad Gateway", "Image upload failed; nothing was saved")
	case errors.Is(err, recipe.ErrFetchFailed):
		s.logger.ErrorContext(r.Context(), "record store read failed", "error", err)
		WriteErrorR(w, r, http.StatusServiceUnavailable, "Service Unavailable", "Recipes could not be loaded")
	default:
		WriteInternal(w, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "Recipe id must be a positive integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
