package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchparty/internal/repository/store"
	"github.com/sharetube/watchparty/internal/service/accesscode"
	"github.com/sharetube/watchparty/pkg/rest"
)

const day = 24 * time.Hour

// writeServiceError maps service errors to statuses. Unknown errors are not echoed.
func (c controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  int
		message string
	)
	switch {
	case errors.Is(err, accesscode.ErrExpired):
		status, message = http.StatusGone, "access code expired"
	case errors.Is(err, accesscode.ErrUnknownUser):
		status, message = http.StatusNotFound, "user not found"
	case errors.Is(err, accesscode.ErrMovieNotFound):
		status, message = http.StatusNotFound, "movie not found"
	case errors.Is(err, accesscode.ErrNotFound):
		status, message = http.StatusNotFound, "access code not found"
	case errors.Is(err, accesscode.ErrStore):
		status, message = http.StatusServiceUnavailable, "service unavailable, retry later"
	default:
		status, message = http.StatusInternalServerError, "internal server error"
	}

	if status >= http.StatusInternalServerError {
		c.logger.WarnContext(r.Context(), "request failed", "error", err)
	} else {
		c.logger.InfoContext(r.Context(), "request rejected", "error", err)
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": message})
}

// readRequest decodes and validates the body, writing the error response itself.
func (c controller) readRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.InfoContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return false
	}

	return true
}

type registerUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

func (c controller) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	user, err := c.accessCodeService.RegisterUser(r.Context(), &accesscode.RegisterUserParams{
		Username: req.Username,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": user})
}

type addMovieRequest struct {
	MovieId int    `json:"movie_id" validate:"required,gt=0"`
	Title   string `json:"title" validate:"required,max=256"`
	Path    string `json:"path" validate:"required"`
}

func (c controller) addMovie(w http.ResponseWriter, r *http.Request) {
	var req addMovieRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	movie, err := c.accessCodeService.AddMovie(r.Context(), &accesscode.AddMovieParams{
		MovieId: req.MovieId,
		Title:   req.Title,
		Path:    req.Path,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": movie})
}

func (c controller) getMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := c.accessCodeService.GetMovies(r.Context())
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": movies})
}

type issueAccessCodeRequest struct {
	MovieId       int        `json:"movie_id" validate:"required,gt=0"`
	ExpiresInDays *int       `json:"expires_in_days" validate:"omitempty,gte=1,lte=365"`
	ExpiresAt     *time.Time `json:"expires_at" validate:"required_without=ExpiresInDays"`
}

func (c controller) issueAccessCode(w http.ResponseWriter, r *http.Request) {
	userId, err := c.mustHeader(r, "User-Id")
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	var req issueAccessCodeRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	var expiresAt time.Time
	if req.ExpiresInDays != nil {
		expiresAt = c.now().UTC().Add(time.Duration(*req.ExpiresInDays) * day)
	} else {
		expiresAt = req.ExpiresAt.UTC()
	}

	accessCode, err := c.accessCodeService.Issue(r.Context(), &accesscode.IssueParams{
		UserId:    userId,
		MovieId:   req.MovieId,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": accessCode})
}

func (c controller) validateAccessCode(w http.ResponseWriter, r *http.Request) {
	accessCode, err := c.accessCodeService.Validate(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": accessCode})
}

type resolveStreamResponse struct {
	AccessCode   store.AccessCode `json:"access_code"`
	Movie        store.Movie      `json:"movie"`
	ConnectToken string           `json:"connect_token"`
}

func (c controller) resolveStream(w http.ResponseWriter, r *http.Request) {
	resp, err := c.accessCodeService.ResolveStream(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resolveStreamResponse{
		AccessCode:   resp.AccessCode,
		Movie:        resp.Movie,
		ConnectToken: resp.ConnectToken,
	}})
}

type roomResponse struct {
	SessionCode string `json:"session_code"`
	Members     int    `json:"members"`
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	sessionCode := chi.URLParam(r, "session-code")

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": roomResponse{
		SessionCode: sessionCode,
		Members:     c.broadcaster.Members(sessionCode),
	}})
}
