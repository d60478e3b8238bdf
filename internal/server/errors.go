package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/cdn"
	"github.com/blackwell-systems/reelshelf/internal/config"
	"github.com/blackwell-systems/reelshelf/internal/frontmatter"
	"github.com/blackwell-systems/reelshelf/internal/github"
	"github.com/blackwell-systems/reelshelf/internal/render"
	"github.com/blackwell-systems/reelshelf/internal/scrape"
	"github.com/blackwell-systems/reelshelf/internal/store"
)

var errNotFoundPage = &statusError{status: http.StatusNotFound, msg: "page not found"}

func badRequest(msg string) error {
	return &statusError{status: http.StatusBadRequest, msg: msg}
}

// statusError carries its own status and public message.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

// statusOf maps an error to the HTTP status reported to the client.
func statusOf(err error) int {
	var (
		se       *statusError
		verr     *catalog.ValidationError
		cerr     *config.ConfigError
		uerr     *cdn.UploadError
		cdnUp    *cdn.UpstreamError
		ghUp     *github.UpstreamError
		scrapeUp *scrape.UpstreamError
		tooBig   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &se):
		return se.status
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound), errors.Is(err, render.ErrNoSuchSitemap):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &verr), errors.Is(err, frontmatter.ErrMalformed), errors.Is(err, scrape.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.As(err, &cerr), errors.Is(err, github.ErrMissingToken):
		return http.StatusInternalServerError
	case errors.As(err, &uerr), errors.As(err, &cdnUp), errors.As(err, &ghUp), errors.As(err, &scrapeUp),
		errors.Is(err, scrape.ErrTooLarge), errors.Is(err, github.ErrUnauthorized), errors.Is(err, github.ErrForbidden):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// publicMessage hides the detail of unclassified failures.
func publicMessage(err error, status int) string {
	var cerr *config.ConfigError
	if status == http.StatusInternalServerError && !errors.As(err, &cerr) {
		return "internal error"
	}
	return err.Error()
}

// apiError writes {success:false, error} with the mapped status.
func (s *Server) apiError(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": publicMessage(err, status)})
}

// pageError renders the HTML error page. Only 404 gets a specific message.
func (s *Server) pageError(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	msg := "Something went wrong. Please try again later."
	if status == http.StatusNotFound {
		msg = "We couldn't find that page."
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if rerr := s.deps.Renderer.Error(c.Writer, status, msg); rerr != nil {
		s.log.Error("rendering error page", "error", rerr)
	}
	c.Abort()
}
