package server

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blackwell-systems/reelshelf/internal/cdn"
)

// upload relays a multipart form (title, video, thumbnail) to the CDN.
func (s *Server) upload(c *gin.Context) {
	if s.deps.RelayErr != nil {
		s.apiError(c, s.deps.RelayErr)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.apiError(c, err)
			return
		}
		s.apiError(c, badRequest("expected a multipart form: "+err.Error()))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	video, closeVideo, err := openPart(form, "video")
	if err != nil {
		s.apiError(c, err)
		return
	}
	defer closeVideo()
	thumb, closeThumb, err := openPart(form, "thumbnail")
	if err != nil {
		s.apiError(c, err)
		return
	}
	defer closeThumb()

	res, err := s.deps.Relay.Upload(c.Request.Context(), c.PostForm("title"), video, thumb)
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"videoUrl":     res.VideoURL,
		"thumbnailUrl": res.ThumbnailURL,
	})
}

// openPart opens the first file of field. A missing field yields an empty
// cdn.File, which the relay rejects.
func openPart(form *multipart.Form, field string) (cdn.File, func(), error) {
	files := form.File[field]
	if len(files) == 0 {
		return cdn.File{}, func() {}, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return cdn.File{}, func() {}, err
	}
	return cdn.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
