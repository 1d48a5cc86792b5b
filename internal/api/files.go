package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
)

// multipartOverhead leaves room for boundaries and small form fields on top
// of the binary itself.
const multipartOverhead = 1 << 20

// nextFilePart advances to the "file" part. Text fields seen before it are
// collected into fields when non-nil.
func nextFilePart(mr *multipart.Reader, fields map[string]string) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.Is(err, io.EOF):
				return nil, apperr.ErrMissingFile
			case errors.As(err, &tooLarge):
				return nil, apperr.ErrFileTooLarge
			}
			return nil, apperr.ErrMissingFile.Wrap(err)
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		if fields != nil && part.FileName() == "" {
			b, _ := io.ReadAll(io.LimitReader(part, 64<<10))
			fields[part.FormName()] = string(b)
		}
		part.Close()
	}
}

func (s *Server) openUpload(c *gin.Context, fields map[string]string) (*multipart.Part, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxFileSize+multipartOverhead)
	mr, err := c.Request.MultipartReader()
	if err != nil {
		s.fail(c, apperr.ErrMissingFile.WithMessage("expecting a multipart form with a file field"))
		return nil, false
	}
	part, err := nextFilePart(mr, fields)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return part, true
}

func (s *Server) uploadFile(c *gin.Context) {
	part, ok := s.openUpload(c, nil)
	if !ok {
		return
	}
	defer part.Close()
	staged, err := s.uploads.StageUpload(c.Request.Context(), actorFrom(c).ID, part.FileName(), part)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "file uploaded", gin.H{
		"fileId":  staged.FileID,
		"appInfo": staged.ParsedInfo,
	})
}

func (s *Server) getFile(c *gin.Context) {
	f, err := s.uploads.GetStaged(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "file loaded", f)
}

func (s *Server) deleteFile(c *gin.Context) {
	if err := s.uploads.DeleteStaged(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "file deleted", nil)
}

func (s *Server) cleanupTemp(c *gin.Context) {
	n, err := s.staging.ExpireOlderThan(c.Request.Context(), s.cfg.TempTTL)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "expired temporary files cleaned", gin.H{"cleanedCount": n})
}

// automationUpload stages and confirms a binary in one request. The
// application is identified by its automation key; release notes come from
// the updateContent query parameter or a form field sent before the file.
func (s *Server) automationUpload(c *gin.Context) {
	appKey := strings.TrimSpace(c.GetHeader("X-App-Key"))
	if appKey == "" {
		s.fail(c, apperr.ErrTokenInvalid.WithMessage("X-App-Key header is required"))
		return
	}
	fields := map[string]string{}
	part, ok := s.openUpload(c, fields)
	if !ok {
		return
	}
	defer part.Close()
	notes := c.Query("updateContent")
	if v := fields["updateContent"]; v != "" {
		notes = v
	}
	res, err := s.uploads.AutomationUpload(c.Request.Context(), appKey, part.FileName(), part, notes, baseURL(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "version created", res)
}
