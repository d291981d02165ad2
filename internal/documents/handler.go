package documents

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"studydocs-backend/internal/shared/server/middleware"
	"studydocs-backend/internal/shared/server/respond"
)

// multipartMemory is how much of a multipart form is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
	// PublicFilesPath is the route stored files are served under.
	PublicFilesPath string
	// TrustForwarded honours X-Forwarded-Proto/Host. Enable only behind a
	// proxy that overwrites them.
	TrustForwarded bool
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, publicFilesPath string) *Handler {
	return &Handler{Svc: svc, PublicFilesPath: publicFilesPath}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.DELETE("/documents/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if h.Svc.MaxUploadBytes > 0 {
		// Leave room for the multipart envelope and the title field.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxUploadBytes+1<<20)
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || h.bodyTooLarge(c.Request) {
			respond.Error(c, http.StatusBadRequest, MsgFileTooLarge)
			return
		}
		respond.Error(c, http.StatusBadRequest, MsgFileRequired)
		return
	}
	if form := c.Request.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, MsgFileRequired)
		return
	}
	if strings.TrimSpace(c.PostForm("title")) == "" {
		respond.Error(c, http.StatusBadRequest, MsgTitleRequired)
		return
	}
	if !isPDFUpload(fileHeader.Filename, fileHeader.Header.Get("Content-Type")) {
		respond.Error(c, http.StatusBadRequest, MsgOnlyPDF)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, MsgFileRequired)
		return
	}
	defer file.Close()

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	doc, err := h.Svc.Upload(ctx, UploadInput{
		UserID:   userID,
		Title:    c.PostForm("title"),
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Body:     file,
		BaseURL:  publicBaseURL(c, h.PublicFilesPath, h.TrustForwarded),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Set("documentId", doc.ID)
	c.Set("statusTransition", "none->"+string(doc.Status))
	respond.Success(c, http.StatusCreated, toResponse(doc), MsgUploaded)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	docs, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		doc.Document = stripBody(doc.Document)
		resp = append(resp, toResponseWithCounts(doc))
	}
	respond.List(c, resp, len(resp))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set("documentId", id)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	doc, err := h.Svc.Get(ctx, userID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, toResponseWithCounts(doc), "")
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set("documentId", id)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	if err := h.Svc.Delete(ctx, userID, id); err != nil {
		h.fail(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, respond.Envelope{Success: true, Message: MsgDeleted})
}

func (h *Handler) fail(c *gin.Context, err error) {
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		respond.Error(c, http.StatusBadRequest, validation.Message)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, MsgNotFound)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusUnauthorized, "Not authorized, no token")
	default:
		_ = c.Error(err)
		respond.Error(c, http.StatusInternalServerError, MsgServerError)
	}
}

func (h *Handler) bodyTooLarge(r *http.Request) bool {
	return h.Svc.MaxUploadBytes > 0 && r.ContentLength > h.Svc.MaxUploadBytes+1<<20
}

func isPDFUpload(fileName, contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if mediaType == "application/pdf" {
		return true
	}
	if mediaType != "" && mediaType != "application/octet-stream" {
		return false
	}
	return strings.EqualFold(filepath.Ext(fileName), ".pdf")
}

// publicBaseURL is the absolute URL prefix stored files are reachable under
// for the current request.
func publicBaseURL(c *gin.Context, publicPath string, trustForwarded bool) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	host := c.Request.Host
	if trustForwarded {
		switch proto := strings.ToLower(firstHeaderValue(c, "X-Forwarded-Proto")); proto {
		case "http", "https":
			scheme = proto
		}
		if fwd := firstHeaderValue(c, "X-Forwarded-Host"); validHost(fwd) {
			host = fwd
		}
	}
	return scheme + "://" + host + "/" + strings.Trim(publicPath, "/")
}

func firstHeaderValue(c *gin.Context, name string) string {
	return strings.TrimSpace(strings.Split(c.GetHeader(name), ",")[0])
}

func validHost(host string) bool {
	return host != "" && !strings.ContainsAny(host, "/\\?#@ ")
}
