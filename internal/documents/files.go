package documents

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"studydocs-backend/internal/shared/server/respond"
	"studydocs-backend/internal/shared/storage/object"
)

const presignTTL = 15 * time.Minute

// FilesHandler serves stored uploads under their public URL.
type FilesHandler struct {
	Store object.ObjectStore
}

// RegisterFileRoutes mounts the public file route at publicPath.
func RegisterFileRoutes(r gin.IRouter, publicPath string, store object.ObjectStore) {
	h := &FilesHandler{Store: store}
	route := "/" + strings.Trim(publicPath, "/") + "/:name"
	r.GET(route, h.serve)
	r.HEAD(route, h.serve)
}

func (h *FilesHandler) serve(c *gin.Context) {
	name := c.Param("name")
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		respond.Error(c, http.StatusNotFound, "File not found")
		return
	}

	if presigner, ok := h.Store.(object.Presigner); ok {
		url, err := presigner.PresignGet(c.Request.Context(), name, presignTTL)
		if err != nil {
			_ = c.Error(err)
			respond.Error(c, http.StatusInternalServerError, MsgServerError)
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	rc, err := h.Store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "File not found")
			return
		}
		_ = c.Error(err)
		respond.Error(c, http.StatusInternalServerError, MsgServerError)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `inline; filename="`+name+`"`)
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, name, time.Time{}, rs)
		return
	}
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
