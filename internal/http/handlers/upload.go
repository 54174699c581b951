package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/toprakhenaz/sword-combat/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const MaxUploadSize = 5 << 20

// UploadKinds are the subdirectories of the upload dir.
var UploadKinds = map[string]bool{"leagues": true, "items": true}

// sniffed content type -> stored extension
var imageExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Upload stores one image for the league or item catalog and returns its
// public URL.
func (h *Handler) Upload(c *gin.Context) {
	kind := c.Param("kind")
	if !UploadKinds[kind] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown upload kind"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}
	if fh.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds 5 MiB"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	ext, ok := imageExt[http.DetectContentType(head[:n])]
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only png, jpeg, gif and webp images are accepted"})
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		respondError(c, err)
		return
	}

	dir := filepath.Join(h.cfg.UploadDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		respondError(c, fmt.Errorf("create upload dir: %w", err))
		return
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		respondError(c, fmt.Errorf("create upload: %w", err))
		return
	}
	if _, err := io.Copy(dst, f); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		respondError(c, fmt.Errorf("write upload: %w", err))
		return
	}
	if err := dst.Close(); err != nil {
		respondError(c, fmt.Errorf("write upload: %w", err))
		return
	}

	url := strings.TrimRight(h.cfg.PublicBaseURL, "/") + "/uploads/" + kind + "/" + name
	h.Admin.LogUpload(c.Request.Context(), actorID(c), kind, name, c.ClientIP())
	logger.WithContext(c.Request.Context()).Info("image uploaded", "kind", kind, "file", name, "size", fh.Size)
	c.JSON(http.StatusCreated, gin.H{"success": true, "url": url})
}
