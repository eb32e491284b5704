package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"civicpulse/internal/config"
	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/observability"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

const (
	DefaultUploadDir       = "uploads"
	DefaultMaxUploadSizeMB = 5
	PreviewMaxSize         = 640
	AvatarMaxSize          = 512
	JPEGQuality            = 85
	WebPQuality            = 70

	// Decoded images above this pixel count are refused.
	maxDecodedPixels = 40_000_000

	uploadURLPrefix = "/uploads/"
	avatarSubdir    = "avatars"
)

// UploadKind selects the acceptance rules and storage location of a file.
type UploadKind string

const (
	UploadPostImage UploadKind = "post_image"
	UploadAvatar    UploadKind = "avatar"
)

var uploadRules = map[UploadKind]struct {
	extensions map[string]struct{}
	types      map[string]struct{}
}{
	UploadPostImage: {
		extensions: setOf(".jpeg", ".jpg", ".png", ".gif"),
		types:      setOf("image/jpeg", "image/jpg", "image/png", "image/gif"),
	},
	UploadAvatar: {
		extensions: setOf(".jpeg", ".jpg", ".png"),
		types:      setOf("image/jpeg", "image/jpg", "image/png"),
	},
}

// UploadInput is one file taken from a multipart form.
type UploadInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// StoredUpload describes files written for one upload.
type StoredUpload struct {
	URL        string
	PreviewURL string
	paths      []string
}

// UploadService validates and stores user images on local disk.
type UploadService struct {
	dir      string
	maxBytes int64
}

func NewUploadService(cfg *config.Config) *UploadService {
	dir := DefaultUploadDir
	maxBytes := int64(DefaultMaxUploadSizeMB) << 20
	if cfg != nil {
		if cfg.UploadDir != "" {
			dir = cfg.UploadDir
		}
		if cfg.MaxUploadSizeMB > 0 {
			maxBytes = cfg.MaxUploadBytes()
		}
	}
	return &UploadService{dir: dir, maxBytes: maxBytes}
}

// Dir is the root directory served under /uploads.
func (s *UploadService) Dir() string {
	return s.dir
}

// SavePostImage stores a post image and a WebP preview next to it.
func (s *UploadService) SavePostImage(ctx context.Context, in UploadInput) (*StoredUpload, error) {
	img, format, ext, err := s.accept(UploadPostImage, in)
	if err != nil {
		return nil, err
	}

	name := uuid.NewString()
	stored := &StoredUpload{}
	rel := name + ext
	if err := s.write(stored, rel, in.Content); err != nil {
		return nil, models.NewInternalError(err)
	}
	stored.URL = uploadURLPrefix + rel

	// Animated GIF previews only keep the first frame.
	preview, err := encodeWebP(resizeToFit(img, PreviewMaxSize, PreviewMaxSize), WebPQuality)
	if err == nil {
		previewRel := name + ".preview.webp"
		if err = s.write(stored, previewRel, preview); err == nil {
			stored.PreviewURL = uploadURLPrefix + previewRel
		}
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "post image preview skipped",
			slog.String("format", format), slog.String("error", err.Error()))
	}
	return stored, nil
}

// SaveAvatar stores an avatar scaled down to fit AvatarMaxSize.
func (s *UploadService) SaveAvatar(_ context.Context, in UploadInput) (*StoredUpload, error) {
	img, format, ext, err := s.accept(UploadAvatar, in)
	if err != nil {
		return nil, err
	}

	content := in.Content
	b := img.Bounds()
	if b.Dx() > AvatarMaxSize || b.Dy() > AvatarMaxSize {
		content, err = encodeAs(resizeToFit(img, AvatarMaxSize, AvatarMaxSize), format)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	stored := &StoredUpload{}
	rel := path.Join(avatarSubdir, uuid.NewString()+ext)
	if err := s.write(stored, rel, content); err != nil {
		return nil, models.NewInternalError(err)
	}
	stored.URL = uploadURLPrefix + rel
	return stored, nil
}

// Remove deletes every file of u. Failures are logged.
func (s *UploadService) Remove(ctx context.Context, u *StoredUpload) {
	if u == nil {
		return
	}
	for _, p := range u.paths {
		removeLogged(ctx, p)
	}
}

// RemoveURL deletes the local file behind a public /uploads URL. URLs that
// point elsewhere are ignored.
func (s *UploadService) RemoveURL(ctx context.Context, publicURL string) {
	p, ok := s.localPath(publicURL)
	if !ok {
		return
	}
	removeLogged(ctx, p)
}

func (s *UploadService) localPath(publicURL string) (string, bool) {
	rel, ok := strings.CutPrefix(publicURL, uploadURLPrefix)
	if !ok || rel == "" {
		return "", false
	}
	full := filepath.Join(s.dir, filepath.FromSlash(path.Clean("/" + rel)))
	inside, err := filepath.Rel(s.dir, full)
	if err != nil || inside == "." || strings.HasPrefix(inside, "..") {
		return "", false
	}
	return full, true
}

// accept runs every check before anything touches the disk and returns the
// decoded image, its format and the normalized extension.
func (s *UploadService) accept(kind UploadKind, in UploadInput) (image.Image, string, string, error) {
	rules := uploadRules[kind]
	reject := func(reason, message string) (image.Image, string, string, error) {
		observability.UploadsRejected.WithLabelValues(string(kind), reason).Inc()
		return nil, "", "", models.NewValidationError(message)
	}

	if len(in.Content) == 0 {
		return reject("empty", "No file uploaded")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return reject("too_large", fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	if _, ok := rules.extensions[ext]; !ok {
		return reject("extension", allowedMessage(kind))
	}
	declared := normalizeContentType(in.ContentType)
	if _, ok := rules.types[declared]; !ok {
		return reject("content_type", allowedMessage(kind))
	}
	sniffed := normalizeContentType(http.DetectContentType(in.Content))
	if _, ok := rules.types[sniffed]; !ok || !isMatchingContentType(declared, sniffed) {
		return reject("mismatch", "File content does not match its type")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return reject("decode", "Invalid image file")
	}
	if cfg.Width*cfg.Height > maxDecodedPixels {
		return reject("dimensions", "Image dimensions too large")
	}
	img, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return reject("decode", "Invalid image file")
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return img, format, ext, nil
}

func (s *UploadService) write(stored *StoredUpload, rel string, data []byte) error {
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := writeBytesToFile(full, data); err != nil {
		return err
	}
	stored.paths = append(stored.paths, full)
	return nil
}

func allowedMessage(kind UploadKind) string {
	if kind == UploadAvatar {
		return "Only .png, .jpg and .jpeg format allowed!"
	}
	return "Only .png, .jpg, .jpeg and .gif format allowed!"
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeAs(img image.Image, format string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	var err error
	switch format {
	case "png":
		err = png.Encode(buf, img)
	case "gif":
		err = gif.Encode(buf, img, nil)
	default:
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func removeLogged(ctx context.Context, p string) {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		middleware.Logger.WarnContext(ctx, "upload cleanup failed",
			slog.String("path", p), slog.String("error", err.Error()))
	}
}

func setOf(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}
