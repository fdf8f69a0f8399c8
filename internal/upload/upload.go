// Package upload sends images to the backend's upload endpoints after
// validating and, when needed, downscaling them locally.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

// Defaults applied when Options fields are zero.
const (
	DefaultMaxBytes = 5 << 20
	DefaultMaxWidth = 1200
	jpegQuality     = 80
	imageField      = "image"
)

// Validation errors.
var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrUnsupportedType = errors.New("file type must be jpeg, png, gif or webp")
	ErrMissingOwner    = errors.New("owner id is required for this target")
	ErrUnknownTarget   = errors.New("unknown upload target")
)

// Display messages for the validation errors.
var validationMessages = map[error]string{
	ErrEmptyFile:       "Selecciona una imagen",
	ErrFileTooLarge:    "La imagen supera el tamaño máximo permitido",
	ErrUnsupportedType: "Formato no permitido. Usa JPG, PNG, GIF o WEBP",
	ErrMissingOwner:    "Falta el identificador del elemento",
	ErrUnknownTarget:   "Destino de carga inválido",
}

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Target is a backend upload endpoint.
type Target string

// Upload targets.
const (
	// TargetImage is the general image endpoint.
	TargetImage Target = "image"
	// TargetGameImage attaches the image to a game.
	TargetGameImage Target = "game-image"
	// TargetProductUpload is the general image endpoint under /api/upload.
	TargetProductUpload Target = "product-upload"
	// TargetProductImage attaches the image to a product.
	TargetProductImage Target = "product-image"
)

type destination struct {
	path       string
	ownerField string
}

var targets = map[Target]destination{
	TargetImage:         {path: "/image"},
	TargetGameImage:     {path: "/game-image", ownerField: "gameId"},
	TargetProductUpload: {path: "/api/upload/image"},
	TargetProductImage:  {path: "/api/upload/product-image", ownerField: "productId"},
}

// ParseTarget converts a target name, reporting whether it is known.
func ParseTarget(name string) (Target, bool) {
	t := Target(name)
	_, ok := targets[t]
	return t, ok
}

// Options limits what is accepted and how large images are scaled.
type Options struct {
	MaxBytes int64
	MaxWidth int
}

// Uploader validates and uploads images.
type Uploader struct {
	client *apiclient.Client
	opts   Options
	logger *zap.Logger
}

// New creates an Uploader. Zero option fields take the defaults.
func New(client *apiclient.Client, opts Options, logger *zap.Logger) *Uploader {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}

	return &Uploader{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// MaxBytes returns the largest accepted file size.
func (u *Uploader) MaxBytes() int64 {
	return u.opts.MaxBytes
}

// Validate checks the file locally and returns its sniffed content type.
func (u *Uploader) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", Rejection(ErrEmptyFile)
	}

	if int64(len(data)) > u.opts.MaxBytes {
		return "", Rejection(ErrFileTooLarge)
	}

	contentType := http.DetectContentType(data)
	if !allowedTypes[contentType] {
		return "", Rejection(ErrUnsupportedType)
	}

	return contentType, nil
}

// Rejection classifies one of the package's validation errors as a
// validation failure carrying its display message.
func Rejection(err error) *apiclient.Error {
	return &apiclient.Error{
		Kind:    apiclient.ErrValidation,
		Message: validationMessages[err],
		Err:     err,
	}
}

// Upload validates the file, downscales wide JPEG and PNG images, and posts
// it to target. ownerID is required by the game and product targets and
// ignored by the others.
func (u *Uploader) Upload(ctx context.Context, target Target, filename string, data []byte, ownerID string) (*model.UploadResult, error) {
	dest, ok := targets[target]
	if !ok {
		return nil, Rejection(ErrUnknownTarget)
	}

	if dest.ownerField != "" && strings.TrimSpace(ownerID) == "" {
		return nil, Rejection(ErrMissingOwner)
	}

	contentType, err := u.Validate(data)
	if err != nil {
		return nil, err
	}

	data = u.downscale(contentType, data)

	body, formType, err := buildForm(filename, contentType, data, dest.ownerField, ownerID)
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}

	var result model.UploadResult
	if err := u.client.PostMultipart(ctx, dest.path, formType, body, &result); err != nil {
		return nil, fmt.Errorf("uploading image: %w", err)
	}

	u.logger.Info("image uploaded",
		zap.String("target", string(target)),
		zap.String("filename", result.Filename),
		zap.Int("bytes", len(data)),
	)

	return &result, nil
}

// downscale shrinks JPEG and PNG images wider than MaxWidth, keeping the
// aspect ratio. Anything it cannot decode is sent unchanged.
func (u *Uploader) downscale(contentType string, data []byte) []byte {
	if contentType != "image/jpeg" && contentType != "image/png" {
		return data
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= u.opts.MaxWidth {
		return data
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		u.logger.Warn("failed to decode image for resizing", zap.Error(err))
		return data
	}

	resized := resize.Resize(uint(u.opts.MaxWidth), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if contentType == "image/png" {
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		u.logger.Warn("failed to encode resized image", zap.Error(err))
		return data
	}

	u.logger.Debug("image downscaled",
		zap.Int("from_width", cfg.Width),
		zap.Int("to_width", u.opts.MaxWidth),
	)

	return buf.Bytes()
}

func buildForm(filename, contentType string, data []byte, ownerField, ownerID string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if filename == "" {
		filename = "image"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, imageField, filepath.Base(filename)))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	if ownerField != "" {
		if err := w.WriteField(ownerField, ownerID); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}
