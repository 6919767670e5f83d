package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUploadRequired indicates the multipart request carried no file.
	ErrUploadRequired = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the detected type is not an accepted image.
	ErrUploadTypeNotAllowed = errors.New("only png, jpeg, webp and gif images are accepted")
	// ErrUploadUnavailable indicates no storage backend is configured.
	ErrUploadUnavailable = errors.New("file storage is not configured")
)

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// FileStorage abstracts the upload destination of battle entries.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

type imageUpload struct {
	name     string
	payload  []byte
	mimeType string
	checksum string
}

// readImage loads the file, enforces the size limit and checks the content is an accepted image.
// The declared Content-Type is ignored; detection works on the bytes.
func readImage(file *multipart.FileHeader, maxSize int64) (imageUpload, error) {
	if file == nil {
		return imageUpload{}, ErrUploadRequired
	}
	if file.Size > maxSize {
		return imageUpload{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return imageUpload{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxSize+1)); err != nil {
		return imageUpload{}, err
	}
	if int64(buf.Len()) > maxSize {
		return imageUpload{}, ErrUploadTooLarge
	}
	if buf.Len() == 0 {
		return imageUpload{}, ErrUploadRequired
	}

	detected := mimetype.Detect(buf.Bytes())
	if !mimetype.EqualsAny(detected.String(), allowedImageTypes...) {
		return imageUpload{}, fmt.Errorf("%w: got %s", ErrUploadTypeNotAllowed, detected.String())
	}

	sum := sha256.Sum256(buf.Bytes())
	return imageUpload{
		name:     sanitizeFileName(file.Filename, detected.Extension()),
		payload:  buf.Bytes(),
		mimeType: detected.String(),
		checksum: hex.EncodeToString(sum[:]),
	}, nil
}

func sanitizeFileName(name, ext string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("entry-%d", time.Now().Unix())
	}
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
