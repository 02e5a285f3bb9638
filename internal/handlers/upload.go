package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"strings"
)

// multipartOverhead leaves room for the form boundaries and headers around the image.
const multipartOverhead = 1 << 20

var errNotImage = errors.New("uploaded file is not an image")

type uploadError struct {
	code    int
	message string
}

func (e *uploadError) Error() string { return e.message }

type upload struct {
	data     []byte
	mimeType string
	filename string
}

// readUpload reads the shelf photo from the "image" (or "file") form field.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	limit := h.opts.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, h.tooLarge()
		}
		file, header, err = r.FormFile("file")
		if err != nil {
			return nil, &uploadError{http.StatusBadRequest, "No image provided: send it in the \"image\" form field"}
		}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, &uploadError{http.StatusBadRequest, "Failed to read file contents: " + err.Error()}
	}
	if int64(len(data)) > limit {
		return nil, h.tooLarge()
	}
	if len(data) == 0 {
		return nil, &uploadError{http.StatusBadRequest, "Uploaded file is empty"}
	}

	mimeType, err := imageType(header.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, &uploadError{http.StatusBadRequest, err.Error()}
	}

	if width, height, err := imageDimensions(data); err == nil {
		h.logger.Info("Shelf photo received", "filename", header.Filename, "type", mimeType, "bytes", len(data), "width", width, "height", height)
	} else {
		h.logger.Info("Shelf photo received", "filename", header.Filename, "type", mimeType, "bytes", len(data))
	}

	return &upload{data: data, mimeType: mimeType, filename: header.Filename}, nil
}

func (h *Handler) tooLarge() error {
	return &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (max %dMB)", h.opts.MaxUploadBytes>>20)}
}

// imageType trusts a declared image/* content type and sniffs the bytes otherwise.
func imageType(declared string, data []byte) (string, error) {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType, nil
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	return "", errNotImage
}

func imageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
