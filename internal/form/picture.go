package form

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/media"
)

const (
	MsgNotImage      = "Only image files are allowed."
	MsgImageTooLarge = "Image size must be less than 5MB."
)

// CheckPicture sniffs data and reports its media type, or the message
// explaining why it cannot be used as a profile picture.
func CheckPicture(data []byte) (contentType, problem string) {
	contentType = media.DetectType(data)
	switch {
	case !media.IsImage(contentType):
		return contentType, MsgNotImage
	case len(data) > media.MaxPictureSize:
		return contentType, MsgImageTooLarge
	}
	return contentType, ""
}

// ReadPicture reads the optional picture field of a parsed multipart form.
// A nil file means nothing was chosen. JPEG and PNG metadata is removed from
// accepted files.
func ReadPicture(r *http.Request, field string) (*backend.File, string, error) {
	if r.MultipartForm == nil {
		return nil, "", nil
	}
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("form: open %s: %w", field, err)
	}
	defer f.Close()
	if hdr.Filename == "" && hdr.Size == 0 {
		return nil, "", nil
	}

	data, err := io.ReadAll(io.LimitReader(f, media.MaxPictureSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("form: read %s: %w", field, err)
	}

	ct, problem := CheckPicture(data)
	if problem != "" {
		return nil, problem, nil
	}

	clean, err := media.StripMetadata(data, ct)
	if err != nil {
		slog.Info("form: undecodable picture rejected", "content_type", ct, "err", err)
		return nil, MsgNotImage, nil
	}
	return &backend.File{Name: hdr.Filename, ContentType: ct, Data: clean}, "", nil
}
