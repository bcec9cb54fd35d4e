package backend

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/galvanai/portal/internal/model"
)

// File is an uploaded profile picture, already validated by the caller.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// RegisterInput is the self-service registration form.
type RegisterInput struct {
	FirstName    string
	LastName     string
	Email        string
	Password     string
	MobileNumber string
	ProfilePic   *File
}

func (in RegisterInput) multipart() (io.Reader, string, error) {
	return encodeMultipart([][2]string{
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"email", in.Email},
		{"password", in.Password},
		{"mobile_number", in.MobileNumber},
	}, in.ProfilePic)
}

// UserInput is the superadmin user form used for both create and edit.
type UserInput struct {
	FirstName    string
	LastName     string
	Email        string
	Password     string
	MobileNumber string
	Role         model.Role
	ProfilePic   *File
}

// multipart encodes the form. Create mode carries the password and the
// is_admin_creation flag; edit mode carries neither.
func (in UserInput) multipart(create bool) (io.Reader, string, error) {
	fields := [][2]string{
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"email", in.Email},
	}
	if create {
		fields = append(fields, [2]string{"password", in.Password})
	}
	fields = append(fields,
		[2]string{"role", string(in.Role)},
		[2]string{"mobile_number", in.MobileNumber},
	)
	if create {
		fields = append(fields, [2]string{"is_admin_creation", "true"})
	}
	return encodeMultipart(fields, in.ProfilePic)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(fields [][2]string, pic *File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("backend: write field %s: %w", f[0], err)
		}
	}

	if pic != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="profile_pic"; filename="%s"`, quoteEscaper.Replace(pic.Name)))
		ct := pic.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("backend: create file part: %w", err)
		}
		if _, err := part.Write(pic.Data); err != nil {
			return nil, "", fmt.Errorf("backend: write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("backend: close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
