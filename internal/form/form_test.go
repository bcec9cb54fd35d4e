package form

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/galvanai/portal/internal/model"
)

func validRegistration() Registration {
	return Registration{
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        "grace@example.org",
		Password:     "cobol60",
		MobileNumber: "+923001234567",
	}
}

func TestRegistrationValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
		want   string
	}{
		{"valid", func(*Registration) {}, ""},
		{"missing first name", func(f *Registration) { f.FirstName = "" }, MsgRequired},
		{"missing last name", func(f *Registration) { f.LastName = "" }, MsgRequired},
		{"missing email", func(f *Registration) { f.Email = "" }, MsgRequired},
		{"missing password", func(f *Registration) { f.Password = "" }, MsgRequired},
		{"no at sign", func(f *Registration) { f.Email = "grace.example.org" }, MsgEmailFormat},
		{"no dot in domain", func(f *Registration) { f.Email = "grace@example" }, MsgEmailFormat},
		{"space in email", func(f *Registration) { f.Email = "grace hopper@example.org" }, MsgEmailFormat},
		{"two at signs", func(f *Registration) { f.Email = "a@b@c.org" }, MsgEmailFormat},
		{"short password", func(f *Registration) { f.Password = "12345" }, MsgPasswordShort},
		{"six char password", func(f *Registration) { f.Password = "123456" }, ""},
		{"missing mobile", func(f *Registration) { f.MobileNumber = "" }, MsgMobile},
		{"required beats format", func(f *Registration) { f.FirstName = ""; f.Email = "bad" }, MsgRequired},
		{"format beats length", func(f *Registration) { f.Email = "bad"; f.Password = "1" }, MsgEmailFormat},
		{"length beats mobile", func(f *Registration) { f.Password = "1"; f.MobileNumber = "" }, MsgPasswordShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validRegistration()
			tt.mutate(&f)
			if got := f.Validate(); got != tt.want {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRegistrationTrims(t *testing.T) {
	body := url.Values{
		"first_name":    {"  Grace "},
		"last_name":     {"Hopper"},
		"email":         {" grace@example.org"},
		"password":      {" spaced "},
		"mobile_number": {"+92 300"},
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f := ParseRegistration(req)
	if f.FirstName != "Grace" || f.Email != "grace@example.org" {
		t.Errorf("fields not trimmed: %+v", f)
	}
	if f.Password != " spaced " {
		t.Errorf("password must be kept verbatim, got %q", f.Password)
	}
}

func TestLoginAndOTPValidate(t *testing.T) {
	if got := (Login{Email: "a@b.co"}).Validate(); got != MsgLogin {
		t.Errorf("login = %q", got)
	}
	if got := (Login{Email: "a@b.co", Password: "x"}).Validate(); got != "" {
		t.Errorf("login = %q", got)
	}
	if got := (OTP{Email: "a@b.co"}).Validate(); got != MsgOTP {
		t.Errorf("otp = %q", got)
	}
}

func TestUserValidate(t *testing.T) {
	base := User{FirstName: "A", LastName: "B", Email: "a@b.co", Role: model.RoleUser}
	tests := []struct {
		name   string
		mutate func(*User)
		want   string
	}{
		{"edit without password", func(*User) {}, ""},
		{"create without password", func(f *User) { f.Create = true }, MsgNewPassword},
		{"create with password", func(f *User) { f.Create = true; f.Password = "x" }, ""},
		{"missing email", func(f *User) { f.Email = "" }, MsgRequired},
		{"bad email", func(f *User) { f.Email = "nope" }, MsgEmailFormat},
		{"bad role", func(f *User) { f.Role = "root" }, MsgRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			tt.mutate(&f)
			if got := f.Validate(); got != tt.want {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseUserDefaultsRoleAndDropsEditPassword(t *testing.T) {
	body := url.Values{"first_name": {"A"}, "last_name": {"B"}, "email": {"a@b.co"}, "password": {"secret"}}
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/admin/users", strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	create := ParseUser(newReq(), true)
	if create.Role != model.RoleUser || create.Password != "secret" {
		t.Errorf("create = %+v", create)
	}
	if in := create.Input(nil); in.Password != "secret" {
		t.Errorf("create input password = %q", in.Password)
	}

	edit := ParseUser(newReq(), false)
	if edit.Password != "" || edit.Input(nil).Password != "" {
		t.Errorf("edit carried a password: %+v", edit)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCheckPicture(t *testing.T) {
	big := append(pngBytes(t), make([]byte, 5<<20)...)
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngBytes(t), ""},
		{"text", []byte("just some text"), MsgNotImage},
		{"pdf", []byte("%PDF-1.4 ..."), MsgNotImage},
		{"too large", big, MsgImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := CheckPicture(tt.data); got != tt.want {
				t.Errorf("CheckPicture = %q, want %q", got, tt.want)
			}
		})
	}
}

func multipartRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("first_name", "Grace")
	if filename != "" {
		part, err := w.CreateFormFile("profile_pic", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(data)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/register", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}
	return req
}

func TestReadPicture(t *testing.T) {
	t.Run("none chosen", func(t *testing.T) {
		f, problem, err := ReadPicture(multipartRequest(t, "", nil), "profile_pic")
		if f != nil || problem != "" || err != nil {
			t.Errorf("got %v %q %v", f, problem, err)
		}
	})
	t.Run("image", func(t *testing.T) {
		f, problem, err := ReadPicture(multipartRequest(t, "me.png", pngBytes(t)), "profile_pic")
		if err != nil || problem != "" {
			t.Fatalf("got %q %v", problem, err)
		}
		if f.Name != "me.png" || f.ContentType != "image/png" || len(f.Data) == 0 {
			t.Errorf("file = %+v", f)
		}
	})
	t.Run("disguised text", func(t *testing.T) {
		f, problem, err := ReadPicture(multipartRequest(t, "me.png", []byte("not an image at all")), "profile_pic")
		if f != nil || problem != MsgNotImage || err != nil {
			t.Errorf("got %v %q %v", f, problem, err)
		}
	})
}
