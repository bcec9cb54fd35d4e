// Package backendtest runs an in-process stand-in for the REST backend so
// client and handler tests can exercise real HTTP round trips.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/galvanai/portal/internal/model"
)

const signingSecret = "backendtest-signing-secret"

// Request is one call the fake received.
type Request struct {
	Method        string
	Path          string
	Authorization string
	Form          map[string]string
	HasFile       bool
}

type account struct {
	user model.User
	hash []byte
}

type pendingOTP struct {
	code string
	user model.User
	hash []byte
}

type failure struct {
	status  int
	message string
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	nextID       int64
	accounts     map[int64]*account
	otps         map[string]pendingOTP
	requests     []Request
	failures     map[string]failure
	silentDelete bool
	otpCode      string
}

func New() *Server {
	s := &Server{
		nextID:   1,
		accounts: make(map[int64]*account),
		otps:     make(map[string]pendingOTP),
		failures: make(map[string]failure),
		otpCode:  "123456",
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Post("/auth/register", s.register)
	r.Post("/auth/verify-otp", s.verifyOTP)
	r.Post("/auth/login", s.login)
	r.Get("/auth/me", s.withUser(s.me))
	r.Get("/admin/users", s.withUser(s.adminOnly(s.listUsers)))
	r.Put("/admin/users/{id}", s.withUser(s.adminOnly(s.updateUser)))
	r.Delete("/admin/users/{id}", s.withUser(s.adminOnly(s.deleteUser)))
	return r
}

// Seed adds a verified account and returns its record.
func (s *Server) Seed(u model.User, password string) model.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.nextID
	s.nextID++
	u.Email = strings.ToLower(u.Email)
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.CreatedAt == "" {
		u.CreatedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC).Format(time.RFC3339)
	}
	s.accounts[u.ID] = &account{user: u, hash: hash}
	return u
}

// Fail makes the next calls to method+path answer with status and message
// until ClearFailures is called.
func (s *Server) Fail(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, message: message}
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// SilentDelete makes DELETE answer 200 without removing anything.
func (s *Server) SilentDelete(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silentDelete = on
}

// OTP returns the code pending for email, if any.
func (s *Server) OTP(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.otps[strings.ToLower(email)]
	return p.code, ok
}

// Requests returns a copy of every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Users returns the stored accounts ordered by id.
func (s *Server) Users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedUsers()
}

// TokenFor mints an access token for a seeded user.
func (s *Server) TokenFor(u model.User) string {
	access, _ := s.mint(u, 15*time.Minute)
	return access
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
		}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(8 << 20); err == nil {
				req.Form = make(map[string]string)
				for k, v := range r.MultipartForm.Value {
					req.Form[k] = v[0]
				}
				_, req.HasFile = r.MultipartForm.File["profile_pic"]
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		f, failing := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if failing {
			writeJSON(w, f.status, map[string]any{"message": f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	form := formValues(r)
	email := strings.ToLower(form["email"])

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Email == email {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Email already registered"})
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form["password"]), bcrypt.MinCost)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid password"})
		return
	}
	u := model.User{
		FirstName:    form["first_name"],
		LastName:     form["last_name"],
		Email:        email,
		MobileNumber: form["mobile_number"],
		Role:         model.RoleUser,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["profile_pic"]; len(files) > 0 {
			u.ProfilePic = "/uploads/" + files[0].Filename
		}
	}

	if form["is_admin_creation"] == "true" {
		if role := model.Role(form["role"]); role.Valid() {
			u.Role = role
		}
		u.ID = s.nextID
		s.nextID++
		s.accounts[u.ID] = &account{user: u, hash: hash}
		access, refresh := s.mint(u, 15*time.Minute)
		writeJSON(w, http.StatusCreated, map[string]any{"message": "User created by admin", "access": access, "refresh": refresh})
		return
	}

	s.otps[email] = pendingOTP{code: s.otpCode, user: u, hash: hash}
	writeJSON(w, http.StatusOK, map[string]any{"message": "OTP sent to email"})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	email := strings.ToLower(in.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.otps[email]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "No OTP requested"})
		return
	}
	if p.code != in.OTP {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid OTP"})
		return
	}
	delete(s.otps, email)

	u := p.user
	u.ID = s.nextID
	s.nextID++
	s.accounts[u.ID] = &account{user: u, hash: p.hash}
	access, refresh := s.mint(u, 15*time.Minute)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User created", "access": access, "refresh": refresh})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	email := strings.ToLower(in.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword(a.hash, []byte(in.Password)) != nil {
			break
		}
		access, refresh := s.mint(a.user, 15*time.Minute)
		writeJSON(w, http.StatusOK, map[string]any{
			"access":  access,
			"refresh": refresh,
			"role":    a.user.Role,
			"email":   a.user.Email,
		})
		return
	}
	writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, caller model.User) {
	if caller.ProfilePic != "" {
		caller.ProfilePic = s.URL + caller.ProfilePic
	}
	writeJSON(w, http.StatusOK, caller)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ model.User) {
	s.mu.Lock()
	users := s.sortedUsers()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, _ model.User) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	form := formValues(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "User not found"})
		return
	}
	if v, ok := form["first_name"]; ok {
		a.user.FirstName = v
	}
	if v, ok := form["last_name"]; ok {
		a.user.LastName = v
	}
	if v, ok := form["mobile_number"]; ok {
		a.user.MobileNumber = v
	}
	if v, ok := form["role"]; ok && model.Role(v).Valid() {
		a.user.Role = model.Role(v)
	}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["profile_pic"]; len(files) > 0 {
			a.user.ProfilePic = "/uploads/" + files[0].Filename
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User updated"})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, _ model.User) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "User not found"})
		return
	}
	if !s.silentDelete {
		delete(s.accounts, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted"})
}

type userHandler func(http.ResponseWriter, *http.Request, model.User)

func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Missing token"})
			return
		}
		tok, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(signingSecret), nil
		})
		if err != nil || !tok.Valid {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid or expired token"})
			return
		}
		claims, _ := tok.Claims.(jwt.MapClaims)
		sub, _ := claims["sub"].(float64)

		s.mu.Lock()
		a, ok := s.accounts[int64(sub)]
		var u model.User
		if ok {
			u = a.user
		}
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "User not found"})
			return
		}
		next(w, r, u)
	}
}

func (s *Server) adminOnly(next userHandler) userHandler {
	return func(w http.ResponseWriter, r *http.Request, caller model.User) {
		if !caller.Role.IsStaff() {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "Admin access required"})
			return
		}
		next(w, r, caller)
	}
}

func (s *Server) mint(u model.User, ttl time.Duration) (string, string) {
	now := time.Now().UTC()
	access, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"role":  string(u.Role),
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}).SignedString([]byte(signingSecret))
	refresh, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": u.ID,
		"exp": now.Add(7 * 24 * time.Hour).Unix(),
	}).SignedString([]byte(signingSecret))
	return access, refresh
}

// sortedUsers must be called with s.mu held.
func (s *Server) sortedUsers() []model.User {
	users := make([]model.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		users = append(users, a.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func formValues(r *http.Request) map[string]string {
	out := make(map[string]string)
	if r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			out[k] = v[0]
		}
		return out
	}
	var body map[string]string
	if json.NewDecoder(r.Body).Decode(&body) == nil {
		return body
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
