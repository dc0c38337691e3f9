// Package testserver is an in-process fake of the file-storage REST
// backend. It mirrors the endpoint table the client is written against:
// token auth, CSRF cookie bootstrap, multipart upload, binary download,
// quota accounting and the admin user endpoints. State is in memory; each
// test constructs its own Server.
package testserver

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jaevor/go-nanoid"

	"klient-plikow/internal/models"
)

// DefaultQuotaBytes is the storage quota assigned to new accounts, 10 GiB.
const DefaultQuotaBytes = int64(10) << 30

type userRecord struct {
	models.User
	passwordHash string
}

type fileRecord struct {
	models.File
	ownerID int64
	content []byte
}

type Server struct {
	mu         sync.Mutex
	secret     string
	users      map[int64]*userRecord
	files      map[int64]*fileRecord
	nextUserID int64
	nextFileID int64

	newSharedLink func() string
	newCSRFToken  func() string
	router        chi.Router
}

func New() *Server {
	sharedLinkGen, err := nanoid.Standard(21)
	if err != nil {
		log.Fatalf("nie można zainicjować generatora nanoid: %v", err)
	}
	csrfGen, err := nanoid.Standard(40)
	if err != nil {
		log.Fatalf("nie można zainicjować generatora nanoid: %v", err)
	}

	s := &Server{
		secret:        csrfGen(),
		users:         make(map[int64]*userRecord),
		files:         make(map[int64]*fileRecord),
		newSharedLink: sharedLinkGen,
		newCSRFToken:  csrfGen,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRFToken", "X-Request-ID"},
		AllowCredentials: true,
	}))
	r.Use(s.csrfMiddleware)

	r.Get("/auth/csrf/", s.csrfHandler)
	r.Post("/auth/login/", s.loginHandler)
	r.Post("/auth/register/", s.registerHandler)
	r.Get("/storage/shared/{link}/", s.sharedDownloadHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/auth/logout/", s.logoutHandler)
		r.Get("/auth/users/me/", s.currentUserHandler)
		r.Get("/auth/users/", s.listUsersHandler)
		r.Patch("/auth/users/{userId}/", s.updateUserHandler)
		r.Delete("/auth/users/{userId}/", s.deleteUserHandler)
		r.Post("/auth/admin/create/", s.createAdminHandler)

		r.Get("/storage/files/", s.listFilesHandler)
		r.Post("/storage/files/", s.uploadFileHandler)
		r.Patch("/storage/files/{fileId}/", s.updateFileHandler)
		r.Delete("/storage/files/{fileId}/", s.deleteFileHandler)
		r.Get("/storage/files/{fileId}/download/", s.downloadFileHandler)
	})

	return r
}

// AddUser seeds an account directly into the fake's state and returns its
// public record.
func (s *Server) AddUser(username, password, email, fullName string, superuser bool) models.User {
	hash, err := HashPassword(password)
	if err != nil {
		log.Fatalf("nie można zahashować hasła: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	rec := &userRecord{
		User: models.User{
			ID:          s.nextUserID,
			Username:    username,
			Email:       email,
			FullName:    fullName,
			IsActive:    true,
			IsSuperuser: superuser,
			MaxStorage:  DefaultQuotaBytes,
		},
		passwordHash: hash,
	}
	s.users[rec.ID] = rec
	return rec.User
}

// AddFile seeds a stored file for ownerID and returns its record.
func (s *Server) AddFile(ownerID int64, name, comment string, content []byte) models.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFileID++
	rec := &fileRecord{
		File: models.File{
			ID:           s.nextFileID,
			OriginalName: name,
			Size:         int64(len(content)),
			Comment:      comment,
			SharedLink:   s.newSharedLink(),
		},
		ownerID: ownerID,
		content: content,
	}
	s.files[rec.ID] = rec
	if owner, ok := s.users[ownerID]; ok {
		owner.StorageUsed += rec.Size
	}
	return rec.File
}

// SetUserActive flips an account's active flag, e.g. to provoke the
// deactivated-account 403 path.
func (s *Server) SetUserActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.users[id]; ok {
		rec.IsActive = active
	}
}

// TokenFor mints a valid credential for a seeded user, bypassing the login
// endpoint.
func (s *Server) TokenFor(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return ""
	}
	token, err := generateToken(&rec.User, s.secret)
	if err != nil {
		log.Fatalf("nie można wygenerować tokenu: %v", err)
	}
	return token
}

func (s *Server) userList() []models.User {
	users := make([]models.User, 0, len(s.users))
	for _, rec := range s.users {
		users = append(users, rec.User)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (s *Server) fileList(ownerID int64) []models.File {
	files := make([]models.File, 0)
	for _, rec := range s.files {
		if rec.ownerID == ownerID {
			files = append(files, rec.File)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
