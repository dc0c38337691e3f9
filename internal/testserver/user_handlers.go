package testserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type userUpdateRequest struct {
	IsActive   *bool   `json:"is_active"`
	Password   *string `json:"password"`
	MaxStorage *int64  `json:"max_storage"`
}

func (s *Server) requireSuperuser(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	rec, ok := s.users[requestUserID(r.Context())]
	super := ok && rec.IsSuperuser
	s.mu.Unlock()

	if !super {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Admin access required."})
		return false
	}
	return true
}

func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperuser(w, r) {
		return
	}
	s.mu.Lock()
	users := s.userList()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperuser(w, r) {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req userUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var newHash string
	if req.Password != nil {
		newHash, err = HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}
	}

	s.mu.Lock()
	rec, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if req.IsActive != nil {
		rec.IsActive = *req.IsActive
	}
	if req.MaxStorage != nil {
		rec.MaxStorage = *req.MaxStorage
	}
	if req.Password != nil {
		rec.passwordHash = newHash
	}
	user := rec.User
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, user)
}

func (s *Server) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperuser(w, r) {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	delete(s.users, id)
	for fileID, rec := range s.files {
		if rec.ownerID == id {
			delete(s.files, fileID)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createAdminHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperuser(w, r) {
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	s.mu.Lock()
	for _, rec := range s.users {
		if rec.Username == req.Username {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "Username already taken")
			return
		}
	}
	s.mu.Unlock()

	user := s.AddUser(req.Username, req.Password, req.Email, req.FullName, false)
	writeJSON(w, http.StatusCreated, user)
}
