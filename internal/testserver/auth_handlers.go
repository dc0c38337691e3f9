package testserver

import (
	"encoding/json"
	"net/http"

	"klient-plikow/internal/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (s *Server) csrfHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:  "csrftoken",
		Value: s.newCSRFToken(),
		Path:  "/",
	})
	writeJSON(w, http.StatusOK, map[string]string{"detail": "CSRF cookie set"})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	var found *userRecord
	for _, rec := range s.users {
		if rec.Username == req.Username {
			found = rec
			break
		}
	}
	s.mu.Unlock()

	if found == nil || !CheckPasswordHash(req.Password, found.passwordHash) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid username or password."})
		return
	}
	if !found.IsActive {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "User inactive or deleted."})
		return
	}

	token, err := generateToken(&found.User, s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: found.User})
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
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

	token, err := generateToken(&user, s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, User: user})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentUserHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.users[requestUserID(r.Context())]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, rec.User)
}
