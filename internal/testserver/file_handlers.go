package testserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type fileUpdateRequest struct {
	Comment *string `json:"comment"`
}

func (s *Server) listFilesHandler(w http.ResponseWriter, r *http.Request) {
	requesterID := requestUserID(r.Context())
	ownerID := requesterID

	if param := r.URL.Query().Get("user_id"); param != "" {
		id, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid user_id")
			return
		}
		s.mu.Lock()
		requester, ok := s.users[requesterID]
		super := ok && requester.IsSuperuser
		s.mu.Unlock()
		if !super && id != requesterID {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Admin access required."})
			return
		}
		ownerID = id
	}

	s.mu.Lock()
	files := s.fileList(ownerID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) uploadFileHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := requestUserID(r.Context())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Error parsing multipart form")
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error retrieving the file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	comment := r.FormValue("comment")

	s.mu.Lock()
	owner, ok := s.users[ownerID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if owner.StorageUsed+int64(len(content)) > owner.MaxStorage {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Przekroczono limit miejsca w chmurze")
		return
	}
	s.mu.Unlock()

	created := s.AddFile(ownerID, handler.Filename, comment, content)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateFileHandler(w http.ResponseWriter, r *http.Request) {
	rec, status := s.ownedFile(r)
	if rec == nil {
		writeError(w, status, "File not found")
		return
	}

	var req fileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	if req.Comment != nil {
		rec.Comment = *req.Comment
	}
	file := rec.File
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, file)
}

func (s *Server) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	rec, status := s.ownedFile(r)
	if rec == nil {
		writeError(w, status, "File not found")
		return
	}

	s.mu.Lock()
	delete(s.files, rec.ID)
	if owner, ok := s.users[rec.ownerID]; ok {
		owner.StorageUsed -= rec.Size
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) downloadFileHandler(w http.ResponseWriter, r *http.Request) {
	rec, status := s.ownedFile(r)
	if rec == nil {
		writeError(w, status, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+rec.OriginalName+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", rec.Size))
	w.Write(rec.content)
}

func (s *Server) sharedDownloadHandler(w http.ResponseWriter, r *http.Request) {
	link := chi.URLParam(r, "link")

	s.mu.Lock()
	var found *fileRecord
	for _, rec := range s.files {
		if rec.SharedLink == link {
			found = rec
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+found.OriginalName+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(found.content)
}

// ownedFile resolves {fileId} and checks the requester owns it or is a
// superuser. A nil record comes back with the status to report; ownership
// failures read as 404 so file ids don't leak.
func (s *Server) ownedFile(r *http.Request) (*fileRecord, int) {
	id, err := strconv.ParseInt(chi.URLParam(r, "fileId"), 10, 64)
	if err != nil {
		return nil, http.StatusBadRequest
	}

	requesterID := requestUserID(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[id]
	if !ok {
		return nil, http.StatusNotFound
	}
	requester, ok := s.users[requesterID]
	if !ok || (rec.ownerID != requesterID && !requester.IsSuperuser) {
		return nil, http.StatusNotFound
	}
	return rec, http.StatusOK
}
