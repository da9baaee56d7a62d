package httpapi

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/peterson-htn252/HTN252/internal/api"
	"github.com/peterson-htn252/HTN252/internal/auth"
	"github.com/peterson-htn252/HTN252/internal/face"
	"github.com/peterson-htn252/HTN252/internal/models"
)

const maxEnrollBytes = 32 << 20

// FaceEnrollHandler enrolls an account from a batch of photos. Frames that
// fail embedding are skipped; the surviving frames are folded into a single
// centroid embedding.
func (s *Service) FaceEnrollHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())

	if s.faces == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "face_unavailable", "Face embedding not available", "")
		return
	}
	if err := r.ParseMultipartForm(maxEnrollBytes); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid multipart form", "")
		return
	}
	accountID := r.FormValue("account_id")
	if accountID == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "account_id is required", "")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "at least one file is required", "")
		return
	}

	var frames []face.Frame
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			continue
		}
		frame, err := s.faces.Embed(r.Context(), data)
		if err != nil {
			if errors.Is(err, face.ErrUnavailable) {
				api.WriteError(w, http.StatusServiceUnavailable, "face_unavailable", "Face embedding not available", "")
				return
			}
			continue
		}
		frames = append(frames, frame)
	}

	centroid, err := face.Centroid(frames)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "no_faces", "No faces detected in batch", "")
		return
	}

	record := &models.FaceMap{
		FaceID:     uuid.NewString(),
		AccountID:  accountID,
		NGOID:      claims.AccountID,
		Embedding:  centroid,
		Model:      "buffalo_l",
		FramesUsed: len(frames),
	}
	if err := s.store.CreateFaceMap(r.Context(), record); err != nil {
		log.Printf("Failed to store face map: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"face_id":     record.FaceID,
		"account_id":  accountID,
		"frames_used": record.FramesUsed,
	})
}

// FaceIdentifyHandler matches one photo against the NGO's enrolled faces.
func (s *Service) FaceIdentifyHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())

	if s.faces == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "face_unavailable", "Face embedding not available", "")
		return
	}
	if err := r.ParseMultipartForm(maxEnrollBytes); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid multipart form", "")
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "file is required", "")
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Failed to read file", "")
		return
	}

	frame, err := s.faces.Embed(r.Context(), data)
	if errors.Is(err, face.ErrNoFaceDetected) {
		api.WriteError(w, http.StatusBadRequest, "no_faces", "No face detected", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, "face_unavailable", "Face embedding not available", "")
		return
	}

	maps, err := s.store.ListFaceMapsByNGO(r.Context(), claims.AccountID)
	if err != nil {
		log.Printf("Failed to load face maps: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	var bestID string
	var bestSim float64
	for _, m := range maps {
		if sim := face.Cosine(frame.Vector, m.Embedding); sim > bestSim {
			bestSim = sim
			bestID = m.AccountID
		}
	}
	if bestID == "" || bestSim < face.MatchThreshold {
		api.WriteError(w, http.StatusNotFound, "no_match", "No enrolled face matched", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"account_id": bestID,
		"similarity": bestSim,
	})
}
