package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/echotutor/tutor-service/internal/model"
	"github.com/echotutor/tutor-service/internal/session"
)

const (
	// NextMessage acknowledges a successful advance
	NextMessage = "Moved to next section"

	rootMessage = "Multi-Agent Learning System API"
	apiVersion  = "1.0.0"

	// multipart framing allowance on top of the configured file size
	multipartOverhead = 1 << 20

	// in-memory part of a multipart form before spilling to disk
	multipartMemory = 8 << 20
)

type historyResponse struct {
	Session session.Snapshot     `json:"session"`
	Entries []model.HistoryEntry `json:"entries"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": rootMessage,
		"version": apiVersion,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	content, filename, ok := s.readFormFile(w, r)
	if !ok {
		return
	}

	result, err := s.manager.Upload(r.Context(), filename, content)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	result, err := s.manager.Current(r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, validationDetail(err))
		return
	}

	feedback, err := s.manager.SubmitAnswer(r.Context(), r.PathValue("id"), *req.Answer, int(*req.QuestionID))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if _, err := s.manager.Advance(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: NextMessage})
}

func (s *Server) handlePractice(w http.ResponseWriter, r *http.Request) {
	recording, _, ok := s.readFormFile(w, r)
	if !ok {
		return
	}

	result, err := s.manager.Practice(r.Context(), r.PathValue("id"), recording)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.manager.Session(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Session: sess.Snapshot(),
		Entries: sess.History(),
	})
}

// readFormFile reads the multipart "file" field. On failure it has already
// written the response.
func (s *Server) readFormFile(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusBadRequest, session.ReasonTooLarge)
			return nil, "", false
		}
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid multipart form: "+err.Error())
		return nil, "", false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return nil, "", false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error().Err(err).Str("filename", header.Filename).Msg("failed to read uploaded file")
		writeDetail(w, http.StatusInternalServerError, detailInternal)
		return nil, "", false
	}
	return content, header.Filename, true
}
