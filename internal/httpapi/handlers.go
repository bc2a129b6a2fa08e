package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/driptext/driptext/internal/assembler"
	"github.com/driptext/driptext/internal/config"
	"github.com/driptext/driptext/internal/intake"
	"github.com/driptext/driptext/internal/service"
	"github.com/driptext/driptext/internal/textseg"
	"github.com/driptext/driptext/internal/tracker"
	"github.com/driptext/driptext/pkg/icron"
)

type textResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	SourceLang string    `json:"source_language"`
	TargetLang string    `json:"target_language"`
	Portions   int       `json:"portions"`
	CreatedAt  time.Time `json:"created_at"`
}

func toTextResponse(t *textseg.Text) textResponse {
	return textResponse{
		ID:         t.ID,
		Title:      t.Title,
		Author:     t.Author,
		SourceLang: t.SourceLang.String(),
		TargetLang: t.TargetLang.String(),
		Portions:   len(t.Portions),
		CreatedAt:  t.CreatedAt,
	}
}

func (s *Server) handleTexts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		texts := s.svc.ListTexts()
		ret := make([]textResponse, 0, len(texts))
		for _, t := range texts {
			ret = append(ret, toTextResponse(t))
		}
		writeJSON(w, http.StatusOK, ret)
	case http.MethodPost:
		var in service.TextInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		text, err := s.svc.RegisterText(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTextResponse(text))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTextByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/texts/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing text id")
		return
	}
	text, err := s.svc.GetText(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, text)
}

type createUserRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Preferred string `json:"preferred"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.svc.ListUsers())
	case http.MethodPost:
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user, err := s.svc.RegisterUser(req.Name, req.Email, req.Phone, tracker.ChannelType(req.Preferred))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createAssignmentRequest struct {
	UserID string `json:"user_id"`
	TextID string `json:"text_id"`
	// optional; the runtime default applies when empty
	Policy string `json:"policy"`
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.svc.ListAssignments())
	case http.MethodPost:
		var req createAssignmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		a, err := s.svc.AssignText(req.UserID, req.TextID, tracker.DuplicatePolicy(req.Policy))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type assignmentDetailResponse struct {
	*tracker.Assignment
	Progress assembler.Status `json:"progress"`
}

// handleAssignmentSub serves /api/assignments/{id} and its
// sub-resources {id}/document and {id}/export.
func (s *Server) handleAssignmentSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/assignments/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing assignment id")
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		a, err := s.svc.GetAssignment(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		progress, err := s.svc.Progress(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, assignmentDetailResponse{Assignment: a, Progress: progress})
	case "document":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		doc, err := s.svc.AssembleDocument(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case "export":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		format := r.URL.Query().Get("format")
		if format == "" {
			format = assembler.FormatTxt
		}
		path, err := s.svc.ExportDocument(id, format)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": path})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type replyRequest struct {
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s *Server) handleReplies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	report, err := s.svc.ProcessReply(intake.Inbound{
		Sender:     req.Sender,
		Subject:    req.Subject,
		Body:       req.Body,
		ReceivedAt: req.ReceivedAt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	report, err := s.svc.RunDispatchCycle(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.svc.Settings())
	case http.MethodPut:
		var settings config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.svc.UpdateSettings(settings); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.svc.Settings())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type statusResponse struct {
	Texts       int                `json:"texts"`
	Users       int                `json:"users"`
	Assignments int                `json:"assignments"`
	FullySent   int                `json:"fully_sent"`
	Complete    int                `json:"complete"`
	Schedule    *icron.TriggerInfo `json:"schedule,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	assignments := s.svc.ListAssignments()
	resp := statusResponse{
		Texts:       len(s.svc.ListTexts()),
		Users:       len(s.svc.ListUsers()),
		Assignments: len(assignments),
	}
	for _, a := range assignments {
		if a.FullySent() {
			resp.FullySent++
		}
		if a.Complete() {
			resp.Complete++
		}
	}
	if info, err := icron.GetTriggerInfo(s.svc.Settings().CronExpr, time.Now()); err == nil {
		resp.Schedule = info
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var re *service.RelayError
	if errors.As(err, &re) {
		switch re.Type {
		case service.ErrorTypeInvalidInput, service.ErrorTypeInvalidPolicy:
			status = http.StatusBadRequest
		case service.ErrorTypeNotFound:
			status = http.StatusNotFound
		case service.ErrorTypeConflict, service.ErrorTypeDuplicateSubmission:
			status = http.StatusConflict
		case service.ErrorTypeUnknownPortion, service.ErrorTypeNotYetSent,
			service.ErrorTypeUnresolvedReply, service.ErrorTypeIncomplete:
			status = http.StatusUnprocessableEntity
		case service.ErrorTypeDispatch:
			status = http.StatusBadGateway
		}
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
