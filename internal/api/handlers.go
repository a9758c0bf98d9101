package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/rollcall/internal/app"
	"github.com/mattjoyce/rollcall/internal/ledger"
)

const (
	msgHostnameRequired = "Hostname required"
	msgUnauthorized     = "Unauthorized hostname"
	msgRecorded         = "Check-in recorded"
	msgAlreadyIn        = "Already checked in today"
	msgDatabase         = "Database error"
	msgInternal         = "Internal server error"
	msgBadDate          = "Invalid date format. Use YYYY-MM-DD"
	msgPDFFailed        = "Failed to generate PDF"
	msgEmailSent        = "Email sent successfully"
	msgEmailFailed      = "Failed to send email"
	msgGCDone           = "Garbage collector executed"
	msgGCFailed         = "Failed to run garbage collector"
	msgRosterReloaded   = "Roster reloaded"
	msgRosterFailed     = "Failed to reload roster"

	maxBodyBytes = 1 << 16
)

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var req CheckinRequest
	if err := decodeJSON(r, &req); err != nil {
		s.logger.Warn("invalid checkin body", "error", err)
		s.writeError(w, http.StatusBadRequest, msgHostnameRequired)
		return
	}

	res, err := s.service.Checkin(r.Context(), req.Hostname)
	if err != nil {
		switch app.KindOf(err) {
		case app.KindValidation:
			s.writeError(w, http.StatusBadRequest, msgHostnameRequired)
		case app.KindAuthorization:
			s.writeError(w, http.StatusForbidden, msgUnauthorized)
		case app.KindStore:
			s.writeError(w, http.StatusInternalServerError, msgDatabase)
		default:
			s.logger.Error("checkin failed", "host", req.Hostname, "error", err)
			s.writeError(w, http.StatusInternalServerError, msgInternal)
		}
		return
	}

	if res.Outcome == ledger.AlreadyPresent {
		respondJSON(w, http.StatusAlreadyReported, CheckinResponse{Status: "info", Message: msgAlreadyIn})
		return
	}
	respondJSON(w, http.StatusOK, CheckinResponse{
		Status:    "success",
		Message:   msgRecorded,
		Timestamp: res.CheckinAt.Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(r.Context())
	if err != nil {
		s.logger.Error("failed to load status", "error", err)
		s.writeError(w, http.StatusInternalServerError, msgDatabase)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	art, data, err := s.service.DownloadReport(r.Context(), date)
	if err != nil {
		if app.KindOf(err) == app.KindValidation {
			s.writeError(w, http.StatusBadRequest, msgBadDate)
			return
		}
		s.logger.Error("failed to generate report", "date", date, "error", err)
		s.writeError(w, http.StatusInternalServerError, msgPDFFailed)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Report-Checksum", art.Checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, msgBadDate)
		return
	}

	d, err := s.service.EmailReport(r.Context(), req.Date)
	if err != nil {
		if app.KindOf(err) == app.KindValidation {
			s.writeError(w, http.StatusBadRequest, msgBadDate)
			return
		}
		s.logger.Error("failed to email report", "date", req.Date, "error", err)
		s.writeError(w, http.StatusInternalServerError, msgEmailFailed)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Status: "success", Message: msgEmailSent, Result: d})
}

func (s *Server) handleRetention(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.RunRetention(r.Context())
	if err != nil {
		s.logger.Error("retention failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, msgGCFailed)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Status: "success", Message: msgGCDone, Result: res})
}

func (s *Server) handleRosterReload(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.ReloadRoster(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, msgRosterFailed)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Status: "success", Message: msgRosterReloaded, Result: info})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h, err := s.service.Health(r.Context())
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, msgDatabase)
		return
	}
	respondJSON(w, http.StatusOK, h)
}

// decodeJSON reads an optional JSON body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Status: "error", Message: message})
}
