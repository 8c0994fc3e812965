package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/storage"
)

const maxUploadBytes = 25 << 20

type processRequest struct {
	Input             string   `json:"input"`
	Type              string   `json:"type"`
	InstallationID    string   `json:"installationId"`
	IncomeCategories  []string `json:"incomeCategories"`
	ExpenseCategories []string `json:"expenseCategories"`
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "Hello World!")
}

func (s *Server) handleProcessText(w http.ResponseWriter, r *http.Request) {
	var body processRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := domain.ExtractionRequest{
		Input:             body.Input,
		Mode:              domain.Mode(body.Type),
		UserID:            s.resolveUserID(r, body.InstallationID),
		IncomeCategories:  body.IncomeCategories,
		ExpenseCategories: body.ExpenseCategories,
	}

	result, err := s.processor.ProcessText(r.Context(), req)
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	data, filename, mimeType, req, ok := s.parseUpload(w, r)
	if !ok {
		return
	}

	result, err := s.processor.ProcessAudio(r.Context(), data, filename, mimeType, req)
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	data, _, mimeType, req, ok := s.parseUpload(w, r)
	if !ok {
		return
	}

	result, err := s.processor.ProcessImage(r.Context(), data, mimeType, req)
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListUsage(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	records, total, err := s.store.ListUsageRecords(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("failed to list usage records", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to list usage records")
		return
	}
	if records == nil {
		records = []domain.UsageRecord{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": total,
	})
}

type pingRequest struct {
	InstallationID string `json:"installationId"`
	AppVersion     string `json:"appVersion"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var body pingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.InstallationID == "" {
		s.writeError(w, http.StatusBadRequest, "installationId is required")
		return
	}

	if s.store == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	location := geoLocation{}
	if s.locator != nil {
		loc := s.locator.Lookup(r.Context(), clientIP(r))
		location.City = loc.City
		location.Country = loc.Country
	}

	user, err := s.store.UpsertUser(r.Context(), storage.UpsertUserParams{
		InstallationID: body.InstallationID,
		AppVersion:     body.AppVersion,
		DeviceType:     deviceTypeFromUserAgent(r.UserAgent()),
		City:           location.City,
		Country:        location.Country,
	})
	if err != nil {
		s.logger.Error("failed to upsert user", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to register client")
		return
	}

	if err := s.store.CreateInteraction(r.Context(), user.ID, storage.InteractionPing); err != nil {
		s.logger.Warn("failed to record interaction", slog.String("error", err.Error()))
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "userId": user.ID})
}

type geoLocation struct {
	City    string
	Country string
}

// parseUpload extracts the multipart file and shared extraction fields for
// the audio and image handlers.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (data []byte, filename, mimeType string, req domain.ExtractionRequest, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	filename = header.Filename
	mimeType = header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	req = domain.ExtractionRequest{
		Mode:              domain.Mode(r.FormValue("type")),
		UserID:            s.resolveUserID(r, r.FormValue("installationId")),
		IncomeCategories:  parseCategoriesField(r.FormValue("incomeCategories")),
		ExpenseCategories: parseCategoriesField(r.FormValue("expenseCategories")),
	}
	ok = true
	return
}

// resolveUserID maps an installation id to a user id and records the
// llm_usage interaction for known users. Best-effort: an unknown
// installation or storage failure yields an empty user id.
func (s *Server) resolveUserID(r *http.Request, installationID string) string {
	if s.store == nil || installationID == "" {
		return ""
	}
	user, err := s.store.FindUser(r.Context(), installationID)
	if err != nil || user == nil {
		return ""
	}
	if err := s.store.CreateInteraction(r.Context(), user.ID, storage.InteractionLLMUsage); err != nil {
		s.logger.Warn("failed to record interaction", slog.String("error", err.Error()))
	}
	return user.ID
}

// parseCategoriesField accepts a JSON array or a comma-separated list.
func parseCategoriesField(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "[") {
		var list []string
		if err := json.Unmarshal([]byte(value), &list); err == nil {
			return list
		}
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		s.writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	s.logger.Error("processing failed", slog.String("error", err.Error()))
	s.writeError(w, http.StatusInternalServerError, "processing failed")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// deviceTypeFromUserAgent does coarse device sniffing, enough for the
// install dashboard.
func deviceTypeFromUserAgent(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return ""
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return "ios"
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "windows"), strings.Contains(ua, "macintosh"), strings.Contains(ua, "linux"):
		return "desktop"
	default:
		return "other"
	}
}
