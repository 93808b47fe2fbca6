package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/northfield-iot/gsmmodem/modem"
)

// Server exposes a Modem's operations over HTTP: grounded on the teacher's
// single-endpoint server.go, extended with the read/list/delete/info
// surface named in the Supplemented features section.
type Server struct {
	Logger *slog.Logger
	Modem  *modem.Modem
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sms", s.handleSendSMS)
	mux.HandleFunc("GET /messages", s.handleListMessages)
	mux.HandleFunc("GET /messages/{index}", s.handleReadMessage)
	mux.HandleFunc("DELETE /messages/{index}", s.handleDeleteMessage)
	mux.HandleFunc("GET /signal", s.handleSignal)
	mux.HandleFunc("GET /network", s.handleNetwork)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}
	type errorResponse struct {
		Message string `json:"message"`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Message: message})
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("encode response", "error", err)
	}
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	type smsRequest struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}

	var req smsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.To == "" || req.Message == "" {
		s.sendError(w, "both 'to' and 'message' fields are required", http.StatusBadRequest)
		return
	}

	if err := s.Modem.SendMessage(r.Context(), req.To, req.Message); err != nil {
		s.Logger.Error("send SMS failed", "error", err, "to", req.To)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("SMS sent", "to", req.To, "message_length", len(req.Message))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	stat := 4
	if v := r.URL.Query().Get("stat"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			stat = parsed
		}
	}

	messages, err := s.Modem.ListMessages(r.Context(), stat)
	if err != nil {
		s.Logger.Error("list messages failed", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, messages)
}

func (s *Server) indexFromPath(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(r.PathValue("index")))
	return index, err == nil
}

func (s *Server) handleReadMessage(w http.ResponseWriter, r *http.Request) {
	index, ok := s.indexFromPath(r)
	if !ok {
		s.sendError(w, "invalid message index", http.StatusBadRequest)
		return
	}
	msg, err := s.Modem.ReadMessage(r.Context(), index)
	if err != nil {
		s.Logger.Error("read message failed", "error", err, "index", index)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msg == nil {
		s.sendError(w, "message not found", http.StatusNotFound)
		return
	}
	s.sendJSON(w, msg)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	index, ok := s.indexFromPath(r)
	if !ok {
		s.sendError(w, "invalid message index", http.StatusBadRequest)
		return
	}
	msg, err := s.Modem.DeleteMessage(r.Context(), index)
	if err != nil {
		s.Logger.Error("delete message failed", "error", err, "index", index)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, msg)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	q, err := s.Modem.SignalQuality(r.Context())
	if err != nil {
		s.Logger.Error("signal query failed", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, q)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	info, err := s.Modem.NetworkInfo(r.Context())
	if err != nil {
		s.Logger.Error("network query failed", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, info)
}
