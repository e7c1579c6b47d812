// Copyright 2026 AdPilot
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/jackhunterking/AdPilot-sub003/pkg/chat"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// httpServer exposes the chat service over HTTP. Streamed output goes
// through SSE: the client opens GET /v1/events?stream=<id> first, then
// POSTs the turn to /v1/chat?stream=<id> and watches events arrive.
type httpServer struct {
	service *chat.Service
	events  *sse.Server
	logger  *zap.Logger
}

func newHTTPServer(service *chat.Service, logger *zap.Logger) *httpServer {
	events := sse.New()
	events.AutoReplay = false
	return &httpServer{
		service: service,
		events:  events,
		logger:  logger,
	}
}

func (s *httpServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *httpServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *httpServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	streamID := r.URL.Query().Get("stream")
	if streamID == "" {
		http.Error(w, "stream query parameter is required", http.StatusBadRequest)
		return
	}
	s.events.CreateStream(streamID)
	s.events.ServeHTTP(w, r)
}

func (s *httpServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var emit types.EmitFunc
	if streamID := r.URL.Query().Get("stream"); streamID != "" {
		s.events.CreateStream(streamID)
		emit = func(ev types.StreamEvent) {
			data, err := json.Marshal(ev)
			if err != nil {
				return
			}
			s.events.Publish(streamID, &sse.Event{
				Event: []byte(ev.Kind),
				Data:  data,
			})
		}
	}

	result, err := s.service.HandleTurn(r.Context(), req, emit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Warn("Failed to write chat response", zap.Error(err))
	}
}

func (s *httpServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrCampaignBindingRequired):
		status = http.StatusBadRequest
	case r.Context().Err() != nil:
		// Client went away; status is moot but avoid a 500 in the logs.
		status = http.StatusRequestTimeout
	}

	s.logger.Warn("Chat request failed", zap.Int("status", status), zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
