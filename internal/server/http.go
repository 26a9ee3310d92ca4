package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/internal/render"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

const (
	qrSize          = 320
	maxHistoryLimit = 100
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Debug("http_write_failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg, details string) {
	writeJSON(w, status, relaydto.ErrorResponse{Error: msg, Code: code, Details: details})
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// queryLimit parses ?limit=, falling back to def and capping at max.
func queryLimit(r *http.Request, def, max int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	body := map[string]any{"status": "ok", "dropped": s.deps.Hub.Dropped(), "active_games": s.deps.Matches.ActiveCount()}
	if s.deps.Chat != nil {
		if err := s.deps.Chat.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["chatlog"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) serveRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rooms, err := s.deps.Hub.Rooms(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, relaydto.ErrCodeInternal, "relay unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) serveChatLog(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	room := strings.TrimSpace(p.ByName("room"))
	if room == "" {
		writeError(w, http.StatusBadRequest, relaydto.ErrCodeInvalidRequest, "room is required", "")
		return
	}
	if s.deps.Chat == nil {
		writeJSON(w, http.StatusOK, []relaydto.ChatEntry{})
		return
	}
	limit, ok := queryLimit(r, s.opts.ChatLogLimit, s.opts.ChatLogLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, relaydto.ErrCodeInvalidRequest, "limit must be a positive integer", "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	entries, err := s.deps.Chat.Query(ctx, room, limit)
	if err != nil {
		obslog.L().Warn("chatlog_query_failed", zap.String("room", room), zap.Error(err))
		writeError(w, http.StatusInternalServerError, relaydto.ErrCodeInternal, "chat log unavailable", "")
		return
	}
	if entries == nil {
		entries = []relaydto.ChatEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// serveRoomQR encodes a link that joins room.
func (s *Server) serveRoomQR(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	room := strings.TrimSpace(p.ByName("room"))
	if room == "" {
		writeError(w, http.StatusBadRequest, relaydto.ErrCodeInvalidRequest, "room is required", "")
		return
	}
	png, err := qrcode.Encode(s.roomURL(r, room), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, relaydto.ErrCodeInternal, "qr generation failed", err.Error())
		return
	}
	writePNG(w, png)
}

func (s *Server) roomURL(r *http.Request, room string) string {
	base := s.opts.PublicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return strings.TrimRight(base, "/") + "/?room=" + url.QueryEscape(room)
}

func (s *Server) serveBoard(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	player := strings.TrimSpace(p.ByName("player"))
	snap, ok := s.deps.Matches.ActiveByPlayer(player)
	if !ok {
		writeError(w, http.StatusNotFound, relaydto.ErrCodeNotFound, "no active game", player)
		return
	}
	header := snap.White + " vs " + snap.Black + " - " + string(snap.Turn) + " to move"
	png, err := render.RenderPNG(r.Context(), snap.Board, render.Options{LastFrom: snap.LastFrom, LastTo: snap.LastTo, Header: header})
	if err != nil {
		obslog.L().Error("board_render_failed", zap.String("game_id", snap.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, relaydto.ErrCodeInternal, "render failed", "")
		return
	}
	writePNG(w, png)
}

func (s *Server) serveHistory(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	player := strings.TrimSpace(p.ByName("player"))
	limit, ok := queryLimit(r, 20, maxHistoryLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, relaydto.ErrCodeInvalidRequest, "limit must be a positive integer", "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	games, err := s.deps.Matches.History(ctx, player, limit)
	if err != nil {
		obslog.L().Warn("match_history_failed", zap.String("player", player), zap.Error(err))
		writeError(w, http.StatusInternalServerError, relaydto.ErrCodeInternal, "history unavailable", "")
		return
	}
	writeJSON(w, http.StatusOK, games)
}
