package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/park285/campus-quiz-core/internal/msgcat"
	"github.com/park285/campus-quiz-core/internal/obslog"
	"github.com/park285/campus-quiz-core/internal/orchestrator"
	"github.com/park285/campus-quiz-core/pkg/quizdto"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	// RequestTimeout bounds the handling of one inbound message.
	RequestTimeout time.Duration
}

type Server struct {
	mgr  *orchestrator.Manager
	cat  *msgcat.Catalog
	opts Options
}

func NewServer(mgr *orchestrator.Manager, cat *msgcat.Catalog, opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Server{mgr: mgr, cat: cat, opts: opts}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("POST /rooms", s.createRoom)
	mux.HandleFunc("GET /rooms/{id}/leaderboard", s.leaderboard)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r, s.opts.JWTSecret)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "http.unauthorized", nil, "unauthorized")
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.opts.AllowedOrigins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("user_id", userID), zap.Error(err))
		return
	}

	c := newConn(ws, userID, s.opts.WriteTimeout, s.opts.PingInterval)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.mgr.Connect(c)
	obslog.L().Info("ws_connected", zap.String("channel_id", c.id), zap.String("user_id", userID))
	defer func() {
		s.mgr.Disconnect(c)
		c.close(websocket.StatusNormalClosure, "bye")
		obslog.L().Info("ws_disconnected", zap.String("channel_id", c.id), zap.String("user_id", userID))
	}()
	go c.writeLoop(ctx)

	for {
		var env quizdto.Envelope
		if err := wsjson.Read(ctx, ws, &env); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("channel_id", c.id), zap.Error(err))
			}
			return
		}
		s.dispatch(ctx, c, env)
	}
}

func (s *Server) dispatch(ctx context.Context, c *conn, env quizdto.Envelope) {
	rctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	var err error
	switch env.Type {
	case quizdto.TypeRequestMatch:
		var p quizdto.RequestMatch
		if err = decodePayload(env, &p); err == nil {
			if err = s.checkUser(c, p.UserID); err == nil {
				err = s.mgr.RequestMatch(rctx, orchestrator.MatchRequest{
					UserID:  c.userID,
					Topic:   p.Topic,
					Profile: p.Profile.ToDomain(c.userID),
				}, c)
			}
		}
	case quizdto.TypeLeaveQueue:
		var p quizdto.LeaveQueue
		if err = decodePayload(env, &p); err == nil {
			err = s.mgr.LeaveQueue(rctx, p.Topic, c.userID, c)
		}
	case quizdto.TypeSubmitMatch:
		var p quizdto.SubmitMatch
		if err = decodePayload(env, &p); err == nil {
			if err = s.checkUser(c, p.UserID); err == nil {
				err = s.mgr.SubmitMatch(rctx, p.MatchID, c.userID, p.Answers, c)
			}
		}
	case quizdto.TypeJoinRoom:
		var p quizdto.JoinRoom
		if err = decodePayload(env, &p); err == nil {
			if err = s.checkUser(c, p.UserID); err == nil {
				err = s.mgr.JoinRoom(rctx, p.RoomID, c.userID, c)
			}
		}
	case quizdto.TypeSubmitRoom:
		var p quizdto.SubmitRoom
		if err = decodePayload(env, &p); err == nil {
			if err = s.checkUser(c, p.UserID); err == nil {
				err = s.mgr.SubmitRoom(rctx, p.RoomID, c.userID, p.Answers, c)
			}
		}
	default:
		s.sendError(ctx, c, domain.CodeInvalid, s.cat.Text("errors.unknown_type", map[string]any{"type": env.Type}, "unknown message type"), false)
		return
	}
	if err != nil {
		s.reportError(ctx, c, env.Type, err)
	}
}

type badPayloadError struct{ typ string }

func (e *badPayloadError) Error() string { return "bad payload for " + e.typ }

type identityMismatchError struct{}

func (identityMismatchError) Error() string { return "user id does not match the connection" }

func decodePayload(env quizdto.Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return &badPayloadError{typ: env.Type}
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return &badPayloadError{typ: env.Type}
	}
	return nil
}

func (s *Server) checkUser(c *conn, claimed string) error {
	if claimed = strings.TrimSpace(claimed); claimed != "" && claimed != c.userID {
		return identityMismatchError{}
	}
	return nil
}

func (s *Server) reportError(ctx context.Context, c *conn, typ string, err error) {
	var bp *badPayloadError
	var im identityMismatchError
	switch {
	case errors.As(err, &bp):
		s.sendError(ctx, c, domain.CodeInvalid, s.cat.Text("errors.bad_payload", map[string]any{"type": bp.typ}, bp.Error()), false)
		return
	case errors.As(err, &im):
		s.sendError(ctx, c, domain.CodeInvalid, s.cat.Text("errors.identity_mismatch", nil, im.Error()), false)
		return
	}

	code, retryable := domain.Classify(err)
	log := obslog.L().Info
	if code == domain.CodeUnavailable || code == domain.CodeInternal {
		log = obslog.L().Warn
	}
	log("ws_request_error",
		zap.String("channel_id", c.id),
		zap.String("user_id", c.userID),
		zap.String("type", typ),
		zap.String("code", code),
		zap.Error(err),
	)
	msg := s.cat.Text("errors."+code, map[string]any{"detail": err.Error()}, err.Error())
	s.sendError(ctx, c, code, msg, retryable)
}

func (s *Server) sendError(ctx context.Context, c *conn, code, msg string, retryable bool) {
	_ = c.Send(ctx, quizdto.Event{Type: quizdto.TypeError, Payload: quizdto.Error{Code: code, Message: msg, Retryable: retryable}})
}

type createRoomRequest struct {
	Domain          string            `json:"domain"`
	MaxMembers      int               `json:"maxMembers"`
	StartTime       time.Time         `json:"startTime"`
	DurationMinutes int               `json:"durationMinutes"`
	Questions       []domain.Question `json:"questions,omitempty"`
	QuestionCount   int               `json:"questionCount,omitempty"`
}

type roomView struct {
	ID              string    `json:"id"`
	Domain          string    `json:"domain"`
	HostID          string    `json:"hostId,omitempty"`
	MaxMembers      int       `json:"maxMembers"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"durationMinutes"`
	QuestionCount   int       `json:"questionCount"`
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	hostID, err := identify(r, s.opts.JWTSecret)
	if err != nil && s.opts.JWTSecret != "" {
		s.writeError(w, http.StatusUnauthorized, "http.unauthorized", nil, "unauthorized")
		return
	}
	var req createRoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "errors.bad_payload", map[string]any{"type": "room"}, "bad payload")
		return
	}
	room, err := s.mgr.CreateRoom(r.Context(), orchestrator.RoomRequest{
		Domain:          req.Domain,
		HostID:          hostID,
		MaxMembers:      req.MaxMembers,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Questions:       req.Questions,
		QuestionCount:   req.QuestionCount,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomView{
		ID:              room.ID,
		Domain:          room.Domain,
		HostID:          room.HostID,
		MaxMembers:      room.MaxMembers,
		StartTime:       room.StartTime,
		EndTime:         room.EndTime(),
		DurationMinutes: room.DurationMinutes,
		QuestionCount:   len(room.Questions),
	})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.mgr.Leaderboard(r.Context(), roomID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "http.room_not_found", map[string]any{"roomId": roomID}, "room not found")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.RankedEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roomId": roomID, "entries": rows})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	code, retryable := domain.Classify(err)
	status := http.StatusInternalServerError
	switch code {
	case domain.CodeInvalid:
		status = http.StatusBadRequest
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}
	msg := s.cat.Text("errors."+code, map[string]any{"detail": err.Error()}, err.Error())
	writeJSON(w, status, quizdto.Error{Code: code, Message: msg, Retryable: retryable})
}

func (s *Server) writeError(w http.ResponseWriter, status int, key string, data any, fallback string) {
	code := domain.CodeInvalid
	switch status {
	case http.StatusUnauthorized:
		code = "UNAUTHENTICATED"
	case http.StatusNotFound:
		code = domain.CodeNotFound
	}
	writeJSON(w, status, quizdto.Error{Code: code, Message: s.cat.Text(key, data, fallback)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
