package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"addrscope/pkg/models"
	"addrscope/pkg/navigator"
	"addrscope/pkg/render"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait = 10 * time.Second
	// sendBuffer is how many messages may queue for a connection before it
	// counts as stalled and is dropped.
	sendBuffer = 16
)

// client owns one websocket connection. Only writePump writes to conn.
type client struct {
	id   string
	conn *websocket.Conn
	user string
	out  chan response
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, user string) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		user: user,
		out:  make(chan response, sendBuffer),
		done: make(chan struct{}),
	}
}

// send queues msg without blocking. It reports false when the client is
// closed or its queue is full.
func (c *client) send(msg response) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

func (c *client) writePump() {
	for {
		select {
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

type Server struct {
	ctrl     *navigator.Controller
	renderer render.Renderer
	logger   *zap.Logger
	clients  map[*client]bool
	mu       sync.Mutex
	mux      *http.ServeMux
}

func NewServer(ctrl *navigator.Controller, renderer render.Renderer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ctrl:     ctrl,
		renderer: renderer,
		logger:   logger,
		clients:  make(map[*client]bool),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/address", s.handleAddress)
	s.mux.HandleFunc("/api/callback", s.handleCallback)
	s.mux.HandleFunc("/api/session", s.handleSession)
	s.mux.HandleFunc("/api/welcome", s.handleWelcome)
	s.mux.HandleFunc("/ws", s.handleWS)
}

// Handler exposes the routes for embedding.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) Start(port int) error {
	s.listenToController()

	s.logger.Info("API server listening", zap.Int("port", port))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.mux)
}

// response is the body of every API reply and websocket message.
type response struct {
	Type      string                `json:"type,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
	Payload   *models.RenderPayload `json:"payload,omitempty"`
	Text      string                `json:"text,omitempty"`
	Buttons   []render.Button       `json:"buttons,omitempty"`
	Error     string                `json:"error,omitempty"`
}

func (s *Server) rendered(p models.RenderPayload) response {
	return response{
		Type:    "render",
		Payload: &p,
		Text:    s.renderer.Text(p),
		Buttons: s.renderer.Buttons(p),
	}
}

func welcome() response {
	return response{
		Type:    "welcome",
		Text:    render.Welcome(),
		Buttons: []render.Button{{Label: "🔍 Start", Data: models.CallbackQuery}},
	}
}

// statusFor maps controller errors onto HTTP statuses and user-facing text.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidAddress):
		return http.StatusBadRequest, render.InvalidAddressMessage()
	case errors.Is(err, models.ErrBadCallback):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrNoSession):
		return http.StatusNotFound, "no active query, send an address first"
	case errors.Is(err, models.ErrStale):
		return http.StatusConflict, "this view is outdated, a newer query replaced it"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

type addressRequest struct {
	User    string `json:"user"`
	Address string `json:"address"`
}

type callbackRequest struct {
	User string `json:"user"`
	Data string `json:"data"`
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == "" {
		s.writeJSON(w, r, http.StatusBadRequest, response{Error: "expected {\"user\", \"address\"}"})
		return
	}
	p, err := s.ctrl.Submit(r.Context(), req.User, req.Address)
	s.reply(w, r, p, err)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == "" {
		s.writeJSON(w, r, http.StatusBadRequest, response{Error: "expected {\"user\", \"data\"}"})
		return
	}
	if req.Data == models.CallbackQuery {
		s.writeJSON(w, r, http.StatusOK, welcome())
		return
	}
	p, err := s.ctrl.HandleCallback(r.Context(), req.User, req.Data)
	s.reply(w, r, p, err)
}

type sessionSummary struct {
	Address    string         `json:"address"`
	Candidates []string       `json:"candidates"`
	Current    string         `json:"current"`
	Pages      map[string]int `json:"pages"`
	Generation string         `json:"generation"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		s.writeJSON(w, r, http.StatusBadRequest, response{Error: "missing user"})
		return
	}
	st, err := s.ctrl.Session(r.Context(), user)
	if err != nil {
		code, msg := statusFor(err)
		s.writeJSON(w, r, code, response{Error: msg})
		return
	}
	sum := sessionSummary{
		Address:    st.Address(),
		Current:    st.CurrentChain().Label(),
		Pages:      make(map[string]int),
		Generation: st.Generation(),
		UpdatedAt:  st.UpdatedAt(),
	}
	for _, c := range st.Candidates() {
		sum.Candidates = append(sum.Candidates, c.Label())
		sum.Pages[c.Label()] = st.Page(c)
	}
	s.writeJSON(w, r, http.StatusOK, sum)
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, welcome())
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, p models.RenderPayload, err error) {
	if err != nil {
		code, msg := statusFor(err)
		if code == http.StatusInternalServerError {
			s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
		s.writeJSON(w, r, code, response{Type: "error", Error: msg})
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.rendered(p))
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	if resp, ok := v.(response); ok {
		resp.RequestID = id
		v = resp
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", id)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// wsRequest is what a websocket client sends: an address as Text or button
// data as Action.
type wsRequest struct {
	Text   string `json:"text,omitempty"`
	Action string `json:"action,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newClient(conn, user)
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	defer s.drop(c)

	go c.writePump()

	initial := welcome()
	initial.Type = "initial"
	c.send(initial)

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			break
		}
		s.handleWSRequest(r.Context(), c, req)
	}
}

// handleWSRequest replies to the requesting connection. The user's other
// connections get renders through the controller's events.
func (s *Server) handleWSRequest(ctx context.Context, c *client, req wsRequest) {
	ctx = navigator.WithOrigin(ctx, c.id)

	var p models.RenderPayload
	var err error
	switch {
	case strings.TrimSpace(req.Text) != "":
		p, err = s.ctrl.Submit(ctx, c.user, req.Text)
	case req.Action == models.CallbackQuery:
		s.deliver(c, welcome())
		return
	case req.Action != "":
		p, err = s.ctrl.HandleCallback(ctx, c.user, req.Action)
	default:
		err = errors.Wrap(models.ErrBadCallback, "empty message")
	}

	var reply response
	if err != nil {
		code, msg := statusFor(err)
		if code == http.StatusInternalServerError {
			s.logger.Error("websocket request failed", zap.String("user", c.user), zap.Error(err))
		}
		reply = response{Type: "error", Error: msg}
	} else {
		reply = s.rendered(p)
	}
	reply.RequestID = uuid.NewString()
	s.deliver(c, reply)
}

// listenToController subscribes before returning and forwards renders to the
// websocket clients of the rendered user in the background.
func (s *Server) listenToController() {
	sub := s.ctrl.Subscribe()
	go func() {
		defer s.ctrl.Unsubscribe(sub)
		for event := range sub {
			if event.Type != navigator.EventRendered || event.Payload == nil {
				continue
			}
			s.broadcast(event.User, event.Origin, s.rendered(*event.Payload))
		}
	}()
}

// broadcast queues msg for every connection of user except origin, which
// already got it as a reply. It never blocks on a connection.
func (s *Server) broadcast(user, origin string, msg response) {
	s.mu.Lock()
	targets := make([]*client, 0, 2)
	for c := range s.clients {
		if c.user == user && c.id != origin {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	for _, c := range targets {
		s.deliver(c, msg)
	}
}

// deliver drops a connection whose queue is full.
func (s *Server) deliver(c *client, msg response) {
	if !c.send(msg) {
		s.logger.Warn("dropping stalled websocket client", zap.String("user", c.user))
		s.drop(c)
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}
