package sandbox

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/gateway"
	"github.com/luckbet/luckbet-go/internal/middleware"
	"github.com/luckbet/luckbet-go/internal/pkg/jwt"
	"github.com/luckbet/luckbet-go/internal/pkg/logger"
	"github.com/luckbet/luckbet-go/internal/pkg/response"
	"github.com/luckbet/luckbet-go/internal/pkg/validator"
)

const authReadTimeout = 10 * time.Second

// Server is the in-memory stand-in for the production backend. It
// speaks the same REST and WS contract so the client stack can run
// end-to-end with no external services.
type Server struct {
	store    *Store
	hub      *Hub
	jwt      *jwt.Service
	upgrader websocket.Upgrader
}

func NewServer(jwtSecret string) (*Server, error) {
	store, err := NewStore()
	if err != nil {
		return nil, err
	}
	return &Server{
		store: store,
		hub:   NewHub(),
		jwt:   jwt.NewService(jwtSecret, 12*time.Hour),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Router builds the full REST+WS surface.
func (s *Server) Router(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(allowedOrigins))

	r.Post("/auth/login", s.handleLogin)
	r.Get("/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(s.jwt))

		r.Get("/wallet/balance", s.handleBalance)
		r.Post("/wallet/transfer", s.handleTransfer)
		r.Post("/bets/place", s.handlePlaceBets)

		r.Post("/withdrawals", s.handleCreateWithdrawal)
		r.Post("/withdrawals/{id}/approve", s.handleDecideWithdrawal(true))
		r.Post("/withdrawals/{id}/reject", s.handleDecideWithdrawal(false))
		r.Get("/withdrawals/pending", s.handlePendingWithdrawals)
		r.Get("/withdrawals/sent", s.handleSentWithdrawals)

		r.Post("/presence/heartbeat", s.handleHeartbeat)
		r.Post("/presence/end", s.handleEndPresence)

		r.Get("/rbac/transactions", s.handleTransactions)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("agent", "admin", "superadmin"))
			r.Post("/wallet/credit", s.handleAdjust(true))
			r.Post("/wallet/debit", s.handleAdjust(false))
			r.Post("/rbac/users", s.handleCreateUser)
			r.Patch("/rbac/users/{id}/password", s.handleChangePassword)
			r.Delete("/rbac/users/{id}", s.handleDeleteUser)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", "superadmin"))
			r.Get("/presence/active", s.handleActiveSessions)
		})
	})

	return r
}

func writeOpError(w http.ResponseWriter, err error) {
	if op, ok := err.(*OpError); ok {
		response.Error(w, op.Status, op.Code, op.Message)
		return
	}
	response.InternalError(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "bad_request", "malformed body")
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.ValidationError(w, fields)
		return
	}

	user, ok := s.store.Authenticate(req.Username, req.Password)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "invalid_credentials", "wrong username or password")
		return
	}

	token, err := s.jwt.Generate(user.ID, user.Username, user.Role)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, api.LoginResult{Token: token, Username: user.Username, Role: user.Role})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Balance(middleware.GetUserID(r.Context()))
	if err != nil {
		writeOpError(w, err)
		return
	}
	response.OK(w, snap)
}

// Push frame shapes. The ledger entry rides nested under its own key
// so its type field never collides with the frame type.
type balanceFrame struct {
	Type    string  `json:"type"`
	Balance float64 `json:"balance"`
}

type transactionFrame struct {
	Type        string          `json:"type"`
	Transaction api.Transaction `json:"transaction"`
}

type withdrawalFrame struct {
	Type       string         `json:"type"`
	Withdrawal api.Withdrawal `json:"withdrawal"`
}

func (s *Server) pushBalance(username string, balance float64) {
	s.hub.SendToUser(username, balanceFrame{Type: gateway.TypeBalanceUpdate, Balance: balance})
}

func (s *Server) pushTransaction(username string, tx api.Transaction) {
	s.hub.SendToUser(username, transactionFrame{Type: gateway.TypeTransaction, Transaction: tx})
}

func (s *Server) pushWithdrawal(username, frameType string, wd api.Withdrawal) {
	s.hub.SendToUser(username, withdrawalFrame{Type: frameType, Withdrawal: wd})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiverUsername string  `json:"receiverUsername" validate:"required"`
		Amount           float64 `json:"amount" validate:"gt=0"`
	}
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "bad_request", "malformed body")
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.ValidationError(w, fields)
		return
	}

	out, err := s.store.Transfer(middleware.GetUserID(r.Context()), req.ReceiverUsername, req.Amount)
	if err != nil {
		writeOpError(w, err)
		return
	}

	s.pushBalance(out.Sender.Username, out.SenderBalance)
	s.pushTransaction(out.Sender.Username, out.SenderEntry)
	s.pushBalance(out.Receiver.Username, out.ReceiverBalance)
	s.pushTransaction(out.Receiver.Username, out.ReceiverEntry)

	response.OK(w, api.TransferResult{SenderNewBalance: &out.SenderBalance})
}

func (s *Server) handleAdjust(credit bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TargetUsername string  `json:"targetUsername" validate:"required"`
			Amount         float64 `json:"amount" validate:"gt=0"`
		}
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "bad_request", "malformed body")
			return
		}
		if fields := validator.Validate(req); fields != nil {
			response.ValidationError(w, fields)
			return
		}

		target, balance, tx, err := s.store.Adjust(middleware.GetUserID(r.Context()), req.TargetUsername, req.Amount, credit)
		if err != nil {
			writeOpError(w, err)
			return
		}

		s.pushBalance(target.Username, balance)
		s.pushTransaction(target.Username, tx)
		response.OK(w, api.AdjustResult{NewBalance: &balance})
	}
}

func (s *Server) handlePlaceBets(w http.ResponseWriter, r *http.Request) {
	var req api.PlaceBetRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "bad_request", "malformed body")
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.ValidationError(w, fields)
		return
	}

	username := middleware.GetUsername(r.Context())
	balance, tx, err := s.store.PlaceBet(middleware.GetUserID(r.Context()), req.Stake)
	if err != nil {
		writeOpError(w, err)
		return
	}

	s.pushBalance(username, balance)
	s.pushTransaction(username, tx)
	logger.FromContext(r.Context()).Info().Str("username", username).Float64("stake", req.Stake).Int("legs", len(req.Bets)).Msg("bet accepted")
	response.OK(w, api.PlaceBetResult{NewBalance: &balance})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 20)
	res, err := s.store.Transactions(middleware.GetUserID(r.Context()), page, pageSize)
	if err != nil {
		writeOpError(w, err)
		return
	}
	if res.Transactions == nil {
		res.Transactions = []api.Transaction{}
	}
	response.OK(w, res)
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetUsername string  `json:"targetUsername" validate:"required"`
		Amount         float64 `json:"amount" validate:"gt=0"`
	}
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "bad_request", "malformed body")
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.ValidationError(w, fields)
		return
	}

	wd, err := s.store.CreateWithdrawal(middleware.GetUserID(r.Context()), req.TargetUsername, req.Amount)
	if err != nil {
		writeOpError(w, err)
		return
	}
	response.Created(w, wd)
}

func (s *Server) handleDecideWithdrawal(approve bool) http.HandlerFunc {
	frameType := gateway.TypeWithdrawalRejected
	if approve {
		frameType = gateway.TypeWithdrawalApproved
	}
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := s.store.DecideWithdrawal(middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), approve)
		if err != nil {
			writeOpError(w, err)
			return
		}

		s.pushWithdrawal(out.Requester.Username, frameType, out.Withdrawal)
		if out.Moved {
			s.pushBalance(out.Requester.Username, out.RequesterBalance)
			s.pushTransaction(out.Requester.Username, out.RequesterEntry)
			s.pushBalance(out.Target.Username, out.TargetBalance)
			s.pushTransaction(out.Target.Username, out.TargetEntry)
		}
		response.OK(w, out.Withdrawal)
	}
}

func (s *Server) handlePendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	out := s.store.PendingWithdrawals(middleware.GetUserID(r.Context()))
	if out == nil {
		out = []api.Withdrawal{}
	}
	response.OK(w, out)
}

func (s *Server) handleSentWithdrawals(w http.ResponseWriter, r *http.Request) {
	out := s.store.SentWithdrawals(middleware.GetUserID(r.Context()))
	if out == nil {
		out = []api.Withdrawal{}
	}
	response.OK(w, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetRole string `json:"targetRole" validate:"required,role"`
	}
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "bad_request", "malformed body")
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.ValidationError(w, fields)
		return
	}

	created, err := s.store.CreateUser(middleware.GetUserID(r.Context()), req.TargetRole)
	if err != nil {
		writeOpError(w, err)
		return
	}
	s.hub.Broadcast(struct {
		Type string `json:"type"`
	}{gateway.TypeUsersUpdate})
	response.Created(w, created)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"newPassword" validate:"required,min=6"`
	}
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "bad_request", "malformed body")
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.ValidationError(w, fields)
		return
	}

	if err := s.store.ChangePassword(middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.NewPassword); err != nil {
		writeOpError(w, err)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteUser(middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeOpError(w, err)
		return
	}
	s.hub.Broadcast(struct {
		Type string `json:"type"`
	}{gateway.TypeUsersUpdate})
	response.NoContent(w)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req api.HeartbeatRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "bad_request", "malformed body")
		return
	}
	if req.SessionID == "" || req.DeviceID == "" {
		response.BadRequest(w, "bad_request", "sessionId and deviceId are required")
		return
	}

	s.store.Heartbeat(middleware.GetUsername(r.Context()), req)
	response.NoContent(w)
}

func (s *Server) handleEndPresence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Reason    string `json:"reason"`
	}
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "bad_request", "malformed body")
		return
	}

	s.store.EndSession(req.SessionID)
	logger.FromContext(r.Context()).Debug().Str("session_id", req.SessionID).Str("reason", req.Reason).Msg("presence session ended")
	response.NoContent(w)
}

func (s *Server) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	out := s.store.ActiveSessions()
	if out == nil {
		out = []api.ActiveSession{}
	}
	response.OK(w, out)
}

// handleWS upgrades the connection and waits for the auth frame before
// registering the client with the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authReadTimeout))
	var auth gateway.AuthFrame
	if err := conn.ReadJSON(&auth); err != nil || auth.Type != "auth" {
		_ = conn.Close()
		return
	}
	claims, err := s.jwt.Validate(auth.Token)
	if err != nil {
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := newConnection(claims.Username, conn)
	s.hub.Register(c)
	defer s.hub.Unregister(c)

	// Inbound frames beyond auth are ignored; the read loop only
	// detects the close.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
