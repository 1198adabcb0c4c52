package sandbox

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/pkg/password"
)

// OpError is a store failure with the HTTP status and error code the
// REST layer should emit.
type OpError struct {
	Status  int
	Code    string
	Message string
}

func (e *OpError) Error() string { return e.Code + ": " + e.Message }

func errNotFound(msg string) *OpError {
	return &OpError{Status: http.StatusNotFound, Code: api.CodeUserNotFound, Message: msg}
}

func errInvalidAmount(msg string) *OpError {
	return &OpError{Status: http.StatusBadRequest, Code: api.CodeInvalidAmount, Message: msg}
}

func errInsufficient() *OpError {
	return &OpError{Status: http.StatusBadRequest, Code: api.CodeInsufficientBalance, Message: "balance too low"}
}

func errNotAuthorized(msg string) *OpError {
	return &OpError{Status: http.StatusForbidden, Code: api.CodeNotAuthorized, Message: msg}
}

// User is one sandbox account.
type User struct {
	ID           string
	Username     string
	Role         string
	PasswordHash string
	CreatedBy    string
}

// roleRank orders the hierarchy for provisioning checks.
var roleRank = map[string]int{
	"player":     0,
	"agent":      1,
	"admin":      2,
	"superadmin": 3,
}

type ledgerEntry struct {
	owner string // user id this entry belongs to
	tx    api.Transaction
}

// Store is the sandbox's whole state: users, balances, a per-user
// ledger, withdrawals and presence sessions. Everything lives in
// memory behind one mutex; restarts reset the world.
type Store struct {
	mu          sync.Mutex
	byUsername  map[string]*User
	byID        map[string]*User
	balances    map[string]float64
	ledger      []ledgerEntry // newest first
	withdrawals map[string]*api.Withdrawal
	sessions    map[string]*api.ActiveSession
}

// Seed accounts. Sandbox only, the plaintext is part of the contract.
var seedUsers = []struct {
	username, pass, role string
	balance              float64
}{
	{"admin", "admin123", "admin", 10000},
	{"alice", "alice123", "player", 1000},
	{"bob", "bob123", "player", 500},
}

func NewStore() (*Store, error) {
	s := &Store{
		byUsername:  make(map[string]*User),
		byID:        make(map[string]*User),
		balances:    make(map[string]float64),
		withdrawals: make(map[string]*api.Withdrawal),
		sessions:    make(map[string]*api.ActiveSession),
	}
	for _, seed := range seedUsers {
		hash, err := password.Hash(seed.pass)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", seed.username, err)
		}
		u := &User{
			ID:           uuid.NewString(),
			Username:     seed.username,
			Role:         seed.role,
			PasswordHash: hash,
		}
		s.byUsername[u.Username] = u
		s.byID[u.ID] = u
		s.balances[u.ID] = seed.balance
	}
	return s, nil
}

// Authenticate resolves credentials to a user.
func (s *Store) Authenticate(username, pass string) (User, bool) {
	s.mu.Lock()
	u, ok := s.byUsername[username]
	s.mu.Unlock()
	if !ok || !password.Verify(pass, u.PasswordHash) {
		return User{}, false
	}
	return *u, true
}

// Balance returns the user's snapshot.
func (s *Store) Balance(userID string) (api.BalanceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return api.BalanceSnapshot{}, errNotFound("unknown user")
	}
	return api.BalanceSnapshot{Balance: s.balances[userID], Username: u.Username}, nil
}

func (s *Store) appendEntryLocked(owner, senderID, receiverID string, amount float64, txType string) api.Transaction {
	tx := api.Transaction{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Type:       txType,
		CreatedAt:  time.Now().UTC(),
	}
	s.ledger = append([]ledgerEntry{{owner: owner, tx: tx}}, s.ledger...)
	return tx
}

// TransferOutcome carries everything the REST and WS layers need to
// report a completed transfer.
type TransferOutcome struct {
	Sender, Receiver               User
	SenderBalance, ReceiverBalance float64
	SenderEntry, ReceiverEntry     api.Transaction
}

// Transfer moves amount between users and writes a ledger entry on
// each side.
func (s *Store) Transfer(senderID, receiverUsername string, amount float64) (TransferOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount <= 0 {
		return TransferOutcome{}, errInvalidAmount("transfer amount must be positive")
	}
	sender, ok := s.byID[senderID]
	if !ok {
		return TransferOutcome{}, errNotFound("unknown sender")
	}
	receiver, ok := s.byUsername[receiverUsername]
	if !ok {
		return TransferOutcome{}, errNotFound("unknown receiver")
	}
	if s.balances[sender.ID] < amount {
		return TransferOutcome{}, errInsufficient()
	}

	s.balances[sender.ID] -= amount
	s.balances[receiver.ID] += amount
	out := TransferOutcome{
		Sender:          *sender,
		Receiver:        *receiver,
		SenderBalance:   s.balances[sender.ID],
		ReceiverBalance: s.balances[receiver.ID],
		SenderEntry:     s.appendEntryLocked(sender.ID, sender.ID, receiver.ID, amount, "transfer_out"),
		ReceiverEntry:   s.appendEntryLocked(receiver.ID, sender.ID, receiver.ID, amount, "transfer_in"),
	}
	return out, nil
}

// Adjust credits or debits the target's wallet.
func (s *Store) Adjust(actorID, targetUsername string, amount float64, credit bool) (User, float64, api.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount <= 0 {
		return User{}, 0, api.Transaction{}, errInvalidAmount("adjust amount must be positive")
	}
	target, ok := s.byUsername[targetUsername]
	if !ok {
		return User{}, 0, api.Transaction{}, errNotFound("unknown user")
	}

	txType := "credit"
	if credit {
		s.balances[target.ID] += amount
	} else {
		if s.balances[target.ID] < amount {
			return User{}, 0, api.Transaction{}, errInsufficient()
		}
		s.balances[target.ID] -= amount
		txType = "debit"
	}

	var tx api.Transaction
	if credit {
		tx = s.appendEntryLocked(target.ID, actorID, target.ID, amount, txType)
	} else {
		tx = s.appendEntryLocked(target.ID, target.ID, actorID, amount, txType)
	}
	return *target, s.balances[target.ID], tx, nil
}

// PlaceBet debits the stake and records the ledger entry.
func (s *Store) PlaceBet(userID string, stake float64) (float64, api.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stake < 1 {
		return 0, api.Transaction{}, errInvalidAmount("stake must be at least 1")
	}
	u, ok := s.byID[userID]
	if !ok {
		return 0, api.Transaction{}, errNotFound("unknown user")
	}
	if s.balances[u.ID] < stake {
		return 0, api.Transaction{}, errInsufficient()
	}

	s.balances[u.ID] -= stake
	tx := s.appendEntryLocked(u.ID, u.ID, "house", stake, "debit")
	return s.balances[u.ID], tx, nil
}

// Transactions returns one ledger page for the user, newest first.
func (s *Store) Transactions(userID string, page, pageSize int) (api.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []api.Transaction
	for _, entry := range s.ledger {
		if entry.owner == userID {
			mine = append(mine, entry.tx)
		}
	}

	start := (page - 1) * pageSize
	if start > len(mine) {
		start = len(mine)
	}
	end := start + pageSize
	if end > len(mine) {
		end = len(mine)
	}
	return api.TransactionPage{Transactions: mine[start:end], TotalCount: len(mine)}, nil
}

// CreateWithdrawal records a pending request asking target to pay the
// requester. Funds are checked at decision time, not here.
func (s *Store) CreateWithdrawal(requesterID, targetUsername string, amount float64) (api.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount <= 0 {
		return api.Withdrawal{}, errInvalidAmount("withdrawal amount must be positive")
	}
	if _, ok := s.byID[requesterID]; !ok {
		return api.Withdrawal{}, errNotFound("unknown requester")
	}
	target, ok := s.byUsername[targetUsername]
	if !ok {
		return api.Withdrawal{}, errNotFound("unknown target user")
	}

	w := &api.Withdrawal{
		ID:           uuid.NewString(),
		RequesterID:  requesterID,
		TargetUserID: target.ID,
		Amount:       amount,
		Status:       api.WithdrawalPending,
		CreatedAt:    time.Now().UTC(),
	}
	s.withdrawals[w.ID] = w
	return *w, nil
}

// WithdrawalOutcome reports a decided request plus the balance moves
// an approval caused.
type WithdrawalOutcome struct {
	Withdrawal                      api.Withdrawal
	Requester, Target               User
	RequesterBalance, TargetBalance float64
	RequesterEntry, TargetEntry     api.Transaction
	Moved                           bool
}

// DecideWithdrawal approves or rejects a pending request. Only the
// target user or an admin may decide; decided requests conflict.
func (s *Store) DecideWithdrawal(deciderID, withdrawalID string, approve bool) (WithdrawalOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[withdrawalID]
	if !ok {
		return WithdrawalOutcome{}, &OpError{Status: http.StatusNotFound, Code: "withdrawal_not_found", Message: "unknown withdrawal"}
	}
	decider, ok := s.byID[deciderID]
	if !ok {
		return WithdrawalOutcome{}, errNotFound("unknown decider")
	}
	if decider.ID != w.TargetUserID && roleRank[decider.Role] < roleRank["admin"] {
		return WithdrawalOutcome{}, errNotAuthorized("not the target of this withdrawal")
	}
	if w.Status != api.WithdrawalPending {
		return WithdrawalOutcome{}, &OpError{Status: http.StatusConflict, Code: api.CodeAlreadyProcessed, Message: "withdrawal already decided"}
	}

	requester := s.byID[w.RequesterID]
	target := s.byID[w.TargetUserID]
	if requester == nil || target == nil {
		return WithdrawalOutcome{}, errNotFound("party no longer exists")
	}

	out := WithdrawalOutcome{Requester: *requester, Target: *target}
	if approve {
		if s.balances[target.ID] < w.Amount {
			return WithdrawalOutcome{}, errInsufficient()
		}
		s.balances[target.ID] -= w.Amount
		s.balances[requester.ID] += w.Amount
		out.TargetEntry = s.appendEntryLocked(target.ID, target.ID, requester.ID, w.Amount, "transfer_out")
		out.RequesterEntry = s.appendEntryLocked(requester.ID, target.ID, requester.ID, w.Amount, "transfer_in")
		out.Moved = true
		w.Status = api.WithdrawalApproved
	} else {
		w.Status = api.WithdrawalRejected
	}
	now := time.Now().UTC()
	w.ApprovedBy = &decider.ID
	w.ApprovedAt = &now

	out.Withdrawal = *w
	out.RequesterBalance = s.balances[requester.ID]
	out.TargetBalance = s.balances[target.ID]
	return out, nil
}

// PendingWithdrawals lists requests awaiting the user's decision.
func (s *Store) PendingWithdrawals(userID string) []api.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []api.Withdrawal
	for _, w := range s.withdrawals {
		if w.TargetUserID == userID && w.Status == api.WithdrawalPending {
			out = append(out, *w)
		}
	}
	return out
}

// SentWithdrawals lists requests the user created.
func (s *Store) SentWithdrawals(userID string) []api.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []api.Withdrawal
	for _, w := range s.withdrawals {
		if w.RequesterID == userID {
			out = append(out, *w)
		}
	}
	return out
}

// CreateUser provisions an account one rank below or lower, with a
// generated username and password.
func (s *Store) CreateUser(creatorID, targetRole string) (api.CreatedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creator, ok := s.byID[creatorID]
	if !ok {
		return api.CreatedUser{}, errNotFound("unknown creator")
	}
	rank, ok := roleRank[targetRole]
	if !ok {
		return api.CreatedUser{}, &OpError{Status: http.StatusBadRequest, Code: "invalid_role", Message: "unknown role"}
	}
	if roleRank[creator.Role] <= rank {
		return api.CreatedUser{}, errNotAuthorized("cannot create a user at or above your rank")
	}

	plain, err := password.Generate(12)
	if err != nil {
		return api.CreatedUser{}, &OpError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "password generation failed"}
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return api.CreatedUser{}, &OpError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "password hash failed"}
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     targetRole + "_" + uuid.NewString()[:8],
		Role:         targetRole,
		PasswordHash: hash,
		CreatedBy:    creator.ID,
	}
	s.byUsername[u.Username] = u
	s.byID[u.ID] = u
	s.balances[u.ID] = 0

	return api.CreatedUser{ID: u.ID, Username: u.Username, Password: plain, Role: u.Role}, nil
}

// ChangePassword resets a managed user's password.
func (s *Store) ChangePassword(actorID, userID, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor, ok := s.byID[actorID]
	if !ok {
		return errNotFound("unknown actor")
	}
	target, ok := s.byID[userID]
	if !ok {
		return errNotFound("unknown user")
	}
	if roleRank[actor.Role] <= roleRank[target.Role] && actor.ID != target.ID {
		return errNotAuthorized("cannot manage a user at or above your rank")
	}
	if len(newPassword) < 6 {
		return &OpError{Status: http.StatusBadRequest, Code: "weak_password", Message: "password too short"}
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return &OpError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "password hash failed"}
	}
	target.PasswordHash = hash
	return nil
}

// DeleteUser removes a managed account.
func (s *Store) DeleteUser(actorID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor, ok := s.byID[actorID]
	if !ok {
		return errNotFound("unknown actor")
	}
	target, ok := s.byID[userID]
	if !ok {
		return errNotFound("unknown user")
	}
	if roleRank[actor.Role] <= roleRank[target.Role] {
		return errNotAuthorized("cannot manage a user at or above your rank")
	}

	delete(s.byUsername, target.Username)
	delete(s.byID, target.ID)
	delete(s.balances, target.ID)
	return nil
}

// Heartbeat upserts a presence session.
func (s *Store) Heartbeat(username string, req api.HeartbeatRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[req.SessionID] = &api.ActiveSession{
		SessionID: req.SessionID,
		DeviceID:  req.DeviceID,
		Username:  username,
		IPData:    req.IPData,
		GPSData:   req.GPSData,
		LastSeen:  time.Now().UTC(),
	}
}

// EndSession drops a presence session.
func (s *Store) EndSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// ActiveSessions lists live presence records.
func (s *Store) ActiveSessions() []api.ActiveSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]api.ActiveSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	return out
}
