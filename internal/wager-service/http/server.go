package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-ledger-poc/internal/wager-service/dto"
	"github.com/radieske/wager-ledger-poc/internal/wager-service/metrics"
	"github.com/radieske/wager-ledger-poc/internal/wager-service/repo"
	"github.com/radieske/wager-ledger-poc/pkg/contracts/events"
)

// Repo define a interface do gateway de persistência usada pelo handler HTTP
type Repo interface {
	ListUsers(ctx context.Context) ([]repo.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (repo.User, error)
	CreateUser(ctx context.Context, externalID, displayName string) (repo.User, error)
	CreateWager(ctx context.Context, stake int64) (repo.Wager, error)
	JoinWager(ctx context.Context, externalID, displayName string, wagerID int64) (repo.User, error)
	LeaveWager(ctx context.Context, externalID string, wagerID int64) error
	SettleWager(ctx context.Context, wagerID int64, winningIDs, losingIDs []string) (repo.SettlementResult, error)
}

// UserCache define o cache de leitura de usuários (Redis em produção)
type UserCache interface {
	GetUsers(ctx context.Context, dst any) (bool, error)
	SetUsers(ctx context.Context, v any, ttl time.Duration) error
	GetUser(ctx context.Context, externalID string, dst any) (bool, error)
	SetUser(ctx context.Context, externalID string, v any, ttl time.Duration) error
	InvalidateUsers(ctx context.Context, externalIDs ...string) error
}

// Publisher publica eventos de apostas (Kafka em produção)
type Publisher interface {
	PublishWagerCreated(ctx context.Context, e events.WagerCreated) error
	PublishWagerSettled(ctx context.Context, e events.WagerSettled) error
}

const userCacheTTL = 30 * time.Second

// Server expõe os endpoints HTTP do ledger de apostas
type Server struct {
	log   *zap.Logger
	repo  Repo
	cache UserCache
	publ  Publisher
}

// NewServer instancia o servidor HTTP do wager-service
func NewServer(log *zap.Logger, r Repo, c UserCache, p Publisher) *Server {
	return &Server{log: log, repo: r, cache: c, publ: p}
}

// Router retorna o mux HTTP com as rotas da API
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.root)
	mux.HandleFunc("/users", s.listUsers)     // GET
	mux.HandleFunc("/user", s.user)           // GET ?externalId= | POST
	mux.HandleFunc("/user/wager", s.userWager) // POST | DELETE
	mux.HandleFunc("/wager", s.wager)         // POST | PATCH
	return mux
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte("Hello, World!"))
}

// listUsers retorna todos os usuários, com cache read-through no Redis
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cached []dto.UserResponse
	if ok, _ := s.cache.GetUsers(r.Context(), &cached); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		s.log.Error("list users", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	out := toUserResponses(users)
	_ = s.cache.SetUsers(r.Context(), out, userCacheTTL)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getUser(w, r)
	case http.MethodPost:
		s.createUser(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// getUser busca um usuário pelo identificador externo.
// Ausência vira 404 com envelope de erro, nunca um registro vazio.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("externalId")
	if externalID == "" {
		http.Error(w, "externalId required", http.StatusBadRequest)
		return
	}

	var cached dto.UserResponse
	if ok, _ := s.cache.GetUser(r.Context(), externalID, &cached); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	u, err := s.repo.GetUserByExternalID(r.Context(), externalID)
	if errors.Is(err, repo.ErrUserNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}
	if err != nil {
		s.log.Error("get user", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	out := toUserResponse(u)
	_ = s.cache.SetUser(r.Context(), externalID, out, userCacheTTL)
	writeJSON(w, http.StatusOK, out)
}

// createUser cadastra um usuário novo com o saldo inicial de 500 bucks
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.ExternalID == "" || req.DisplayName == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	_, err := s.repo.CreateUser(r.Context(), req.ExternalID, req.DisplayName)
	if errors.Is(err, repo.ErrUserExists) {
		http.Error(w, "user already exists", http.StatusConflict)
		return
	}
	if err != nil {
		s.log.Error("create user", zap.Error(err))
		http.Error(w, "failed to create user: "+err.Error(), http.StatusExpectationFailed)
		return
	}

	metrics.RecordUserCreated()
	_ = s.cache.InvalidateUsers(r.Context(), req.ExternalID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("user created"))
}

func (s *Server) wager(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createWager(w, r)
	case http.MethodPatch:
		s.closeWager(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// createWager abre uma aposta nova; stake não positivo é rejeitado
func (s *Server) createWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Stake <= 0 {
		http.Error(w, "stake must be positive", http.StatusBadRequest)
		return
	}

	wg, err := s.repo.CreateWager(r.Context(), req.Stake)
	if err != nil {
		s.log.Error("create wager", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	metrics.RecordWagerCreated()
	_ = s.publ.PublishWagerCreated(r.Context(), events.WagerCreated{
		WagerID: wg.ID,
		Stake:   wg.Stake,
	})

	writeJSON(w, http.StatusOK, dto.WagerResponse{ID: wg.ID, Stake: wg.Stake, Closed: wg.Closed})
}

// closeWager liquida a aposta: valida estado, particiona vencedores e
// perdedores, aplica o payout e marca como fechada, tudo em uma transação
func (s *Server) closeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CloseWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.WagerID <= 0 {
		http.Error(w, "wagerId required", http.StatusBadRequest)
		return
	}

	res, err := s.repo.SettleWager(r.Context(), req.WagerID, req.WinningIDs, req.LosingIDs)
	if errors.Is(err, repo.ErrWagerNotFound) || errors.Is(err, repo.ErrWagerClosed) {
		metrics.RecordSettlement("rejected", 0, 0)
		writeJSON(w, http.StatusExpectationFailed, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		metrics.RecordSettlement("error", 0, 0)
		s.log.Error("settle wager", zap.Error(err), zap.Int64("wagerId", req.WagerID))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	metrics.RecordSettlement("ok", res.Payout, len(res.Winners))

	touched := make([]string, 0, len(res.Winners)+len(res.Losers))
	for _, u := range res.Winners {
		touched = append(touched, u.ExternalID)
	}
	for _, u := range res.Losers {
		touched = append(touched, u.ExternalID)
	}
	_ = s.cache.InvalidateUsers(r.Context(), touched...)

	_ = s.publ.PublishWagerSettled(r.Context(), events.WagerSettled{
		WagerID:   res.Wager.ID,
		Stake:     res.Wager.Stake,
		Payout:    res.Payout,
		WinnerIDs: req.WinningIDs,
		LoserIDs:  req.LosingIDs,
	})

	writeJSON(w, http.StatusOK, dto.CloseWagerResponse{
		Winners: toUserResponses(res.Winners),
		Losers:  toUserResponses(res.Losers),
		Wager:   dto.WagerResponse{ID: res.Wager.ID, Stake: res.Wager.Stake, Closed: res.Wager.Closed},
		Payout:  res.Payout,
	})
}

func (s *Server) userWager(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.joinWager(w, r)
	case http.MethodDelete:
		s.leaveWager(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// joinWager inscreve o usuário na aposta (criando-o se for a primeira vez).
// O saldo é apenas verificado contra o stake, nunca debitado aqui.
func (s *Server) joinWager(w http.ResponseWriter, r *http.Request) {
	var req dto.JoinWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.ExternalID == "" || req.WagerID <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	_, err := s.repo.JoinWager(r.Context(), req.ExternalID, req.DisplayName, req.WagerID)
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		http.Error(w, "insufficient balance", http.StatusBadRequest)
		return
	case errors.Is(err, repo.ErrWagerNotFound), errors.Is(err, repo.ErrWagerClosed):
		writeJSON(w, http.StatusExpectationFailed, map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.log.Error("join wager", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// O join pode ter criado o usuário; derruba o cache de leitura
	_ = s.cache.InvalidateUsers(r.Context(), req.ExternalID)
	writeJSON(w, http.StatusOK, req)
}

// leaveWager remove a participação do usuário na aposta
func (s *Server) leaveWager(w http.ResponseWriter, r *http.Request) {
	var req dto.LeaveWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.ExternalID == "" || req.WagerID <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	err := s.repo.LeaveWager(r.Context(), req.ExternalID, req.WagerID)
	if errors.Is(err, repo.ErrNotParticipant) {
		http.Error(w, "not a participant", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error("leave wager", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// writeJSON serializa e envia resposta JSON com o status informado
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toUserResponse(u repo.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.ID,
		ExternalID:  u.ExternalID,
		DisplayName: u.DisplayName,
		Bucks:       u.Balance,
	}
}

func toUserResponses(users []repo.User) []dto.UserResponse {
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}
