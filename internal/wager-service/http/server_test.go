package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger-poc/internal/wager-service/dto"
	"github.com/radieske/wager-ledger-poc/internal/wager-service/repo"
	"github.com/radieske/wager-ledger-poc/pkg/contracts/events"
)

// fakeRepo implementa Repo com funções substituíveis por teste
type fakeRepo struct {
	listUsers  func(ctx context.Context) ([]repo.User, error)
	getUser    func(ctx context.Context, externalID string) (repo.User, error)
	createUser func(ctx context.Context, externalID, displayName string) (repo.User, error)
	createWag  func(ctx context.Context, stake int64) (repo.Wager, error)
	joinWager  func(ctx context.Context, externalID, displayName string, wagerID int64) (repo.User, error)
	leaveWager func(ctx context.Context, externalID string, wagerID int64) error
	settle     func(ctx context.Context, wagerID int64, winningIDs, losingIDs []string) (repo.SettlementResult, error)
}

func (f *fakeRepo) ListUsers(ctx context.Context) ([]repo.User, error) {
	return f.listUsers(ctx)
}
func (f *fakeRepo) GetUserByExternalID(ctx context.Context, externalID string) (repo.User, error) {
	return f.getUser(ctx, externalID)
}
func (f *fakeRepo) CreateUser(ctx context.Context, externalID, displayName string) (repo.User, error) {
	return f.createUser(ctx, externalID, displayName)
}
func (f *fakeRepo) CreateWager(ctx context.Context, stake int64) (repo.Wager, error) {
	return f.createWag(ctx, stake)
}
func (f *fakeRepo) JoinWager(ctx context.Context, externalID, displayName string, wagerID int64) (repo.User, error) {
	return f.joinWager(ctx, externalID, displayName, wagerID)
}
func (f *fakeRepo) LeaveWager(ctx context.Context, externalID string, wagerID int64) error {
	return f.leaveWager(ctx, externalID, wagerID)
}
func (f *fakeRepo) SettleWager(ctx context.Context, wagerID int64, winningIDs, losingIDs []string) (repo.SettlementResult, error) {
	return f.settle(ctx, wagerID, winningIDs, losingIDs)
}

// fakeCache sempre erra no hit e registra invalidações
type fakeCache struct {
	users       []dto.UserResponse // respondido no GetUsers quando não-nil
	invalidated []string
}

func (c *fakeCache) GetUsers(ctx context.Context, dst any) (bool, error) {
	if c.users == nil {
		return false, nil
	}
	b, _ := json.Marshal(c.users)
	return true, json.Unmarshal(b, dst)
}
func (c *fakeCache) SetUsers(ctx context.Context, v any, ttl time.Duration) error { return nil }
func (c *fakeCache) GetUser(ctx context.Context, externalID string, dst any) (bool, error) {
	return false, nil
}
func (c *fakeCache) SetUser(ctx context.Context, externalID string, v any, ttl time.Duration) error {
	return nil
}
func (c *fakeCache) InvalidateUsers(ctx context.Context, externalIDs ...string) error {
	c.invalidated = append(c.invalidated, externalIDs...)
	return nil
}

// fakePublisher registra os eventos publicados
type fakePublisher struct {
	created []events.WagerCreated
	settled []events.WagerSettled
}

func (p *fakePublisher) PublishWagerCreated(ctx context.Context, e events.WagerCreated) error {
	p.created = append(p.created, e)
	return nil
}
func (p *fakePublisher) PublishWagerSettled(ctx context.Context, e events.WagerSettled) error {
	p.settled = append(p.settled, e)
	return nil
}

func newTestServer(r Repo) (*Server, *fakeCache, *fakePublisher) {
	c := &fakeCache{}
	p := &fakePublisher{}
	return NewServer(zap.NewNop(), r, c, p), c, p
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{})
	rec := doJSON(t, s.Router(), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Hello, World!", rec.Body.String())
}

func TestListUsers(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{
		listUsers: func(ctx context.Context) ([]repo.User, error) {
			return []repo.User{
				{ID: 1, ExternalID: "u1", DisplayName: "Alice", Balance: 500},
			}, nil
		},
	})

	rec := doJSON(t, s.Router(), http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []dto.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, int64(500), got[0].Bucks)
}

func TestListUsersServedFromCache(t *testing.T) {
	s, c, _ := newTestServer(&fakeRepo{
		listUsers: func(ctx context.Context) ([]repo.User, error) {
			t.Fatal("repo should not be hit on cache hit")
			return nil, nil
		},
	})
	c.users = []dto.UserResponse{{ID: 2, ExternalID: "u2", DisplayName: "Bob", Bucks: 350}}

	rec := doJSON(t, s.Router(), http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []dto.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "u2", got[0].ExternalID)
}

func TestGetUserNotFound(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{
		getUser: func(ctx context.Context, externalID string) (repo.User, error) {
			return repo.User{}, repo.ErrUserNotFound
		},
	})

	rec := doJSON(t, s.Router(), http.MethodGet, "/user?externalId=ghost", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "user not found", got["error"])
}

func TestGetUserRequiresExternalID(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{})
	rec := doJSON(t, s.Router(), http.MethodGet, "/user", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUser(t *testing.T) {
	s, c, _ := newTestServer(&fakeRepo{
		createUser: func(ctx context.Context, externalID, displayName string) (repo.User, error) {
			return repo.User{ID: 1, ExternalID: externalID, DisplayName: displayName, Balance: 500}, nil
		},
	})

	rec := doJSON(t, s.Router(), http.MethodPost, "/user",
		dto.CreateUserRequest{ExternalID: "u1", DisplayName: "Alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user created", rec.Body.String())
	require.Contains(t, c.invalidated, "u1")
}

func TestCreateUserConflict(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{
		createUser: func(ctx context.Context, externalID, displayName string) (repo.User, error) {
			return repo.User{}, repo.ErrUserExists
		},
	})

	rec := doJSON(t, s.Router(), http.MethodPost, "/user",
		dto.CreateUserRequest{ExternalID: "u1", DisplayName: "Alice"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateUserPersistenceFailure(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{
		createUser: func(ctx context.Context, externalID, displayName string) (repo.User, error) {
			return repo.User{}, context.DeadlineExceeded
		},
	})

	rec := doJSON(t, s.Router(), http.MethodPost, "/user",
		dto.CreateUserRequest{ExternalID: "u1", DisplayName: "Alice"})
	require.Equal(t, http.StatusExpectationFailed, rec.Code)
}

func TestCreateWager(t *testing.T) {
	s, _, p := newTestServer(&fakeRepo{
		createWag: func(ctx context.Context, stake int64) (repo.Wager, error) {
			return repo.Wager{ID: 5, Stake: stake, Closed: false}, nil
		},
	})

	rec := doJSON(t, s.Router(), http.MethodPost, "/wager",
		dto.CreateWagerRequest{Stake: 100})
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.WagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, dto.WagerResponse{ID: 5, Stake: 100, Closed: false}, got)
	require.Len(t, p.created, 1)
	require.Equal(t, int64(5), p.created[0].WagerID)
}

func TestCreateWagerRejectsNonPositiveStake(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{})

	for _, stake := range []int64{0, -10} {
		rec := doJSON(t, s.Router(), http.MethodPost, "/wager",
			dto.CreateWagerRequest{Stake: stake})
		require.Equal(t, http.StatusBadRequest, rec.Code, "stake=%d", stake)
	}
}

func TestCloseWager(t *testing.T) {
	s, c, p := newTestServer(&fakeRepo{
		settle: func(ctx context.Context, wagerID int64, winningIDs, losingIDs []string) (repo.SettlementResult, error) {
			return repo.SettlementResult{
				Winners: []repo.User{{ID: 1, ExternalID: "w", DisplayName: "W", Balance: 550}},
				Losers:  []repo.User{{ID: 2, ExternalID: "l", DisplayName: "L", Balance: 450}},
				Wager:   repo.Wager{ID: wagerID, Stake: 50, Closed: true},
				Payout:  50,
			}, nil
		},
	})

	rec := doJSON(t, s.Router(), http.MethodPatch, "/wager", dto.CloseWagerRequest{
		WagerID:    1,
		WinningIDs: []string{"w"},
		LosingIDs:  []string{"l"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.CloseWagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Wager.Closed)
	require.Equal(t, int64(50), got.Payout)
	require.Equal(t, int64(550), got.Winners[0].Bucks)
	require.Equal(t, int64(450), got.Losers[0].Bucks)

	require.Len(t, p.settled, 1)
	require.Equal(t, int64(50), p.settled[0].Payout)
	require.ElementsMatch(t, []string{"w", "l"}, c.invalidated)
}

func TestCloseWagerAlreadyClosed(t *testing.T) {
	s, _, p := newTestServer(&fakeRepo{
		settle: func(ctx context.Context, wagerID int64, winningIDs, losingIDs []string) (repo.SettlementResult, error) {
			return repo.SettlementResult{}, repo.ErrWagerClosed
		},
	})

	rec := doJSON(t, s.Router(), http.MethodPatch, "/wager",
		dto.CloseWagerRequest{WagerID: 1})
	require.Equal(t, http.StatusExpectationFailed, rec.Code)
	require.Empty(t, p.settled)
}

func TestCloseWagerNotFound(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{
		settle: func(ctx context.Context, wagerID int64, winningIDs, losingIDs []string) (repo.SettlementResult, error) {
			return repo.SettlementResult{}, repo.ErrWagerNotFound
		},
	})

	rec := doJSON(t, s.Router(), http.MethodPatch, "/wager",
		dto.CloseWagerRequest{WagerID: 9})
	require.Equal(t, http.StatusExpectationFailed, rec.Code)
}

func TestJoinWager(t *testing.T) {
	s, c, _ := newTestServer(&fakeRepo{
		joinWager: func(ctx context.Context, externalID, displayName string, wagerID int64) (repo.User, error) {
			return repo.User{ID: 1, ExternalID: externalID, Balance: 500}, nil
		},
	})

	body := dto.JoinWagerRequest{ExternalID: "u1", DisplayName: "Alice", WagerID: 1}
	rec := doJSON(t, s.Router(), http.MethodPost, "/user/wager", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.JoinWagerRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, body, got)
	require.Contains(t, c.invalidated, "u1")
}

func TestJoinWagerInsufficientBalance(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{
		joinWager: func(ctx context.Context, externalID, displayName string, wagerID int64) (repo.User, error) {
			return repo.User{}, repo.ErrInsufficientFunds
		},
	})

	rec := doJSON(t, s.Router(), http.MethodPost, "/user/wager",
		dto.JoinWagerRequest{ExternalID: "u1", WagerID: 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaveWagerNotParticipant(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{
		leaveWager: func(ctx context.Context, externalID string, wagerID int64) error {
			return repo.ErrNotParticipant
		},
	})

	rec := doJSON(t, s.Router(), http.MethodDelete, "/user/wager",
		dto.LeaveWagerRequest{ExternalID: "u1", WagerID: 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaveWager(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{
		leaveWager: func(ctx context.Context, externalID string, wagerID int64) error {
			return nil
		},
	})

	body := dto.LeaveWagerRequest{ExternalID: "u1", WagerID: 1}
	rec := doJSON(t, s.Router(), http.MethodDelete, "/user/wager", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.LeaveWagerRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, body, got)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(&fakeRepo{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/users"},
		{http.MethodPut, "/user"},
		{http.MethodGet, "/wager"},
		{http.MethodGet, "/user/wager"},
	} {
		rec := doJSON(t, s.Router(), tc.method, tc.path, nil)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.path)
	}
}
