package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radieske/wager-ledger-poc/internal/wager-service/settlement"
)

// StartingBalance é o saldo inicial de todo usuário, em bucks.
// Regra de domínio, não configuração.
const StartingBalance = 500

// Postgres implementa o gateway de persistência do ledger de apostas
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do gateway
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrUserExists        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrWagerNotFound     = errors.New("wager not found")
	ErrWagerClosed       = errors.New("wager already closed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotParticipant    = errors.New("not a participant")
)

// ListUsers retorna todos os usuários do ledger
func (p *Postgres) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, external_id, display_name, balance FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.Balance); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUserByExternalID busca um usuário pelo identificador externo
func (p *Postgres) GetUserByExternalID(ctx context.Context, externalID string) (User, error) {
	var u User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, external_id, display_name, balance FROM users WHERE external_id=$1`,
		externalID).Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.Balance)
	if err == sql.ErrNoRows {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateUser insere um usuário novo com o saldo inicial.
// Retorna ErrUserExists se o external_id já estiver cadastrado, sem mutação.
func (p *Postgres) CreateUser(ctx context.Context, externalID, displayName string) (User, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE external_id=$1`, externalID).Scan(&existing)
	if err == nil {
		return User{}, ErrUserExists
	}
	if err != sql.ErrNoRows {
		return User{}, err
	}

	u := User{ExternalID: externalID, DisplayName: displayName, Balance: StartingBalance}
	if err = tx.QueryRowContext(ctx,
		`INSERT INTO users(external_id, display_name, balance) VALUES($1,$2,$3) RETURNING id`,
		externalID, displayName, StartingBalance).Scan(&u.ID); err != nil {
		return User{}, err
	}

	if err = tx.Commit(); err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateWager insere uma aposta aberta com o stake informado
func (p *Postgres) CreateWager(ctx context.Context, stake int64) (Wager, error) {
	w := Wager{Stake: stake}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO wagers(stake, closed) VALUES($1, FALSE) RETURNING id`, stake).Scan(&w.ID)
	if err != nil {
		return Wager{}, err
	}
	return w, nil
}

// JoinWager resolve (ou cria) o usuário e o inscreve na aposta.
// Idempotente: se a participação já existe, retorna sucesso sem efeito.
// Exige aposta aberta e saldo >= stake; o saldo é apenas verificado,
// nunca debitado na entrada.
func (p *Postgres) JoinWager(ctx context.Context, externalID, displayName string, wagerID int64) (User, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback()

	var stake int64
	var closed bool
	err = tx.QueryRowContext(ctx, `SELECT stake, closed FROM wagers WHERE id=$1`, wagerID).Scan(&stake, &closed)
	if err == sql.ErrNoRows {
		return User{}, ErrWagerNotFound
	}
	if err != nil {
		return User{}, err
	}
	if closed {
		return User{}, ErrWagerClosed
	}

	// Resolve ou cria o usuário com saldo inicial
	var u User
	err = tx.QueryRowContext(ctx,
		`SELECT id, external_id, display_name, balance FROM users WHERE external_id=$1`,
		externalID).Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.Balance)
	if err == sql.ErrNoRows {
		u = User{ExternalID: externalID, DisplayName: displayName, Balance: StartingBalance}
		if err = tx.QueryRowContext(ctx,
			`INSERT INTO users(external_id, display_name, balance) VALUES($1,$2,$3) RETURNING id`,
			externalID, displayName, StartingBalance).Scan(&u.ID); err != nil {
			return User{}, err
		}
	} else if err != nil {
		return User{}, err
	}

	// Idempotência: participação já existente é sucesso sem efeito
	var pid int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM user_wagers WHERE wager_id=$1 AND user_id=$2`, wagerID, u.ID).Scan(&pid)
	if err == nil {
		if err = tx.Commit(); err != nil {
			return User{}, err
		}
		return u, nil
	}
	if err != sql.ErrNoRows {
		return User{}, err
	}

	if u.Balance < stake {
		return User{}, ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO user_wagers(wager_id, user_id) VALUES($1,$2)`, wagerID, u.ID); err != nil {
		return User{}, err
	}

	if err = tx.Commit(); err != nil {
		return User{}, err
	}
	return u, nil
}

// LeaveWager remove a participação do usuário na aposta.
// Retorna ErrNotParticipant se não houver participação (inclusive
// quando o próprio usuário é desconhecido).
func (p *Postgres) LeaveWager(ctx context.Context, externalID string, wagerID int64) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM user_wagers
		 WHERE wager_id=$1 AND user_id=(SELECT id FROM users WHERE external_id=$2)`,
		wagerID, externalID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotParticipant
	}
	return nil
}

// SettleWager fecha a aposta e redistribui os bucks em uma única transação.
// O FOR UPDATE na linha da aposta serializa fechamentos concorrentes do
// mesmo id: o segundo enxerga closed=true e falha com ErrWagerClosed.
func (p *Postgres) SettleWager(ctx context.Context, wagerID int64, winningIDs, losingIDs []string) (SettlementResult, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return SettlementResult{}, err
	}
	defer tx.Rollback()

	w := Wager{ID: wagerID}
	err = tx.QueryRowContext(ctx,
		`SELECT stake, closed FROM wagers WHERE id=$1 FOR UPDATE`, wagerID).Scan(&w.Stake, &w.Closed)
	if err == sql.ErrNoRows {
		return SettlementResult{}, ErrWagerNotFound
	}
	if err != nil {
		return SettlementResult{}, err
	}
	if w.Closed {
		return SettlementResult{}, ErrWagerClosed
	}

	// Participantes resolvidos para seus usuários em uma única consulta;
	// ids carregados em largura total (int64), nunca estreitados
	rows, err := tx.QueryContext(ctx, `
		SELECT u.id, u.external_id, u.display_name, u.balance
		FROM user_wagers uw
		JOIN users u ON u.id = uw.user_id
		WHERE uw.wager_id=$1`, wagerID)
	if err != nil {
		return SettlementResult{}, err
	}
	var participants []settlement.Participant
	for rows.Next() {
		var pt settlement.Participant
		if err := rows.Scan(&pt.UserID, &pt.ExternalID, &pt.DisplayName, &pt.Balance); err != nil {
			rows.Close()
			return SettlementResult{}, err
		}
		participants = append(participants, pt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return SettlementResult{}, err
	}

	out := settlement.Settle(w.Stake, participants, winningIDs, losingIDs)

	for _, pt := range out.Winners {
		if _, err = tx.ExecContext(ctx,
			`UPDATE users SET balance=$1 WHERE id=$2`, pt.Balance, pt.UserID); err != nil {
			return SettlementResult{}, err
		}
	}
	for _, pt := range out.Losers {
		if _, err = tx.ExecContext(ctx,
			`UPDATE users SET balance=$1 WHERE id=$2`, pt.Balance, pt.UserID); err != nil {
			return SettlementResult{}, err
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wagers SET closed=TRUE WHERE id=$1`, wagerID); err != nil {
		return SettlementResult{}, err
	}
	w.Closed = true

	if err = tx.Commit(); err != nil {
		return SettlementResult{}, err
	}

	return SettlementResult{
		Winners: toUsers(out.Winners),
		Losers:  toUsers(out.Losers),
		Wager:   w,
		Payout:  out.Payout,
	}, nil
}

func toUsers(pts []settlement.Participant) []User {
	out := make([]User, 0, len(pts))
	for _, pt := range pts {
		out = append(out, User{
			ID:          pt.UserID,
			ExternalID:  pt.ExternalID,
			DisplayName: pt.DisplayName,
			Balance:     pt.Balance,
		})
	}
	return out
}
