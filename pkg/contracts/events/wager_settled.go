package events

// Evento emitido pelo wager-service após liquidar uma aposta.
type WagerSettled struct {
	WagerID   int64    `json:"wager_id"`
	Stake     int64    `json:"stake"`
	Payout    int64    `json:"payout"` // valor creditado a cada vencedor
	WinnerIDs []string `json:"winner_ids"`
	LoserIDs  []string `json:"loser_ids"`
	TsUnixMs  int64    `json:"ts_unix_ms"`
}
