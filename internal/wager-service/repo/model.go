package repo

// User é o registro de identidade com saldo em bucks.
// ExternalID é o identificador estável da plataforma chamadora,
// tratado como string opaca de ponta a ponta.
type User struct {
	ID          int64
	ExternalID  string
	DisplayName string
	Balance     int64
}

// Wager é uma aposta em grupo com stake fixo por participante.
type Wager struct {
	ID     int64
	Stake  int64
	Closed bool
}

// SettlementResult é o resultado final do fechamento de uma aposta:
// listas de vencedores e perdedores já com saldos atualizados.
type SettlementResult struct {
	Winners []User
	Losers  []User
	Wager   Wager
	Payout  int64
}
