package settlement

// Participant é um participante da aposta já resolvido para seu usuário.
type Participant struct {
	UserID      int64
	ExternalID  string
	DisplayName string
	Balance     int64
}

// Outcome é o resultado do cálculo de liquidação.
// Winners e Losers carregam os saldos já recalculados.
type Outcome struct {
	Payout  int64
	Winners []Participant
	Losers  []Participant
}

// Settle particiona os participantes entre vencedores e perdedores e
// calcula os novos saldos.
//
// Regras:
//   - quem aparece nas duas listas conta como vencedor
//   - quem não aparece em nenhuma lista não é afetado
//   - payout = stake * perdedores / vencedores, divisão inteira (o resto
//     é descartado, compatível com o comportamento de referência)
//   - perdedor nunca fica com saldo negativo
func Settle(stake int64, participants []Participant, winningIDs, losingIDs []string) Outcome {
	winSet := toSet(winningIDs)
	loseSet := toSet(losingIDs)

	var winners, losers []Participant
	for _, p := range participants {
		switch {
		case winSet[p.ExternalID]:
			winners = append(winners, p)
		case loseSet[p.ExternalID]:
			losers = append(losers, p)
		}
	}

	var out Outcome
	if len(winners) > 0 {
		out.Payout = stake * int64(len(losers)) / int64(len(winners))
	}

	for _, w := range winners {
		w.Balance += out.Payout
		out.Winners = append(out.Winners, w)
	}
	for _, l := range losers {
		l.Balance -= stake
		if l.Balance < 0 {
			l.Balance = 0
		}
		out.Losers = append(out.Losers, l)
	}

	return out
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
