package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	usersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "users_created_total",
		Help: "Total de usuários criados",
	})

	wagersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagers_created_total",
		Help: "Total de apostas criadas",
	})

	wagersSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagers_settled_total",
		Help: "Total de apostas liquidadas, por resultado",
	}, []string{"result"}) // "ok" | "rejected" | "error"

	bucksRedistributed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bucks_redistributed_total",
		Help: "Total de bucks creditados a vencedores em liquidações",
	})
)

func RecordUserCreated()  { usersCreated.Inc() }
func RecordWagerCreated() { wagersCreated.Inc() }

func RecordSettlement(result string, payout int64, winners int) {
	wagersSettled.WithLabelValues(result).Inc()
	if result == "ok" {
		bucksRedistributed.Add(float64(payout * int64(winners)))
	}
}
