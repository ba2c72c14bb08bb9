// Package metrics declares the prometheus collectors of the billing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_ledger_transactions_total",
		Help: "Balance transactions appended to student ledgers, by type.",
	}, []string{"type"})

	SettlementsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_settlements_committed_total",
		Help: "Settlements committed.",
	})

	SettlementsReversed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_settlements_reversed_total",
		Help: "Most recent settlements deleted and rolled back.",
	})

	PayoutsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_payouts_committed_total",
		Help: "Teacher payout batches committed.",
	})

	PayoutLessons = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_payout_lessons_total",
		Help: "Lessons attached to committed payouts.",
	})

	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_tx_retries_total",
		Help: "Transactions retried after a concurrent modification, by operation.",
	}, []string{"operation"})

	TxConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_tx_conflicts_total",
		Help: "Transactions abandoned after exhausting retries, by operation.",
	}, []string{"operation"})
)
