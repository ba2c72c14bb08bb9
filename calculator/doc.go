// Package calculator holds the billing arithmetic that needs no database: payout qualification,
// lesson price resolution, settlement totals and the balance depletion forecast.
//
// Services load rows, convert them to the small input types declared here and persist the results.
// Keeping the rules here lets them be tested exhaustively without a store.
package calculator
