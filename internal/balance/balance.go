// Package balance holds the derived fee balance rule.
//
// The outstanding amount is never stored as an authoritative value anywhere
// in this codebase; it is recomputed from total fee and amount paid at every
// point of use. Whatever balance figure the record store returns is ignored.
package balance

// Outstanding returns the amount a student still owes. Negative results
// indicate overpayment and are reported as-is.
func Outstanding(totalFee, amountPaid float64) float64 {
	return totalFee - amountPaid
}
