//go:build race

package identity

// Keep race-enabled test runs from spending their time inside bcrypt.
const bcryptCost = 6
