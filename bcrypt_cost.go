//go:build !race

package identity

const bcryptCost = 14
