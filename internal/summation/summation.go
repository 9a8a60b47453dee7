// Package summation computes 1 + 2 + ... + n three different ways.
// All variants return 0 for n <= 0.
package summation

import "strconv"

const (
	// MaxExactN is the largest n whose sum fits in an int. Above it
	// SumIterative and SumFormula wrap around silently.
	MaxExactN = 1<<(strconv.IntSize/2) - 1

	// MaxRecursiveN bounds the recursion depth callers should allow for
	// SumRecursive; much deeper inputs exhaust the goroutine stack.
	MaxRecursiveN = 100_000
)

// SumIterative adds the terms in a loop. The result overflows for n > MaxExactN.
func SumIterative(n int) int {
	total := 0
	for i := 1; i <= n; i++ {
		total += i
	}
	return total
}

// SumFormula uses the closed form n(n+1)/2. The result overflows for n > MaxExactN.
func SumFormula(n int) int {
	if n <= 0 {
		return 0
	}
	// one of n, n+1 is even, so halve that one first
	if n%2 == 0 {
		return (n / 2) * (n + 1)
	}
	return n * ((n + 1) / 2)
}

// SumRecursive recurses once per term, so the stack grows linearly with n.
// Keep n within MaxRecursiveN.
func SumRecursive(n int) int {
	if n <= 0 {
		return 0
	}
	return n + SumRecursive(n-1)
}
