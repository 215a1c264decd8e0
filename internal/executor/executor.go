// Package executor maps command text to response text. It keeps no
// state and does no I/O, so it is safe to call from any goroutine.
package executor

import (
	"context"
	"strconv"
	"strings"
)

const (
	HelpText = "Available commands:\n" +
		"1. +: Add numbers (e.g., + 3 4)\n" +
		"2. -: Subtract numbers (e.g., - 5 2)\n" +
		"3. *: Multiply numbers (e.g., * 3 4)\n" +
		"4. /: Divide numbers (e.g., / 8 2)\n" +
		"5. list: List commands\n" +
		"6. exit: Close connection\n" +
		"7. Plain text is echoed back."

	ListText      = "Commands: help, +, -, *, /, list, exit."
	GoodbyeText   = "Goodbye!"
	DivByZeroText = "Error: Division by zero is not allowed."
)

type arith struct {
	name string
	fn   func(a, b int) int
}

var ops = map[byte]arith{
	'+': {"+", func(a, b int) int { return a + b }},
	'-': {"-", func(a, b int) int { return a - b }},
	'*': {"*", func(a, b int) int { return a * b }},
	'/': {"/", func(a, b int) int { return a / b }},
}

// Executor is the stock command set. Its zero value is ready to use.
type Executor struct{}

// New returns the stock executor.
func New() Executor { return Executor{} }

// Execute runs one command. Commands are matched by prefix, so
// "helpme" is help and "+ 1 2 3" adds the first two operands.
// Anything unrecognised is echoed.
func (Executor) Execute(_ context.Context, command string) string {
	switch {
	case strings.HasPrefix(command, "help"):
		return HelpText
	case strings.HasPrefix(command, "list"):
		return ListText
	case strings.HasPrefix(command, "exit"):
		return GoodbyeText
	}
	if command != "" {
		if op, ok := ops[command[0]]; ok {
			return op.apply(command[1:])
		}
	}
	return "Echo: " + command
}

func (op arith) apply(args string) string {
	a, b, ok := operands(args)
	if !ok {
		return "Invalid format. Use: " + op.name + " <num1> <num2>"
	}
	if op.name == "/" && b == 0 {
		return DivByZeroText
	}
	return "Result: " + strconv.Itoa(op.fn(a, b))
}

// operands reads two leading integers; trailing text is ignored.
func operands(s string) (int, int, bool) {
	f := strings.Fields(s)
	if len(f) < 2 {
		return 0, 0, false
	}
	a, err := strconv.Atoi(f[0])
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(f[1])
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}
