// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools provides the built-in capabilities registered with the
// gateway: arithmetic evaluation and context search.
package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/focusai/focus/pkg/core"
)

// Calculator evaluates arithmetic expressions. It parses the expression
// itself rather than delegating to any interpreter, so only the operators
// and functions listed here are reachable.
type Calculator struct{}

// NewCalculator returns the built-in calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string { return "calculator" }

func (c *Calculator) Description() string { return "Perform mathematical calculations" }

// Call evaluates args["expression"] and returns the numeric result.
func (c *Calculator) Call(_ context.Context, args map[string]any) (any, error) {
	expr, _ := args["expression"].(string)
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("calculator: expression is required")
	}
	value, err := Evaluate(expr)
	if err != nil {
		return nil, err
	}
	return value, nil
}

var _ core.Tool = (*Calculator)(nil)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOperator
	tokFunc
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	value float64
	op    byte
	fn    string
}

var functions = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
	"log":  math.Log,
}

// Evaluate computes the value of an arithmetic expression supporting
// + - * / ^ %, parentheses, unary minus and a small function set.
func Evaluate(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	rpn, err := toRPN(tokens)
	if err != nil {
		return 0, err
	}
	return evalRPN(rpn)
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case ch >= '0' && ch <= '9' || ch == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			value, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("calculator: bad number %q", expr[i:j])
			}
			tokens = append(tokens, token{kind: tokNumber, value: value})
			i = j
		case unicode.IsLetter(rune(ch)):
			j := i
			for j < len(expr) && unicode.IsLetter(rune(expr[j])) {
				j++
			}
			name := strings.ToLower(expr[i:j])
			if name == "pi" {
				tokens = append(tokens, token{kind: tokNumber, value: math.Pi})
			} else if name == "e" {
				tokens = append(tokens, token{kind: tokNumber, value: math.E})
			} else if _, ok := functions[name]; ok {
				tokens = append(tokens, token{kind: tokFunc, fn: name})
			} else {
				return nil, fmt.Errorf("calculator: unknown identifier %q", name)
			}
			i = j
		case ch == '(':
			tokens = append(tokens, token{kind: tokLParen})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokRParen})
			i++
		case strings.IndexByte("+-*/^%", ch) >= 0:
			op := ch
			// Unary minus at expression start or after an operator or '('.
			if op == '-' && unaryPosition(tokens) {
				op = 'n'
			}
			tokens = append(tokens, token{kind: tokOperator, op: op})
			i++
		default:
			return nil, fmt.Errorf("calculator: unexpected character %q", string(ch))
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("calculator: empty expression")
	}
	return tokens, nil
}

func unaryPosition(tokens []token) bool {
	if len(tokens) == 0 {
		return true
	}
	last := tokens[len(tokens)-1]
	return last.kind == tokOperator || last.kind == tokLParen || last.kind == tokFunc
}

func precedence(op byte) int {
	switch op {
	case 'n':
		return 4
	case '^':
		return 3
	case '*', '/', '%':
		return 2
	case '+', '-':
		return 1
	}
	return 0
}

func rightAssociative(op byte) bool {
	return op == '^' || op == 'n'
}

func toRPN(tokens []token) ([]token, error) {
	var output []token
	var stack []token
	for _, tok := range tokens {
		switch tok.kind {
		case tokNumber:
			output = append(output, tok)
		case tokFunc, tokLParen:
			stack = append(stack, tok)
		case tokOperator:
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.kind != tokOperator {
					break
				}
				if precedence(top.op) > precedence(tok.op) ||
					(precedence(top.op) == precedence(tok.op) && !rightAssociative(tok.op)) {
					output = append(output, top)
					stack = stack[:len(stack)-1]
					continue
				}
				break
			}
			stack = append(stack, tok)
		case tokRParen:
			matched := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == tokLParen {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return nil, fmt.Errorf("calculator: unbalanced parentheses")
			}
			if len(stack) > 0 && stack[len(stack)-1].kind == tokFunc {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.kind == tokLParen {
			return nil, fmt.Errorf("calculator: unbalanced parentheses")
		}
		output = append(output, top)
	}
	return output, nil
}

func evalRPN(rpn []token) (float64, error) {
	var stack []float64
	pop := func() (float64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}

	for _, tok := range rpn {
		switch tok.kind {
		case tokNumber:
			stack = append(stack, tok.value)
		case tokFunc:
			arg, ok := pop()
			if !ok {
				return 0, fmt.Errorf("calculator: missing argument for %s", tok.fn)
			}
			stack = append(stack, functions[tok.fn](arg))
		case tokOperator:
			if tok.op == 'n' {
				arg, ok := pop()
				if !ok {
					return 0, fmt.Errorf("calculator: malformed expression")
				}
				stack = append(stack, -arg)
				continue
			}
			right, okR := pop()
			left, okL := pop()
			if !okR || !okL {
				return 0, fmt.Errorf("calculator: malformed expression")
			}
			switch tok.op {
			case '+':
				stack = append(stack, left+right)
			case '-':
				stack = append(stack, left-right)
			case '*':
				stack = append(stack, left*right)
			case '/':
				if right == 0 {
					return 0, fmt.Errorf("calculator: division by zero")
				}
				stack = append(stack, left/right)
			case '%':
				if right == 0 {
					return 0, fmt.Errorf("calculator: division by zero")
				}
				stack = append(stack, math.Mod(left, right))
			case '^':
				stack = append(stack, math.Pow(left, right))
			}
		}
	}
	if len(stack) != 1 {
		return 0, fmt.Errorf("calculator: malformed expression")
	}
	return stack[0], nil
}
