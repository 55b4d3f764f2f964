// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"math"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"2 ^ 3 ^ 2", 512}, // right associative
		{"-3 + 5", 2},
		{"-(2 + 3)", -5},
		{"2 * -3", -6},
		{"sqrt(16)", 4},
		{"abs(-7.5)", 7.5},
		{"sin(0)", 0},
		{"cos(0)", 1},
		{"log(e)", 1},
		{"2 * pi", 2 * math.Pi},
		{"sqrt(3^2 + 4^2)", 5},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"1 / 0",
		"5 % 0",
		"(1 + 2",
		"1 + 2)",
		"unknownfn(3)",
		"1 + + 2 3",
		"2 @ 3",
	} {
		if _, err := Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q) should fail", expr)
		}
	}
}

func TestCalculatorCall(t *testing.T) {
	calc := NewCalculator()
	if calc.Name() != "calculator" {
		t.Errorf("name = %q", calc.Name())
	}

	result, err := calc.Call(context.Background(), map[string]any{"expression": "6 * 7"})
	if err != nil {
		t.Fatal(err)
	}
	if result != 42.0 {
		t.Errorf("result = %v", result)
	}

	if _, err := calc.Call(context.Background(), map[string]any{}); err == nil {
		t.Error("missing expression should fail")
	}
	if _, err := calc.Call(context.Background(), map[string]any{"expression": "  "}); err == nil {
		t.Error("blank expression should fail")
	}
}
