package calculator_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/tool"
	"github.com/m-mizutani/hippo/pkg/tool/calculator"
	"google.golang.org/genai"
)

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		expr   string
		expect string
	}{
		{"1 + 2", "3"},
		{"(212 - 32) * 5 / 9", "100"},
		{"2 ^ 10", "1024"},
		{"sqrt(16) + abs(-2)", "6"},
		{"10 / 4", "2.5"},
		{"round(PI * 100) / 100", "3.14"},
		{"max(3, 7, 5)", "7"},
		{"17 % 5", "2"},
		{"6.02e23 * 2", "1.204e+24"},
		{"1e3 + 1", "1001"},
		{"2.5E-1 * 4", "1"},
		{"-2^2", "-4"},
		{"(-2)^2", "4"},
		{"2^-1", "0.5"},
		{"2^3^2", "512"},
		{"-3 - -3", "0"},
		{"e^0 + E^0", "2"},
	}

	calc := calculator.New()
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := calc.Evaluate(context.Background(), tc.expr)
			gt.NoError(t, err)
			gt.Equal(t, got, tc.expect)
		})
	}
}

func TestEvaluateRejects(t *testing.T) {
	testCases := []struct {
		name string
		expr string
	}{
		{"unknown identifier", "process.exit(1)"},
		{"string literal", `"a" + "b"`},
		{"assignment", "x = 1"},
		{"division by zero", "1 / 0"},
		{"syntax error", "(1 + "},
		{"infinite loop keyword", "while (true) {}"},
		{"dangling exponent", "2e"},
		{"empty", "  "},
		{"missing argument separator", "max(1 2)"},
		{"unknown function", "fact(5)"},
	}

	calc := calculator.New()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Evaluate(context.Background(), tc.expr)
			gt.Error(t, err)
		})
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	calc := calculator.New()

	enabled, err := calc.Init(ctx, &tool.Client{})
	gt.NoError(t, err)
	gt.True(t, enabled)
	gt.Equal(t, calc.Spec().FunctionDeclarations[0].Name, "calculator")

	resp, err := calc.Execute(ctx, genai.FunctionCall{
		Name: "calculator",
		Args: map[string]any{"expression": "100 * 9 / 5 + 32"},
	})
	gt.NoError(t, err)
	gt.V(t, resp.Response["result"]).Equal("212")

	_, err = calc.Execute(ctx, genai.FunctionCall{Name: "calculator", Args: map[string]any{}})
	gt.Error(t, err)
}
