package calculator

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/tool"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

const maxExpressionLength = 512

var (
	numberPattern = regexp.MustCompile(`^(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)
)

const operators = "+-*/%^(),"

// functions and constants usable in an expression, mapped to Math members
var mathNames = map[string]string{
	"abs": "abs", "sqrt": "sqrt", "cbrt": "cbrt", "pow": "pow", "exp": "exp",
	"log": "log", "ln": "log", "log10": "log10", "log2": "log2",
	"sin": "sin", "cos": "cos", "tan": "tan", "asin": "asin", "acos": "acos", "atan": "atan",
	"floor": "floor", "ceil": "ceil", "round": "round", "trunc": "trunc",
	"min": "min", "max": "max",
	"PI": "PI", "pi": "PI", "E": "E", "e": "E",
}

type calculator struct {
	timeout time.Duration
}

// New creates a calculator tool evaluating arithmetic expressions in a
// sandboxed JavaScript runtime.
func New() *calculator {
	return &calculator{timeout: time.Second}
}

func (x *calculator) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "calculator-timeout",
			Usage:       "Maximum evaluation time of one calculator expression",
			Sources:     cli.EnvVars("HIPPO_CALCULATOR_TIMEOUT"),
			Value:       time.Second,
			Destination: &x.timeout,
		},
	}
}

// Init always enables the calculator
func (x *calculator) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return true, nil
}

func (x *calculator) Prompt(ctx context.Context) string {
	return `Use the calculator tool for any arithmetic instead of computing numbers yourself.`
}

func (x *calculator) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "calculator",
				Description: "Evaluate a math expression. Supports + - * / % ^ parentheses and functions such as sqrt, pow, log, sin, cos, abs, round, min, max and the constants PI and E.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"expression": {
							Type:        genai.TypeString,
							Description: "Expression to evaluate, e.g. (212 - 32) * 5 / 9",
						},
					},
					Required: []string{"expression"},
				},
			},
		},
	}
}

func (x *calculator) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	expr, ok := fc.Args["expression"].(string)
	if !ok || strings.TrimSpace(expr) == "" {
		return nil, goerr.New("expression parameter is required")
	}

	result, err := x.Evaluate(ctx, expr)
	if err != nil {
		return nil, err
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": result},
	}, nil
}

// Evaluate computes expr and formats the number in the shortest exact form
func (x *calculator) Evaluate(ctx context.Context, expr string) (string, error) {
	src, err := translate(expr)
	if err != nil {
		return "", err
	}

	vm := goja.New()
	timer := time.AfterFunc(x.timeout, func() {
		vm.Interrupt("calculation timed out")
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	v, err := vm.RunString(src)
	if err != nil {
		return "", goerr.Wrap(err, "failed to evaluate expression", goerr.V("expression", expr))
	}

	f, ok := v.Export().(float64)
	if !ok {
		if i, isInt := v.Export().(int64); isInt {
			return strconv.FormatInt(i, 10), nil
		}
		return "", goerr.New("expression is not a number", goerr.V("expression", expr))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", goerr.New("expression has no finite value",
			goerr.V("expression", expr),
			goerr.V("value", f),
		)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// translate parses expr and emits fully parenthesized JavaScript. '^' is
// right associative and binds tighter than unary minus, so -2^2 is -4. Known
// names are prefixed with Math and any other identifier is rejected.
func translate(expr string) (string, error) {
	if len(expr) > maxExpressionLength {
		return "", goerr.New("expression is too long", goerr.V("length", len(expr)))
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", goerr.New("expression is empty")
	}

	p := &parser{tokens: tokens, expr: expr}
	src, err := p.parseSum()
	if err != nil {
		return "", err
	}
	if p.pos < len(p.tokens) {
		return "", p.unexpected()
	}
	return src, nil
}

type tokenKind int

const (
	numberToken tokenKind = iota
	nameToken
	operatorToken
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	rest := expr
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			return tokens, nil
		}

		if m := numberPattern.FindString(rest); m != "" {
			tokens = append(tokens, token{kind: numberToken, text: m})
			rest = rest[len(m):]
			continue
		}
		if m := identPattern.FindString(rest); m != "" {
			tokens = append(tokens, token{kind: nameToken, text: m})
			rest = rest[len(m):]
			continue
		}
		if strings.IndexByte(operators, rest[0]) >= 0 {
			tokens = append(tokens, token{kind: operatorToken, text: rest[:1]})
			rest = rest[1:]
			continue
		}

		return nil, goerr.New("expression contains unsupported characters",
			goerr.V("expression", expr),
			goerr.V("at", len(expr)-len(rest)),
		)
	}
}

// parser is a recursive descent parser over
//
//	sum     = product { ("+" | "-") product }
//	product = unary { ("*" | "/" | "%") unary }
//	unary   = ("-" | "+") unary | power
//	power   = primary [ "^" unary ]
//	primary = number | name [ "(" [ sum { "," sum } ] ")" ] | "(" sum ")"
type parser struct {
	tokens []token
	pos    int
	expr   string
}

func (p *parser) accept(op string) bool {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == operatorToken && p.tokens[p.pos].text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) unexpected() error {
	if p.pos >= len(p.tokens) {
		return goerr.New("unexpected end of expression", goerr.V("expression", p.expr))
	}
	return goerr.New("unexpected token in expression",
		goerr.V("token", p.tokens[p.pos].text),
		goerr.V("expression", p.expr),
	)
}

func (p *parser) parseSum() (string, error) {
	left, err := p.parseProduct()
	if err != nil {
		return "", err
	}
	for {
		var op string
		switch {
		case p.accept("+"):
			op = "+"
		case p.accept("-"):
			op = "-"
		default:
			return left, nil
		}
		right, err := p.parseProduct()
		if err != nil {
			return "", err
		}
		left = "(" + left + " " + op + " " + right + ")"
	}
}

func (p *parser) parseProduct() (string, error) {
	left, err := p.parseUnary()
	if err != nil {
		return "", err
	}
	for {
		var op string
		switch {
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		case p.accept("%"):
			op = "%"
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return "", err
		}
		left = "(" + left + " " + op + " " + right + ")"
	}
}

func (p *parser) parseUnary() (string, error) {
	switch {
	case p.accept("-"):
		operand, err := p.parseUnary()
		if err != nil {
			return "", err
		}
		return "(-" + operand + ")", nil
	case p.accept("+"):
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (string, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return "", err
	}
	if !p.accept("^") {
		return base, nil
	}
	exponent, err := p.parseUnary()
	if err != nil {
		return "", err
	}
	return "(" + base + " ** " + exponent + ")", nil
}

func (p *parser) parsePrimary() (string, error) {
	if p.accept("(") {
		inner, err := p.parseSum()
		if err != nil {
			return "", err
		}
		if !p.accept(")") {
			return "", p.unexpected()
		}
		return "(" + inner + ")", nil
	}

	if p.pos >= len(p.tokens) {
		return "", p.unexpected()
	}
	t := p.tokens[p.pos]
	switch t.kind {
	case numberToken:
		p.pos++
		return t.text, nil

	case nameToken:
		p.pos++
		member, ok := mathNames[t.text]
		if !ok {
			return "", goerr.New("unknown name in expression",
				goerr.V("name", t.text),
				goerr.V("expression", p.expr),
			)
		}
		if !p.accept("(") {
			return "Math." + member, nil
		}

		var args []string
		if !p.accept(")") {
			for {
				arg, err := p.parseSum()
				if err != nil {
					return "", err
				}
				args = append(args, arg)
				if p.accept(")") {
					break
				}
				if !p.accept(",") {
					return "", p.unexpected()
				}
			}
		}
		return "Math." + member + "(" + strings.Join(args, ", ") + ")", nil
	}

	return "", p.unexpected()
}
