package tool

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

const ToolCalculate = "calculate"

// Accepts digits, whitespace, decimal points, operators, and parentheses.
var expressionPattern = regexp.MustCompile(`^[\d\s\+\-\*/%\^\(\)\.]+$`)

var CalculateSpec = contractx.ToolSpec{
	Name: ToolCalculate,
	Desc: "Evaluate a math expression",
	Params: map[string]contractx.Param{
		"expression": {
			Type:     contractx.ParamString,
			Desc:     "The math expression to evaluate, e.g. '2 + 2'",
			Required: true,
		},
	},
}

type CalculateOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// Calculate evaluates arithmetic with a fixed grammar; arbitrary code is
// never evaluated.
func Calculate(_ context.Context, args map[string]any) (any, error) {
	expression, _ := args["expression"].(string)
	expression = strings.TrimSpace(expression)

	if err := checkExpression(expression); err != nil {
		return nil, err
	}
	value, err := Evaluate(expression)
	if err != nil {
		return nil, err
	}
	return CalculateOutput{Expression: expression, Result: value}, nil
}

func checkExpression(expression string) error {
	if expression == "" {
		return fmt.Errorf("expression is empty")
	}
	if !expressionPattern.MatchString(expression) {
		return fmt.Errorf("expression contains invalid characters")
	}

	depth := 0
	for _, ch := range expression {
		if ch == '(' {
			depth++
		} else if ch == ')' {
			if depth--; depth < 0 {
				return fmt.Errorf("expression has unbalanced parentheses")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("expression has unbalanced parentheses")
	}
	return nil
}

// Evaluate parses and computes an arithmetic expression supporting
// + - * / % ^, unary signs and parentheses.
func Evaluate(expression string) (float64, error) {
	s := &scanner{src: expression}
	value, err := s.sum()
	if err != nil {
		return 0, err
	}
	s.skipBlank()
	if !s.done() {
		return 0, fmt.Errorf("unexpected token at position %d", s.pos)
	}
	return value, nil
}

type scanner struct {
	src string
	pos int
}

// sum := product (('+' | '-') product)*
func (s *scanner) sum() (float64, error) {
	acc, err := s.product()
	if err != nil {
		return 0, err
	}
	for {
		s.skipBlank()
		var op byte
		switch {
		case s.accept('+'):
			op = '+'
		case s.accept('-'):
			op = '-'
		default:
			return acc, nil
		}
		rhs, err := s.product()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			acc += rhs
		} else {
			acc -= rhs
		}
	}
}

// product := power (('*' | '/' | '%') power)*
func (s *scanner) product() (float64, error) {
	acc, err := s.power()
	if err != nil {
		return 0, err
	}
	for {
		s.skipBlank()
		var op byte
		switch {
		case s.accept('*'):
			op = '*'
		case s.accept('/'):
			op = '/'
		case s.accept('%'):
			op = '%'
		default:
			return acc, nil
		}
		rhs, err := s.power()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			acc *= rhs
		case '/':
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			acc /= rhs
		case '%':
			if rhs == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			acc = math.Mod(acc, rhs)
		}
	}
}

// power := unary ('^' power)?   (right associative)
func (s *scanner) power() (float64, error) {
	base, err := s.unary()
	if err != nil {
		return 0, err
	}
	s.skipBlank()
	if !s.accept('^') {
		return base, nil
	}
	exp, err := s.power()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (s *scanner) unary() (float64, error) {
	s.skipBlank()
	switch {
	case s.accept('+'):
		return s.unary()
	case s.accept('-'):
		v, err := s.unary()
		return -v, err
	}
	return s.primary()
}

func (s *scanner) primary() (float64, error) {
	s.skipBlank()
	if !s.accept('(') {
		return s.number()
	}
	v, err := s.sum()
	if err != nil {
		return 0, err
	}
	s.skipBlank()
	if !s.accept(')') {
		return 0, fmt.Errorf("missing closing parenthesis at position %d", s.pos)
	}
	return v, nil
}

func (s *scanner) number() (float64, error) {
	s.skipBlank()
	start := s.pos
	digits, dots := 0, 0
	for !s.done() {
		ch := s.src[s.pos]
		if ch >= '0' && ch <= '9' {
			digits++
		} else if ch == '.' {
			if dots++; dots > 1 {
				return 0, fmt.Errorf("invalid number format at position %d", s.pos)
			}
		} else {
			break
		}
		s.pos++
	}
	if digits == 0 {
		return 0, fmt.Errorf("expected number at position %d", start)
	}

	raw := s.src[start:s.pos]
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return v, nil
}

func (s *scanner) skipBlank() {
	for !s.done() && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

func (s *scanner) done() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) accept(want byte) bool {
	if !s.done() && s.src[s.pos] == want {
		s.pos++
		return true
	}
	return false
}
