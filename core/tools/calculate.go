package tools

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

var disallowedExpressionChars = regexp.MustCompile(`[^0-9+\-*/().%\s]`)

type calculateParameters struct {
	Expression string `json:"expression" jsonschema_description:"The math expression to evaluate (e.g., \"25 * 4 + 10\")"`
}

// calculate evaluates plain arithmetic. Anything other than numbers,
// operators and parentheses is rejected before evaluation.
func (t *Toolbox) calculate(_ context.Context, p calculateParameters) (string, error) {
	expression := strings.TrimSpace(p.Expression)
	if expression == "" || disallowedExpressionChars.MatchString(expression) {
		return "Invalid expression. Only numbers and basic operators (+, -, *, /, %, parentheses) are allowed.", nil
	}

	program, err := expr.Compile(expression)
	if err != nil {
		return "Could not calculate that expression. Please check the format.", nil
	}
	output, err := expr.Run(program, nil)
	if err != nil {
		return "Could not calculate that expression. Please check the format.", nil
	}

	result, ok := formatNumber(output)
	if !ok {
		return "Could not calculate that expression.", nil
	}
	return fmt.Sprintf("%s = %s", expression, result), nil
}

func formatNumber(value any) (string, bool) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
