package course

import (
	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
)

// GradeFormula computes the final rating of an enrollment from its `midterm` and `final` grades.
type GradeFormula struct {
	expr *govaluate.EvaluableExpression
}

func NewGradeFormula(formula string) (*GradeFormula, error) {
	if formula == "" {
		formula = "(midterm + final) / 2"
	}
	expr, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if v != "midterm" && v != "final" {
			return nil, errors.Errorf("unknown variable %q in grade formula", v)
		}
	}
	return &GradeFormula{expr: expr}, nil
}

// Rate evaluates the formula, rounded to 2 decimals.
func (f *GradeFormula) Rate(midterm, final float64) (float64, error) {
	res, err := f.expr.Evaluate(map[string]interface{}{
		"midterm": midterm,
		"final":   final,
	})
	if err != nil {
		return 0, err
	}
	rating, ok := res.(float64)
	if !ok {
		return 0, errors.Errorf("grade formula returned %T, want a number", res)
	}
	return core.Round(rating, 2), nil
}
