package achievement

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/abhisek/lingva/internal/errs"
)

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error

	programs sync.Map // expression -> cel.Program
)

func criteriaEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		opts := make([]cel.EnvOption, 0, len(Units))
		for _, u := range Units {
			opts = append(opts, cel.Variable(string(u), cel.IntType))
		}
		env, envErr = cel.NewEnv(opts...)
	})
	return env, envErr
}

// CompileExpression type-checks a criteria expression. Expressions must
// evaluate to a bool.
func CompileExpression(expr string) (cel.Program, error) {
	if prg, ok := programs.Load(expr); ok {
		return prg.(cel.Program), nil
	}
	e, err := criteriaEnv()
	if err != nil {
		return nil, fmt.Errorf("criteria env: %w", err)
	}
	ast, issues := e.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errs.InvalidArgument("expression", "%v", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errs.InvalidArgument("expression", "%q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	programs.Store(expr, prg)
	return prg, nil
}

// Validate checks a definition's criteria.
func (a Achievement) Validate() error {
	if a.ID == "" {
		return errs.InvalidArgument("id", "must not be empty")
	}
	if a.Points < 0 {
		return errs.InvalidArgument("points", "achievement %s: must not be negative", a.ID)
	}
	if !a.Criteria.Unit.Valid() {
		return errs.InvalidArgument("criteria.unit", "achievement %s: unknown unit %q", a.ID, a.Criteria.Unit)
	}
	if a.Criteria.Target <= 0 {
		return errs.InvalidArgument("criteria.target", "achievement %s: must be positive", a.ID)
	}
	if a.Criteria.Expression != "" {
		if _, err := CompileExpression(a.Criteria.Expression); err != nil {
			return fmt.Errorf("achievement %s: %w", a.ID, err)
		}
	}
	return nil
}

// Satisfied reports whether stats meet the criteria.
func (c Criteria) Satisfied(stats Statistics) (bool, error) {
	v, ok := stats.Value(c.Unit)
	if !ok {
		return false, errs.InvalidArgument("criteria.unit", "unknown unit %q", c.Unit)
	}
	if v < c.Target {
		return false, nil
	}
	if c.Expression == "" {
		return true, nil
	}
	prg, err := CompileExpression(c.Expression)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(stats.values())
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", c.Expression, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: non-bool result %v", c.Expression, out)
	}
	return b, nil
}

// Progress returns the percentage of the target reached, capped at 99 until
// the criteria are satisfied.
func (c Criteria) Progress(stats Statistics) int {
	v, _ := stats.Value(c.Unit)
	if c.Target <= 0 {
		return 0
	}
	return min(v*100/c.Target, 99)
}
