package ruleengine

import (
	"fmt"
	"sort"
	"time"

	"tenor/internal/decimal"
	"tenor/internal/interchange"
	"tenor/internal/runtime"
)

// Evaluate runs every Rule in bundle against facts, stratum by stratum
// in ascending order, returning the accumulated VerdictSet. Rules within
// a stratum are evaluated sequentially in declared order for
// determinism of provenance-record ordering (the spec permits, but does
// not require, per-stratum parallelism).
func Evaluate(bundle *interchange.Bundle, facts runtime.FactSet) (runtime.VerdictSet, error) {
	rulesByStratum, strata := groupRulesByStratum(bundle)

	var verdicts []runtime.Verdict
	for _, stratum := range strata {
		for _, rule := range rulesByStratum[stratum] {
			verdict, produced, err := evaluateRule(rule, facts, verdicts)
			if err != nil {
				return runtime.VerdictSet{}, err
			}
			if produced {
				verdicts = append(verdicts, verdict)
			}
		}
	}
	return runtime.VerdictSet{Verdicts: verdicts}, nil
}

// EvalCondition evaluates a single boolean expression tree (a Rule's
// `when`, an Operation's `precondition`, or a BranchStep's `condition`)
// against facts and an already-computed VerdictSet, outside of any
// stratified rule pass. Provenance is not collected; callers that need
// it should go through Evaluate instead.
func EvalCondition(expr map[string]any, facts runtime.FactSet, verdicts runtime.VerdictSet) (bool, error) {
	if expr == nil {
		return true, nil
	}
	return evalExpr(expr, facts, verdicts.Verdicts, nil, NewProvenanceCollector())
}

func groupRulesByStratum(bundle *interchange.Bundle) (map[int][]map[string]any, []int) {
	byStratum := make(map[int][]map[string]any)
	seen := make(map[int]bool)
	var strata []int
	for _, raw := range bundle.Constructs {
		c, ok := raw.(map[string]any)
		if !ok || c["kind"] != "Rule" {
			continue
		}
		stratum := toInt(c["stratum"])
		byStratum[stratum] = append(byStratum[stratum], c)
		if !seen[stratum] {
			seen[stratum] = true
			strata = append(strata, stratum)
		}
	}
	sort.Ints(strata)
	return byStratum, strata
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func evaluateRule(rule map[string]any, facts runtime.FactSet, verdictsSoFar []runtime.Verdict) (runtime.Verdict, bool, error) {
	ruleID, _ := rule["id"].(string)
	stratum := toInt(rule["stratum"])
	collector := NewProvenanceCollector()

	whenExpr, _ := rule["when"].(map[string]any)
	holds := true
	if whenExpr != nil {
		var err error
		holds, err = evalExpr(whenExpr, facts, verdictsSoFar, nil, collector)
		if err != nil {
			return runtime.Verdict{}, false, wrapRuleErr(ruleID, err)
		}
	}
	if !holds {
		return runtime.Verdict{}, false, nil
	}

	produce, _ := rule["produce"].(map[string]any)
	var payload any
	if produce != nil {
		var err error
		payload, err = evalTerm(produce, facts, nil, collector)
		if err != nil {
			return runtime.Verdict{}, false, wrapRuleErr(ruleID, err)
		}
	}

	verdictType, _ := rule["verdict_type"].(string)
	return runtime.Verdict{
		Type:       verdictType,
		Payload:    renderValue(payload),
		Provenance: collector.IntoProvenance(ruleID, stratum),
	}, true, nil
}

func wrapRuleErr(ruleID string, err error) error {
	return runtime.NewError(runtime.KindRuleEval, fmt.Sprintf("rule '%s': %s", ruleID, err.Error()))
}

func evalExpr(expr map[string]any, facts runtime.FactSet, verdictsSoFar []runtime.Verdict, bound map[string]any, collector *ProvenanceCollector) (bool, error) {
	switch expr["kind"] {
	case "Compare":
		left, err := evalTerm(expr["left"].(map[string]any), facts, bound, collector)
		if err != nil {
			return false, err
		}
		right, err := evalTerm(expr["right"].(map[string]any), facts, bound, collector)
		if err != nil {
			return false, err
		}
		return compareValues(expr["op"].(string), left, right)
	case "VerdictPresent":
		verdictType, _ := expr["verdict_type"].(string)
		collector.RecordVerdict(verdictType)
		for _, v := range verdictsSoFar {
			if v.Type == verdictType {
				return true, nil
			}
		}
		return false, nil
	case "And":
		l, err := evalExpr(expr["lhs"].(map[string]any), facts, verdictsSoFar, bound, collector)
		if err != nil {
			return false, err
		}
		r, err := evalExpr(expr["rhs"].(map[string]any), facts, verdictsSoFar, bound, collector)
		if err != nil {
			return false, err
		}
		return l && r, nil
	case "Or":
		l, err := evalExpr(expr["lhs"].(map[string]any), facts, verdictsSoFar, bound, collector)
		if err != nil {
			return false, err
		}
		r, err := evalExpr(expr["rhs"].(map[string]any), facts, verdictsSoFar, bound, collector)
		if err != nil {
			return false, err
		}
		return l || r, nil
	case "Not":
		v, err := evalExpr(expr["operand"].(map[string]any), facts, verdictsSoFar, bound, collector)
		if err != nil {
			return false, err
		}
		return !v, nil
	case "Forall", "Exists":
		return evalQuantifier(expr, facts, verdictsSoFar, bound, collector)
	default:
		return false, fmt.Errorf("unknown expression kind %v", expr["kind"])
	}
}

func evalQuantifier(expr map[string]any, facts runtime.FactSet, verdictsSoFar []runtime.Verdict, bound map[string]any, collector *ProvenanceCollector) (bool, error) {
	domain, _ := expr["domain"].(string)
	collector.RecordFact(domain)
	items, ok := facts[domain].([]any)
	if !ok {
		return false, fmt.Errorf("quantifier domain '%s' is not a List fact at evaluation time", domain)
	}
	varName, _ := expr["var"].(string)
	body, _ := expr["body"].(map[string]any)
	isForall := expr["kind"] == "Forall"

	for _, item := range items {
		nested := make(map[string]any, len(bound)+1)
		for k, v := range bound {
			nested[k] = v
		}
		nested[varName] = item
		result, err := evalExpr(body, facts, verdictsSoFar, nested, collector)
		if err != nil {
			return false, err
		}
		if isForall && !result {
			return false, nil
		}
		if !isForall && result {
			return true, nil
		}
	}
	return isForall, nil
}

func evalTerm(term map[string]any, facts runtime.FactSet, bound map[string]any, collector *ProvenanceCollector) (any, error) {
	switch term["kind"] {
	case "FactRef":
		id, _ := term["id"].(string)
		if v, ok := bound[id]; ok {
			return v, nil
		}
		collector.RecordFact(id)
		v, ok := facts[id]
		if !ok {
			return nil, fmt.Errorf("fact '%s' not present in snapshot", id)
		}
		return v, nil
	case "FieldRef":
		varName, _ := term["var"].(string)
		field, _ := term["field"].(string)
		rec, ok := bound[varName].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("quantifier variable '%s' is not bound to a record", varName)
		}
		v, ok := rec[field]
		if !ok {
			return nil, fmt.Errorf("record bound to '%s' has no field '%s'", varName, field)
		}
		return v, nil
	case "Literal":
		return literalValue(term["value"].(map[string]any))
	case "Mul":
		left, err := evalTerm(term["left"].(map[string]any), facts, bound, collector)
		if err != nil {
			return nil, err
		}
		right, err := evalTerm(term["right"].(map[string]any), facts, bound, collector)
		if err != nil {
			return nil, err
		}
		return mulValues(left, right)
	default:
		return nil, fmt.Errorf("unknown term kind %v", term["kind"])
	}
}

func literalValue(lit map[string]any) (any, error) {
	switch lit["kind"] {
	case "Bool":
		return lit["value"], nil
	case "Int":
		return toInt64(lit["value"]), nil
	case "Decimal":
		s, _ := lit["value"].(string)
		return decimal.Parse(s)
	case "Text":
		return lit["value"], nil
	case "Money":
		amount, _ := lit["amount"].(string)
		currency, _ := lit["currency"].(string)
		d, err := decimal.Parse(amount)
		if err != nil {
			return nil, err
		}
		return decimal.Money{Amount: d, Currency: currency}, nil
	default:
		return nil, fmt.Errorf("unknown literal kind %v", lit["kind"])
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int64:
		return decimal.FromInt64(n), true
	case int:
		return decimal.FromInt64(int64(n)), true
	default:
		return decimal.Decimal{}, false
	}
}

func compareValues(op string, l, r any) (bool, error) {
	if lm, ok := l.(decimal.Money); ok {
		rm, ok := r.(decimal.Money)
		if !ok || lm.Currency != rm.Currency {
			return false, fmt.Errorf("cannot compare Money values of different currencies")
		}
		return compareOrdering(op, decimal.Cmp(lm.Amount, rm.Amount))
	}
	if ld, ok := asDecimal(l); ok {
		if rd, ok := asDecimal(r); ok {
			return compareOrdering(op, decimal.Cmp(ld, rd))
		}
	}
	if lt, ok := l.(time.Time); ok {
		if rt, ok := r.(time.Time); ok {
			switch {
			case lt.Before(rt):
				return compareOrdering(op, -1)
			case lt.After(rt):
				return compareOrdering(op, 1)
			default:
				return compareOrdering(op, 0)
			}
		}
	}
	if lb, ok := l.(bool); ok {
		rb, ok := r.(bool)
		if !ok {
			return false, fmt.Errorf("cannot compare Bool to non-Bool")
		}
		switch op {
		case "=":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		default:
			return false, fmt.Errorf("operator %q not valid for Bool", op)
		}
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "=":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("incomparable operand types %T and %T", l, r)
}

func compareOrdering(op string, cmp int) (bool, error) {
	switch op {
	case "=":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

func mulValues(l, r any) (any, error) {
	if lm, ok := l.(decimal.Money); ok {
		ri, ok := r.(int64)
		if !ok {
			return nil, fmt.Errorf("Money can only be multiplied by Int")
		}
		return decimal.Money{Amount: decimal.Mul(lm.Amount, decimal.FromInt64(ri)), Currency: lm.Currency}, nil
	}
	li, liok := l.(int64)
	ri, riok := r.(int64)
	if liok && riok {
		return li * ri, nil
	}
	if ld, ok := asDecimal(l); ok {
		if rd, ok := asDecimal(r); ok {
			return decimal.Mul(ld, rd), nil
		}
	}
	return nil, fmt.Errorf("invalid multiplication operand types %T and %T", l, r)
}

// renderValue converts internal decimal/money representations into their
// JSON-ready string forms for a Verdict's Payload field, matching §6's
// "money amounts are strings" rule.
func renderValue(v any) any {
	switch n := v.(type) {
	case decimal.Decimal:
		return n.String()
	case decimal.Money:
		return map[string]any{"amount": n.Amount.String(), "currency": n.Currency}
	default:
		return v
	}
}
