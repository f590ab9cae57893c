package runtime

import (
	"fmt"
	"time"

	"tenor/internal/decimal"
	"tenor/internal/interchange"
)

// AssembleFacts builds a FactSet from the bundle's declared facts and a
// caller-provided value map: for each declared fact, the provided value
// wins, falling back to its declared default, else the fact is reported
// missing. Every present value is coerced to its declared type.
func AssembleFacts(bundle *interchange.Bundle, provided map[string]any) (FactSet, error) {
	out := make(FactSet, len(bundle.Constructs))
	for _, raw := range bundle.Constructs {
		c, ok := raw.(map[string]any)
		if !ok || c["kind"] != "Fact" {
			continue
		}
		id, _ := c["id"].(string)
		typ, _ := c["type"].(map[string]any)

		value, present := provided[id]
		if !present {
			if def, ok := c["default"].(map[string]any); ok {
				value = literalToValue(def)
				present = true
			}
		}
		if !present {
			return nil, NewError(KindFactMissing, fmt.Sprintf("fact '%s' has no provided value and no default", id)).WithFact(id)
		}

		coerced, err := coerceValue(value, typ, id)
		if err != nil {
			return nil, err
		}
		out[id] = coerced
	}
	return out, nil
}

func literalToValue(lit map[string]any) any {
	switch lit["kind"] {
	case "Money":
		return map[string]any{"amount": lit["amount"], "currency": lit["currency"]}
	default:
		return lit["value"]
	}
}

func coerceValue(value any, t map[string]any, factID string) (any, error) {
	kind, _ := t["kind"].(string)
	switch kind {
	case "Bool":
		b, ok := value.(bool)
		if !ok {
			return nil, coercionErr(factID, "Bool", value)
		}
		return b, nil
	case "Int":
		switch n := value.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			return int64(n), nil
		default:
			return nil, coercionErr(factID, "Int", value)
		}
	case "Decimal":
		switch n := value.(type) {
		case string:
			d, err := decimal.Parse(n)
			if err != nil {
				return nil, coercionErr(factID, "Decimal", value)
			}
			return d, nil
		case float64:
			d, err := decimal.Parse(fmt.Sprintf("%v", n))
			if err != nil {
				return nil, coercionErr(factID, "Decimal", value)
			}
			return d, nil
		default:
			return nil, coercionErr(factID, "Decimal", value)
		}
	case "Text", "Enum":
		s, ok := value.(string)
		if !ok {
			return nil, coercionErr(factID, kind, value)
		}
		if kind == "Enum" {
			values, _ := t["values"].([]any)
			found := false
			for _, v := range values {
				if v == s {
					found = true
					break
				}
			}
			if !found {
				return nil, NewError(KindFactCoercion, fmt.Sprintf("fact '%s' value %q is not a declared Enum value", factID, s)).WithFact(factID)
			}
		}
		return s, nil
	case "Date":
		return coerceTime(value, factID, "2006-01-02", false)
	case "DateTime":
		return coerceTime(value, factID, time.RFC3339, true)
	case "Money":
		m, ok := value.(map[string]any)
		if !ok {
			return nil, coercionErr(factID, "Money", value)
		}
		amountStr, _ := m["amount"].(string)
		currency, _ := m["currency"].(string)
		declaredCurrency, _ := t["currency"].(string)
		if declaredCurrency != "" && currency != declaredCurrency {
			return nil, NewError(KindFactCoercion, fmt.Sprintf("fact '%s' currency %q does not match declared currency %q", factID, currency, declaredCurrency)).WithFact(factID)
		}
		amount, err := decimal.Parse(amountStr)
		if err != nil {
			return nil, coercionErr(factID, "Money", value)
		}
		return decimal.Money{Amount: amount, Currency: currency}, nil
	case "Duration":
		switch n := value.(type) {
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		default:
			return nil, coercionErr(factID, "Duration", value)
		}
	case "Record":
		m, ok := value.(map[string]any)
		if !ok {
			return nil, coercionErr(factID, "Record", value)
		}
		fields, _ := t["fields"].(map[string]any)
		out := make(map[string]any, len(fields))
		for fname, ftype := range fields {
			ft, _ := ftype.(map[string]any)
			fv, ok := m[fname]
			if !ok {
				return nil, NewError(KindFactCoercion, fmt.Sprintf("fact '%s' record is missing field '%s'", factID, fname)).WithFact(factID)
			}
			coerced, err := coerceValue(fv, ft, factID)
			if err != nil {
				return nil, err
			}
			out[fname] = coerced
		}
		return out, nil
	case "List":
		items, ok := value.([]any)
		if !ok {
			return nil, coercionErr(factID, "List", value)
		}
		elemType, _ := t["element_type"].(map[string]any)
		out := make([]any, len(items))
		for i, item := range items {
			coerced, err := coerceValue(item, elemType, factID)
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return out, nil
	default:
		return nil, NewError(KindFactCoercion, fmt.Sprintf("fact '%s' has unresolved or unknown type kind %q", factID, kind)).WithFact(factID)
	}
}

func coerceTime(value any, factID, layout string, toUTC bool) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, coercionErr(factID, layout, value)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil, NewError(KindFactCoercion, fmt.Sprintf("fact '%s' value %q does not match %s layout", factID, s, layout)).WithFact(factID)
	}
	if toUTC {
		t = t.UTC()
	}
	return t, nil
}

func coercionErr(factID, wantKind string, value any) *Error {
	return NewError(KindFactCoercion, fmt.Sprintf("fact '%s' value %v cannot be coerced to %s", factID, value, wantKind)).WithFact(factID)
}
