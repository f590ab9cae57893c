package ast

// TypeKind discriminates the variants of RawType. Go has no sum types, so
// RawType is a single struct carrying every variant's fields, tagged by
// Kind; code that switches on Kind is expected to handle every case below.
type TypeKind int

const (
	TypeBool TypeKind = iota
	TypeInt
	TypeDecimal
	TypeText
	TypeDate
	TypeDateTime
	TypeMoney
	TypeDuration
	TypeEnum
	TypeRecord
	TypeList
	TypeRef
)

func (k TypeKind) String() string {
	switch k {
	case TypeBool:
		return "Bool"
	case TypeInt:
		return "Int"
	case TypeDecimal:
		return "Decimal"
	case TypeText:
		return "Text"
	case TypeDate:
		return "Date"
	case TypeDateTime:
		return "DateTime"
	case TypeMoney:
		return "Money"
	case TypeDuration:
		return "Duration"
	case TypeEnum:
		return "Enum"
	case TypeRecord:
		return "Record"
	case TypeList:
		return "List"
	case TypeRef:
		return "TypeRef"
	default:
		return "Unknown"
	}
}

// RawType is a semantic type as it appears in source, before TypeRef
// resolution (Pass 3/4). Only the fields relevant to Kind are populated.
type RawType struct {
	Kind TypeKind

	// Int
	Min int64
	Max int64

	// Decimal
	Precision uint32
	Scale     uint32

	// Text
	MaxLength uint32

	// Money
	Currency string

	// Duration
	Unit string
	// Duration reuses Min/Max above.

	// Enum
	Values []string

	// Record
	Fields map[string]RawType

	// List
	ElementType *RawType
	// List reuses Max above.

	// TypeRef
	RefName string
}
