// Package ast defines the raw, pre-elaboration syntax tree produced by the
// parser. These types are shared by every elaboration pass; passes never
// import each other's node types, only this package's.
package ast

import "fmt"

// Provenance pins a node to the file and 1-based line it was parsed from.
type Provenance struct {
	File string
	Line uint32
}

func (p Provenance) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}
