package model

// CodeType is the canonical category of a clinical code.
type CodeType string

const (
	Diagnosis CodeType = "DIAGNOSIS"
	Procedure CodeType = "PROCEDURE"
	DRGType   CodeType = "DRG"
)

// CodingSystem is the canonical vocabulary a code is drawn from.
type CodingSystem string

const (
	ICD9      CodingSystem = "ICD9"
	ICD10     CodingSystem = "ICD10"
	DRGSystem CodingSystem = "DRG"
	CPT4      CodingSystem = "CPT4"
)

// AllCodeTypes lists the canonical code types in output order.
var AllCodeTypes = []CodeType{Diagnosis, Procedure, DRGType}

// AllCodingSystems lists the canonical coding systems in output order.
var AllCodingSystems = []CodingSystem{ICD9, ICD10, DRGSystem, CPT4}

// Cell is one (code type, coding system) partition. Reference rules and
// input codes only ever meet inside the same cell.
type Cell struct {
	Type   CodeType
	System CodingSystem
}

func (c Cell) String() string {
	return string(c.Type) + "/" + string(c.System)
}

// AllCells returns every cell in a fixed order, used to keep partition
// processing deterministic.
func AllCells() []Cell {
	cells := make([]Cell, 0, len(AllCodeTypes)*len(AllCodingSystems))
	for _, t := range AllCodeTypes {
		for _, s := range AllCodingSystems {
			cells = append(cells, Cell{Type: t, System: s})
		}
	}
	return cells
}

// CodeTypeByName returns the CodeType with the given canonical name, or ok=false.
func CodeTypeByName(name string) (CodeType, bool) {
	for _, ct := range AllCodeTypes {
		if string(ct) == name {
			return ct, true
		}
	}
	return "", false
}

// CodingSystemByName returns the CodingSystem with the given canonical name, or ok=false.
func CodingSystemByName(name string) (CodingSystem, bool) {
	for _, cs := range AllCodingSystems {
		if string(cs) == name {
			return cs, true
		}
	}
	return "", false
}
