package model

import "strings"

// EntityKey identifies the unit of aggregation: a (patient, pregnancy) pair
// or a single encounter id. Single-part keys leave the second slot empty.
type EntityKey [2]string

// NewEntityKey builds a key from one or two identifier parts.
func NewEntityKey(parts ...string) EntityKey {
	var k EntityKey
	for i := 0; i < len(parts) && i < len(k); i++ {
		k[i] = parts[i]
	}
	return k
}

// Parts returns the first n parts of the key.
func (k EntityKey) Parts(n int) []string {
	if n > len(k) {
		n = len(k)
	}
	return append([]string(nil), k[:n]...)
}

func (k EntityKey) String() string {
	if k[1] == "" {
		return k[0]
	}
	return strings.Join(k[:], "/")
}

// CodeRecord is one row of input: a single code of a given type and version
// attached to an entity. Type, System and Code are kept exactly as supplied.
type CodeRecord struct {
	Entity EntityKey
	Type   string
	System string
	Code   string
	Age    string // optional age or age band, only read by comorbidity scoring
}

// NormalizedCode is the canonical form of a CodeRecord. Mapped is false when
// either the type or the system token had no canonical value; such rows
// cannot be matched but their entity still counts.
type NormalizedCode struct {
	Entity EntityKey
	Cell   Cell
	Mapped bool
	Code   string
}

// Match associates an entity with the label of a rule that matched one of
// its codes. Weights is only populated for scoring tables.
type Match struct {
	Entity  EntityKey
	Label   string
	Weights []int
}

// EncounterCodeRow is the Parquet layout written by mkfixture and read back
// by tests. Real inputs may use any column names; see the table package.
type EncounterCodeRow struct {
	PatientID   string  `parquet:"patient_id"`
	PregnancyID string  `parquet:"pregnancy_id"`
	CodeType    string  `parquet:"code_type"`
	Version     string  `parquet:"version"`
	Code        string  `parquet:"code"`
	AgeBand     *string `parquet:"age_band,optional"`
}
