package normalize

import (
	"strings"

	"github.com/gyeh/pregclass/internal/model"
)

// typeSynonyms maps case-folded code type tokens to their canonical value.
var typeSynonyms = map[string]model.CodeType{
	"dx":                       model.Diagnosis,
	"diagnosis":                model.Diagnosis,
	"px":                       model.Procedure,
	"procedure":                model.Procedure,
	"drg":                      model.DRGType,
	"diagnostic related group": model.DRGType,
	"diagnostic grouping":      model.DRGType,
}

// systemSynonyms maps case-folded coding system tokens to their canonical value.
var systemSynonyms = map[string]model.CodingSystem{
	"9":                        model.ICD9,
	"icd9":                     model.ICD9,
	"10":                       model.ICD10,
	"icd10":                    model.ICD10,
	"icd10-cm":                 model.ICD10,
	"icd10-pcs":                model.ICD10,
	"drg":                      model.DRGSystem,
	"diagnostic related group": model.DRGSystem,
	"diagnostic grouping":      model.DRGSystem,
	"ms-drg":                   model.DRGSystem,
	"cpt4":                     model.CPT4,
	"cpt":                      model.CPT4,
}

func init() {
	// Canonical names are accepted as their own synonyms.
	for _, ct := range model.AllCodeTypes {
		typeSynonyms[strings.ToLower(string(ct))] = ct
	}
	for _, cs := range model.AllCodingSystems {
		systemSynonyms[strings.ToLower(string(cs))] = cs
	}
}

// CodeType maps a raw code type token onto the canonical enumeration.
// Matching is case-insensitive; ok is false for unrecognized tokens.
func CodeType(token string) (model.CodeType, bool) {
	ct, ok := typeSynonyms[strings.ToLower(token)]
	return ct, ok
}

// CodingSystem maps a raw coding system token onto the canonical enumeration.
func CodingSystem(token string) (model.CodingSystem, bool) {
	cs, ok := systemSynonyms[strings.ToLower(token)]
	return cs, ok
}

// Code removes every literal period and upper-cases letters. Whitespace and
// leading zeros are passed through unchanged.
func Code(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(raw, ".", ""))
}
