package normalize

import (
	"sort"
	"strings"

	"github.com/gyeh/pregclass/internal/model"
)

// Record converts a raw CodeRecord into its canonical form. It never fails:
// a record whose type or system token has no canonical value comes back
// with Mapped=false.
func Record(rec *model.CodeRecord) model.NormalizedCode {
	ct, typeOK := CodeType(rec.Type)
	cs, sysOK := CodingSystem(rec.System)
	return model.NormalizedCode{
		Entity: rec.Entity,
		Cell:   model.Cell{Type: ct, System: cs},
		Mapped: typeOK && sysOK,
		Code:   Code(rec.Code),
	}
}

// Records normalizes a batch and collects the distinct type and system
// tokens that fell outside the synonym tables. The input slice is not
// modified.
func Records(recs []model.CodeRecord) ([]model.NormalizedCode, model.Advisory) {
	out := make([]model.NormalizedCode, len(recs))
	unknownTypes := make(map[string]struct{})
	unknownSystems := make(map[string]struct{})

	for i := range recs {
		out[i] = Record(&recs[i])
		if _, ok := CodeType(recs[i].Type); !ok {
			unknownTypes[strings.ToLower(recs[i].Type)] = struct{}{}
		}
		if _, ok := CodingSystem(recs[i].System); !ok {
			unknownSystems[strings.ToUpper(recs[i].System)] = struct{}{}
		}
	}

	return out, model.Advisory{
		UnknownTypes:   sortedKeys(unknownTypes),
		UnknownSystems: sortedKeys(unknownSystems),
	}
}

// Entities returns the distinct entities of recs in first-seen order.
func Entities(recs []model.CodeRecord) []model.EntityKey {
	seen := make(map[model.EntityKey]struct{}, len(recs))
	out := make([]model.EntityKey, 0)
	for i := range recs {
		if _, ok := seen[recs[i].Entity]; ok {
			continue
		}
		seen[recs[i].Entity] = struct{}{}
		out = append(out, recs[i].Entity)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
