// mkfixture writes a synthetic encounter-code file for manual runs.
// Usage: go run ./cmd/mkfixture --out testdata/encounters.parquet --pregnancies 500
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/pregclass/internal/model"
	"github.com/gyeh/pregclass/internal/normalize"
	"github.com/gyeh/pregclass/internal/table"
)

// poolCode is one candidate code; weight is its relative draw frequency.
type poolCode struct {
	typ, version, code string
	weight             int
}

var codePool = []poolCode{
	{"DX", "ICD10", "O80", 30},
	{"DX", "ICD10", "Z37.0", 30},
	{"DX", "ICD10", "Z34.00", 40},
	{"DX", "ICD10", "O10.02", 4},
	{"DX", "ICD10", "O14.13", 3},
	{"DX", "ICD10", "O24.410", 6},
	{"DX", "ICD10", "O36.5930", 3},
	{"DX", "ICD10", "O00.101", 1},
	{"DX", "ICD10", "O03.9", 2},
	{"PX", "ICD10", "30233N1", 2},
	{"PX", "ICD10", "10D00Z1", 10},
	{"DX", "ICD9", "650", 20},
	{"DX", "ICD9", "V27.0", 20},
	{"DX", "ICD9", "642.33", 4},
	{"DX", "ICD9", "642.43", 3},
	{"DX", "ICD9", "642.63", 1},
	{"DX", "ICD9", "648.83", 5},
	{"PX", "ICD9", "99.04", 2},
	{"PX", "ICD9", "74.1", 8},
	{"PX", "CPT4", "59410", 15},
	{"PX", "CPT4", "59510", 8},
	{"DRG", "MS-DRG", "775", 15},
	{"DRG", "MS-DRG", "766", 6},
	{"LAB", "LOINC", "2345-7", 2},
}

var ageBands = []string{"<35", "<35", "<35", "35-39", "40-44", ">44", "29", "37", ""}

func main() {
	out := flag.String("out", "testdata/encounters.parquet", "output file (.parquet or .csv)")
	pregnancies := flag.Int("pregnancies", 200, "pregnancies to generate")
	maxCodes := flag.Int("codes", 6, "max codes per pregnancy")
	seed := flag.Uint64("seed", 1, "random seed")
	checkOnly := flag.String("check", "", "read an existing file and print its code distribution")
	flag.Parse()

	if *checkOnly != "" {
		if err := check(*checkOnly); err != nil {
			fmt.Fprintf(os.Stderr, "check: %v\n", err)
			os.Exit(1)
		}
		return
	}

	format, err := table.FormatOf(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rows := generate(rand.New(rand.NewPCG(*seed, *seed)), *pregnancies, *maxCodes)

	switch format {
	case table.FormatParquet:
		err = writeParquet(*out, rows)
	default:
		err = writeCSV(*out, rows)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d rows for %d pregnancies to %s\n", len(rows), *pregnancies, *out)
}

func generate(rng *rand.Rand, pregnancies, maxCodes int) []model.EncounterCodeRow {
	total := 0
	for _, c := range codePool {
		total += c.weight
	}
	draw := func() poolCode {
		n := rng.IntN(total)
		for _, c := range codePool {
			if n < c.weight {
				return c
			}
			n -= c.weight
		}
		return codePool[len(codePool)-1]
	}

	var rows []model.EncounterCodeRow
	for p := 0; p < pregnancies; p++ {
		patient := fmt.Sprintf("P%05d", p/2)
		pregnancy := strconv.Itoa(p%2 + 1)
		var age *string
		if band := ageBands[rng.IntN(len(ageBands))]; band != "" {
			age = &band
		}
		for n := 1 + rng.IntN(maxCodes); n > 0; n-- {
			c := draw()
			rows = append(rows, model.EncounterCodeRow{
				PatientID:   patient,
				PregnancyID: pregnancy,
				CodeType:    c.typ,
				Version:     c.version,
				Code:        c.code,
				AgeBand:     age,
			})
		}
	}
	return rows
}

func writeParquet(path string, rows []model.EncounterCodeRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := goparquet.NewGenericWriter[model.EncounterCodeRow](f)
	if _, err := w.Write(rows); err != nil {
		return err
	}
	return w.Close()
}

func writeCSV(path string, rows []model.EncounterCodeRow) error {
	records := [][]string{{"patient_id", "pregnancy_id", "code_type", "version", "code", "age_band"}}
	for _, r := range rows {
		age := ""
		if r.AgeBand != nil {
			age = *r.AgeBand
		}
		records = append(records, []string{r.PatientID, r.PregnancyID, r.CodeType, r.Version, r.Code, age})
	}
	df := dataframe.LoadRecords(records, dataframe.HasHeader(true), dataframe.DetectTypes(false), dataframe.NaNValues([]string{}))
	if df.Err != nil {
		return df.Err
	}
	return table.WriteCSV(df, path)
}

func check(path string) error {
	df, err := table.Read(path, "")
	if err != nil {
		return err
	}
	cols := table.DefaultColumns()
	for _, n := range df.Names() {
		if n == "age_band" {
			cols.Age = n
		}
	}
	recs, err := table.Extract(df, cols)
	if err != nil {
		return err
	}
	codes, adv := normalize.Records(recs)

	perCell := make(map[model.Cell]int)
	unmapped := 0
	for _, c := range codes {
		if !c.Mapped {
			unmapped++
			continue
		}
		perCell[c.Cell]++
	}
	fmt.Printf("Rows: %d, entities: %d, unmapped: %d\n", len(recs), len(normalize.Entities(recs)), unmapped)
	fmt.Println("Code distribution:")
	for _, cell := range model.AllCells() {
		if n := perCell[cell]; n > 0 {
			fmt.Printf("  %-20s %d\n", cell, n)
		}
	}
	if len(adv.UnknownTypes) > 0 {
		fmt.Printf("Unrecognized types: %v\n", adv.UnknownTypes)
	}
	return nil
}
