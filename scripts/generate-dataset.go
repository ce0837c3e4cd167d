//go:build ignore

// Package main generates a synthetic NEO CSV and close-approach JSON pair
// for profiling and load testing.
// Usage: go run scripts/generate-dataset.go -neos 30000 -approaches 400000 -output testdata/large
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	numNEOs       = flag.Int("neos", 30000, "Number of NEOs to generate")
	numApproaches = flag.Int("approaches", 400000, "Number of close approaches to generate")
	orphanRate    = flag.Float64("orphans", 0.01, "Fraction of approaches whose designation has no NEO")
	outputDir     = flag.String("output", "testdata/large", "Output directory")
	seed          = flag.Uint64("seed", 42, "Random seed for reproducibility")
)

var names = []string{
	"Eros", "Apophis", "Bennu", "Ryugu", "Phaethon", "Toutatis", "Icarus",
	"Geographos", "Florence", "Didymos", "Itokawa", "Ganymed",
}

// cadEpoch bounds generated approach times to 1900-2200.
var (
	cadStart = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	cadSpan  = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC).Sub(cadStart)
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewPCG(*seed, *seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	designations := make([]string, *numNEOs)
	for i := range designations {
		designations[i] = designation(i)
	}

	neoPath := filepath.Join(*outputDir, "neos.csv")
	if err := writeNEOs(neoPath, designations, rng); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", neoPath, err)
		os.Exit(1)
	}
	cadPath := filepath.Join(*outputDir, "cad.json")
	if err := writeApproaches(cadPath, designations, rng); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", cadPath, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d NEOs in %s and %d close approaches in %s.\n",
		*numNEOs, neoPath, *numApproaches, cadPath)
}

// designation returns numbered designations for the first tenth and
// provisional ones ("2020 AB12") after that.
func designation(i int) string {
	if i < *numNEOs/10 {
		return strconv.Itoa(i + 1)
	}
	year := 1990 + i%35
	half := string(rune('A' + (i/35)%24))
	letter := string(rune('A' + (i/840)%25))
	return fmt.Sprintf("%d %s%s%d", year, half, letter, i/21000)
}

func writeNEOs(path string, designations []string, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	if err := w.Write([]string{"pdes", "name", "pha", "diameter"}); err != nil {
		return err
	}
	for i, pdes := range designations {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		pha := "N"
		if rng.Float64() < 0.08 {
			pha = "Y"
		}
		diameter := ""
		if rng.Float64() < 0.3 {
			diameter = strconv.FormatFloat(0.01+rng.ExpFloat64()*0.5, 'f', 3, 64)
		}
		if err := w.Write([]string{pdes, name, pha, diameter}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func writeApproaches(path string, designations []string, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	fields, _ := json.Marshal([]string{"des", "orbit_id", "jd", "cd", "dist", "v_rel"})
	fmt.Fprintf(bw, "{\"signature\":{\"source\":\"synthetic\",\"version\":\"1.1\"},\"count\":\"%d\",\"fields\":%s,\"data\":[\n",
		*numApproaches, fields)

	for i := range *numApproaches {
		des := designations[rng.IntN(len(designations))]
		if rng.Float64() < *orphanRate {
			des = fmt.Sprintf("X %d", i)
		}
		at := cadStart.Add(time.Duration(rng.Int64N(int64(cadSpan)))).Truncate(time.Minute)
		jd := 2440587.5 + float64(at.Unix())/86400
		row, _ := json.Marshal([]string{
			des,
			strconv.Itoa(1 + rng.IntN(200)),
			strconv.FormatFloat(jd, 'f', 9, 64),
			at.Format("2006-Jan-02 15:04"),
			strconv.FormatFloat(rng.Float64()*0.5, 'g', -1, 64),
			strconv.FormatFloat(1+rng.Float64()*40, 'g', -1, 64),
		})
		sep := ",\n"
		if i == *numApproaches-1 {
			sep = "\n"
		}
		bw.Write(row)
		bw.WriteString(sep)
	}
	bw.WriteString("]}\n")
	return bw.Flush()
}
