// Command calendar writes a color calendar in the format the server loads
// from COLOR_CALENDAR_PATH.
//
//	go run ./cmd/calendar -start=2026-01-01 -days=365 -out=data/colors.json
//
// Existing entries in -out are kept unless -overwrite is set, so extending a
// calendar never changes a day players may already have seen.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"colordle/internal/oracle"
)

func main() {
	var (
		start     = flag.String("start", time.Now().UTC().Format(oracle.DateLayout), "First day (YYYY-MM-DD)")
		days      = flag.Int("days", 31, "Number of days to generate")
		out       = flag.String("out", "data/colors.json", "Output file")
		mode      = flag.String("mode", "random", "Color source: random or derived")
		salt      = flag.String("salt", os.Getenv("COLOR_SALT"), "Salt for derived mode")
		overwrite = flag.Bool("overwrite", false, "Replace existing entries for generated days")
	)
	flag.Parse()

	first, err := time.Parse(oracle.DateLayout, *start)
	if err != nil {
		log.Fatalf("Invalid -start %q: %v", *start, err)
	}
	if *days <= 0 {
		log.Fatalf("-days must be positive, got %d", *days)
	}

	pick, err := picker(*mode, *salt)
	if err != nil {
		log.Fatal(err)
	}

	existing, err := oracle.LoadCalendar(*out)
	if err != nil {
		log.Fatalf("Failed to read existing calendar: %v", err)
	}
	generated := oracle.GenerateCalendar(first, *days, pick)

	merged := mergeCalendars(existing, generated, *overwrite)
	if err := writeCalendar(*out, merged); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	fmt.Printf("Wrote %d days (%d new) to %s\n", len(merged), len(merged)-len(existing), *out)
}

func picker(mode, salt string) (func(string) string, error) {
	switch mode {
	case "random":
		return oracle.RandomPicker, nil
	case "derived":
		if salt == "" {
			return nil, fmt.Errorf("derived mode needs -salt or COLOR_SALT")
		}
		return oracle.DerivedPicker(salt), nil
	default:
		return nil, fmt.Errorf("unknown -mode %q (want random or derived)", mode)
	}
}

// mergeCalendars adds generated days to existing. Days present in both keep
// the existing color unless overwrite is set.
func mergeCalendars(existing, generated map[string]string, overwrite bool) map[string]string {
	if overwrite {
		return lo.Assign(existing, generated)
	}
	return lo.Assign(generated, existing)
}

// writeCalendar stores colors as "#rrggbb" keyed by date.
func writeCalendar(path string, table map[string]string) error {
	out := lo.MapValues(table, func(c, _ string) string { return "#" + c })
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
