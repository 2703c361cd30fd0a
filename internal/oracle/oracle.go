// Package oracle maps calendar days to the color of the day.
//
// Colors come from a static calendar (data/colors.json) when the day has an
// entry, and are otherwise derived from HMAC-SHA256(salt, YYYY-MM-DD) so that
// every instance sharing the salt agrees on the color without coordination.
package oracle

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DateLayout is the canonical date key format.
const DateLayout = "2006-01-02"

// Source tells where a color came from.
type Source string

const (
	SourceCalendar Source = "calendar"
	SourceDerived  Source = "derived"
)

var hexColorPattern = regexp.MustCompile(`^[A-Fa-f0-9]{6}$`)

// Oracle answers "what is the color for this day".
type Oracle struct {
	table map[string]string
	salt  string
	loc   *time.Location
}

// New builds an Oracle. Table values must already be normalized; a nil
// location means UTC.
func New(table map[string]string, salt string, loc *time.Location) *Oracle {
	if loc == nil {
		loc = time.UTC
	}
	if table == nil {
		table = map[string]string{}
	}
	return &Oracle{table: table, salt: salt, loc: loc}
}

// Location returns the location the oracle uses to decide the calendar day.
func (o *Oracle) Location() *time.Location { return o.loc }

// Entries returns how many days the static calendar covers.
func (o *Oracle) Entries() int { return len(o.table) }

// DateKey returns the YYYY-MM-DD key of t in the oracle's location.
func (o *Oracle) DateKey(t time.Time) string {
	return DateKey(t, o.loc)
}

// ColorFor returns the color of the day containing t.
func (o *Oracle) ColorFor(t time.Time) string {
	color, _ := o.Lookup(o.DateKey(t))
	return color
}

// Lookup returns the color for a date key and where it came from.
func (o *Oracle) Lookup(date string) (string, Source) {
	if c, ok := o.table[date]; ok {
		return c, SourceCalendar
	}
	return Derive(date, o.salt), SourceDerived
}

// DateKey returns the YYYY-MM-DD form of t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// Derive returns the deterministic fallback color for a date key.
func Derive(date, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(date))
	sum := h.Sum(nil)
	return strings.ToUpper(hex.EncodeToString(sum[:3]))
}

// IsHexColor reports whether s is exactly six hex digits.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// Normalize strips one leading '#' and upper-cases the digits. It returns an
// error when the remainder is not six hex digits.
func Normalize(s string) (string, error) {
	c := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if !IsHexColor(c) {
		return "", fmt.Errorf("invalid hex color %q", s)
	}
	return strings.ToUpper(c), nil
}

// LoadCalendar reads a {"YYYY-MM-DD": "#rrggbb"} JSON file. A missing file
// yields an empty table. Malformed entries are skipped.
func LoadCalendar(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", path).Msg("color calendar not found, using derived colors only")
			return map[string]string{}, nil
		}
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse color calendar %s: %w", path, err)
	}
	return ParseCalendar(raw), nil
}

// ParseCalendar normalizes a raw calendar, dropping bad dates and colors.
func ParseCalendar(raw map[string]string) map[string]string {
	valid := lo.PickBy(raw, func(date, color string) bool {
		if _, err := time.Parse(DateLayout, date); err != nil {
			log.Warn().Str("date", date).Msg("skipping calendar entry with malformed date")
			return false
		}
		if _, err := Normalize(color); err != nil {
			log.Warn().Str("date", date).Str("color", color).Msg("skipping calendar entry with malformed color")
			return false
		}
		return true
	})
	return lo.MapValues(valid, func(color, _ string) string {
		c, _ := Normalize(color)
		return c
	})
}

// GenerateCalendar builds a table for days consecutive dates starting at the
// day of start. pick chooses the color for each date key.
func GenerateCalendar(start time.Time, days int, pick func(date string) string) map[string]string {
	out := make(map[string]string, days)
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		key := d.AddDate(0, 0, i).Format(DateLayout)
		out[key] = pick(key)
	}
	return out
}

// RandomColor returns a uniformly random color.
func RandomColor() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Warn().Err(err).Msg("random color generation failed, using black")
		return "000000"
	}
	return strings.ToUpper(hex.EncodeToString(b[:]))
}

// DerivedPicker returns a pick function producing the derived color.
func DerivedPicker(salt string) func(string) string {
	return func(date string) string { return Derive(date, salt) }
}

// RandomPicker ignores the date and returns a random color.
func RandomPicker(string) string { return RandomColor() }
