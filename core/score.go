package core

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Score is a fixed-point percentage expressed in hundredths of a percent
// (9750 = 97.50%). Deltas use the same type and may be negative.
// Integer arithmetic keeps the score ledger exactly balanced against the
// stored score trajectory; binary floats would drift.
type Score int64

const (
	MinScore Score = 0
	MaxScore Score = 10000 // 100.00%
)

// Clamp bounds s to the valid social score range [0.00, 100.00].
func (s Score) Clamp() Score {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

func (s Score) Float64() float64 {
	return float64(s) / 100
}

// String renders the score as a decimal with two places, e.g. "97.50".
func (s Score) String() string {
	units := s / 100
	hundredths := s % 100
	if hundredths < 0 {
		hundredths = -hundredths
	}
	if s < 0 && units == 0 {
		return fmt.Sprintf("-0.%02d", hundredths)
	}
	return fmt.Sprintf("%d.%02d", units, hundredths)
}

// ParseScore parses decimal representations such as "97.5", "97.50" or "-5".
// At most two fractional digits are kept; extra digits are an error rather
// than silently truncated.
func ParseScore(s string) (Score, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty score")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 2 {
		return 0, errors.Errorf("score %q has more than two decimal places", s)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing score %q", s)
	}
	hundredths, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing score %q", s)
	}

	val := Score(units*100 + hundredths)
	if neg {
		val = -val
	}
	return val, nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Score) UnmarshalJSON(data []byte) error {
	val, err := ParseScore(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = val
	return nil
}

// Scan implements sql.Scanner; Postgres NUMERIC(5,2) arrives as text.
func (s *Score) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = 0
		return nil
	case []byte:
		val, err := ParseScore(string(v))
		if err != nil {
			return err
		}
		*s = val
		return nil
	case string:
		val, err := ParseScore(v)
		if err != nil {
			return err
		}
		*s = val
		return nil
	case int64:
		*s = Score(v * 100)
		return nil
	case float64:
		*s = Score(math.Round(v * 100))
		return nil
	}
	return errors.Errorf("cannot scan %T into Score", src)
}

func (s Score) Value() (driver.Value, error) {
	return s.String(), nil
}
