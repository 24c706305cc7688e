package core

import (
	"encoding/json"
	"testing"
)

func TestScoreClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Score
		want Score
	}{
		{name: "below floor", in: -200, want: 0},
		{name: "at floor", in: 0, want: 0},
		{name: "in range", in: 9750, want: 9750},
		{name: "at ceiling", in: 10000, want: 10000},
		{name: "above ceiling", in: 10250, want: 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamp(); got != tt.want {
				t.Errorf("Clamp() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestScoreString(t *testing.T) {
	tests := []struct {
		in   Score
		want string
	}{
		{in: 0, want: "0.00"},
		{in: 1, want: "0.01"},
		{in: 9750, want: "97.50"},
		{in: 10000, want: "100.00"},
		{in: -500, want: "-5.00"},
		{in: -25, want: "-0.25"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.in.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Score
		wantErr bool
	}{
		{name: "two places", in: "97.50", want: 9750},
		{name: "one place", in: "97.5", want: 9750},
		{name: "no places", in: "98", want: 9800},
		{name: "zero", in: "0", want: 0},
		{name: "negative", in: "-5.00", want: -500},
		{name: "explicit plus", in: "+2.5", want: 250},
		{name: "fraction only", in: ".25", want: 25},
		{name: "padded", in: " 100.00 ", want: 10000},
		{name: "too many places", in: "97.505", wantErr: true},
		{name: "not a number", in: "lol", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScore(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScore(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseScore(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestScoreJSON(t *testing.T) {
	type payload struct {
		Score Score `json:"score"`
	}

	out, err := json.Marshal(payload{Score: 9750})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"score":97.50}` {
		t.Errorf("Marshal() = %s", out)
	}

	var in payload
	if err = json.Unmarshal([]byte(`{"score":98.25}`), &in); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if in.Score != 9825 {
		t.Errorf("Unmarshal() = %d, want 9825", in.Score)
	}
}

func TestScoreScan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want Score
	}{
		{name: "bytes", src: []byte("97.50"), want: 9750},
		{name: "string", src: "100.00", want: 10000},
		{name: "int64", src: int64(98), want: 9800},
		{name: "float64", src: 97.5, want: 9750},
		{name: "nil", src: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Score
			if err := s.Scan(tt.src); err != nil {
				t.Fatalf("Scan(%v) error = %v", tt.src, err)
			}
			if s != tt.want {
				t.Errorf("Scan(%v) = %d, want %d", tt.src, s, tt.want)
			}
		})
	}

	var s Score
	if err := s.Scan(true); err == nil {
		t.Error("Scan(bool) expected an error")
	}
}

func TestScoreValue(t *testing.T) {
	val, err := Score(9750).Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if val != "97.50" {
		t.Errorf("Value() = %v, want 97.50", val)
	}
}
