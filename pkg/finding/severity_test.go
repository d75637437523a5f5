package finding

import (
	"encoding/json"
	"sort"
	"testing"
)

func TestSeverityIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    Severity
		want bool
	}{
		{Critical, true},
		{High, true},
		{Medium, true},
		{Low, true},
		{Info, true},
		{"Unknown", false},
		{"", false},
		{"CRITICAL", false}, // case-sensitive
		{"Critical", false}, // must be lowercase
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			t.Parallel()
			if got := tt.s.IsValid(); got != tt.want {
				t.Errorf("Severity(%q).IsValid() = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func TestSeverityScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    Severity
		want int
	}{
		{Critical, 5},
		{High, 4},
		{Medium, 3},
		{Low, 2},
		{Info, 1},
		{"Unknown", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			t.Parallel()
			if got := tt.s.Score(); got != tt.want {
				t.Errorf("Severity(%q).Score() = %d, want %d", tt.s, got, tt.want)
			}
		})
	}
}

func TestSeveritySortOrder(t *testing.T) {
	t.Parallel()

	input := []Severity{Low, Critical, Medium, Info, High}
	sort.Slice(input, func(i, j int) bool {
		return input[i].Score() > input[j].Score()
	})
	expected := []Severity{Critical, High, Medium, Low, Info}
	for i, s := range input {
		if s != expected[i] {
			t.Errorf("pos %d: got %s, want %s", i, s, expected[i])
		}
	}
}

func TestSeverityJSON(t *testing.T) {
	t.Parallel()

	original := Critical
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"critical"` {
		t.Errorf("got %s, want %q", data, "critical")
	}

	var decoded Severity
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip: got %s, want %s", decoded, original)
	}
}

func TestSeverityString(t *testing.T) {
	t.Parallel()

	if s := Critical.String(); s != "critical" {
		t.Errorf("got %q, want %q", s, "critical")
	}
	if s := Info.String(); s != "info" {
		t.Errorf("got %q, want %q", s, "info")
	}
}

func TestOrdered(t *testing.T) {
	t.Parallel()

	ordered := Ordered()
	if len(ordered) != 5 {
		t.Fatalf("Ordered() returned %d severities, want 5", len(ordered))
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Score() <= ordered[i].Score() {
			t.Errorf("Ordered()[%d]=%s does not outrank [%d]=%s",
				i-1, ordered[i-1], i, ordered[i])
		}
	}

	strs := OrderedStrings()
	if len(strs) != len(ordered) {
		t.Fatalf("OrderedStrings() length %d != Ordered() length %d", len(strs), len(ordered))
	}
	for i, s := range strs {
		if s != string(ordered[i]) {
			t.Errorf("OrderedStrings()[%d] = %q, want %q", i, s, ordered[i])
		}
	}
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    Severity
		wantErr bool
	}{
		{"critical", Critical, false},
		{"CRITICAL", Critical, false},
		{"High", High, false},
		{"  medium  ", Medium, false},
		{"low", Low, false},
		{"info", Info, false},
		{"", "", true},
		{"severe", "", true},
		{"crit", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSeverity(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSeverity(%q) expected error, got %q", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSeverity(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseSeverity(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFromCVSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  Severity
	}{
		{10.0, Critical},
		{9.0, Critical},
		{8.9, High},
		{7.0, High},
		{6.9, Medium},
		{4.0, Medium},
		{3.9, Low},
		{0.1, Low},
		{0.0, Info},
		{-1.0, Info},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			t.Parallel()
			if got := FromCVSS(tt.score); got != tt.want {
				t.Errorf("FromCVSS(%.1f) = %q, want %q", tt.score, got, tt.want)
			}
		})
	}
}

func TestSeverityToSARIF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s         Severity
		wantLevel string
		wantScore string
	}{
		{Critical, "error", "9.5"},
		{High, "error", "8.0"},
		{Medium, "warning", "5.5"},
		{Low, "note", "2.0"},
		{Info, "note", "0.0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			t.Parallel()
			if got := tt.s.ToSARIF(); got != tt.wantLevel {
				t.Errorf("ToSARIF() = %q, want %q", got, tt.wantLevel)
			}
			if got := tt.s.ToSARIFScore(); got != tt.wantScore {
				t.Errorf("ToSARIFScore() = %q, want %q", got, tt.wantScore)
			}
		})
	}
}
