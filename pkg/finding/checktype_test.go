package finding

import "testing"

func TestCheckTypeIsValid(t *testing.T) {
	t.Parallel()

	for _, c := range CheckTypes() {
		if !c.IsValid() {
			t.Errorf("CheckType(%q).IsValid() = false, want true", c)
		}
	}

	invalid := []CheckType{"", "Vuln", "VULN", "security", "cve"}
	for _, c := range invalid {
		if c.IsValid() {
			t.Errorf("CheckType(%q).IsValid() = true, want false", c)
		}
	}
}

func TestCheckTypeDefaultSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		c    CheckType
		want Severity
	}{
		{CheckVuln, High},
		{CheckProvenance, High},
		{CheckLicense, Medium},
		{CheckMaintenance, Medium},
		{CheckScorecard, Medium},
		{CheckPopularity, Low},
		{CheckOther, Info},
	}
	for _, tt := range tests {
		t.Run(string(tt.c), func(t *testing.T) {
			t.Parallel()
			if got := tt.c.DefaultSeverity(); got != tt.want {
				t.Errorf("%s.DefaultSeverity() = %s, want %s", tt.c, got, tt.want)
			}
		})
	}
}

func TestParseCheckType(t *testing.T) {
	t.Parallel()

	if c, err := ParseCheckType("license"); err != nil || c != CheckLicense {
		t.Errorf("ParseCheckType(license) = %v, %v", c, err)
	}
	if _, err := ParseCheckType("licence"); err == nil {
		t.Error("ParseCheckType(licence) expected error")
	}
}
