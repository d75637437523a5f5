// Package defaults provides canonical default values for the entire codebase.
// This file contains OWASP Top 10 2021 reference data - the SINGLE SOURCE OF TRUTH.
//
// Usage:
//
//	category := defaults.OWASPCategoryMapping["vuln"]  // "A06:2021"
//	name := defaults.OWASPTop10[category].Name         // "Vulnerable and Outdated Components"
//	url := defaults.OWASPTop10[category].URL           // "https://owasp.org/..."
package defaults

// OWASPCategory represents an OWASP Top 10 2021 category with all metadata.
type OWASPCategory struct {
	Code        string // e.g., "A06:2021"
	Name        string // e.g., "Vulnerable and Outdated Components"
	FullName    string // e.g., "A06:2021 - Vulnerable and Outdated Components"
	URL         string // Official OWASP URL
	Description string // Brief description
}

// OWASPTop10 contains all OWASP Top 10 2021 categories indexed by code.
// This is the SINGLE SOURCE OF TRUTH for OWASP data across all writers/reporters.
var OWASPTop10 = map[string]OWASPCategory{
	"A01:2021": {
		Code:        "A01:2021",
		Name:        "Broken Access Control",
		FullName:    "A01:2021 - Broken Access Control",
		URL:         "https://owasp.org/Top10/A01_2021-Broken_Access_Control/",
		Description: "Access control enforces policy such that users cannot act outside of their intended permissions.",
	},
	"A02:2021": {
		Code:        "A02:2021",
		Name:        "Cryptographic Failures",
		FullName:    "A02:2021 - Cryptographic Failures",
		URL:         "https://owasp.org/Top10/A02_2021-Cryptographic_Failures/",
		Description: "Failures related to cryptography which often lead to sensitive data exposure.",
	},
	"A03:2021": {
		Code:        "A03:2021",
		Name:        "Injection",
		FullName:    "A03:2021 - Injection",
		URL:         "https://owasp.org/Top10/A03_2021-Injection/",
		Description: "Injection flaws, such as SQL, NoSQL, OS, and LDAP injection, occur when untrusted data is sent to an interpreter.",
	},
	"A04:2021": {
		Code:        "A04:2021",
		Name:        "Insecure Design",
		FullName:    "A04:2021 - Insecure Design",
		URL:         "https://owasp.org/Top10/A04_2021-Insecure_Design/",
		Description: "Missing or ineffective control design. Insecure design cannot be fixed by a perfect implementation.",
	},
	"A05:2021": {
		Code:        "A05:2021",
		Name:        "Security Misconfiguration",
		FullName:    "A05:2021 - Security Misconfiguration",
		URL:         "https://owasp.org/Top10/A05_2021-Security_Misconfiguration/",
		Description: "Security misconfiguration is the most commonly seen issue, often a result of insecure default configurations.",
	},
	"A06:2021": {
		Code:        "A06:2021",
		Name:        "Vulnerable and Outdated Components",
		FullName:    "A06:2021 - Vulnerable and Outdated Components",
		URL:         "https://owasp.org/Top10/A06_2021-Vulnerable_and_Outdated_Components/",
		Description: "Components with known vulnerabilities such as libraries, frameworks, and other software modules.",
	},
	"A07:2021": {
		Code:        "A07:2021",
		Name:        "Identification and Authentication Failures",
		FullName:    "A07:2021 - Identification and Authentication Failures",
		URL:         "https://owasp.org/Top10/A07_2021-Identification_and_Authentication_Failures/",
		Description: "Confirmation of the user's identity, authentication, and session management is critical.",
	},
	"A08:2021": {
		Code:        "A08:2021",
		Name:        "Software and Data Integrity Failures",
		FullName:    "A08:2021 - Software and Data Integrity Failures",
		URL:         "https://owasp.org/Top10/A08_2021-Software_and_Data_Integrity_Failures/",
		Description: "Code and infrastructure that does not protect against integrity violations.",
	},
	"A09:2021": {
		Code:        "A09:2021",
		Name:        "Security Logging and Monitoring Failures",
		FullName:    "A09:2021 - Security Logging and Monitoring Failures",
		URL:         "https://owasp.org/Top10/A09_2021-Security_Logging_and_Monitoring_Failures/",
		Description: "Without logging and monitoring, breaches cannot be detected.",
	},
	"A10:2021": {
		Code:        "A10:2021",
		Name:        "Server-Side Request Forgery",
		FullName:    "A10:2021 - Server-Side Request Forgery (SSRF)",
		URL:         "https://owasp.org/Top10/A10_2021-Server-Side_Request_Forgery_%28SSRF%29/",
		Description: "SSRF flaws occur when a web application fetches a remote resource without validating the user-supplied URL.",
	},
}

// OWASPTop10Ordered returns OWASP Top 10 categories in order (A01 through A10).
// Use this when you need to iterate in numerical order.
var OWASPTop10Ordered = []string{
	"A01:2021",
	"A02:2021",
	"A03:2021",
	"A04:2021",
	"A05:2021",
	"A06:2021",
	"A07:2021",
	"A08:2021",
	"A09:2021",
	"A10:2021",
}

// OWASPCategoryMapping maps guardrail check types to their OWASP Top 10 2021
// codes. Use GetOWASPCategory() for lookup with proper normalization.
//
// License checks are deliberately unmapped: license risk has no OWASP Top 10
// home, so they fall through to the "A00:2021" unknown bucket.
var OWASPCategoryMapping = map[string]string{
	// A06:2021 - Vulnerable and Outdated Components
	"vuln":          "A06:2021",
	"vulnerability": "A06:2021",
	"cve":           "A06:2021",
	"osv":           "A06:2021",
	"maintenance":   "A06:2021",
	"unmaintained":  "A06:2021",
	"abandoned":     "A06:2021",
	"outdated":      "A06:2021",
	"popularity":    "A06:2021",
	"adoption":      "A06:2021",

	// A08:2021 - Software and Data Integrity Failures
	"provenance":   "A08:2021",
	"slsa":         "A08:2021",
	"signature":    "A08:2021",
	"sigstore":     "A08:2021",
	"scorecard":    "A08:2021",
	"openssf":      "A08:2021",
	"supply-chain": "A08:2021",
	"integrity":    "A08:2021",
}

// CategoryReadableNames maps guardrail check types to human-readable names.
var CategoryReadableNames = map[string]string{
	"vuln":          "Known Vulnerabilities",
	"vulnerability": "Known Vulnerabilities",
	"cve":           "Known Vulnerabilities",
	"osv":           "Known Vulnerabilities",
	"license":       "License Compliance",
	"maintenance":   "Maintenance Health",
	"unmaintained":  "Maintenance Health",
	"abandoned":     "Maintenance Health",
	"popularity":    "Adoption and Popularity",
	"adoption":      "Adoption and Popularity",
	"scorecard":     "OpenSSF Scorecard",
	"openssf":       "OpenSSF Scorecard",
	"provenance":    "Build Provenance",
	"slsa":          "Build Provenance",
	"sigstore":      "Build Provenance",
	"other":         "Other Checks",
}

// GetOWASPCategory returns the OWASP Top 10 code for a guardrail check type.
// Returns "A00:2021" (Unknown) if the check type is not mapped.
func GetOWASPCategory(checkType string) string {
	normalized := normalizeCategory(checkType)
	if code, ok := OWASPCategoryMapping[normalized]; ok {
		return code
	}
	return "A00:2021" // Unknown
}

// GetOWASPFullName returns the full OWASP category name (e.g., "A06:2021 - Vulnerable and Outdated Components").
// Returns empty string if code is not found.
func GetOWASPFullName(code string) string {
	if cat, ok := OWASPTop10[code]; ok {
		return cat.FullName
	}
	return ""
}

// GetOWASPURL returns the official OWASP URL for a category code.
// Returns empty string if code is not found.
func GetOWASPURL(code string) string {
	if cat, ok := OWASPTop10[code]; ok {
		return cat.URL
	}
	return ""
}

// GetCategoryReadableName returns a human-readable name for a check type.
// Falls back to title-casing the check type if not found.
func GetCategoryReadableName(checkType string) string {
	normalized := normalizeCategory(checkType)
	if name, ok := CategoryReadableNames[normalized]; ok {
		return name
	}
	// Fallback: convert underscores/hyphens to spaces and title case
	return titleCase(checkType)
}

// GetOWASPForCategory returns full OWASP metadata for a check type.
// Returns a zero-value OWASPCategory with Code "A00:2021" if not found.
func GetOWASPForCategory(checkType string) OWASPCategory {
	code := GetOWASPCategory(checkType)
	if cat, ok := OWASPTop10[code]; ok {
		return cat
	}
	return OWASPCategory{
		Code:     "A00:2021",
		Name:     "Unknown",
		FullName: "A00:2021 - Unknown",
		URL:      "https://owasp.org/Top10/",
	}
}

// normalizeCategory normalizes a check type string for lookup.
func normalizeCategory(checkType string) string {
	s := checkType
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			result = append(result, c+32) // to lowercase
		} else if c == '_' {
			result = append(result, '-') // normalize underscore to hyphen
		} else {
			result = append(result, c)
		}
	}
	return string(result)
}

// titleCase converts a string to title case, handling underscores and hyphens.
func titleCase(s string) string {
	words := make([]string, 0)
	current := make([]byte, 0)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || c == '-' || c == ' ' {
			if len(current) > 0 {
				words = append(words, titleWord(string(current)))
				current = current[:0]
			}
		} else {
			current = append(current, c)
		}
	}
	if len(current) > 0 {
		words = append(words, titleWord(string(current)))
	}

	result := ""
	for i, w := range words {
		if i > 0 {
			result += " "
		}
		result += w
	}
	return result
}

// titleWord capitalizes the first letter of a word.
func titleWord(word string) string {
	if len(word) == 0 {
		return word
	}
	first := word[0]
	if first >= 'a' && first <= 'z' {
		first -= 32 // to uppercase
	}
	if len(word) == 1 {
		return string(first)
	}
	return string(first) + word[1:]
}
