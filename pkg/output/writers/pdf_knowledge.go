package writers

// cweNames maps CWE IDs to human-readable names for report display.
// Covers the weaknesses commonly cited for software supply chain risk.
var cweNames = map[int]string{
	94:   "Improper Control of Generation of Code",
	200:  "Exposure of Sensitive Information",
	284:  "Improper Access Control",
	327:  "Use of a Broken or Risky Cryptographic Algorithm",
	345:  "Insufficient Verification of Data Authenticity",
	347:  "Improper Verification of Cryptographic Signature",
	426:  "Untrusted Search Path",
	494:  "Download of Code Without Integrity Check",
	502:  "Deserialization of Untrusted Data",
	506:  "Embedded Malicious Code",
	507:  "Trojan Horse",
	693:  "Protection Mechanism Failure",
	829:  "Inclusion of Functionality from Untrusted Control Sphere",
	830:  "Inclusion of Web Functionality from an Untrusted Source",
	912:  "Hidden Functionality",
	915:  "Improperly Controlled Modification of Object Prototype Attributes",
	937:  "Using Components with Known Vulnerabilities",
	1035: "Using Components with Known Vulnerabilities (2017)",
	1104: "Use of Unmaintained Third Party Components",
	1357: "Reliance on Insufficiently Trustworthy Component",
	1395: "Dependency on Vulnerable Third-Party Component",
}

// cweName returns the descriptive name for a CWE ID, or an empty string if unknown.
func cweName(id int) string {
	return cweNames[id]
}

// checkRemediationInfo provides per-check-type guidance for violations.
// Each entry contains a short description and a reference URL.
type checkRemediationInfo struct {
	Title        string
	Guidance     string
	ReferenceURL string
}

// checkRemediations maps check types to remediation advice.
var checkRemediations = map[string]checkRemediationInfo{
	"vuln": {
		Title:        "Known Vulnerabilities",
		Guidance:     "Upgrade flagged components to the first version that resolves the cited advisories; most ecosystems expose this as the fixed version on the advisory page. When no fixed release exists, check whether the vulnerable code path is reachable from your usage, add a temporary version override or patch, and record the exception with an expiry date.",
		ReferenceURL: "https://osv.dev/",
	},
	"license": {
		Title:        "License Compliance",
		Guidance:     "Replace components whose licenses conflict with your distribution model, or obtain a commercial license from the author. Watch for license changes between versions: a component that was permissive at adoption time can relicense. Pin the last acceptable version while a replacement is evaluated.",
		ReferenceURL: "https://spdx.org/licenses/",
	},
	"maintenance": {
		Title:        "Maintenance Health",
		Guidance:     "Migrate off archived and unmaintained components before they accumulate unfixable advisories. Prefer actively released alternatives with more than one maintainer. When no alternative exists, consider vendoring with an internal owner so security fixes have somewhere to land.",
		ReferenceURL: "https://docs.openssf.org/",
	},
	"popularity": {
		Title:        "Adoption and Popularity",
		Guidance:     "Low-adoption components get little security scrutiny and are a common vehicle for typosquatting. Verify the package name against the project you intended, check the repository link on the registry page, and prefer the widely adopted package for the same job when one exists.",
		ReferenceURL: "https://docs.openssf.org/",
	},
	"scorecard": {
		Title:        "OpenSSF Scorecard",
		Guidance:     "Low Scorecard scores flag upstream practices: missing branch protection, no code review, unpinned dependencies in the build. For components you control, fix the failing checks upstream. For third-party components, weigh the failing checks against how much you trust the maintainers, and prefer alternatives with healthier scores.",
		ReferenceURL: "https://securityscorecards.dev/",
	},
	"provenance": {
		Title:        "Build Provenance",
		Guidance:     "Require signed releases and verifiable build provenance (SLSA attestations, Sigstore signatures) for components in sensitive paths. A missing signature on a component that historically shipped one is a red flag for registry compromise; hold the upgrade until the maintainer confirms the release.",
		ReferenceURL: "https://slsa.dev/",
	},
}

// checkRemediationFor returns remediation info for a check type.
// Returns a generic entry if the specific check is not mapped.
func checkRemediationFor(checkType string) checkRemediationInfo {
	if info, ok := checkRemediations[checkType]; ok {
		return info
	}
	return checkRemediationInfo{
		Title:        checkType,
		Guidance:     "Review the components flagged by " + checkType + " rules against your dependency policy. Upgrade or replace the component where possible, and record an accepted exception with an owner and expiry where it is not.",
		ReferenceURL: "https://docs.openssf.org/",
	}
}

// remediationFor returns the remediation guidance text for a check type.
func remediationFor(checkType string) string {
	return checkRemediationFor(checkType).Guidance
}
