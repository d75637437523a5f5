package sourcehealth

// Recommendations returns actionable advice based on health stats.
// Returns an empty slice if no recommendations are applicable.
func (s Stats) Recommendations() []string {
	var recs []string

	if s.SourcesUnavailable > 0 {
		if s.SourcesUnavailable >= 2 {
			recs = append(recs, "Multiple fact sources unavailable. Check network connectivity or rerun with --offline to evaluate from cached facts")
		} else {
			recs = append(recs, "A fact source is unavailable. Verify network access to the advisory endpoints or rerun with --offline")
		}
	}

	if s.SourcesDegraded > 0 {
		if s.SourcesDegraded >= 2 {
			recs = append(recs, "Several sources are retrying heavily. Consider lowering request pressure with -concurrency 4")
		} else {
			recs = append(recs, "A source is timing out intermittently. Retries will recover it; persistent failures mark it unavailable")
		}
	}

	if s.ComponentsMissing > 0 {
		if s.ComponentsMissing >= 10 {
			recs = append(recs, "Many components lack facts for the requested checks. Confirm the SBOM ecosystems are supported by the configured sources")
		} else {
			recs = append(recs, "Some components lack facts. Rules reading missing fields report evaluation errors rather than violations")
		}
	}

	return recs
}
