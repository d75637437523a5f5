package factsource

import (
	"fmt"
	"math"
	"strings"
)

// cvssBaseScore computes the CVSS v3.x base score from a vector string
// like "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H". Advisory feeds
// publish vectors rather than numbers, so the score has to be derived
// before it can be bucketed into a severity tier.
func cvssBaseScore(vector string) (float64, error) {
	metrics, err := parseCVSSVector(vector)
	if err != nil {
		return 0, err
	}

	scopeChanged := metrics["S"] == "C"

	av, err := metricWeight(metrics, "AV", map[string]float64{
		"N": 0.85, "A": 0.62, "L": 0.55, "P": 0.2,
	})
	if err != nil {
		return 0, err
	}
	ac, err := metricWeight(metrics, "AC", map[string]float64{
		"L": 0.77, "H": 0.44,
	})
	if err != nil {
		return 0, err
	}
	prWeights := map[string]float64{"N": 0.85, "L": 0.62, "H": 0.27}
	if scopeChanged {
		prWeights = map[string]float64{"N": 0.85, "L": 0.68, "H": 0.5}
	}
	pr, err := metricWeight(metrics, "PR", prWeights)
	if err != nil {
		return 0, err
	}
	ui, err := metricWeight(metrics, "UI", map[string]float64{
		"N": 0.85, "R": 0.62,
	})
	if err != nil {
		return 0, err
	}

	impactWeights := map[string]float64{"H": 0.56, "L": 0.22, "N": 0}
	conf, err := metricWeight(metrics, "C", impactWeights)
	if err != nil {
		return 0, err
	}
	integ, err := metricWeight(metrics, "I", impactWeights)
	if err != nil {
		return 0, err
	}
	avail, err := metricWeight(metrics, "A", impactWeights)
	if err != nil {
		return 0, err
	}

	iss := 1 - (1-conf)*(1-integ)*(1-avail)
	var impact float64
	if scopeChanged {
		impact = 7.52*(iss-0.029) - 3.25*math.Pow(iss-0.02, 15)
	} else {
		impact = 6.42 * iss
	}
	if impact <= 0 {
		return 0, nil
	}

	exploitability := 8.22 * av * ac * pr * ui
	score := impact + exploitability
	if scopeChanged {
		score *= 1.08
	}
	if score > 10 {
		score = 10
	}
	return cvssRoundUp(score), nil
}

// parseCVSSVector splits a v3.x vector into its metric map and checks
// the base metrics are all present.
func parseCVSSVector(vector string) (map[string]string, error) {
	parts := strings.Split(strings.TrimSpace(vector), "/")
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "CVSS:3") {
		return nil, fmt.Errorf("unsupported CVSS vector %q", vector)
	}

	metrics := make(map[string]string, len(parts)-1)
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, ":")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("malformed CVSS metric %q in %q", part, vector)
		}
		metrics[key] = value
	}
	for _, required := range []string{"AV", "AC", "PR", "UI", "S", "C", "I", "A"} {
		if _, ok := metrics[required]; !ok {
			return nil, fmt.Errorf("CVSS vector %q missing metric %s", vector, required)
		}
	}
	return metrics, nil
}

func metricWeight(metrics map[string]string, key string, weights map[string]float64) (float64, error) {
	w, ok := weights[metrics[key]]
	if !ok {
		return 0, fmt.Errorf("unknown CVSS %s value %q", key, metrics[key])
	}
	return w, nil
}

// cvssRoundUp is the specification's Roundup: smallest number with one
// decimal place that is equal to or higher than the input, computed on
// a fixed-point copy to dodge float drift.
func cvssRoundUp(x float64) float64 {
	scaled := int(math.Round(x * 100000))
	if scaled%10000 == 0 {
		return float64(scaled) / 100000
	}
	return (math.Floor(float64(scaled)/10000) + 1) / 10
}
