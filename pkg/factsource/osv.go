package factsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/httpclient"
	"github.com/depgate/depgate/pkg/iohelper"
	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/ratelimit"
	"github.com/depgate/depgate/pkg/retry"
	"github.com/depgate/depgate/pkg/runner"
)

// DefaultOSVBaseURL is the public OSV.dev API endpoint.
const DefaultOSVBaseURL = "https://api.osv.dev"

// osvMaxBatch is the query count OSV accepts per querybatch call.
const osvMaxBatch = 1000

// OSVConfig configures the OSV.dev vulnerability provider.
type OSVConfig struct {
	// BaseURL overrides the API endpoint, mainly for tests and mirrors.
	BaseURL string

	// Client is the HTTP client. Nil uses the shared pooled client.
	Client *http.Client

	// Limiter paces API calls. Nil installs an adaptive limiter at the
	// standard fact source rate.
	Limiter *ratelimit.Limiter

	// Retry controls transient failure retries. The zero value uses
	// the standard fact fetch retry profile.
	Retry retry.Config

	// CacheTTL is how long advisory records are cached. Zero uses the
	// standard fact cache lifetime.
	CacheTTL time.Duration

	// Concurrency bounds parallel advisory detail fetches.
	Concurrency int
}

// OSVProvider enriches components with vulnerability records from the
// OSV.dev API. Queries go through the batch endpoint, which returns
// advisory IDs only; details are fetched per advisory and cached, so
// an advisory shared by many components costs one request.
type OSVProvider struct {
	baseURL     string
	client      *http.Client
	limiter     *ratelimit.Limiter
	retry       retry.Config
	cache       *Cache[*osvVuln]
	concurrency int
}

var _ BatchProvider = (*OSVProvider)(nil)

// NewOSV creates an OSV provider.
func NewOSV(cfg OSVConfig) *OSVProvider {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOSVBaseURL
	}

	client := cfg.Client
	if client == nil {
		client = httpclient.Default()
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewAdaptive(defaults.RateLimitMedium)
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = retry.Config{
			MaxAttempts: defaults.RetryMedium,
			InitDelay:   duration.RetryFast,
			MaxDelay:    duration.RetryStd,
			Strategy:    retry.Exponential,
			Jitter:      true,
		}
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaults.ConcurrencyLow
	}

	return &OSVProvider{
		baseURL:     baseURL,
		client:      client,
		limiter:     limiter,
		retry:       retryCfg,
		cache:       NewCache[*osvVuln](cfg.CacheTTL),
		concurrency: concurrency,
	}
}

// Name implements Provider.
func (p *OSVProvider) Name() string { return SourceOSV }

// Close stops the advisory cache's eviction goroutine.
func (p *OSVProvider) Close() { p.cache.Close() }

// Enrich implements Provider for a single component.
func (p *OSVProvider) Enrich(ctx context.Context, snap *facts.Snapshot) error {
	idsPerComponent, err := p.queryBatch(ctx, []facts.Component{snap.Component})
	if err != nil {
		return err
	}
	vulns, err := p.collectAdvisories(ctx, idsPerComponent[0], snap.Component)
	if err != nil {
		return err
	}
	mergeVulnerabilities(snap, vulns)
	return nil
}

// EnrichAll implements BatchProvider. Components are queried in
// chunks, then each distinct advisory is fetched once and fanned back
// out to the components it affects.
func (p *OSVProvider) EnrichAll(ctx context.Context, snaps []*facts.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	idsPerComponent := make([][]string, 0, len(snaps))
	for start := 0; start < len(snaps); start += osvMaxBatch {
		end := start + osvMaxBatch
		if end > len(snaps) {
			end = len(snaps)
		}
		comps := make([]facts.Component, 0, end-start)
		for _, snap := range snaps[start:end] {
			comps = append(comps, snap.Component)
		}
		ids, err := p.queryBatch(ctx, comps)
		if err != nil {
			return err
		}
		idsPerComponent = append(idsPerComponent, ids...)
	}

	advisories, failed := p.fetchAdvisories(ctx, distinctIDs(idsPerComponent))

	var incomplete int
	var firstErr error
	for i, snap := range snaps {
		vulns := make([]facts.Vulnerability, 0, len(idsPerComponent[i]))
		complete := true
		for _, id := range idsPerComponent[i] {
			adv, ok := advisories[id]
			if !ok {
				complete = false
				continue
			}
			vulns = append(vulns, toVulnerability(adv, snap.Component))
		}
		if !complete {
			incomplete++
			continue
		}
		mergeVulnerabilities(snap, vulns)
	}

	if incomplete > 0 {
		for _, err := range failed {
			firstErr = err
			break
		}
		if firstErr == nil {
			// No fetch failed; the context stopped launches instead.
			firstErr = ctx.Err()
		}
		return fmt.Errorf("osv: %d of %d components missing advisory details: %w", incomplete, len(snaps), firstErr)
	}
	return nil
}

// queryBatch asks OSV which advisories affect each component. The
// batch endpoint returns IDs only.
func (p *OSVProvider) queryBatch(ctx context.Context, comps []facts.Component) ([][]string, error) {
	req := osvBatchRequest{Queries: make([]osvQuery, 0, len(comps))}
	for _, c := range comps {
		req.Queries = append(req.Queries, osvQuery{
			Package: osvPackage{Name: c.Name, Ecosystem: osvEcosystem(c.Ecosystem)},
			Version: c.Version,
		})
	}
	body, err := jsonutil.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("osv: encode query: %w", err)
	}

	var resp osvBatchResponse
	if err := p.do(ctx, http.MethodPost, p.baseURL+"/v1/querybatch", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) != len(comps) {
		return nil, fmt.Errorf("osv: %d results for %d queries", len(resp.Results), len(comps))
	}

	ids := make([][]string, len(comps))
	for i, result := range resp.Results {
		for _, ref := range result.Vulns {
			ids[i] = append(ids[i], ref.ID)
		}
		sort.Strings(ids[i])
	}
	return ids, nil
}

// collectAdvisories resolves a single component's advisory IDs to fact
// records, failing if any detail fetch fails. A partial vulnerability
// list would let a guardrail pass on facts it never saw.
func (p *OSVProvider) collectAdvisories(ctx context.Context, ids []string, comp facts.Component) ([]facts.Vulnerability, error) {
	advisories, failed := p.fetchAdvisories(ctx, ids)
	if len(failed) > 0 {
		for id, err := range failed {
			return nil, fmt.Errorf("osv: advisory %s: %w", id, err)
		}
	}
	vulns := make([]facts.Vulnerability, 0, len(ids))
	for _, id := range ids {
		adv, ok := advisories[id]
		if !ok {
			return nil, fmt.Errorf("osv: advisory %s: %w", id, ctx.Err())
		}
		vulns = append(vulns, toVulnerability(adv, comp))
	}
	return vulns, nil
}

// fetchAdvisories fetches advisory records concurrently, consulting
// the cache first. It returns the records found and the IDs that
// failed with their errors.
func (p *OSVProvider) fetchAdvisories(ctx context.Context, ids []string) (map[string]*osvVuln, map[string]error) {
	advisories := make(map[string]*osvVuln, len(ids))
	failed := make(map[string]error)

	var misses []string
	for _, id := range ids {
		if adv, ok := p.cache.Get(id); ok {
			advisories[id] = adv
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return advisories, failed
	}

	r := runner.New[string, *osvVuln]()
	r.Concurrency = p.concurrency
	for _, res := range r.Run(ctx, misses, p.fetchAdvisory) {
		if res.Err != nil {
			failed[res.Item] = res.Err
			continue
		}
		advisories[res.Item] = res.Data
		p.cache.Set(res.Item, res.Data)
	}
	return advisories, failed
}

func (p *OSVProvider) fetchAdvisory(ctx context.Context, id string) (*osvVuln, error) {
	var adv osvVuln
	if err := p.do(ctx, http.MethodGet, p.baseURL+"/v1/vulns/"+url.PathEscape(id), nil, &adv); err != nil {
		return nil, err
	}
	return &adv, nil
}

// do performs one rate-limited, retried API call and decodes the JSON
// answer into out. Throttling and server errors are retried; other
// 4xx answers and decode failures stop immediately.
func (p *OSVProvider) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	return retry.Do(ctx, p.retry, func() error {
		if err := p.limiter.WaitForSource(ctx, SourceOSV); err != nil {
			return retry.Stop(err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return retry.Stop(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", defaults.ContentTypeJSON)
		}
		req.Header.Set("Accept", defaults.AcceptJSON)

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Stop(ctx.Err())
			}
			p.limiter.OnError()
			return err
		}
		defer iohelper.DrainAndClose(resp.Body)

		if resp.StatusCode != http.StatusOK {
			msg, _ := iohelper.ReadBodySmall(resp.Body)
			statusErr := &StatusError{
				Source: SourceOSV,
				Code:   resp.StatusCode,
				Body:   strings.TrimSpace(string(msg)),
			}
			if statusErr.Retryable() {
				p.limiter.OnError()
				return statusErr
			}
			return retry.Stop(statusErr)
		}
		p.limiter.OnSuccess()

		data, err := iohelper.ReadBody(resp.Body, defaults.BufferMax)
		if err != nil {
			return err
		}
		if err := jsonutil.Unmarshal(data, out); err != nil {
			return retry.Stop(fmt.Errorf("osv: decode %s: %w", endpoint, err))
		}
		return nil
	})
}

// distinctIDs flattens per-component ID lists into one sorted set.
func distinctIDs(idsPerComponent [][]string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, componentIDs := range idsPerComponent {
		for _, id := range componentIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// toVulnerability maps an OSV advisory onto the snapshot fact model.
func toVulnerability(adv *osvVuln, comp facts.Component) facts.Vulnerability {
	aliases := adv.Aliases
	if len(aliases) > defaults.MaxVulnIDsPerFinding {
		aliases = aliases[:defaults.MaxVulnIDsPerFinding]
	}
	return facts.Vulnerability{
		ID:           adv.ID,
		Severity:     advisorySeverity(adv),
		Summary:      advisorySummary(adv),
		Aliases:      aliases,
		FixedVersion: fixedVersion(adv, comp),
	}
}

// advisorySeverity buckets an advisory into a severity tier: CVSS v3
// first, then the database's qualitative rating, then info.
func advisorySeverity(adv *osvVuln) finding.Severity {
	for _, s := range adv.Severity {
		if !strings.HasPrefix(s.Type, "CVSS_V3") {
			continue
		}
		if score, err := strconv.ParseFloat(s.Score, 64); err == nil {
			return finding.FromCVSS(score)
		}
		if score, err := cvssBaseScore(s.Score); err == nil {
			return finding.FromCVSS(score)
		}
	}

	raw := adv.DatabaseSpecific.Severity
	if strings.EqualFold(raw, "moderate") {
		raw = string(finding.Medium)
	}
	if sev, err := finding.ParseSeverity(raw); err == nil {
		return sev
	}
	return finding.Info
}

func advisorySummary(adv *osvVuln) string {
	if adv.Summary != "" {
		return adv.Summary
	}
	details := strings.TrimSpace(adv.Details)
	if i := strings.IndexByte(details, '\n'); i >= 0 {
		details = strings.TrimSpace(details[:i])
	}
	return details
}

// fixedVersion returns the first fix the advisory publishes for the
// component's package.
func fixedVersion(adv *osvVuln, comp facts.Component) string {
	eco := osvEcosystem(comp.Ecosystem)
	for _, affected := range adv.Affected {
		if !strings.EqualFold(affected.Package.Name, comp.Name) {
			continue
		}
		if eco != "" && affected.Package.Ecosystem != "" && !strings.EqualFold(affected.Package.Ecosystem, eco) {
			continue
		}
		for _, rng := range affected.Ranges {
			for _, event := range rng.Events {
				if event.Fixed != "" {
					return event.Fixed
				}
			}
		}
	}
	return ""
}

// mergeVulnerabilities appends advisories the snapshot does not
// already carry, matched by ID. Existing records win, so curated file
// snapshots are never overwritten by API data.
func mergeVulnerabilities(snap *facts.Snapshot, add []facts.Vulnerability) {
	seen := make(map[string]bool, len(snap.Vulnerabilities))
	for _, v := range snap.Vulnerabilities {
		seen[v.ID] = true
	}
	for _, v := range add {
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		snap.Vulnerabilities = append(snap.Vulnerabilities, v)
	}
}

// osvEcosystem translates the lowercase ecosystem tags snapshots carry
// into OSV's canonical names. Unknown tags pass through unchanged.
func osvEcosystem(ecosystem string) string {
	switch strings.ToLower(ecosystem) {
	case "npm":
		return "npm"
	case "pypi":
		return "PyPI"
	case "go", "golang":
		return "Go"
	case "maven":
		return "Maven"
	case "cargo", "crates", "crates.io":
		return "crates.io"
	case "rubygems", "gem":
		return "RubyGems"
	case "nuget":
		return "NuGet"
	case "composer", "packagist":
		return "Packagist"
	case "hex":
		return "Hex"
	case "pub":
		return "Pub"
	case "":
		return ""
	}
	return ecosystem
}

// OSV API wire types, limited to the fields the mapping reads.

type osvBatchRequest struct {
	Queries []osvQuery `json:"queries"`
}

type osvQuery struct {
	Package osvPackage `json:"package"`
	Version string     `json:"version,omitempty"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem,omitempty"`
}

type osvBatchResponse struct {
	Results []osvBatchResult `json:"results"`
}

type osvBatchResult struct {
	Vulns []osvVulnRef `json:"vulns"`
}

type osvVulnRef struct {
	ID       string `json:"id"`
	Modified string `json:"modified"`
}

type osvVuln struct {
	ID               string              `json:"id"`
	Summary          string              `json:"summary"`
	Details          string              `json:"details"`
	Aliases          []string            `json:"aliases"`
	Severity         []osvSeverity       `json:"severity"`
	Affected         []osvAffected       `json:"affected"`
	DatabaseSpecific osvDatabaseSpecific `json:"database_specific"`
}

type osvSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type osvAffected struct {
	Package osvPackage `json:"package"`
	Ranges  []osvRange `json:"ranges"`
}

type osvRange struct {
	Type   string     `json:"type"`
	Events []osvEvent `json:"events"`
}

type osvEvent struct {
	Introduced string `json:"introduced,omitempty"`
	Fixed      string `json:"fixed,omitempty"`
}

type osvDatabaseSpecific struct {
	Severity string `json:"severity"`
}
