// Package repocheck validates repository URLs against the supported hosting
// services and probes repository accessibility.
package repocheck

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	giturls "github.com/whilp/git-urls"

	"github.com/baselinegate/baselinegate/internal/classify"
)

// RepositoryInfo holds basic metadata about a validated repository.
type RepositoryInfo struct {
	Host          string `json:"host"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	SizeKB        int64  `json:"size_kb"`
}

// wellKnownHosts are the hosting services with a dedicated metadata API.
// Any other allow-listed host is treated as self-hosted.
var wellKnownHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
}

// Validator checks repository URLs. Pure read-only; Validate may be called
// any number of times with the same outcome barring upstream state changes.
type Validator struct {
	allowedHosts map[string]bool
	httpClient   *http.Client
	github       *githubClient
	gitlab       *gitlabClient
}

// NewValidator creates a validator restricted to the given hosts.
func NewValidator(allowedHosts []string, timeout time.Duration) *Validator {
	hosts := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		hosts[strings.ToLower(h)] = true
	}

	httpClient := &http.Client{Timeout: timeout}
	return &Validator{
		allowedHosts: hosts,
		httpClient:   httpClient,
		github:       newGitHubClient(httpClient),
		gitlab:       newGitLabClient(httpClient),
	}
}

// ParsedURL is the normalized form of a repository URL.
type ParsedURL struct {
	Host  string
	Owner string
	Name  string
}

// Parse validates URL syntax and the hosting allow-list without any network
// access. Self-hosted instances require https and at least one path segment
// past the host.
func (v *Validator) Parse(rawURL string) (*ParsedURL, *classify.Error) {
	u, err := giturls.Parse(rawURL)
	if err != nil {
		return nil, classify.New(classify.CodeRepoNotFound, fmt.Sprintf("malformed repository URL: %s", rawURL))
	}

	host := strings.ToLower(u.Hostname())
	if host == "" || !v.allowedHosts[host] {
		return nil, classify.New(classify.CodeRepoNotFound, fmt.Sprintf("unsupported hosting service: %q", host))
	}

	path := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	segments := strings.Split(path, "/")

	if wellKnownHosts[host] {
		if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
			return nil, classify.New(classify.CodeRepoNotFound, fmt.Sprintf("repository URL must include owner and name: %s", rawURL))
		}
		return &ParsedURL{Host: host, Owner: segments[0], Name: segments[1]}, nil
	}

	// Self-hosted instance.
	if u.Scheme != "https" {
		return nil, classify.New(classify.CodeRepoNotFound, fmt.Sprintf("self-hosted repositories require https: %s", rawURL))
	}
	if len(segments) == 0 || segments[0] == "" {
		return nil, classify.New(classify.CodeRepoNotFound, fmt.Sprintf("self-hosted repository URL has no path: %s", rawURL))
	}

	owner := ""
	name := segments[len(segments)-1]
	if len(segments) > 1 {
		owner = strings.Join(segments[:len(segments)-1], "/")
	}
	return &ParsedURL{Host: host, Owner: owner, Name: name}, nil
}

// Validate parses the URL and probes the hosting service for accessibility.
// The probe distinguishes not-found, private, and unreachable outcomes.
func (v *Validator) Validate(ctx context.Context, rawURL string) (*RepositoryInfo, *classify.Error) {
	parsed, cerr := v.Parse(rawURL)
	if cerr != nil {
		return nil, cerr
	}

	switch parsed.Host {
	case "github.com":
		return v.github.getRepository(ctx, parsed.Owner, parsed.Name)
	case "gitlab.com":
		return v.gitlab.getProject(ctx, parsed.Owner, parsed.Name)
	default:
		return v.probeGeneric(ctx, rawURL, parsed)
	}
}

// probeGeneric checks accessibility of hosts without a dedicated metadata
// API by requesting the repository page itself.
func (v *Validator) probeGeneric(ctx context.Context, rawURL string, parsed *ParsedURL) (*RepositoryInfo, *classify.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, classify.New(classify.CodeRepoNotFound, fmt.Sprintf("malformed repository URL: %s", rawURL))
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, classify.New(classify.CodeUnknown, fmt.Sprintf("hosting service unreachable: %v", err))
	}
	defer resp.Body.Close()

	if cerr := statusToError(resp.StatusCode, parsed.Owner+"/"+parsed.Name); cerr != nil {
		return nil, cerr
	}

	return &RepositoryInfo{
		Host:     parsed.Host,
		Owner:    parsed.Owner,
		Name:     parsed.Name,
		FullName: parsed.Owner + "/" + parsed.Name,
	}, nil
}

// statusToError maps a hosting-service response status to a classified
// validation failure, or nil for success.
func statusToError(status int, repo string) *classify.Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return classify.New(classify.CodeRepoNotFound, fmt.Sprintf("repository %s not found", repo))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return classify.New(classify.CodeRepoPrivate, fmt.Sprintf("repository %s is private or access is restricted", repo))
	default:
		return classify.New(classify.CodeUnknown, fmt.Sprintf("hosting service returned status %d for %s", status, repo))
	}
}
