package repocheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/baselinegate/baselinegate/internal/classify"
)

// githubClient queries the GitHub repository metadata API.
type githubClient struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

func newGitHubClient(httpClient *http.Client) *githubClient {
	return &githubClient{
		token:      os.Getenv("GITHUB_TOKEN"),
		httpClient: httpClient,
		baseURL:    "https://api.github.com",
	}
}

type githubRepository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	Size          int64  `json:"size"` // kilobytes
}

func (c *githubClient) getRepository(ctx context.Context, owner, name string) (*RepositoryInfo, *classify.Error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, classify.New(classify.CodeRepoNotFound, fmt.Sprintf("malformed repository reference %s/%s", owner, name))
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify.New(classify.CodeUnknown, fmt.Sprintf("GitHub API unreachable: %v", err))
	}
	defer resp.Body.Close()

	if cerr := statusToError(resp.StatusCode, owner+"/"+name); cerr != nil {
		return nil, cerr
	}

	var repo githubRepository
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return nil, classify.New(classify.CodeUnknown, fmt.Sprintf("failed to parse GitHub response: %v", err))
	}

	return &RepositoryInfo{
		Host:          "github.com",
		Owner:         owner,
		Name:          name,
		FullName:      repo.FullName,
		DefaultBranch: repo.DefaultBranch,
		Private:       repo.Private,
		SizeKB:        repo.Size,
	}, nil
}
