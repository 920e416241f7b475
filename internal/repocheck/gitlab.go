package repocheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/baselinegate/baselinegate/internal/classify"
)

// gitlabClient queries the GitLab projects API.
type gitlabClient struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

func newGitLabClient(httpClient *http.Client) *gitlabClient {
	return &gitlabClient{
		token:      os.Getenv("GITLAB_TOKEN"),
		httpClient: httpClient,
		baseURL:    "https://gitlab.com/api/v4",
	}
}

type gitlabProject struct {
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
	Visibility        string `json:"visibility"`
	Statistics        *struct {
		RepositorySize int64 `json:"repository_size"` // bytes
	} `json:"statistics"`
}

func (c *gitlabClient) getProject(ctx context.Context, owner, name string) (*RepositoryInfo, *classify.Error) {
	// GitLab addresses projects by URL-encoded "namespace/name".
	projectID := url.PathEscape(owner + "/" + name)
	endpoint := fmt.Sprintf("%s/projects/%s?statistics=true", c.baseURL, projectID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, classify.New(classify.CodeRepoNotFound, fmt.Sprintf("malformed repository reference %s/%s", owner, name))
	}
	if c.token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify.New(classify.CodeUnknown, fmt.Sprintf("GitLab API unreachable: %v", err))
	}
	defer resp.Body.Close()

	if cerr := statusToError(resp.StatusCode, owner+"/"+name); cerr != nil {
		return nil, cerr
	}

	var project gitlabProject
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, classify.New(classify.CodeUnknown, fmt.Sprintf("failed to parse GitLab response: %v", err))
	}

	info := &RepositoryInfo{
		Host:          "gitlab.com",
		Owner:         owner,
		Name:          name,
		FullName:      project.PathWithNamespace,
		DefaultBranch: project.DefaultBranch,
		Private:       project.Visibility != "public",
	}
	if project.Statistics != nil {
		info.SizeKB = project.Statistics.RepositorySize / 1024
	}
	return info, nil
}
