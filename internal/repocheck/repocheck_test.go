package repocheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baselinegate/baselinegate/internal/classify"
)

func newTestValidator() *Validator {
	return NewValidator([]string{"github.com", "gitlab.com", "git.internal.example.com"}, 5*time.Second)
}

func TestParse_GitHubURL(t *testing.T) {
	v := newTestValidator()

	parsed, cerr := v.Parse("https://github.com/acme/widgets")
	require.Nil(t, cerr)
	assert.Equal(t, "github.com", parsed.Host)
	assert.Equal(t, "acme", parsed.Owner)
	assert.Equal(t, "widgets", parsed.Name)
}

func TestParse_StripsDotGit(t *testing.T) {
	v := newTestValidator()

	parsed, cerr := v.Parse("https://github.com/acme/widgets.git")
	require.Nil(t, cerr)
	assert.Equal(t, "widgets", parsed.Name)
}

func TestParse_UnsupportedHost(t *testing.T) {
	v := newTestValidator()

	_, cerr := v.Parse("https://codeberg.org/acme/widgets")
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeRepoNotFound, cerr.Code)
	assert.False(t, cerr.Retryable())
}

func TestParse_MissingRepoName(t *testing.T) {
	v := newTestValidator()

	_, cerr := v.Parse("https://github.com/acme")
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeRepoNotFound, cerr.Code)
}

func TestParse_SelfHostedRequiresHTTPS(t *testing.T) {
	v := newTestValidator()

	_, cerr := v.Parse("http://git.internal.example.com/tools/widgets")
	require.NotNil(t, cerr)

	parsed, cerr := v.Parse("https://git.internal.example.com/tools/widgets")
	require.Nil(t, cerr)
	assert.Equal(t, "tools", parsed.Owner)
	assert.Equal(t, "widgets", parsed.Name)
}

func TestParse_SelfHostedRequiresPath(t *testing.T) {
	v := newTestValidator()

	_, cerr := v.Parse("https://git.internal.example.com/")
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeRepoNotFound, cerr.Code)
}

func TestValidate_GitHubSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets", r.URL.Path)
		_ = json.NewEncoder(w).Encode(githubRepository{
			FullName:      "acme/widgets",
			DefaultBranch: "main",
			Private:       false,
			Size:          2048,
		})
	}))
	defer ts.Close()

	v := newTestValidator()
	v.github.baseURL = ts.URL

	info, cerr := v.Validate(context.Background(), "https://github.com/acme/widgets")
	require.Nil(t, cerr)
	assert.Equal(t, "acme/widgets", info.FullName)
	assert.Equal(t, "main", info.DefaultBranch)
	assert.Equal(t, int64(2048), info.SizeKB)
	assert.False(t, info.Private)
}

func TestValidate_GitHubNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	v := newTestValidator()
	v.github.baseURL = ts.URL

	_, cerr := v.Validate(context.Background(), "https://github.com/acme/missing")
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeRepoNotFound, cerr.Code)
	assert.False(t, cerr.Retryable())
}

func TestValidate_GitHubAccessDenied(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	v := newTestValidator()
	v.github.baseURL = ts.URL

	_, cerr := v.Validate(context.Background(), "https://github.com/acme/secret")
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeRepoPrivate, cerr.Code)
	assert.False(t, cerr.Retryable())
}

func TestValidate_GitLabPrivateVisibility(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.EscapedPath(), "acme%2Fwidgets")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"path_with_namespace": "acme/widgets",
			"default_branch":      "main",
			"visibility":          "private",
		})
	}))
	defer ts.Close()

	v := newTestValidator()
	v.gitlab.baseURL = ts.URL

	info, cerr := v.Validate(context.Background(), "https://gitlab.com/acme/widgets")
	require.Nil(t, cerr)
	assert.True(t, info.Private)
}

func TestValidate_Unreachable(t *testing.T) {
	v := newTestValidator()
	v.github.baseURL = "http://127.0.0.1:1" // nothing listening

	_, cerr := v.Validate(context.Background(), "https://github.com/acme/widgets")
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeUnknown, cerr.Code)
	assert.True(t, cerr.Retryable())
}
