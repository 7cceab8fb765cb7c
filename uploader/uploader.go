package uploader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.github.com"

type GitHubUploadRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

type contentsResponse struct {
	SHA string `json:"sha"`
}

// GitHub publishes files through the repository contents API.
type GitHub struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	log hclog.Logger
}

func NewGitHub(token string, logger hclog.Logger) *GitHub {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GitHub{
		BaseURL: DefaultBaseURL,
		Token:   token,
		HTTP:    http.DefaultClient,
		log:     logger.Named("publish"),
	}
}

// UploadFile creates or replaces path in repo with the contents of filename.
func (g *GitHub) UploadFile(ctx context.Context, repo, path, filename string) error {
	fileContent, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, "error reading file")
	}

	uploadURL := fmt.Sprintf("%s/repos/%s/contents/%s", strings.TrimRight(g.BaseURL, "/"), repo, strings.TrimLeft(path, "/"))

	// Replacing an existing file requires its current blob sha.
	sha, err := g.currentSHA(ctx, uploadURL)
	if err != nil {
		return err
	}

	body := GitHubUploadRequest{
		Message: "Update " + path,
		Content: base64.StdEncoding.EncodeToString(fileContent),
		SHA:     sha,
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "error marshalling JSON")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(bodyJSON))
	if err != nil {
		return errors.Wrap(err, "error creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("error uploading to GitHub, status code: %d, response: %s", resp.StatusCode, string(respBody))
	}
	g.log.Info("published file", "repo", repo, "path", path, "replaced", sha != "")
	return nil
}

func (g *GitHub) currentSHA(ctx context.Context, uploadURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uploadURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "error creating request")
	}
	resp, err := g.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("error looking up existing file, status code: %d", resp.StatusCode)
	}
	var existing contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
		return "", errors.Wrap(err, "error decoding existing file")
	}
	return existing.SHA, nil
}

func (g *GitHub) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+g.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	client := g.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error making request")
	}
	return resp, nil
}
