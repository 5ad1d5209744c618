package files

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zenkai92/Modelify/internal/logging"
	"github.com/Zenkai92/Modelify/internal/upstream"
)

const uploadTimeout = 60 * time.Second

// Client streams reference files to the storage service and returns their
// public URLs. Uploads are keyed under the project id so a project's files
// stay together.
type Client struct {
	baseURL string
	apiKey  string
	bucket  string
	hc      *http.Client
}

func NewClient(baseURL, apiKey, bucket string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		bucket:  bucket,
		hc: &http.Client{
			Timeout: uploadTimeout,
		},
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload stores one file and returns its public URL.
func (c *Client) Upload(ctx context.Context, projectID, filename string, r io.Reader) (string, error) {
	logger := logging.FromContext(ctx)

	key := objectKey(projectID, filename)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", key)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	url := fmt.Sprintf("%s/v1/buckets/%s/objects", c.baseURL, c.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		logger.Error("upload_file", err)
		return "", &upstream.Error{Service: "file storage", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &upstream.Error{Service: "file storage", Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("storage returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	logger.Infof("upload_file", "stored key=%s", key)
	return out.URL, nil
}

func objectKey(projectID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%d_%s%s", projectID, time.Now().UnixNano(), randSuffix(), ext)
}

func randSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
