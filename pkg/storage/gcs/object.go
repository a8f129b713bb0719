package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Upload writes data as objectName in the bucket, returning the object's public GCS URL
// (§4.4 step: "upload rendered PDF to cloud storage"). The uploaded object is private by
// default; callers use SignedURL for time-limited access. tags is GCS's nearest equivalent of
// Cloudinary-style tagging: custom object metadata, applied with a follow-up PATCH since the
// simple media upload has no room for it.
func (b *Bucket) Upload(ctx context.Context, objectName string, data []byte, contentType string, tags map[string]string) (string, error) {
	token, err := b.client.tokenSource.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("acquiring gcs token: %w", err)
	}

	u := fmt.Sprintf(
		"https://storage.googleapis.com/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		url.PathEscape(b.name), url.QueryEscape(objectName),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("gcs upload failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var uploaded struct {
		SelfLink string `json:"selfLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}

	if len(tags) > 0 {
		if err := b.setMetadata(ctx, token, objectName, tags); err != nil {
			return "", fmt.Errorf("tagging object: %w", err)
		}
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, objectName), nil
}

func (b *Bucket) setMetadata(ctx context.Context, token, objectName string, metadata map[string]string) error {
	body, err := json.Marshal(map[string]any{"metadata": metadata})
	if err != nil {
		return err
	}

	u := fmt.Sprintf(
		"https://storage.googleapis.com/storage/v1/b/%s/o/%s",
		url.PathEscape(b.name), url.PathEscape(objectName),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("gcs metadata update failed: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Delete removes objectName from the bucket. Missing objects are treated as already deleted.
func (b *Bucket) Delete(ctx context.Context, objectName string) error {
	token, err := b.client.tokenSource.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquiring gcs token: %w", err)
	}

	u := fmt.Sprintf(
		"https://storage.googleapis.com/storage/v1/b/%s/o/%s",
		url.PathEscape(b.name), url.PathEscape(objectName),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("gcs delete failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
