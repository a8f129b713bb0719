package gcs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SignedURL produces a GCS V4 signed URL granting GET access to objectName for the given TTL
// (§4.4 "signed download URL", §6). Only available when the client was configured with explicit
// service account credentials; the metadata token source has no private key to sign with.
func (b *Bucket) SignedURL(objectName string, expiry time.Duration) (string, error) {
	if b.client.signerKey == nil {
		return "", errors.New("gcs client has no signing key configured")
	}
	if expiry <= 0 || expiry > 7*24*time.Hour {
		return "", errors.New("signed url expiry must be between 1s and 7 days")
	}

	now := time.Now().UTC()
	datestamp := now.Format("20060102")
	timestamp := now.Format("20060102T150405Z")
	credentialScope := fmt.Sprintf("%s/auto/storage/goog4_request", datestamp)
	credential := fmt.Sprintf("%s/%s", b.client.signerEmail, credentialScope)

	canonicalURI := fmt.Sprintf("/%s/%s", b.name, objectName)

	query := url.Values{}
	query.Set("X-Goog-Algorithm", "GOOG4-RSA-SHA256")
	query.Set("X-Goog-Credential", credential)
	query.Set("X-Goog-Date", timestamp)
	query.Set("X-Goog-Expires", fmt.Sprintf("%d", int(expiry.Seconds())))
	query.Set("X-Goog-SignedHeaders", "host")
	canonicalQuery := query.Encode()

	canonicalRequest := strings.Join([]string{
		"GET",
		canonicalURI,
		canonicalQuery,
		"host:storage.googleapis.com",
		"",
		"host",
		"UNSIGNED-PAYLOAD",
	}, "\n")

	hashed := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		"GOOG4-RSA-SHA256",
		timestamp,
		credentialScope,
		hex.EncodeToString(hashed[:]),
	}, "\n")

	digest := sha256.Sum256([]byte(stringToSign))
	signature, err := rsa.SignPKCS1v15(rand.Reader, b.client.signerKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing url: %w", err)
	}

	return fmt.Sprintf(
		"https://storage.googleapis.com%s?%s&X-Goog-Signature=%s",
		canonicalURI, canonicalQuery, hex.EncodeToString(signature),
	), nil
}
