// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dotandev/fwsign/internal/errors"
	"github.com/dotandev/fwsign/internal/logger"
)

// AuthEnvVar names the environment variable holding the signing
// service credential in user:password form.
const AuthEnvVar = "FWSIGN_AUTH"

// DefaultRemoteTimeout bounds the signing service round trip. The
// service performs one HSM operation per request; anything slower than
// this indicates an outage, not load.
const DefaultRemoteTimeout = 30 * time.Second

// RemoteSigner requests a pre-assembled signature block from an HTTPS
// signing service, authenticated with HTTP basic auth.
type RemoteSigner struct {
	URL    string
	client *http.Client
}

func NewRemoteSigner(url string, timeout time.Duration) *RemoteSigner {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteSigner{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *RemoteSigner) Kind() string { return "remote" }

// Sign appends the image digest to the service URL and decodes the
// hex-encoded block from the response. The credential check happens
// before any network I/O so a misconfigured environment fails without
// touching the service.
func (s *RemoteSigner) Sign(ctx context.Context, req Request) (*Block, error) {
	cred := os.Getenv(AuthEnvVar)
	if cred == "" {
		return nil, errors.WrapMissingCredential(AuthEnvVar)
	}

	hash := hex.EncodeToString(req.Digest[:])
	url := s.URL + "&hash=" + hash
	logger.Logger.Debug("signing using remote service", "url", url)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapConfig("invalid signing service URL", err)
	}
	user, pass, _ := strings.Cut(cred, ":")
	httpReq.SetBasicAuth(user, pass)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, errors.WrapExternalTool("signing service request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WrapRemoteSigning(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapExternalTool("signing service response", err)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, errors.WrapSignatureDecode(err)
	}
	if len(raw) != BlockSize {
		return nil, errors.WrapSignatureLength(len(raw), BlockSize)
	}

	// The service returns the complete block, tag and padding
	// included; it is written out verbatim.
	return DecodeBlock(raw)
}
