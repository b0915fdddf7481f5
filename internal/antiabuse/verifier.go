package antiabuse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
)

var (
	ErrTokenRejected = errors.New("abuse check rejected the token")
	ErrNotConfigured = errors.New("abuse verification is not configured")
)

// Verifier checks challenge tokens against a reCAPTCHA-compatible verify
// endpoint before a booking request is allowed to open a checkout session.
type Verifier struct {
	client *http.Client
	cfg    config.AntiAbuseConfig
	logger *logger.Logger
}

func NewVerifier(client *http.Client, cfg config.AntiAbuseConfig, log *logger.Logger) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Verifier{client: client, cfg: cfg, logger: log}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks a challenge token with the configured provider. When no
// secret is configured the AllowUnverified switch decides: development
// setups let the request through with an explicit log line, everything else
// rejects.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if v.cfg.Secret == "" {
		if v.cfg.AllowUnverified {
			v.logger.Warn("ANTIABUSE", "No verification secret configured, letting request through unverified")
			return nil
		}
		v.logger.Error("ANTIABUSE", "No verification secret configured and unverified requests are disabled")
		return ErrNotConfigured
	}

	if token == "" {
		v.logger.LogSecurity("MISSING_TOKEN", fmt.Sprintf("Request from %s carried no challenge token", remoteIP))
		return ErrTokenRejected
	}

	form := url.Values{}
	form.Set("secret", v.cfg.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error("ANTIABUSE", fmt.Sprintf("Verification service error: %v", err))
		return fmt.Errorf("verification service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.Error("ANTIABUSE", fmt.Sprintf("Verification service returned status: %d", resp.StatusCode))
		return fmt.Errorf("verification service returned status: %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		v.logger.Error("ANTIABUSE", fmt.Sprintf("Failed to decode verification response: %v", err))
		return fmt.Errorf("failed to decode verification response: %w", err)
	}

	if !result.Success {
		v.logger.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("Token from %s rejected: %v", remoteIP, result.ErrorCodes))
		return ErrTokenRejected
	}

	return nil
}
