package Captcha

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"

	"go.uber.org/zap"
)

var (
	ErrMissingToken = errors.New("CAPTCHA token is required")
	ErrRejected     = errors.New("CAPTCHA verification failed")
)

// Verifier checks tokens against a siteverify endpoint (hCaptcha and reCAPTCHA
// share the same form/JSON contract). An empty secret disables verification.
type Verifier struct {
	Secret    string
	VerifyURL string
	Client    *http.Client
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func NewVerifier(secret, verifyURL string) *Verifier {
	return &Verifier{
		Secret:    secret,
		VerifyURL: verifyURL,
		Client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *Verifier) Enabled() bool {
	return v != nil && v.Secret != ""
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}

	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.Client.Do(req)
	if err != nil {
		Logging.Logger.Error("CAPTCHA verification request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if !result.Success {
		Logging.Logger.Info("CAPTCHA rejected", zap.Strings("error_codes", result.ErrorCodes), zap.String("ip", remoteIP))
		return ErrRejected
	}
	return nil
}

var Default = NewVerifier("", "")

func Setup(cfg *Config.Config) {
	Default = NewVerifier(cfg.CaptchaSecret, cfg.CaptchaVerifyURL)
	if !Default.Enabled() {
		Logging.Logger.Warn("CAPTCHA_SECRET not set, public forms are not CAPTCHA protected")
	}
}
