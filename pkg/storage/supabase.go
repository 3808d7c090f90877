package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/mediconnect/platform/pkg/gateway/httpclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type SupabaseOptions struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	Timeout    time.Duration
}

// SupabaseStore writes objects through the Supabase Storage REST API into a
// public bucket.
type SupabaseStore struct {
	baseURL string
	bucket  string
	apiKey  string
	client  *http.Client
}

func NewSupabaseStore(ctx context.Context, opts SupabaseOptions) (*SupabaseStore, error) {
	if opts.BaseURL == "" || opts.ServiceKey == "" || opts.Bucket == "" {
		return nil, errors.New("supabase store requires base url, service key and bucket")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	base := httpclient.New(opts.Timeout)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: opts.ServiceKey,
		TokenType:   "Bearer",
	}))
	client.Timeout = opts.Timeout

	return &SupabaseStore{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		bucket:  opts.Bucket,
		apiKey:  opts.ServiceKey,
		client:  client,
	}, nil
}

func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), url.PathEscape(key))

	// One attempt only: the caller holds a transaction open until this returns.
	if err := s.upload(ctx, endpoint, data, contentType); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"bucket": s.bucket,
			"key":    key,
		}).Error("Supabase upload failed")
		return "", apperr.Upstream("supabase upload", err)
	}

	return s.PublicURL(key), nil
}

func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(s.bucket), url.PathEscape(key))
}

func (s *SupabaseStore) upload(ctx context.Context, endpoint string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Cache-Control", "max-age=3600")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
