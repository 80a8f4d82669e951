package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"adgen/internal/domain"
)

const (
	openAIProviderName   = "openai"
	defaultOpenAIModel   = "gpt-image-1"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultImageSize     = "1024x1024"
	openAIDefaultTimeout = 120 * time.Second
)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	Size         string
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// OpenAIGenerator calls the OpenAI images API.
type OpenAIGenerator struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	size         string
	client       *http.Client
	logger       zerolog.Logger
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	size := strings.TrimSpace(opts.Size)
	if size == "" {
		size = defaultImageSize
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIGenerator{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		size:         size,
		client:       client,
		logger:       opts.Logger,
	}, nil
}

func (o *OpenAIGenerator) Generate(ctx context.Context, brief Brief) ([]byte, error) {
	payload := openAIImageRequest{
		Model:  o.model,
		Prompt: BuildPrompt(brief),
		N:      1,
		Size:   o.size,
	}
	// gpt-image models always answer with base64 and reject response_format.
	if !strings.HasPrefix(o.model, "gpt-image") {
		payload.ResponseFormat = "b64_json"
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrProviderFailure, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/generations", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrProviderFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: openai request: %w", domain.ErrProviderFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		var apiErr openAIErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		return nil, &StatusError{Provider: openAIProviderName, Status: resp.StatusCode, Message: apiErr.Error.Message}
	}

	var out openAIImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrProviderFailure, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: openai returned no images", domain.ErrProviderFailure)
	}

	var data []byte
	switch first := out.Data[0]; {
	case first.B64JSON != "":
		data, err = base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("%w: decode image: %v", domain.ErrProviderFailure, err)
		}
	case first.URL != "":
		data, err = o.download(ctx, first.URL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: openai returned an empty image", domain.ErrProviderFailure)
	}

	o.logger.Debug().
		Str("ad_id", brief.RequestID).
		Str("model", o.model).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("openai: generated image")
	return data, nil
}

func (o *OpenAIGenerator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build download request: %v", domain.ErrProviderFailure, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download image: %w", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Provider: openAIProviderName, Status: resp.StatusCode, Message: "image download failed"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %v", domain.ErrProviderFailure, err)
	}
	return data, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
