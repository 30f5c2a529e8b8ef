package enhance

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"storybot/internal/infra"
	"storybot/internal/storage"
)

// Options controls how the Gemini enhancer is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Store      *storage.FileStore
}

// GeminiEnhancer edits images through the Gemini generateContent API and
// persists the result through the file store so downstream callers get a URL.
type GeminiEnhancer struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	store      *storage.FileStore
}

// NewGeminiEnhancer constructs an enhancer with sane defaults.
func NewGeminiEnhancer(opts Options) (*GeminiEnhancer, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("enhance: file store is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	return &GeminiEnhancer{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger,
		store:      opts.Store,
	}, nil
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// Enhance fetches the source image, asks the model for the edited version and
// stores the returned bytes, yielding a URL-addressable result.
func (g *GeminiEnhancer) Enhance(ctx context.Context, req Request) (*Result, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("enhance: api key is not configured")
	}

	data, mime, err := g.fetchSource(ctx, req.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetch source image: %w", err)
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}},
				{Text: BuildInstruction(req)},
			},
		}},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("model error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}

	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			img, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil || len(img) == 0 {
				continue
			}
			outMIME := part.InlineData.MimeType
			if outMIME == "" {
				outMIME = "image/png"
			}
			key := fmt.Sprintf("enhanced/%s-%s%s", req.ItemID, uuid.NewString()[:8], extensionFor(outMIME))
			storedURL, err := g.store.Write(ctx, key, img)
			if err != nil {
				return nil, fmt.Errorf("store enhanced image: %w", err)
			}
			if g.logger != nil {
				g.logger.Debug().Str("item_id", req.ItemID).Str("url", storedURL).Msg("enhance: stored result")
			}
			return &Result{URL: storedURL, MIME: outMIME}, nil
		}
	}
	return nil, fmt.Errorf("model returned no image")
}

func (g *GeminiEnhancer) fetchSource(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, "", err
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

var _ Enhancer = (*GeminiEnhancer)(nil)
