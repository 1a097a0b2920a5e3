package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/enerdoc/facture-cli/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
)

// MistralOCR extracts text from PDFs using the Mistral OCR API.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	retry    resilience.RetryConfig
}

// NewMistralOCR creates a MistralOCR extractor. If model is empty, the default is used.
func NewMistralOCR(apiKey, model string) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	rc := resilience.DefaultRetryConfig()
	rc.OnRetry = resilience.RetryLogger("ocr", "mistral")
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{},
		retry:    rc,
	}
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
	// Pages is zero-indexed; omitted when the whole document is wanted.
	Pages []int `json:"pages,omitempty"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText reads a PDF file, sends it to Mistral OCR, and returns the
// extracted text. A fully bounded page range is passed to the API so only
// those pages are billed; the response is filtered by range either way.
func (m *MistralOCR) ExtractText(ctx context.Context, pdfPath string, pages PageRange) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read PDF %s", pdfPath)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	dataURL := "data:application/pdf;base64," + encoded

	reqBody := mistralOCRRequest{
		Model: m.model,
		Document: mistralOCRDocument{
			Type:        "document_url",
			DocumentURL: dataURL,
		},
	}
	if pages.First > 0 && pages.Last > 0 {
		for p := pages.First; p <= pages.Last; p++ {
			reqBody.Pages = append(reqBody.Pages, p-1)
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", eris.Wrap(err, "ocr: marshal mistral request")
	}

	respBody, err := resilience.DoVal(ctx, m.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, eris.Wrap(err, "ocr: create mistral request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+m.apiKey)

		resp, err := m.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "ocr: mistral API call")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "ocr: read mistral response")
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return nil, apiErr
		}
		return body, nil
	})
	if err != nil {
		return "", err
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return "", eris.Wrap(err, "ocr: unmarshal mistral response")
	}

	var sb strings.Builder
	for _, page := range ocrResp.Pages {
		if !pages.Contains(page.Index + 1) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
	}

	return sb.String(), nil
}
