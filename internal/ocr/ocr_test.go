package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerdoc/facture-cli/internal/config"
	"github.com/enerdoc/facture-cli/internal/resilience"
)

func TestPageRange_Contains(t *testing.T) {
	tests := []struct {
		name string
		r    PageRange
		page int
		want bool
	}{
		{"whole document", PageRange{}, 7, true},
		{"inside bounded", PageRange{First: 2, Last: 4}, 3, true},
		{"below bounded", PageRange{First: 2, Last: 4}, 1, false},
		{"above bounded", PageRange{First: 2, Last: 4}, 5, false},
		{"open end", PageRange{First: 3}, 9, true},
		{"open end below", PageRange{First: 3}, 2, false},
		{"open start", PageRange{Last: 2}, 1, true},
		{"open start above", PageRange{Last: 2}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Contains(tt.page))
		})
	}
}

func TestPageRange_Whole(t *testing.T) {
	assert.True(t, PageRange{}.Whole())
	assert.False(t, PageRange{First: 1}.Whole())
	assert.False(t, PageRange{Last: 3}.Whole())
}

func TestNewExtractor_Local(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "local", PdfToTextPath: "/usr/bin/pdftotext"}, "")
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)
}

func TestNewExtractor_LocalDefault(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: ""}, "")
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)
}

func TestNewExtractor_MistralMissingKey(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "mistral"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral provider requires mistral_api_key")
}

func TestNewExtractor_MistralWithKey(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "mistral"}, "test-key")
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, ext)
}

func TestNewExtractor_AutoRequiresKey(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "auto"}, "")
	require.Error(t, err)

	ext, err := NewExtractor(config.OCRConfig{Provider: "auto"}, "test-key")
	require.NoError(t, err)
	assert.IsType(t, &Cascade{}, ext)
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "unknown"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "unknown"`)
}

func TestPdfToText_BinPath(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/custom/pdftotext")
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

func TestPdfToText_ExtractText_Success(t *testing.T) {
	// Fake pdftotext that echoes its arguments back as the "text".
	tmpDir := t.TempDir()
	fakeBin := filepath.Join(tmpDir, "pdftotext")
	script := "#!/bin/sh\necho \"$@\"\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0755))

	p := NewPdfToText(fakeBin)
	text, err := p.ExtractText(context.Background(), "/tmp/dummy.pdf", PageRange{})
	require.NoError(t, err)
	assert.Contains(t, text, "-layout")
	assert.NotContains(t, text, "-f")
}

func TestPdfToText_PageRangeFlags(t *testing.T) {
	tmpDir := t.TempDir()
	fakeBin := filepath.Join(tmpDir, "pdftotext")
	script := "#!/bin/sh\necho \"$@\"\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0755))

	p := NewPdfToText(fakeBin)
	text, err := p.ExtractText(context.Background(), "/tmp/dummy.pdf", PageRange{First: 3, Last: 3})
	require.NoError(t, err)
	assert.Contains(t, text, "-f 3")
	assert.Contains(t, text, "-l 3")
}

func TestPdfToText_ExtractText_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.ExtractText(context.Background(), "/tmp/test.pdf", PageRange{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
}

func TestMistralOCR_CustomModel(t *testing.T) {
	m := NewMistralOCR("key", "custom-model")
	assert.Equal(t, "custom-model", m.model)
}

func TestMistralOCR_ExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")
		assert.Empty(t, req.Pages)

		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{
				{Index: 0, Markdown: "Page one content"},
				{Index: 1, Markdown: "Page two content"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	pdfPath := filepath.Join(tmpDir, "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test content"), 0644))

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	text, err := m.ExtractText(context.Background(), pdfPath, PageRange{})
	require.NoError(t, err)
	assert.Equal(t, "Page one content\n\nPage two content", text)
}

func TestMistralOCR_BoundedRangeRequestsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{2}, req.Pages)

		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{{Index: 2, Markdown: "Page three content"}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	pdfPath := filepath.Join(tmpDir, "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0644))

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	text, err := m.ExtractText(context.Background(), pdfPath, PageRange{First: 3, Last: 3})
	require.NoError(t, err)
	assert.Equal(t, "Page three content", text)
}

func TestMistralOCR_OpenRangeFiltersResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Pages)

		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{
				{Index: 0, Markdown: "Page one"},
				{Index: 1, Markdown: "Page two"},
				{Index: 2, Markdown: "Page three"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	pdfPath := filepath.Join(tmpDir, "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0644))

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	text, err := m.ExtractText(context.Background(), pdfPath, PageRange{First: 2})
	require.NoError(t, err)
	assert.Equal(t, "Page two\n\nPage three", text)
}

func TestMistralOCR_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	pdfPath := filepath.Join(tmpDir, "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0644))

	m := &MistralOCR{
		apiKey:   "bad-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	_, err := m.ExtractText(context.Background(), pdfPath, PageRange{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 401")
}

func TestMistralOCR_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		resp := mistralOCRResponse{Pages: []mistralOCRPage{{Index: 0, Markdown: "recovered"}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	pdfPath := filepath.Join(tmpDir, "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0644))

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
		retry:    resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond},
	}

	text, err := m.ExtractText(context.Background(), pdfPath, PageRange{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), hits.Load())
}

func TestMistralOCR_FileNotFound(t *testing.T) {
	m := NewMistralOCR("key", "model")
	_, err := m.ExtractText(context.Background(), "/nonexistent/file.pdf", PageRange{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read PDF")
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{invalid json`)) //nolint:errcheck
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	pdfPath := filepath.Join(tmpDir, "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0644))

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	_, err := m.ExtractText(context.Background(), pdfPath, PageRange{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) ExtractText(_ context.Context, _ string, _ PageRange) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestCascade_RichTextLayerSkipsRemote(t *testing.T) {
	local := &stubExtractor{text: strings.Repeat("facture ENGIE gaz naturel ", 20)}
	remote := &stubExtractor{text: "remote"}

	c := &Cascade{local: local, remote: remote, minChars: minTextChars}
	text, err := c.ExtractText(context.Background(), "/tmp/x.pdf", PageRange{})
	require.NoError(t, err)
	assert.Contains(t, text, "facture ENGIE")
	assert.Equal(t, 0, remote.calls)
}

func TestCascade_ThinTextLayerFallsBack(t *testing.T) {
	local := &stubExtractor{text: "  \x0c "}
	remote := &stubExtractor{text: "OCR result"}

	c := &Cascade{local: local, remote: remote, minChars: minTextChars}
	text, err := c.ExtractText(context.Background(), "/tmp/x.pdf", PageRange{})
	require.NoError(t, err)
	assert.Equal(t, "OCR result", text)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, remote.calls)
}

func TestCascade_LocalErrorFallsBack(t *testing.T) {
	local := &stubExtractor{err: assert.AnError}
	remote := &stubExtractor{text: "OCR result"}

	c := &Cascade{local: local, remote: remote, minChars: minTextChars}
	text, err := c.ExtractText(context.Background(), "/tmp/x.pdf", PageRange{})
	require.NoError(t, err)
	assert.Equal(t, "OCR result", text)
}
