package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// ErrDocumentUnavailable marks a locator that could not be fetched or read.
// It is surfaced to the caller as-is; retry policy lives above this layer.
var ErrDocumentUnavailable = errors.New("document unavailable")

// DocumentRef identifies a resolved exam-paper document.
type DocumentRef struct {
	Locator   string
	PageCount int
}

// Document carries the resolved reference and the raw PDF bytes.
type Document struct {
	Ref  DocumentRef
	Data []byte
}

// Loader resolves document locators into raw bytes.
// Supported schemes: filesystem paths, file://, http(s)://, s3://bucket/key.
type Loader struct {
	httpClient *http.Client
}

func NewLoader() *Loader {
	return &Loader{httpClient: http.DefaultClient}
}

// Resolve fetches the document behind locator, verifies it is a PDF and
// counts its pages. Remote fetches go through a temp file that is removed
// before returning. No caching, no retries.
func (l *Loader) Resolve(ctx context.Context, locator string) (*Document, error) {
	ref := locator
	// Strip optional #page fragment if present
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}

	var localPath string
	var tmpToRemove string
	var err error

	switch {
	case strings.HasPrefix(ref, "s3://"):
		localPath, err = l.downloadS3ToTemp(ctx, ref)
		tmpToRemove = localPath
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		localPath, err = l.downloadHTTPToTemp(ctx, ref)
		tmpToRemove = localPath
	case strings.HasPrefix(ref, "file://"):
		localPath = strings.TrimPrefix(ref, "file://")
	default:
		// treat as filesystem path
		localPath = ref
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnavailable, locator, err)
	}
	if tmpToRemove != "" {
		defer os.Remove(tmpToRemove)
	}

	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnavailable, locator, err)
	}
	if !mt.Is("application/pdf") {
		return nil, fmt.Errorf("%w: %s: not a PDF (%s)", ErrDocumentUnavailable, locator, mt.String())
	}

	pages, err := api.PageCountFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: page count: %v", ErrDocumentUnavailable, locator, err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnavailable, locator, err)
	}

	log.Debug().Str("locator", locator).Int("pages", pages).Int("bytes", len(data)).Msg("document resolved")
	return &Document{Ref: DocumentRef{Locator: locator, PageCount: pages}, Data: data}, nil
}

func (l *Loader) downloadHTTPToTemp(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}
	f, err := os.CreateTemp("", "examdl-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (l *Loader) downloadS3ToTemp(ctx context.Context, s3url string) (string, error) {
	// s3://bucket/key
	path := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 {
		return "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	bucket := path[:slash]
	key := path[slash+1:]

	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	cli := s3.NewFromConfig(cfg)

	out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()

	f, err := os.CreateTemp("", "exams3-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, out.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Str("file", filepath.Base(f.Name())).Msg("downloaded s3 pdf to temp")
	return f.Name(), nil
}
