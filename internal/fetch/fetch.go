// Package fetch retrieves pre-race pages from an ordered list of sources,
// advancing past dead or useless candidates until one yields a page that
// actually carries competitor data.
package fetch

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/time/rate"

	"github.com/uzuki-lab/kyotei-cli/internal/extract"
	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

// DefaultTimeout bounds a single candidate attempt.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response body is read. Race pages are well
// under 1MB; anything bigger is not the page we want.
const maxBodyBytes = 4 << 20

// Validator decides whether a 2xx body actually contains pre-race data for
// a source expected to carry the given labels.
type Validator func(body string, labels []string) bool

// Options tune a Fetcher. The zero value is usable.
type Options struct {
	// Timeout bounds each candidate attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// Validate vets a 2xx body before it is accepted. Nil defaults to
	// extract.HasBlock against the source's labels.
	Validate Validator
	// Limiter, when set, gates every outbound request.
	Limiter *rate.Limiter
	// Cache, when set, short-circuits repeat fetches for the same race.
	Cache *Cache
}

// Result is a successful fetch plus the URLs that failed along the way.
type Result struct {
	Document  *model.SourceDocument
	Attempted []string
}

// Fetcher walks sources in priority order until one produces a usable page.
type Fetcher struct {
	client  *http.Client
	sources []Source
	opts    Options
}

// New builds a Fetcher over the given sources. A nil client gets a default
// with an overall timeout above the per-candidate one.
func New(client *http.Client, sources []Source, opts Options) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Validate == nil {
		opts.Validate = extract.HasBlock
	}
	return &Fetcher{client: client, sources: sources, opts: opts}
}

// Fetch tries each source in order and returns the first document whose body
// passes validation. Timeouts, transport errors, non-2xx statuses, and pages
// without a metric block all advance to the next source; only cancellation of
// ctx stops the walk early. When every source fails the error is a
// *NoDataAvailable carrying the attempted URLs.
func (f *Fetcher) Fetch(ctx context.Context, q model.RaceQuery) (*Result, error) {
	attempted := make([]string, 0, len(f.sources))
	var lastErr error

	for _, src := range f.sources {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "fetch: aborted")
		}
		if f.opts.Cache != nil {
			if doc := f.opts.Cache.Get(src.ID(), q); doc != nil {
				return &Result{Document: doc, Attempted: attempted}, nil
			}
		}

		url := src.URL(q)
		doc, err := f.tryCandidate(ctx, src, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "fetch: aborted")
			}
			attempted = append(attempted, url)
			lastErr = err
			zap.L().Warn("source failed, advancing",
				zap.String("source", src.ID()),
				zap.String("race", q.Key()),
				zap.Error(err))
			continue
		}
		if !f.opts.Validate(doc.Body, src.Labels()) {
			attempted = append(attempted, url)
			lastErr = &FetchError{SourceID: src.ID(), URL: url, Err: errors.New("no metric block in response")}
			zap.L().Warn("source returned page without metric block, advancing",
				zap.String("source", src.ID()),
				zap.String("race", q.Key()))
			continue
		}

		if f.opts.Cache != nil {
			f.opts.Cache.Set(src.ID(), q, doc)
		}
		zap.L().Debug("source accepted",
			zap.String("source", src.ID()),
			zap.String("race", q.Key()),
			zap.Int("failed_attempts", len(attempted)))
		return &Result{Document: doc, Attempted: attempted}, nil
	}

	return nil, &NoDataAvailable{Query: q, Attempted: attempted, LastErr: lastErr}
}

// tryCandidate performs one bounded request. The per-candidate timeout hangs
// off ctx, so a slow source burns its own budget without consuming the
// caller's deadline for the remaining sources.
func (f *Fetcher) tryCandidate(ctx context.Context, src Source, url string) (*model.SourceDocument, error) {
	if f.opts.Limiter != nil {
		if err := f.opts.Limiter.Wait(ctx); err != nil {
			return nil, &FetchError{SourceID: src.ID(), URL: url, Err: err}
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{SourceID: src.ID(), URL: url, Err: err}
	}
	for k, v := range src.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{SourceID: src.ID(), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{SourceID: src.ID(), URL: url, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{SourceID: src.ID(), URL: url, Err: err}
	}

	return &model.SourceDocument{
		SourceID:  src.ID(),
		URL:       url,
		RawBody:   raw,
		Body:      decodeBody(raw, resp.Header.Get("Content-Type")),
		FetchedAt: time.Now().UTC(),
	}, nil
}

var metaCharsetRe = regexp.MustCompile(`(?i)charset\s*=\s*["']?([a-zA-Z0-9_\-]+)`)

// decodeBody converts a response body to UTF-8. The charset comes from the
// Content-Type header, then a meta tag near the top of the document, then a
// Shift_JIS guess for bodies that are not valid UTF-8. The official site
// still serves Shift_JIS pages without always declaring it.
func decodeBody(raw []byte, contentType string) string {
	if name := headerCharset(contentType); name != "" {
		if s, ok := decodeAs(raw, name); ok {
			return s
		}
	}
	head := raw
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		if s, ok := decodeAs(raw, string(m[1])); ok {
			return s
		}
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	if s, err := japanese.ShiftJIS.NewDecoder().Bytes(raw); err == nil {
		return string(s)
	}
	return string(raw)
}

func headerCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func decodeAs(raw []byte, name string) (string, bool) {
	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}
