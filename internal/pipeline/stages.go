// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/internal/publish"
	"github.com/pdiddy/paper-digest/internal/retry"
	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// download returns the cached PDF or fetches it. Cache writes only warn.
func (p *Pipeline) download(ctx context.Context, c types.Candidate, set string, log zerolog.Logger) ([]byte, error) {
	data, ok, err := p.Papers.LoadPDF(c.ID)
	if err != nil {
		log.Warn().Err(err).Msg("reading cached PDF")
	}
	if ok {
		log.Debug().Msg("using cached PDF")
		p.writeMetadata(c, set, log)
		return data, nil
	}

	url := c.PDFURL
	if url == "" {
		url = acquire.PDFURL(c.ID)
	}
	policy := retry.Fixed(p.cfg.DownloadAttempts, p.cfg.DownloadDelay, downloadRetryable)
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		d, err := p.Fetcher.FetchPDF(ctx, url)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("PDF download failed")
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := p.Papers.SavePDF(c.ID, data); err != nil {
		log.Warn().Err(err).Msg("caching PDF")
	}
	p.writeMetadata(c, set, log)
	log.Debug().Int("bytes", len(data)).Msg("downloaded")
	return data, nil
}

func (p *Pipeline) writeMetadata(c types.Candidate, set string, log zerolog.Logger) {
	rec := acquire.PaperRecord{
		Candidate:    c,
		PDFPath:      p.Papers.PDFPath(c.ID),
		DownloadedAt: p.now().UTC(),
		SearchSets:   []string{set},
	}
	if err := p.Papers.WriteMetadata(rec); err != nil {
		log.Warn().Err(err).Msg("writing paper metadata")
	}
}

func downloadRetryable(err error) bool {
	if errors.Is(err, acquire.ErrTooLarge) {
		return false
	}
	return errors.Is(err, acquire.ErrEmptyPDF) || httputil.IsRetryable(err)
}

// summarize renders the prompt and calls the summarizer with exponential
// backoff on transient kinds.
func (p *Pipeline) summarize(ctx context.Context, c types.Candidate, text string, prompt *summarize.Prompt, log zerolog.Logger) (string, error) {
	if prompt == nil {
		prompt = p.cfg.Prompt
	}
	rendered, err := prompt.Render(summarize.PromptData{
		Title:    c.Title,
		Abstract: c.Abstract,
		Text:     summarize.Truncate(text, p.cfg.MaxInputChars),
	})
	if err != nil {
		return "", err
	}

	var summary string
	policy := retry.Exponential(p.cfg.SummarizeAttempts, p.cfg.SummarizeBaseDelay, summarize.IsRetryable)
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		out, err := p.Summarizer.Summarize(ctx, summarize.Request{Title: c.Title, Prompt: rendered})
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("summarize failed")
			return err
		}
		if strings.TrimSpace(out) == "" {
			return &summarize.SummarizeError{Backend: p.Summarizer.Name(), Kind: summarize.KindMalformed, Err: errors.New("empty summary")}
		}
		summary = strings.TrimSpace(out)
		return nil
	})
	return summary, err
}

// publish posts text, retrying once after the platform's wait when rate
// limited.
func (p *Pipeline) publish(ctx context.Context, text string, log zerolog.Logger) (publish.Post, error) {
	var post publish.Post
	policy := retry.Fixed(2, 0, publish.IsRateLimited)
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		out, err := p.Publisher.Publish(ctx, text)
		if err != nil {
			if publish.IsRateLimited(err) && attempt == 1 {
				log.Warn().Err(err).Msg("rate limited, waiting before one more try")
			}
			return err
		}
		post = out
		return nil
	})
	return post, err
}
