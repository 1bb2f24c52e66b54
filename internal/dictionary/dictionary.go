// Package dictionary checks word existence against the Wiktionary parse API.
package dictionary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/parrothq/parrot/internal/config"
)

// Lookup answers whether a word exists in the given language.
type Lookup interface {
	IsWord(ctx context.Context, word, language string) (bool, error)
}

// Client queries Wiktionary. A word counts as real when its page carries a
// top-level section for the language and the page is not categorized as a
// misspelling of that language.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(log *slog.Logger, cfg config.DictionaryConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", "parrot (+https://github.com/parrothq/parrot)"),
		logger: log.With(slog.String("service", "dictionary")),
	}
}

type parseResult struct {
	Parse *struct {
		Sections []struct {
			Line  string `json:"line"`
			Level string `json:"level"`
		} `json:"sections"`
		Categories []struct {
			Name string `json:"*"`
		} `json:"categories"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// IsWord reports whether word has a Wiktionary entry in language. A missing
// page is a plain false, not an error.
func (c *Client) IsWord(ctx context.Context, word, language string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"action":    "parse",
			"page":      word,
			"prop":      "sections|categories",
			"format":    "json",
			"redirects": "true",
		}).
		SetResult(&parseResult{}).
		Get("")
	if err != nil {
		return false, fmt.Errorf("query dictionary: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("query dictionary: status %d", resp.StatusCode())
	}

	out, ok := resp.Result().(*parseResult)
	if !ok || out.Parse == nil {
		return false, nil
	}

	misspellings := language + " misspellings"
	for _, cat := range out.Parse.Categories {
		if strings.EqualFold(strings.ReplaceAll(cat.Name, "_", " "), misspellings) {
			return false, nil
		}
	}
	for _, s := range out.Parse.Sections {
		if s.Level == "2" && strings.EqualFold(s.Line, language) {
			return true, nil
		}
	}
	return false, nil
}
