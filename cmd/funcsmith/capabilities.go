package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"funcsmith/internal/capability"
)

// demoCapabilities builds the host capability registry exposed to generated
// code. Each capability takes one structured argument and returns a string,
// JSON-encoded where the result has structure.
func demoCapabilities() *capability.Registry {
	r := capability.NewRegistry()
	r.Register("time_now", "returns the current UTC time as RFC3339, args: {}", timeNow)
	r.Register("echo", "returns args.text unchanged, args: {text: string}", echoText)
	r.Register("fetch_page", "fetches a web page and returns its title and text excerpt, args: {url: string}", fetchPage)
	return r
}

func timeNow(context.Context, map[string]any) (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func echoText(_ context.Context, args map[string]any) (string, error) {
	text, _ := args["text"].(string)
	return text, nil
}

const fetchExcerptLimit = 500

func fetchPage(ctx context.Context, args map[string]any) (string, error) {
	url, _ := args["url"].(string)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("fetch_page requires an http(s) url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch_page: %s returned %s", url, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > fetchExcerptLimit {
		text = text[:fetchExcerptLimit]
	}

	out, err := json.Marshal(map[string]string{
		"title":   strings.TrimSpace(doc.Find("title").First().Text()),
		"excerpt": text,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
