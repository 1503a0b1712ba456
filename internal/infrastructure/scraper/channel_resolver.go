package scraper

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/infrastructure/html"
)

const (
	defaultChannelPageBaseURL = "https://www.youtube.com"
	defaultTimeout            = 15 * time.Second
	userAgent                 = "Mozilla/5.0 (compatible; channelwatch/1.0)"
)

var channelIDPattern = regexp.MustCompile(`UC[0-9A-Za-z_-]{22}`)

// ChannelResolver finds the canonical channel id of a handle by reading the
// public channel page. It needs no API key.
type ChannelResolver struct {
	client  *http.Client
	baseURL string
}

func NewChannelResolver(baseURL string, timeout time.Duration) *ChannelResolver {
	if baseURL == "" {
		baseURL = defaultChannelPageBaseURL
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &ChannelResolver{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ResolveID returns "" with a nil error when the page carries no channel id.
func (r *ChannelResolver) ResolveID(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if entity.IsCanonicalChannelID(identifier) {
		return identifier, nil
	}
	if !entity.IsHandle(identifier) {
		identifier = "@" + identifier
	}

	doc, err := html.FetchDocument(ctx, r.client, r.baseURL+"/"+url.PathEscape(identifier), userAgent)
	if err != nil {
		return "", err
	}
	return extractChannelID(doc), nil
}

// extractChannelID checks the page metadata from most to least specific.
func extractChannelID(doc *goquery.Document) string {
	candidates := []struct {
		selector string
		attr     string
	}{
		{`meta[itemprop="identifier"]`, "content"},
		{`meta[itemprop="channelId"]`, "content"},
		{`link[rel="canonical"]`, "href"},
		{`meta[property="og:url"]`, "content"},
	}

	for _, c := range candidates {
		var found string
		doc.Find(c.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value, ok := s.Attr(c.attr)
			if !ok {
				return true
			}
			found = channelIDPattern.FindString(value)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}
