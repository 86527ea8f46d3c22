package render

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
)

// FeedLimit caps the number of items in the RSS feed.
const FeedLimit = 20

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	SelfLink      atomLink  `xml:"atom:link"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate,omitempty"`
	Description string  `xml:"description"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Feed renders published posts as RSS 2.0. Drafts are skipped even if the
// caller passes them.
func Feed(list []posts.Post, baseURL string, site config.SiteConfig) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")
	channel := rssChannel{
		Title:       site.Title,
		Link:        base + "/",
		Description: site.Description,
		SelfLink:    atomLink{Href: base + "/feed.xml", Rel: "self", Type: "application/rss+xml"},
	}

	var latest time.Time
	for _, p := range list {
		if !p.IsPublished() {
			continue
		}
		if len(channel.Items) == FeedLimit {
			break
		}
		link := PostURL(baseURL, p.Slug)
		item := rssItem{
			Title:       p.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			Description: editorjs.Excerpt(p.Blocks, ExcerptLength),
		}
		if p.PublishedAt != nil {
			item.PubDate = p.PublishedAt.UTC().Format(time.RFC1123Z)
			if p.PublishedAt.After(latest) {
				latest = *p.PublishedAt
			}
		}
		channel.Items = append(channel.Items, item)
	}
	if !latest.IsZero() {
		channel.LastBuildDate = latest.UTC().Format(time.RFC1123Z)
	}

	out, err := xml.MarshalIndent(rss{Version: "2.0", Atom: "http://www.w3.org/2005/Atom", Channel: channel}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
