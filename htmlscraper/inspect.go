package htmlscraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageInfo summarizes the content of an HTML page.
type PageInfo struct {
	// Title is the text of the first <title> element.
	Title string `json:"title"`

	// Description is the content of <meta name="description">.
	Description string `json:"description,omitempty"`

	// InternalLinks are links to the host of the page.
	InternalLinks []*url.URL `json:"-"`

	// ExternalLinks are links to any other host.
	ExternalLinks []*url.URL `json:"-"`

	// Scripts and Images hold the resolved src attributes.
	Scripts []string `json:"scripts,omitempty"`
	Images  []string `json:"images,omitempty"`

	// Forms is the number of <form> elements.
	Forms int `json:"forms"`

	// Meta maps meta names, or OpenGraph properties, to their content.
	Meta map[string]string `json:"meta,omitempty"`
}

// Links returns the internal links followed by the external ones.
func (p PageInfo) Links() []*url.URL {
	links := make([]*url.URL, 0, len(p.InternalLinks)+len(p.ExternalLinks))
	links = append(links, p.InternalLinks...)
	return append(links, p.ExternalLinks...)
}

// Inspect extracts the PageInfo of doc. Relative references are resolved
// against base, and links are classified by comparing hosts with base.
func Inspect(doc *goquery.Document, base *url.URL) PageInfo {
	info := PageInfo{Meta: make(map[string]string)}
	if doc == nil || base == nil {
		return info
	}

	info.Title = strings.TrimSpace(doc.Find("title").First().Text())

	for _, u := range Links(doc, base) {
		if strings.EqualFold(u.Hostname(), base.Hostname()) {
			info.InternalLinks = append(info.InternalLinks, u)
		} else {
			info.ExternalLinks = append(info.ExternalLinks, u)
		}
	}

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src := resolve(base, s.AttrOr("src", "")); src != "" {
			info.Scripts = append(info.Scripts, src)
		}
	})
	doc.Find("img[src], link[rel='icon'][href], link[rel='shortcut icon'][href]").Each(func(_ int, s *goquery.Selection) {
		attr := "src"
		if goquery.NodeName(s) == "link" {
			attr = "href"
		}
		if src := resolve(base, s.AttrOr(attr, "")); src != "" {
			info.Images = append(info.Images, src)
		}
	})

	info.Forms = doc.Find("form").Length()

	doc.Find("meta[content]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			name = s.AttrOr("property", "")
		}
		if content := s.AttrOr("content", ""); name != "" && content != "" {
			info.Meta[strings.ToLower(name)] = content
		}
	})
	info.Description = info.Meta["description"]

	return info
}

// resolve returns ref resolved against base, or "" when ref is empty or invalid.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}
