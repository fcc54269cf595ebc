package browser

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mailscrape/weboutlook/pkg/base"
)

// page is the parsed form of the session's current document.
type page struct {
	url      *url.URL
	baseHref *url.URL
	doc      *goquery.Document
}

func parsePage(finalURL *url.URL, body []byte) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	p := &page{url: finalURL, doc: doc}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := finalURL.Parse(href); err == nil {
			p.baseHref = u
		}
	}
	return p, nil
}

// resolve turns an href into an absolute URL using the page's <base href>
// when present, the page URL otherwise.
func (p *page) resolve(href string) string {
	against := p.url
	if p.baseHref != nil {
		against = p.baseHref
	}
	u, err := against.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

func (p *page) links() []base.Link {
	baseHref := ""
	if p.baseHref != nil {
		baseHref = p.baseHref.String()
	}

	var links []base.Link
	p.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		links = append(links, base.Link{
			Href:    href,
			URL:     p.resolve(href),
			Text:    strings.TrimSpace(sel.Text()),
			BaseURL: baseHref,
		})
	})
	return links
}

type pageForm struct {
	name   string
	action string
	method string
	fields url.Values
}

func (p *page) forms() []*pageForm {
	var forms []*pageForm
	p.doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok {
			name, _ = sel.Attr("id")
		}

		method := strings.ToUpper(strings.TrimSpace(sel.AttrOr("method", "")))
		if method == "" {
			method = http.MethodGet
		}

		form := &pageForm{
			name:   name,
			action: sel.AttrOr("action", ""),
			method: method,
			fields: url.Values{},
		}
		sel.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
			inputName, _ := input.Attr("name")
			form.fields.Add(inputName, input.AttrOr("value", ""))
		})
		forms = append(forms, form)
	})
	return forms
}

func (p *page) form(name string) *pageForm {
	for _, f := range p.forms() {
		if f.name == name {
			return f
		}
	}
	return nil
}

func (p *page) formNames() []string {
	var names []string
	for _, f := range p.forms() {
		if f.name != "" {
			names = append(names, f.name)
		}
	}
	return names
}
