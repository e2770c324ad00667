package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"palpiteiros/internal/models"
)

type digestData struct {
	Title          string
	Date           string
	Markets        []digestMarket
	SiteURL        string
	UnsubscribeURL string
}

type digestMarket struct {
	Rank     int
	Question string
	URL      string
	Price    string
	Change   string
	Up       bool
	Down     bool
	Volume   string
	Trend    string
	ImageURL string
}

var digestFuncs = map[string]any{"upper": strings.ToUpper}

var digestHTML = htmltemplate.Must(htmltemplate.New("digest.html").Funcs(digestFuncs).Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;max-width:640px;margin:0 auto;color:#111">
<h1 style="font-size:20px">{{.Title}}</h1>
<p style="color:#666">{{.Date}}</p>
<table style="width:100%;border-collapse:collapse">
{{range .Markets}}<tr style="border-bottom:1px solid #eee">
<td style="padding:8px 4px;width:24px;color:#999">{{.Rank}}</td>
<td style="padding:8px 4px"><a href="{{.URL}}" style="color:#111;text-decoration:none">{{.Question}}</a><br>
<small style="color:#666">{{upper .Trend}} · vol {{.Volume}}</small></td>
<td style="padding:8px 4px;text-align:right">{{.Price}}<br>
<small style="color:{{if .Up}}#16a34a{{else if .Down}}#dc2626{{else}}#666{{end}}">{{.Change}}</small></td>
</tr>
{{end}}</table>
<p><a href="{{.SiteURL}}">See all breaking markets</a></p>
<p style="font-size:12px;color:#999"><a href="{{.UnsubscribeURL}}" style="color:#999">Unsubscribe</a></p>
</body></html>`))

var digestText = texttemplate.Must(texttemplate.New("digest.txt").Parse(`{{.Title}}
{{.Date}}
{{range .Markets}}
{{.Rank}}. {{.Question}}
   {{.Price}} ({{.Change}}) vol {{.Volume}}
   {{.URL}}
{{end}}
See all breaking markets: {{.SiteURL}}
Unsubscribe: {{.UnsubscribeURL}}
`))

// renderDigest builds subject, html and text bodies for one subscriber.
func renderDigest(siteURL, frequency, token string, markets []BreakingMarket, now time.Time) (string, string, string, error) {
	base := strings.TrimRight(siteURL, "/")
	label := "Daily"
	if frequency == models.FrequencyWeekly {
		label = "Weekly"
	}
	data := digestData{
		Title:          label + " breaking markets",
		Date:           now.UTC().Format("Mon, 02 Jan 2006"),
		SiteURL:        base,
		UnsubscribeURL: UnsubscribeURL(base, token),
		Markets:        make([]digestMarket, 0, len(markets)),
	}
	for i, m := range markets {
		link := base
		if m.Slug != nil && *m.Slug != "" {
			link = base + "/market/" + url.PathEscape(*m.Slug)
		}
		image := ""
		if m.ImageURL != nil {
			image = *m.ImageURL
		}
		data.Markets = append(data.Markets, digestMarket{
			Rank:     i + 1,
			Question: m.Question,
			URL:      link,
			Price:    fmt.Sprintf("%.0f%%", m.CurrentPrice*100),
			Change:   fmt.Sprintf("%+.1f%%", m.PriceChangePercent*100),
			Up:       m.PriceChangePercent > 0,
			Down:     m.PriceChangePercent < 0,
			Volume:   compactNumber(m.Volume),
			Trend:    string(m.Trend),
			ImageURL: image,
		})
	}

	var html bytes.Buffer
	if err := digestHTML.Execute(&html, data); err != nil {
		return "", "", "", fmt.Errorf("render html digest: %w", err)
	}
	var text bytes.Buffer
	if err := digestText.Execute(&text, data); err != nil {
		return "", "", "", fmt.Errorf("render text digest: %w", err)
	}

	subject := data.Title
	if len(markets) > 0 {
		subject = fmt.Sprintf("%s: %s", data.Title, truncate(markets[0].Question, 80))
	}
	return subject, html.String(), text.String(), nil
}

func UnsubscribeURL(siteURL, token string) string {
	return strings.TrimRight(siteURL, "/") + "/unsubscribe?token=" + url.QueryEscape(token)
}

func compactNumber(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.1fK", v/1_000)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
