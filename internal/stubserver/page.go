package stubserver

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"html/template"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/url"
	"strings"
)

const (
	screenshotWidth  = 320
	screenshotHeight = 200
)

// knownTitles maps hosts to the titles their front pages report
var knownTitles = map[string]string{
	"baidu.com":   "百度一下，你就知道",
	"github.com":  "GitHub · Build and ship software on a single, collaborative platform · GitHub",
	"example.com": "Example Domain",
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Stub rendering of <a href="{{.URL}}">{{.URL}}</a>.</p>
</body>
</html>
`))

func blankPage() Page {
	return Page{
		URL:   "about:blank",
		Title: "",
		HTML:  "<html><head></head><body></body></html>",
	}
}

// loadPage builds the page state for target, which must be an absolute
// http(s) URL
func loadPage(target string) (Page, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Page{}, fmt.Errorf("invalid url: %q", target)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	title, ok := knownTitles[host]
	if !ok {
		title = u.Hostname()
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, struct{ Title, URL string }{title, u.String()}); err != nil {
		return Page{}, fmt.Errorf("failed to render page: %w", err)
	}
	return Page{URL: u.String(), Title: title, HTML: buf.String()}, nil
}

// renderScreenshot draws a solid image whose color depends on the page URL
func renderScreenshot(page Page, format string) ([]byte, string, error) {
	h := fnv.New32a()
	h.Write([]byte(page.URL))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, screenshotWidth, screenshotHeight))
	for y := 0; y < screenshotHeight; y++ {
		for x := 0; x < screenshotWidth; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "", "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	default:
		return nil, "", fmt.Errorf("unsupported format: %s", format)
	}
}

// evaluate supports the handful of expressions a smoke test reads
func evaluate(page Page, script string) (string, error) {
	switch strings.TrimSuffix(strings.TrimSpace(script), ";") {
	case "document.location.href", "window.location.href", "location.href", "document.URL":
		return page.URL, nil
	case "document.title":
		return page.Title, nil
	default:
		return "", fmt.Errorf("unsupported script: %q", script)
	}
}
