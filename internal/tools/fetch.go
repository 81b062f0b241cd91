package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/ui"
)

const (
	maxFetchBytes = 2 * 1024 * 1024
	maxFetchChars = 8000
)

var privateRanges = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, r := range []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, n, _ := net.ParseCIDR(r)
		nets = append(nets, n)
	}
	return nets
}()

func isPrivateIP(ip net.IP) bool {
	if ip.IsUnspecified() {
		return true
	}
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// checkHost resolves host and rejects private or internal addresses.
func checkHost(ctx context.Context, host string) error {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname %q: %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("URL resolves to private/internal IP address %s", ip)
		}
	}
	return nil
}

type fetchInput struct {
	URL string `json:"url"`
}

// FetchURL downloads a web page and returns its readable text.
func FetchURL(deps Deps) (agent.Tool, error) {
	client := deps.httpClient()
	return agent.Tool{
		Name:        "fetch_url",
		Description: "Fetch a web page over HTTP(S) and return its text content.",
		Parameters: schema.Object(
			schema.Required("url", schema.String("The http:// or https:// URL to fetch")),
		),
		Execute: func(ctx context.Context, input map[string]any) (agent.ToolResult, error) {
			var in fetchInput
			if err := schema.Decode(input, &in); err != nil {
				return agent.ToolResult{}, err
			}

			u, err := url.Parse(in.URL)
			if err != nil {
				return softFail("invalid URL: %v", err), nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return softFail("URL must start with http:// or https://"), nil
			}
			if !deps.AllowPrivateHosts {
				if err := checkHost(ctx, u.Hostname()); err != nil {
					return softFail("blocked: %v", err), nil
				}
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
			if err != nil {
				return softFail("failed to create request: %v", err), nil
			}
			req.Header.Set("User-Agent", "agentloop-fetch/1.0")

			resp, err := client.Do(req)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return agent.ToolResult{}, err
				}
				return softFail("failed to fetch URL: %v", err), nil
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
			if err != nil {
				return softFail("failed to read response body: %v", err), nil
			}

			contentType := resp.Header.Get("Content-Type")
			var text, title string
			switch {
			case strings.Contains(contentType, "html"):
				title, text = htmlText(string(body))
			case strings.HasPrefix(contentType, "text/"), strings.Contains(contentType, "json"), contentType == "":
				text = string(body)
			default:
				text = fmt.Sprintf("[%d bytes of %s not shown]", len(body), contentType)
			}
			text = truncate(strings.TrimSpace(text), maxFetchChars)

			prompt := fmt.Sprintf("HTTP %d from %s\n\n%s", resp.StatusCode, u.String(), text)
			if resp.StatusCode >= 400 {
				prompt = "Error: " + prompt
			}
			if title == "" {
				title = u.Host
			}
			return agent.ToolResult{
				NextPrompt: prompt,
				Render: func() ui.Element {
					return ui.Card{
						Title: title,
						Body:  truncate(text, 280),
						Fields: []ui.Field{
							{Label: "URL", Value: u.String()},
							{Label: "Status", Value: resp.Status},
						},
					}
				},
			}, nil
		},
	}, nil
}

// htmlText extracts the title and visible text of an HTML document.
func htmlText(doc string) (title, text string) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", doc
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "svg", "head":
				if n.Data == "head" {
					title = findTitle(n)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) && b.Len() > 0 {
			b.WriteByte('\n')
		}
	}
	walk(root)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return title, strings.Join(out, "\n")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article", "header", "footer", "pre", "blockquote":
		return true
	}
	return false
}
