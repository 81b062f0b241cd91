package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/digitalocean/godo"
	"golang.org/x/oauth2"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/ui"
)

// Droplet is the inventory view of one DigitalOcean droplet.
type Droplet struct {
	ID       int
	Name     string
	Status   string
	Region   string
	Size     string
	PublicIP string
	Tags     []string
}

// DropletLister lists droplets, optionally filtered by tag.
type DropletLister interface {
	ListDroplets(ctx context.Context, tag string) ([]Droplet, error)
}

// GodoLister lists droplets through the DigitalOcean API.
type GodoLister struct {
	client *godo.Client
}

// NewGodoLister creates a lister authenticated with token. baseURL overrides
// the API endpoint and may be empty.
func NewGodoLister(ctx context.Context, token, baseURL string) (*GodoLister, error) {
	if token == "" {
		return nil, errors.New("digitalocean token is not set")
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	var opts []godo.ClientOpt
	if baseURL != "" {
		opts = append(opts, godo.SetBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	client, err := godo.New(httpClient, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating digitalocean client: %w", err)
	}
	return &GodoLister{client: client}, nil
}

// ListDroplets pages through every droplet.
func (g *GodoLister) ListDroplets(ctx context.Context, tag string) ([]Droplet, error) {
	opt := &godo.ListOptions{PerPage: 200}
	var out []Droplet
	for {
		var droplets []godo.Droplet
		var resp *godo.Response
		var err error
		if tag != "" {
			droplets, resp, err = g.client.Droplets.ListByTag(ctx, tag, opt)
		} else {
			droplets, resp, err = g.client.Droplets.List(ctx, opt)
		}
		if err != nil {
			return nil, err
		}

		for _, d := range droplets {
			item := Droplet{
				ID:     d.ID,
				Name:   d.Name,
				Status: d.Status,
				Size:   d.SizeSlug,
				Tags:   d.Tags,
			}
			if d.Region != nil {
				item.Region = d.Region.Slug
			}
			if ip, err := d.PublicIPv4(); err == nil {
				item.PublicIP = ip
			}
			out = append(out, item)
		}

		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			break
		}
		opt.Page = page + 1
	}
	return out, nil
}

type dropletsInput struct {
	Tag string `json:"tag"`
}

// Droplets lists the DigitalOcean droplets in the account.
func Droplets(deps Deps) (agent.Tool, error) {
	if deps.Droplets == nil {
		return agent.Tool{}, errors.New("digitalocean not configured")
	}
	lister := deps.Droplets
	return agent.Tool{
		Name:        "droplets",
		Description: "List DigitalOcean droplets with status, region, size and public IP.",
		Parameters: schema.Object(
			schema.Optional("tag", schema.String("Only list droplets with this tag")),
		),
		Execute: func(ctx context.Context, input map[string]any) (agent.ToolResult, error) {
			var in dropletsInput
			if err := schema.Decode(input, &in); err != nil {
				return agent.ToolResult{}, err
			}

			droplets, err := lister.ListDroplets(ctx, in.Tag)
			if err != nil {
				return softFail("failed to list droplets: %v", err), nil
			}
			if len(droplets) == 0 {
				return agent.ToolResult{NextPrompt: "No droplets found."}, nil
			}

			var b strings.Builder
			rows := make([][]string, len(droplets))
			for i, d := range droplets {
				fmt.Fprintf(&b, "- %s (id %d): %s, %s, %s, ip %s", d.Name, d.ID, d.Status, d.Region, d.Size, orNone(d.PublicIP))
				if len(d.Tags) > 0 {
					fmt.Fprintf(&b, ", tags %s", strings.Join(d.Tags, ","))
				}
				b.WriteByte('\n')
				rows[i] = []string{strconv.Itoa(d.ID), d.Name, d.Status, d.Region, d.Size, orNone(d.PublicIP)}
			}
			fmt.Fprintf(&b, "Total: %d droplet(s)", len(droplets))

			return agent.ToolResult{
				NextPrompt: b.String(),
				Render: func() ui.Element {
					return ui.Table{
						Title:   "Droplets",
						Columns: []string{"ID", "Name", "Status", "Region", "Size", "Public IP"},
						Rows:    rows,
					}
				},
			}, nil
		},
	}, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
