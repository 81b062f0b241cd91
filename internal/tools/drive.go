package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/ui"
)

// DriveFile is one search hit.
type DriveFile struct {
	ID       string
	Name     string
	MimeType string
	Modified string
	Link     string
}

// DriveSearcher finds files by name or content.
type DriveSearcher interface {
	SearchFiles(ctx context.Context, query string, limit int) ([]DriveFile, error)
}

// DriveOAuthConfig reads OAuth client credentials for read-only Drive access.
func DriveOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, drive.DriveMetadataReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return cfg, nil
}

// TokenFromFile loads a saved OAuth token.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

// SaveToken writes an OAuth token with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// GoogleDrive searches Drive through the v3 API.
type GoogleDrive struct {
	svc *drive.Service
}

// NewGoogleDrive builds a searcher from saved credentials and token.
func NewGoogleDrive(ctx context.Context, credentialsFile, tokenFile string) (*GoogleDrive, error) {
	cfg, err := DriveOAuthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := TokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("no auth token found at %s, run 'agentloop auth drive' first", tokenFile)
	}
	return NewGoogleDriveWithOptions(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
}

// NewGoogleDriveWithOptions builds a searcher from explicit client options.
func NewGoogleDriveWithOptions(ctx context.Context, opts ...option.ClientOption) (*GoogleDrive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return &GoogleDrive{svc: svc}, nil
}

// SearchFiles matches query against file names and full text.
func (g *GoogleDrive) SearchFiles(ctx context.Context, query string, limit int) ([]DriveFile, error) {
	esc := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(query)
	q := fmt.Sprintf("(name contains '%s' or fullText contains '%s') and trashed = false", esc, esc)

	list, err := g.svc.Files.List().
		Q(q).
		PageSize(int64(limit)).
		Fields("files(id, name, mimeType, modifiedTime, webViewLink)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	out := make([]DriveFile, 0, len(list.Files))
	for _, f := range list.Files {
		out = append(out, DriveFile{
			ID:       f.Id,
			Name:     f.Name,
			MimeType: f.MimeType,
			Modified: f.ModifiedTime,
			Link:     f.WebViewLink,
		})
	}
	return out, nil
}

type driveInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// DriveSearch searches the user's Google Drive.
func DriveSearch(deps Deps) (agent.Tool, error) {
	if deps.Drive == nil {
		return agent.Tool{}, errors.New("google drive not configured")
	}
	searcher := deps.Drive
	return agent.Tool{
		Name:        "drive_search",
		Description: "Search Google Drive for files whose name or content matches a query.",
		Parameters: schema.Object(
			schema.Required("query", schema.String("Text to search for")),
			schema.Optional("limit", schema.Integer("Maximum number of files, default 10")),
		),
		Execute: func(ctx context.Context, input map[string]any) (agent.ToolResult, error) {
			var in driveInput
			if err := schema.Decode(input, &in); err != nil {
				return agent.ToolResult{}, err
			}
			if in.Limit <= 0 || in.Limit > 100 {
				in.Limit = 10
			}

			files, err := searcher.SearchFiles(ctx, in.Query, in.Limit)
			if err != nil {
				return softFail("drive search failed: %v", err), nil
			}
			if len(files) == 0 {
				return agent.ToolResult{NextPrompt: fmt.Sprintf("No files found matching %q.", in.Query)}, nil
			}

			var b strings.Builder
			rows := make([][]string, len(files))
			for i, f := range files {
				fmt.Fprintf(&b, "%d. %s (%s, modified %s) %s\n", i+1, f.Name, f.MimeType, f.Modified, f.Link)
				rows[i] = []string{f.Name, f.MimeType, f.Modified}
			}
			fmt.Fprintf(&b, "Found %d file(s)", len(files))

			return agent.ToolResult{
				NextPrompt: b.String(),
				Render: func() ui.Element {
					return ui.Table{
						Title:   "Drive: " + in.Query,
						Columns: []string{"Name", "Type", "Modified"},
						Rows:    rows,
					}
				},
			}, nil
		},
	}, nil
}
