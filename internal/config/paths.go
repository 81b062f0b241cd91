package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".agentloop"

// Paths holds resolved filesystem paths for agentloop data.
type Paths struct {
	Base        string // ~/.agentloop
	Config      string // ~/.agentloop/config.yaml
	Credentials string // ~/.agentloop/credentials
	Data        string // ~/.agentloop/data
	Models      string // ~/.agentloop/models
}

// ResolvePaths computes all standard paths from the home directory.
// If AGENTLOOP_HOME is set, it overrides the default base directory, and
// AGENTLOOP_CONFIG overrides the config file location.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("AGENTLOOP_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	cfgPath := os.Getenv("AGENTLOOP_CONFIG")
	if cfgPath == "" {
		cfgPath = filepath.Join(base, "config.yaml")
	}

	return Paths{
		Base:        base,
		Config:      cfgPath,
		Credentials: filepath.Join(base, "credentials"),
		Data:        filepath.Join(base, "data"),
		Models:      filepath.Join(base, "models"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Credentials, p.Data, p.Models}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// KnowledgeDB is the default location of the knowledge database.
func (p Paths) KnowledgeDB() string { return filepath.Join(p.Data, "knowledge.db") }

// DriveToken is the default location of the cached Google Drive OAuth token.
func (p Paths) DriveToken() string { return filepath.Join(p.Credentials, "drive-token.json") }

// ApplyPaths fills path-valued settings left empty in the config file.
func (c *Config) ApplyPaths(p Paths) {
	if c.Storage.CacheDir == "" {
		c.Storage.CacheDir = p.Models
	}
	if c.Knowledge.DBPath == "" {
		c.Knowledge.DBPath = p.KnowledgeDB()
	}
	if c.Tools.Drive.TokenFile == "" {
		c.Tools.Drive.TokenFile = p.DriveToken()
	}
}
