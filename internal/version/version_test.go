package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuild(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})
	Version, Commit, Date = v, commit, date
}

func TestGetFromLdflags(t *testing.T) {
	setBuild(t, "1.2.3", "abc1234567890", "2026-01-15")

	b := Get()
	assert.Equal(t, "1.2.3", b.Version)
	assert.Equal(t, "abc1234", b.Commit)
	assert.Equal(t, "2026-01-15", b.Date)
	assert.Equal(t, runtime.Version(), b.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, b.Platform)
}

func TestInfo(t *testing.T) {
	setBuild(t, "1.2.3", "abc1234567890", "2026-01-15")

	info := Info()
	assert.Contains(t, info, "agentloop 1.2.3")
	assert.Contains(t, info, "commit: abc1234,")
	assert.NotContains(t, info, "abc1234567890")
	assert.Contains(t, info, "built: 2026-01-15")
	assert.Contains(t, info, runtime.GOOS)
}

func TestGetNeverEmpty(t *testing.T) {
	setBuild(t, "dev", "", "")

	b := Get()
	assert.NotEmpty(t, b.Commit)
	assert.NotEmpty(t, b.Date)
}

func TestFillFromVCS(t *testing.T) {
	b := Build{Date: "from-ldflags"}
	fillFromVCS(&b, []debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-02-01T10:00:00Z"},
	})
	assert.Equal(t, "0123456789abcdef", b.Commit)
	assert.Equal(t, "from-ldflags", b.Date)
}

func TestShort(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abcdefghij", "abcdefg"},
		{"abc1234", "abc1234"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, short(tt.in), tt.in)
	}
}
