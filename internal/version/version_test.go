package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"no vcs", Info{Version: "dev"}, "dev"},
		{"abbreviated revision", Info{Version: "v1.0.0", VCSRevision: "3f2a9c1d7e6b"}, "v1.0.0 (3f2a9c1d)"},
		{"modified tree", Info{Version: "v1.0.0", VCSRevision: "abc", VCSModified: true}, "v1.0.0 (abc+)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Short())
		})
	}
}

func TestString(t *testing.T) {
	s := Info{Version: "v1.0.0", BuildTime: "unknown", GoVersion: "go1.24.2"}.String()
	assert.Equal(t, "salesdash v1.0.0, Go: go1.24.2", s)
}

func TestCheck(t *testing.T) {
	assert.Contains(t, Info{VCSModified: true}.Check(), "modified")
	assert.Contains(t, Info{Version: "dev"}.Check(), "development build")
	assert.Empty(t, Info{Version: "v1.0.0", VCSRevision: "abc"}.Check())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, BuildTime, info.BuildTime)
}
