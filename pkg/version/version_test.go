package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Name, info.Name)
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))
}

func TestGetInfoPrefersLinkedVersion(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })

	Version = "v1.2.3"
	assert.Equal(t, "v1.2.3", GetInfo().Version)
}

func TestInfoString(t *testing.T) {
	info := Info{
		Name:      "mediatime",
		Version:   "1.0.0",
		GitCommit: "abc123",
		BuildTime: "2024-01-01",
		GoVersion: "go1.23",
		Platform:  "linux/amd64",
	}

	str := info.String()
	assert.Contains(t, str, "mediatime 1.0.0")
	assert.Contains(t, str, "commit: abc123")
	assert.Contains(t, str, "built: 2024-01-01")
	assert.Contains(t, str, "go: go1.23")
	assert.Contains(t, str, "platform: linux/amd64")
}

func TestInfoShort(t *testing.T) {
	info := Info{Name: "mediatime", Version: "1.0.0"}
	assert.Equal(t, "mediatime 1.0.0", info.Short())
}
