package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	defer func(v, c, d string) { Version, GitCommit, BuildDate = v, c, d }(Version, GitCommit, BuildDate)
	Version, GitCommit, BuildDate = "v1.2.0", "abc1234", "2025-04-08T06:00:00Z"

	info := Get()
	assert.Equal(t, "v1.2.0", info.Version)
	assert.Equal(t, "abc1234", info.GitCommit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, "v1.2.0 (abc1234)", info.String())
	assert.True(t, strings.HasPrefix(info.Full(), "rtdcheck v1.2.0 (abc1234) built 2025-04-08T06:00:00Z with go"))
}

func TestGetDefaults(t *testing.T) {
	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.NotEmpty(t, info.GitCommit)
}
