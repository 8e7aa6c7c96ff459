package buildinfo

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Short(t *testing.T) {
	defer func(i BuildInfo) { Info = i }(Info)

	tests := []struct {
		version, revision, want string
	}{
		{"v1.2.0", "3f2a9c1d0e4b", "v1.2.0 (3f2a9c1)"},
		{Unknown, Unknown, "unknown (unknown)"},
		{"v0.1.0", "abc", "v0.1.0 (abc)"},
	}

	for _, tt := range tests {
		Info.GitVersion, Info.GitRevision = tt.version, tt.revision
		assert.Equal(t, tt.want, Short())
	}
}

func Test_PrintAndJSON(t *testing.T) {
	assert := assert.New(t)

	var out bytes.Buffer
	assert.NoError(Print(&out))
	assert.Contains(out.String(), runtime.GOOS+"/"+runtime.GOARCH)

	out.Reset()
	assert.NoError(JSON(&out))
	var got map[string]interface{}
	assert.NoError(json.Unmarshal(out.Bytes(), &got))
	assert.Equal(runtime.Version(), got["go_version"])
	assert.Equal(Unknown, got["build_date"])
}
