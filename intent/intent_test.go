package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/comcast/dnacflow/dnac"
	"github.com/stretchr/testify/assert"
)

type stubModule struct {
	name   string
	states []string
}

func (s stubModule) Name() string     { return s.name }
func (s stubModule) States() []string { return s.states }
func (s stubModule) Run(ctx context.Context, c *dnac.Client, t Task) (*Result, error) {
	return &Result{}, nil
}

func Test_ValidateState(t *testing.T) {
	m := stubModule{name: "site_workflow_manager", states: []string{"merged", "deleted"}}

	tests := []struct {
		name  string
		state string
		want  string
		err   string
	}{
		{name: "default", state: "", want: "merged"},
		{name: "explicit", state: "deleted", want: "deleted"},
		{name: "unknown", state: "replaced", err: "State replaced is invalid"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ValidateState(m, test.state)
			if test.err != "" {
				var fe *FailError
				assert.True(t, errors.As(err, &fe))
				assert.Equal(t, test.err, err.Error())
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func Test_Decode(t *testing.T) {
	type params struct {
		SiteNameHierarchy string `json:"siteNameHierarchy"`
		Count             int    `json:"count,omitempty"`
		Enabled           bool   `json:"enabled"`
	}
	assert := assert.New(t)

	var p params
	err := Decode(map[string]interface{}{
		"siteNameHierarchy": "Global/USA",
		"count":             "3",
		"enabled":           "true",
	}, &p)
	assert.NoError(err)
	assert.Equal(params{SiteNameHierarchy: "Global/USA", Count: 3, Enabled: true}, p)

	err = Decode(map[string]interface{}{"siteName": "Global"}, &p)
	var fe *FailError
	if assert.True(errors.As(err, &fe)) {
		assert.Contains(fe.Msg, "Invalid parameters in playbook: ")
		assert.Contains(fe.Msg, "siteName")
	}
}

func Test_AsResult(t *testing.T) {
	assert := assert.New(t)

	r := AsResult(Fail("Device not found", map[string]int{"count": 0}))
	assert.True(r.Failed)
	assert.Equal("Device not found", r.Msg)
	assert.Equal(map[string]int{"count": 0}, r.Response)

	r = AsResult(errors.New("connection refused"))
	assert.Equal("connection refused", r.Msg)
	assert.Nil(r.Response)
}

func Test_Registry(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry(stubModule{name: "swim_intent"}, stubModule{name: "event_count_info"})
	m, err := r.Lookup("swim_intent")
	assert.NoError(err)
	assert.Equal("swim_intent", m.Name())

	_, err = r.Lookup("pnp_intent")
	assert.True(errors.Is(err, ErrUnknownModule))
	assert.Equal([]string{"event_count_info", "swim_intent"}, r.Names())
}
