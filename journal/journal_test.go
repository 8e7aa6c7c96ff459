package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/comcast/dnacflow/intent"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/buntdb"
	"github.com/tidwall/gjson"
)

func Test_RecordAndResults(t *testing.T) {
	assert := assert.New(t)
	j, err := Open("")
	if !assert.NoError(err) {
		return
	}
	defer j.Close()

	assert.NoError(j.Begin("run1", time.Now()))
	for i := 0; i < 12; i++ {
		res := &intent.Result{Changed: i%2 == 0, Msg: "ok", Response: map[string]interface{}{"i": float64(i)}}
		assert.NoError(j.Record("run1", i, "task", "site_workflow_manager", res))
	}

	entries, err := j.Results("run1")
	assert.NoError(err)
	if assert.Len(entries, 12) {
		// padded keys keep 10 and 11 after 9
		for i, e := range entries {
			assert.Equal(i, e.Seq)
			assert.Equal(i%2 == 0, e.Result.Changed)
			assert.Equal(map[string]interface{}{"i": float64(i)}, e.Result.Response)
			assert.False(e.Recorded.IsZero())
		}
	}

	err = j.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get("runs:run1")
		assert.Equal(int64(12), gjson.Get(v, "tasks").Int())
		return err
	})
	assert.NoError(err)
}

func Test_UnknownRun(t *testing.T) {
	j, err := Open(Memory)
	if !assert.NoError(t, err) {
		return
	}
	defer j.Close()

	_, err = j.Results("missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = j.Record("missing", 0, "task", "swim_intent", &intent.Result{})
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func Test_Runs_OrderedByStart(t *testing.T) {
	assert := assert.New(t)
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if !assert.NoError(err) {
		return
	}
	defer j.Close()

	now := time.Now()
	assert.NoError(j.Begin("zzz", now.Add(-2*time.Hour)))
	assert.NoError(j.Begin("aaa", now))
	assert.NoError(j.Begin("mmm", now.Add(-time.Hour)))
	assert.NoError(j.Record("aaa", 0, "t", "event_count_info", &intent.Result{}))

	runs, err := j.Runs()
	assert.NoError(err)
	if assert.Len(runs, 3) {
		assert.Equal([]string{"zzz", "mmm", "aaa"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
		assert.Equal(1, runs[2].Tasks)
		assert.Equal(now.UnixNano(), runs[2].Started.UnixNano())
	}
}
