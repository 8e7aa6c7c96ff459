package pool

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func Test_Pool_Run(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	var running, peak int32
	var tasks []*Task
	for i := 0; i < 10; i++ {
		i := i
		tasks = append(tasks, NewTask(fmt.Sprintf("Global/Area%d", i), func() ([]byte, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			if i == 3 {
				return nil, errors.New("lookup failed")
			}
			return []byte(fmt.Sprintf(`{"id":"%d"}`, i)), nil
		}))
	}

	p := NewPool(tasks, 3)
	p.Run()

	assert.LessOrEqual(atomic.LoadInt32(&peak), int32(3))
	for i, task := range p.Tasks {
		if i == 3 {
			assert.Error(task.Err)
			assert.Nil(task.Body)
			continue
		}
		assert.NoError(task.Err)
		assert.Equal(fmt.Sprintf(`{"id":"%d"}`, i), string(task.Body))
		assert.Equal(fmt.Sprintf("Global/Area%d", i), task.Key)
	}
}

func Test_Pool_ZeroConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(nil, 0)
	p.AddTask(NewTask("one", func() ([]byte, error) { return []byte("1"), nil }))
	p.Run()

	assert.Equal(t, "1", string(p.Tasks[0].Body))
}
