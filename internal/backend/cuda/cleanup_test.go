package cuda

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeardownOrder(t *testing.T) {
	var td teardown
	var released []string
	for _, name := range []string{"cublas", "curand", "module"} {
		td.push(name, func() error {
			released = append(released, name)
			return nil
		})
	}
	assert.Equal(t, []string{"cublas", "curand", "module"}, td.names())

	require.NoError(t, td.unwind())
	assert.Equal(t, []string{"module", "curand", "cublas"}, released)
	assert.Empty(t, td.names())

	require.NoError(t, td.unwind(), "unwinding an empty stack is a no-op")
}

func TestTeardownRunsEveryStep(t *testing.T) {
	var td teardown
	var released []string
	fail := errors.New("boom")
	td.push("a", func() error { released = append(released, "a"); return nil })
	td.push("b", func() error { released = append(released, "b"); return fail })
	td.push("c", func() error { released = append(released, "c"); return errors.New("later") })

	err := td.unwind()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "releasing c", "the newest failure is reported first")
	assert.Equal(t, []string{"c", "b", "a"}, released)
}
