package ei

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoopErrorIs(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{"notfound", NotFound("c1", "abc", nil), ErrNotFound, "c1/abc: not found"},
		{"data", DataError("c1", "abc", "grade %d", 9), ErrData, "c1/abc: data error: grade 9"},
		{"transient", Transient("c1", "", io.ErrUnexpectedEOF), ErrTransient, "c1: transient network error: unexpected EOF"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.kind)
			assert.Equal(t, tc.msg, tc.err.Error())
			var ce *CoopError
			assert.True(t, errors.As(tc.err, &ce))
			assert.Equal(t, "c1", ce.ContractID)
		})
	}
	assert.ErrorIs(t, Transient("c", "", io.ErrUnexpectedEOF), io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, NotFound("c", "x", nil), ErrData)
}
