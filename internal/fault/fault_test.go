package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, OK},
		{"bare code", SessionBusy, SessionBusy},
		{"wrapped code", fmt.Errorf("begin: %w", SessionBusy), SessionBusy},
		{"structured", New(NoOpResize, "resize", "no deltas"), NoOpResize},
		{"structured wrapped", fmt.Errorf("ui: %w", Wrap(Transport, "refresh", errors.New("dial"))), Transport},
		{"plain", errors.New("boom"), Error},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Of(tc.err))
		})
	}
}

func TestErrorsIsMatchesStructuredCode(t *testing.T) {
	err := Wrap(Transport, "refresh", errors.New("connection refused"))
	assert.ErrorIs(t, err, Transport)
	assert.NotErrorIs(t, err, Validation)
	assert.Nil(t, Wrap(Transport, "refresh", nil))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "", Status(nil))
	assert.Equal(t, "", Status(New(StaleResponse, "refresh", "seq 3 < 4")))
	assert.Equal(t, "Another edit is open", Status(SessionBusy))
	assert.Equal(t, "Nothing to resize: no bank sizes given", Status(New(NoOpResize, "resize", "no bank sizes given")))
	assert.Equal(t, "Sync failed: connection refused", Status(Wrap(Transport, "refresh", errors.New("connection refused"))))
	assert.Equal(t, "boom", Status(errors.New("boom")))
}
