package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreFailureClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "not found", err: fmt.Errorf("question: %w", ErrNotFound), want: KindNotFound},
		{name: "conflict", err: fmt.Errorf("already answered: %w", ErrConflict), want: KindInvalidState},
		{name: "anything else", err: errors.New("connection reset"), want: KindOperationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storeFailure(tt.err, "failed to record answer")
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, "failed to record answer", clientMessage(err))
		})
	}
}

func TestClientMessageHidesInternalErrors(t *testing.T) {
	raw := errors.New("pq: password authentication failed")
	assert.Equal(t, KindInternal, KindOf(raw))
	assert.Equal(t, internalMessage, clientMessage(raw))

	wrapped := fmt.Errorf("handler: %w", forbidden("only the host can start the game"))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.Equal(t, "only the host can start the game", clientMessage(wrapped))
}
