package vpn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation_ResolveOnce(t *testing.T) {
	op := newOperation(OpConnect)
	assert.Len(t, op.ID(), 36)
	assert.False(t, op.Resolved())
	assert.NoError(t, op.Err())

	first := errors.New("first")
	assert.True(t, op.resolve(first))
	assert.False(t, op.resolve(nil), "second resolution must be ignored")
	assert.True(t, op.Resolved())
	assert.Equal(t, first, op.Err())
	assert.Equal(t, first, op.Wait(context.Background()))
}

func TestOperation_WaitContext(t *testing.T) {
	op := newOperation(OpDisconnect)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, op.Wait(ctx), context.DeadlineExceeded)

	go op.resolve(nil)
	assert.NoError(t, op.Wait(context.Background()))
}

func TestOperationKind_String(t *testing.T) {
	assert.Equal(t, "connect", OpConnect.String())
	assert.Equal(t, "disconnect", OpDisconnect.String())
	assert.Equal(t, "unknown", OperationKind(9).String())
}
