package lock

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLocker(t *testing.T) {
	var l Locker = Noop{}
	lk, err := l.Obtain(context.Background(), "batch:1", time.Second)
	require.NoError(t, err)
	assert.NoError(t, lk.Release(context.Background()))
}

func TestConnectWithoutAddress(t *testing.T) {
	rdb, err := Connect(context.Background(), "", logrus.New())
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
