package redis_repository

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/searchbrief/config"
)

func TestConn(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	client, err := Conn(context.Background(), config.RedisConfig{Host: host, Port: port, Timeout: time.Second}, nil)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestConnUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, _ := net.SplitHostPort(mr.Addr())
	mr.Close()

	_, err := Conn(context.Background(), config.RedisConfig{Host: host, Port: port, Timeout: 200 * time.Millisecond}, nil)
	assert.Error(t, err)
}
