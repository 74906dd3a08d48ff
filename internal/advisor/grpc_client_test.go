package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/astrovoice/internal/rpc/rpctest"
)

func TestConsult(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := rpctest.Start(t, "astro.v1.Advisor", map[string]rpctest.Handler{
		"Consult": func(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			got = in.AsMap()
			return structpb.NewStruct(map[string]any{"answer": "  Звёзды советуют не спешить.  "})
		},
	})

	c, err := NewGrpcClient(rpctest.Target, time.Second, nil, srv.DialOption())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	answer, err := c.Consult(context.Background(), Question{
		Text: "стоит ли менять работу", Sign: "leo", Kind: KindConsult,
	})
	require.NoError(t, err)
	assert.Equal(t, "Звёзды советуют не спешить.", answer)
	assert.Equal(t, "стоит ли менять работу", got["question"])
	assert.Equal(t, "leo", got["sign"])
	assert.Equal(t, "consult", got["kind"])
	assert.NotContains(t, got, "period")
}

func TestConsultEmptyAnswer(t *testing.T) {
	t.Parallel()

	srv := rpctest.Start(t, "astro.v1.Advisor", map[string]rpctest.Handler{
		"Consult": func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
			return structpb.NewStruct(map[string]any{})
		},
	})
	c, err := NewGrpcClient(rpctest.Target, time.Second, nil, srv.DialOption())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, err = c.Consult(context.Background(), Question{Text: "что меня ждёт"})
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestConsultTimeout(t *testing.T) {
	t.Parallel()

	srv := rpctest.Start(t, "astro.v1.Advisor", map[string]rpctest.Handler{
		"Consult": func(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	c, err := NewGrpcClient(rpctest.Target, 50*time.Millisecond, nil, srv.DialOption())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	start := time.Now()
	_, err = c.Consult(context.Background(), Question{Text: "что меня ждёт"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyAnswer))
	assert.Less(t, time.Since(start), 2*time.Second)
}
