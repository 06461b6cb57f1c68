package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name    string
	failFor map[string]error
	prefix  string
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) ExtractText(ctx context.Context, ref Ref) (string, error) {
	if err, ok := s.failFor[ref.URL]; ok {
		return "", err
	}
	return s.prefix + ref.URL, nil
}

type downProvider struct{}

func (downProvider) Name() string { return "down" }

func (downProvider) ExtractText(ctx context.Context, ref Ref) (string, error) {
	return "", errors.New("service unreachable")
}

func refsOf(urls ...string) []Ref {
	refs := make([]Ref, 0, len(urls))
	for _, u := range urls {
		refs = append(refs, Ref{URL: u})
	}
	return refs
}

func TestGatewayReturnsOneResultPerRefInOrder(t *testing.T) {
	gateway := NewGateway([]Provider{stubProvider{name: "primary", prefix: "text:"}}, GatewayConfig{Logger: zerolog.Nop()})

	refs := refsOf("a", "b", "c", "d", "e")
	results := gateway.Extract(context.Background(), refs)
	require.Len(t, results, len(refs))
	for i, result := range results {
		require.False(t, result.Failed)
		require.Equal(t, "text:"+refs[i].URL, result.Text)
		require.Equal(t, "primary", result.Provider)
	}
}

func TestGatewaySecondaryRecoversOnlyFailedIndices(t *testing.T) {
	primary := stubProvider{name: "primary", prefix: "p:", failFor: map[string]error{"img2": errors.New("blur")}}
	secondary := stubProvider{name: "secondary", prefix: "s:"}
	gateway := NewGateway([]Provider{primary, secondary}, GatewayConfig{Logger: zerolog.Nop()})

	results := gateway.Extract(context.Background(), refsOf("img1", "img2", "img3"))
	require.Len(t, results, 3)
	require.Equal(t, "p:img1", results[0].Text)
	require.Equal(t, "s:img2", results[1].Text)
	require.Equal(t, "secondary", results[1].Provider)
	require.Equal(t, "p:img3", results[2].Text)
	require.False(t, results[1].Failed)
}

func TestGatewayTotalPrimaryOutageFallsBackWholeBatch(t *testing.T) {
	secondary := stubProvider{name: "secondary", prefix: "s:"}
	gateway := NewGateway([]Provider{downProvider{}, secondary}, GatewayConfig{Logger: zerolog.Nop()})

	results := gateway.Extract(context.Background(), refsOf("x", "y"))
	for _, result := range results {
		require.False(t, result.Failed)
		require.Equal(t, "secondary", result.Provider)
	}
}

func TestGatewayAllProvidersFailYieldsSentinels(t *testing.T) {
	gateway := NewGateway([]Provider{downProvider{}, downProvider{}}, GatewayConfig{Logger: zerolog.Nop()})

	results := gateway.Extract(context.Background(), refsOf("x", "y", "z"))
	require.Len(t, results, 3)
	for _, result := range results {
		require.True(t, result.Failed)
		require.True(t, strings.HasPrefix(result.Text, "extraction failed:"), result.Text)
		require.Contains(t, result.Text, "service unreachable")
	}
}

func TestGatewayNoProvidersYieldsPlaceholders(t *testing.T) {
	gateway := NewGateway(nil, GatewayConfig{Logger: zerolog.Nop()})

	results := gateway.Extract(context.Background(), refsOf("a", "b"))
	require.Len(t, results, 2)
	for _, result := range results {
		require.True(t, result.Failed)
		require.Equal(t, Unavailable, result.Text)
	}
}

func TestGatewayEmptyInput(t *testing.T) {
	gateway := NewGateway([]Provider{stubProvider{name: "primary"}}, GatewayConfig{Logger: zerolog.Nop()})
	require.Empty(t, gateway.Extract(context.Background(), nil))
}

func TestGatewayLargeBatchKeepsPositions(t *testing.T) {
	failing := map[string]error{}
	for i := 0; i < 32; i += 3 {
		failing[fmt.Sprintf("img%d", i)] = errors.New("noise")
	}
	primary := stubProvider{name: "primary", prefix: "p:", failFor: failing}
	secondary := stubProvider{name: "secondary", prefix: "s:"}
	gateway := NewGateway([]Provider{primary, secondary}, GatewayConfig{Concurrency: 8, Logger: zerolog.Nop()})

	refs := make([]Ref, 32)
	for i := range refs {
		refs[i] = Ref{URL: fmt.Sprintf("img%d", i)}
	}

	results := gateway.Extract(context.Background(), refs)
	require.Len(t, results, 32)
	for i, result := range results {
		url := fmt.Sprintf("img%d", i)
		if _, failed := failing[url]; failed {
			require.Equal(t, "s:"+url, result.Text)
		} else {
			require.Equal(t, "p:"+url, result.Text)
		}
	}
}
