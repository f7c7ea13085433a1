package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baristaq/baristaq/internal/domain/menu"
	"github.com/baristaq/baristaq/internal/domain/order"
)

func TestGeneratorServiceNewOrder(t *testing.T) {
	g := NewGeneratorService(menu.DefaultCatalog(), 4, 7)
	catalog := menu.DefaultCatalog()

	seen := make(map[int64]struct{})
	for i := 0; i < 50; i++ {
		o := g.NewOrder()
		require.NotZero(t, o.OrderID)
		_, dup := seen[o.OrderID]
		require.False(t, dup, "order ids must be unique")
		seen[o.OrderID] = struct{}{}

		require.NotEmpty(t, o.Customer)
		require.NotEmpty(t, o.Drinks)
		require.LessOrEqual(t, len(o.Drinks), 4)

		for _, d := range o.Drinks {
			spec, ok := catalog.Drinks[d.Name]
			require.True(t, ok, "unknown drink %q", d.Name)
			assert.Equal(t, spec.Shots, d.Shots)
			if spec.MilkVolume > 0 {
				assert.Contains(t, catalog.Milks, d.Milk)
				assert.Equal(t, spec.Texture, d.Texture)
				assert.Equal(t, spec.MilkVolume, d.MilkVolume)
			} else {
				assert.Equal(t, order.NoMilk, d.Milk)
				assert.Zero(t, d.MilkVolume)
			}
		}

		o.Normalize()
		require.NoError(t, o.Validate())
	}
}

func TestFetchService(t *testing.T) {
	t.Run("fetches and decodes an order", func(t *testing.T) {
		g := NewGeneratorService(menu.DefaultCatalog(), 4, 11)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(g.NewOrder())
		}))
		defer srv.Close()

		f := NewFetchService(srv.URL, nil)
		o, err := f.FetchOrder(context.Background())
		require.NoError(t, err)
		assert.NotZero(t, o.OrderID)
		assert.NotEmpty(t, o.Drinks)
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		f := NewFetchService(srv.URL, nil)
		_, err := f.FetchOrder(context.Background())
		assert.Error(t, err)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		f := NewFetchService(srv.URL, nil)
		_, err := f.FetchOrder(context.Background())
		assert.Error(t, err)
	})

	t.Run("unreachable upstream", func(t *testing.T) {
		f := NewFetchService("http://127.0.0.1:1", nil)
		_, err := f.FetchOrder(context.Background())
		assert.Error(t, err)
	})
}
