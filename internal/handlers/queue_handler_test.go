package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baristaq/baristaq/internal/domain/order"
	"github.com/baristaq/baristaq/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// failingStore refuses every write, standing in for a database outage.
type failingStore struct{}

func (failingStore) AddOrder(context.Context, *order.Order) error {
	return errors.New("connection refused")
}
func (failingStore) CompleteDrink(context.Context, int64, time.Time) error { return nil }
func (failingStore) CompleteOrder(context.Context, int64, time.Time) error { return nil }
func (failingStore) GetQueue(context.Context) ([]order.Order, error)       { return nil, nil }
func (failingStore) ClearOldRecords(context.Context) error                 { return nil }
func (failingStore) ClearQueue(context.Context) error                      { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *services.QueueService) {
	t.Helper()
	queue := services.NewQueueService(
		[]string{"Whole", "Semi Skimmed", "Oat", "Soy"},
		[]string{"Wet", "Dry"},
		4, nil, nil, nil,
	)
	h := NewQueueHandler(queue, false, nil)

	router := gin.New()
	router.GET("/", h.GetQueue)
	router.GET("/history", h.GetHistory)
	router.POST("/receive", h.Receive)
	router.POST("/complete", h.Complete)
	return router, queue
}

func orderBody(t *testing.T, o *order.Order) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(o))
	return &buf
}

func sampleOrder(id int64) *order.Order {
	return &order.Order{
		OrderID:      id,
		Customer:     "Robin",
		TimeReceived: time.Now(),
		Drinks: []order.Drink{
			{Name: "Latte", Milk: "Oat", Texture: "Wet", MilkVolume: 2, Shots: 2},
			{Name: "Flat White", Milk: "Oat", Texture: "Wet", MilkVolume: 1, Shots: 2},
		},
	}
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func TestReceive(t *testing.T) {
	t.Run("accepts a valid order", func(t *testing.T) {
		router, _ := newTestRouter(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/receive", orderBody(t, sampleOrder(1)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var snap order.Snapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
		assert.Equal(t, 1, snap.TotalOrders)
		assert.Equal(t, 2, snap.TotalDrinks)
		require.Len(t, snap.Items, 1)
		assert.Equal(t, order.KindBatch, snap.Items[0].Kind)
	})

	t.Run("acknowledges when persistence fails after admission", func(t *testing.T) {
		queue := services.NewQueueService(
			[]string{"Whole", "Semi Skimmed", "Oat", "Soy"},
			[]string{"Wet", "Dry"},
			4, failingStore{}, nil, nil,
		)
		h := NewQueueHandler(queue, true, nil)
		router := gin.New()
		router.POST("/receive", h.Receive)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/receive", orderBody(t, sampleOrder(3)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		// A 422 would make the ordering site resubmit a live order.
		require.Equal(t, http.StatusOK, w.Code)
		var snap order.Snapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
		assert.Equal(t, 1, snap.TotalOrders)
		assert.Equal(t, 2, snap.TotalDrinks)
	})

	t.Run("rejects malformed JSON with a bare 422", func(t *testing.T) {
		router, _ := newTestRouter(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/receive", strings.NewReader("{nope"))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("rejects an invalid order with a bare 422", func(t *testing.T) {
		router, _ := newTestRouter(t)

		o := sampleOrder(2)
		o.Customer = ""
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/receive", orderBody(t, o))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestGetQueue(t *testing.T) {
	router, queue := newTestRouter(t)
	o := sampleOrder(1)
	require.NoError(t, queue.AddOrder(t.Context(), o, false))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var snap order.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.TotalOrders)
	assert.Equal(t, 2, snap.TotalDrinks)
}

func TestGetHistory(t *testing.T) {
	router, queue := newTestRouter(t)

	o := sampleOrder(1)
	o.Normalize()
	ids := o.DrinkIDs()
	require.NoError(t, queue.AddOrder(t.Context(), o, false))
	require.NoError(t, queue.CompleteDrinks(t.Context(), ids[:1]))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Orders         []order.Order `json:"orders"`
		OrdersComplete int           `json:"ordersComplete"`
		DrinksComplete int           `json:"drinksComplete"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	assert.Len(t, resp.Orders[0].Drinks, 1)
	assert.Equal(t, 0, resp.OrdersComplete)
	assert.Equal(t, 1, resp.DrinksComplete)
}

func TestComplete(t *testing.T) {
	t.Run("by drink ids", func(t *testing.T) {
		router, queue := newTestRouter(t)
		o := sampleOrder(1)
		o.Normalize()
		ids := o.DrinkIDs()
		require.NoError(t, queue.AddOrder(t.Context(), o, false))

		payload, err := json.Marshal(ids)
		require.NoError(t, err)
		w := postForm(router, "/complete", url.Values{"selectedDrinkIDs": {string(payload)}})

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			UpdatedOrderList   []json.RawMessage `json:"updatedOrderList"`
			UpdatedTotalOrders int               `json:"updatedTotalOrders"`
			UpdatedTotalDrinks int               `json:"updatedTotalDrinks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.UpdatedOrderList)
		assert.Equal(t, 0, resp.UpdatedTotalOrders)
		assert.Equal(t, 0, resp.UpdatedTotalDrinks)
	})

	t.Run("by item index", func(t *testing.T) {
		router, queue := newTestRouter(t)
		require.NoError(t, queue.AddOrder(t.Context(), sampleOrder(1), false))

		w := postForm(router, "/complete", url.Values{"selectedItemIndex": {"0"}})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			UpdatedTotalDrinks int `json:"updatedTotalDrinks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.UpdatedTotalDrinks)
	})

	t.Run("index out of range", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := postForm(router, "/complete", url.Values{"selectedItemIndex": {"5"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), fmt.Sprintf("%q", order.ErrIndexOutOfRange.Error()))
	})

	t.Run("missing fields", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := postForm(router, "/complete", url.Values{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad drink id payload", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := postForm(router, "/complete", url.Values{"selectedDrinkIDs": {"not-json"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
