package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	infraEvents "github.com/davicafu/orderbus/internal/infra/events"
	"github.com/davicafu/orderbus/internal/mocks"
	"github.com/davicafu/orderbus/internal/order/application"
	"github.com/davicafu/orderbus/internal/order/domain"
	sharedApp "github.com/davicafu/orderbus/internal/shared/application"
	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/orderbus/internal/shared/infra/platform/cache"
	sharedUtils "github.com/davicafu/orderbus/internal/shared/infra/utils"
)

func setupRouter(broker sharedBus.BrokerClient, maxAttempts int, cache sharedCache.Cache) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	policy := sharedUtils.BackoffPolicy{MaxAttempts: maxAttempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	publisher := sharedApp.NewEventPublisher(broker, domain.NewSchemaRegistry(domain.DefaultOrderTopic), nil, policy, nil, log)
	service := application.NewOrderService(publisher, cache, domain.DefaultOrderTopic, log)

	r := gin.New()
	RegisterOrderRoutes(r, NewOrderHandler(service, log))
	return r
}

func postOrder(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrder_Accepted(t *testing.T) {
	broker := new(mocks.MockBroker)
	broker.On("Send", mock.Anything, mocks.EnvelopeWith(domain.DefaultOrderTopic, "A1",
		[]byte(`{"amount":100,"identifier":"A1","type":"order.created"}`))).
		Return(sharedBus.Ack{Token: "tok-A1", Partition: 0}, nil).Once()

	w := postOrder(setupRouter(broker, 3, nil), `{"identifier":"A1","amount":100}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"identifier":"A1"}`, w.Body.String())
	assert.Equal(t, "1", w.Header().Get(HeaderPublishAttempts))
	assert.Equal(t, "tok-A1", w.Header().Get(HeaderAckToken))
	broker.AssertExpectations(t)
}

func TestCreateOrder_BadRequestNeverCallsBroker(t *testing.T) {
	cases := map[string]string{
		"missing amount":     `{"identifier":"A1"}`,
		"missing identifier": `{"amount":5}`,
		"amount as string":   `{"identifier":"A1","amount":"5"}`,
		"zero amount":        `{"identifier":"A1","amount":0}`,
		"negative amount":    `{"identifier":"A1","amount":-3}`,
		"blank identifier":   `{"identifier":"   ","amount":5}`,
		"malformed json":     `{"identifier":`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			broker := new(mocks.MockBroker)
			w := postOrder(setupRouter(broker, 3, nil), body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
			broker.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrder_ValidationErrorNamesField(t *testing.T) {
	broker := new(mocks.MockBroker)
	w := postOrder(setupRouter(broker, 3, nil), `{"identifier":"A1","amount":-3}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"validation_failed"`)
	assert.Contains(t, w.Body.String(), `"field":"amount"`)
}

func TestCreateOrder_NonRetryableFailureIs500(t *testing.T) {
	broker := new(mocks.MockBroker)
	broker.On("Send", mock.Anything, mock.Anything).
		Return(sharedBus.Ack{}, sharedDomain.Permanentf("unknown topic")).Once()

	w := postOrder(setupRouter(broker, 3, nil), `{"identifier":"A1","amount":100}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), `"identifier"`)
	broker.AssertNumberOfCalls(t, "Send", 1)
}

func TestCreateOrder_RetryableTwiceThenAccepted(t *testing.T) {
	broker := new(mocks.MockBroker)
	broker.On("Send", mock.Anything, mock.Anything).
		Return(sharedBus.Ack{}, sharedDomain.Retryf("leader not available")).Twice()
	broker.On("Send", mock.Anything, mock.Anything).
		Return(sharedBus.Ack{Token: "tok-final"}, nil).Once()

	w := postOrder(setupRouter(broker, 3, nil), `{"identifier":"A1","amount":100}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "3", w.Header().Get(HeaderPublishAttempts))
	assert.Equal(t, "tok-final", w.Header().Get(HeaderAckToken))
	broker.AssertNumberOfCalls(t, "Send", 3)
}

func TestCreateOrder_RetriesExhaustedIs500(t *testing.T) {
	broker := new(mocks.MockBroker)
	broker.On("Send", mock.Anything, mock.Anything).
		Return(sharedBus.Ack{}, sharedDomain.Retryf("leader not available"))

	w := postOrder(setupRouter(broker, 3, nil), `{"identifier":"A1","amount":100}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	broker.AssertNumberOfCalls(t, "Send", 3)
}

func TestCreateOrder_InMemoryBrokerKeepsOrderPerKey(t *testing.T) {
	broker := infraEvents.NewInMemoryBroker(4, time.Second)
	r := setupRouter(broker, 3, nil)

	for _, body := range []string{
		`{"identifier":"Z9","amount":1}`,
		`{"identifier":"Z9","amount":2}`,
		`{"identifier":"Z9","amount":3}`,
	} {
		require.Equal(t, http.StatusCreated, postOrder(r, body).Code)
	}

	msgs := broker.Messages(domain.DefaultOrderTopic, broker.PartitionFor("Z9"))
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, "Z9", m.Key)
		assert.Equal(t, int64(i), m.Offset)
	}
	assert.Contains(t, string(msgs[2].Value), `"amount":3`)
}

func TestGetOrder(t *testing.T) {
	cache := mocks.NewDummyCache()
	cache.SetForTest(domain.CacheKeyByID("A1"), domain.OrderView{Identifier: "A1", Amount: 100, Status: domain.StatusCreated})
	r := setupRouter(new(mocks.MockBroker), 1, cache)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/A1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"created"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
