package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var validForm = Form{CardNumber: "4242 4242 4242 4242", Expiry: "12/30"}

func TestMachine_RejectionKeepsForm(t *testing.T) {
	m := NewMachine()
	form := Form{CardNumber: "4242", Expiry: "12/30"}

	gen, err := m.Submit(form, frozenNow)
	require.ErrorIs(t, err, domain.ErrInvalidCardLength)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, form, m.Form())
	assert.ErrorIs(t, m.Rejection(), domain.ErrInvalidCardLength)

	assert.True(t, m.ClearRejection(gen))
	assert.NoError(t, m.Rejection())
	assert.Equal(t, form, m.Form())
}

func TestMachine_StaleClearIgnored(t *testing.T) {
	m := NewMachine()

	first, err := m.Submit(Form{CardNumber: "1", Expiry: "12/30"}, frozenNow)
	require.Error(t, err)
	second, err := m.Submit(Form{CardNumber: "4242424242424242", Expiry: "01/20"}, frozenNow)
	require.ErrorIs(t, err, domain.ErrCardExpired)

	assert.False(t, m.ClearRejection(first))
	assert.ErrorIs(t, m.Rejection(), domain.ErrCardExpired)
	assert.True(t, m.ClearRejection(second))
	assert.False(t, m.ClearRejection(second))
}

func TestMachine_SingleFlight(t *testing.T) {
	m := NewMachine()

	_, err := m.Submit(validForm, frozenNow)
	require.NoError(t, err)
	assert.Equal(t, StateProcessing, m.State())

	_, err = m.Submit(validForm, frozenNow)
	require.ErrorIs(t, err, domain.ErrCheckoutInFlight)
	assert.Equal(t, StateProcessing, m.State())
}

func TestMachine_CompleteAndReset(t *testing.T) {
	m := NewMachine()
	require.ErrorIs(t, m.Complete(domain.Order{}), domain.ErrInvalidTransition)

	_, err := m.Submit(validForm, frozenNow)
	require.NoError(t, err)

	order := domain.Order{OrderNumber: "ORD-12345678", Total: decimal.RequireFromString("10.99")}
	require.NoError(t, m.Complete(order))
	assert.Equal(t, StateOrderCreated, m.State())
	require.NotNil(t, m.Order())
	assert.Equal(t, "ORD-12345678", m.Order().OrderNumber)
	assert.Equal(t, Form{}, m.Form())

	_, err = m.Submit(validForm, frozenNow)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	m.Reset()
	assert.Equal(t, StateIdle, m.State())
	assert.Nil(t, m.Order())
}

func TestMachine_SuccessClearsPreviousRejection(t *testing.T) {
	m := NewMachine()
	_, err := m.Submit(Form{CardNumber: "1", Expiry: "12/30"}, frozenNow)
	require.Error(t, err)

	_, err = m.Submit(validForm, frozenNow)
	require.NoError(t, err)
	assert.NoError(t, m.Rejection())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "processing", StateProcessing.String())
	assert.Equal(t, "order_created", StateOrderCreated.String())
	assert.Equal(t, "unknown", State(42).String())
}
