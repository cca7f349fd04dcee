package checkout

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// State — состояние отправки формы оплаты.
type State int

const (
	// StateIdle — форма ожидает отправки (возможно, с показанной ошибкой).
	StateIdle State = iota
	StateValidating
	// StateProcessing — данные приняты, заказ оформляется.
	StateProcessing
	StateOrderCreated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateProcessing:
		return "processing"
	case StateOrderCreated:
		return "order_created"
	default:
		return "unknown"
	}
}

// Form — значения, введённые покупателем. После отказа сохраняются.
type Form struct {
	CardNumber string
	Expiry     string
}

// Machine — автомат оформления заказа одной сессии.
// Не потокобезопасен: владелец сериализует вызовы.
type Machine struct {
	state      State
	form       Form
	rejection  error
	generation uint64
	order      *domain.Order
}

// NewMachine возвращает автомат в состоянии Idle.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State возвращает текущее состояние.
func (m *Machine) State() State { return m.state }

// Form возвращает последние отправленные значения формы.
func (m *Machine) Form() Form { return m.form }

// Rejection возвращает показываемую ошибку проверки или nil.
func (m *Machine) Rejection() error { return m.rejection }

// Order возвращает созданный заказ или nil.
func (m *Machine) Order() *domain.Order { return m.order }

// Submit проверяет форму. При отказе возвращает ошибку и поколение отказа,
// по которому позже снимается показ ошибки. При успехе автомат переходит в Processing.
func (m *Machine) Submit(form Form, now time.Time) (uint64, error) {
	switch m.state {
	case StateProcessing:
		return 0, domain.ErrCheckoutInFlight
	case StateOrderCreated:
		return 0, domain.ErrInvalidTransition
	}

	m.state = StateValidating
	m.form = form

	if err := ValidateCard(form.CardNumber, form.Expiry, now); err != nil {
		m.state = StateIdle
		m.generation++
		m.rejection = err
		return m.generation, err
	}

	m.rejection = nil
	m.state = StateProcessing
	return 0, nil
}

// ClearRejection снимает ошибку, если с момента отказа новых отказов не было.
func (m *Machine) ClearRejection(generation uint64) bool {
	if m.rejection == nil || generation != m.generation {
		return false
	}
	m.rejection = nil
	return true
}

// Complete фиксирует созданный заказ. Допустим только из Processing.
func (m *Machine) Complete(order domain.Order) error {
	if m.state != StateProcessing {
		return domain.ErrInvalidTransition
	}
	m.state = StateOrderCreated
	m.order = &order
	m.form = Form{}
	return nil
}

// Reset возвращает автомат к пустой форме для нового заказа.
func (m *Machine) Reset() {
	m.state = StateIdle
	m.form = Form{}
	m.rejection = nil
	m.order = nil
	m.generation++
}
