package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"smmshop-go/order"
)

// EventSink 存储事件回调（日志/指标挂接）。
type EventSink func(event string, fields map[string]interface{})

var (
	ErrOrderNotFound = errors.New("store: order not found")
	ErrStatusRegress = errors.New("store: terminal status cannot regress")
)

// Store 以 merchantReference 为主键的内存订单存储。
// 写入口保证状态单调：订单进入终态后不再回退到
// PENDING_PAYMENT/PROCESSING，轮询端依赖这一不变量。
type Store struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
	sink   EventSink
}

func NewStore(sink EventSink) *Store {
	return &Store{
		orders: make(map[string]*order.Order),
		sink:   sink,
	}
}

// CreateOrder 登记一笔新订单，生成订单号、商户引用号与网关跟踪号。
func (s *Store) CreateOrder(service string, quantity int) order.Order {
	o := order.Order{
		ID:                uuid.NewString(),
		MerchantReference: "SMM-" + uuid.NewString(),
		TrackingID:        uuid.NewString(),
		Service:           service,
		Quantity:          quantity,
		Status:            order.StatusPendingPayment,
	}

	s.mu.Lock()
	s.orders[o.MerchantReference] = &o
	s.mu.Unlock()

	s.emit("order_created", map[string]interface{}{
		"merchant_reference": o.MerchantReference,
		"service":            service,
	})
	return o
}

// Put 直接写入订单（测试/数据迁移用）。
func (s *Store) Put(o order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.MerchantReference] = &o
}

// GetByReference 按商户引用号查询，返回副本。
func (s *Store) GetByReference(merchantRef string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[merchantRef]
	if !ok {
		return order.Order{}, ErrOrderNotFound
	}
	return *o, nil
}

// UpdateStatusByReference 推进订单状态。终态订单拒绝回退到非终态，
// 终态之间的改写同样拒绝（首个终态结果为准）。
func (s *Store) UpdateStatusByReference(merchantRef string, st order.Status, paymentStatus string) error {
	s.mu.Lock()
	o, ok := s.orders[merchantRef]
	if !ok {
		s.mu.Unlock()
		return ErrOrderNotFound
	}
	if o.Status.IsFinal() && o.Status != st {
		s.mu.Unlock()
		return ErrStatusRegress
	}
	from := o.Status
	o.Status = st
	if paymentStatus != "" {
		o.PaymentStatus = paymentStatus
	}
	s.mu.Unlock()

	s.emit("order_status_updated", map[string]interface{}{
		"merchant_reference": merchantRef,
		"from":               string(from),
		"to":                 string(st),
	})
	return nil
}

// Len 当前登记的订单数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Store) emit(event string, fields map[string]interface{}) {
	if s.sink != nil {
		s.sink(event, fields)
	}
}
