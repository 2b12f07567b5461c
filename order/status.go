package order

// Status 订单在上游订单系统中的生命周期状态。对账核心只读，
// 状态的推进由上游（IPN 回调、履约流程）负责。
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT" // 等待支付网关确认
	StatusProcessing     Status = "PROCESSING"      // 支付已确认，履约中
	StatusCompleted      Status = "COMPLETED"       // 履约完成
	StatusCancelled      Status = "CANCELLED"       // 已取消
	StatusExpired        Status = "EXPIRED"         // 支付超时失效
	StatusPaymentFailed  Status = "PAYMENT_FAILED"  // 支付失败
	StatusSupplierError  Status = "SUPPLIER_ERROR"  // 供货方异常
	StatusUnknown        Status = "UNKNOWN"
)

// ParseStatus 解析上游状态字符串；无法识别的值一律归入 UNKNOWN。
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusPendingPayment, StatusProcessing, StatusCompleted,
		StatusCancelled, StatusExpired, StatusPaymentFailed, StatusSupplierError:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// IsFinal 判断是否是终态。终态订单不会再回退到
// PENDING_PAYMENT/PROCESSING（单调性由上游写入口保证）。
func (s Status) IsFinal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired,
		StatusPaymentFailed, StatusSupplierError:
		return true
	default:
		return false
	}
}

// Order 上游订单的简化视图。
type Order struct {
	ID                string
	MerchantReference string
	TrackingID        string
	Service           string // 购买的服务类型，如 followers/likes/views
	Quantity          int
	Status            Status
	PaymentStatus     string
	LastError         string
}

// StatusDescription 获取状态描述。
func StatusDescription(status Status) string {
	descriptions := map[Status]string{
		StatusPendingPayment: "等待支付确认",
		StatusProcessing:     "支付成功，订单履约中",
		StatusCompleted:      "订单已完成",
		StatusCancelled:      "订单已取消",
		StatusExpired:        "订单已过期",
		StatusPaymentFailed:  "支付失败",
		StatusSupplierError:  "供货方处理异常",
	}

	if desc, ok := descriptions[status]; ok {
		return desc
	}
	return "未知状态"
}
