package order

// DisplayStatus 面向用户展示的收敛状态集合，仅由归类函数产出，从不落盘。
type DisplayStatus string

const (
	DisplayLoading      DisplayStatus = "loading"
	DisplaySuccess      DisplayStatus = "success"
	DisplayFailed       DisplayStatus = "failed"
	DisplayPending      DisplayStatus = "pending"
	DisplayUnknown      DisplayStatus = "unknown"
	DisplayAuthRequired DisplayStatus = "auth_required"
)

// Classification 一次状态归类的结果。Terminal 为 true 时轮询必须停止，
// 所有未触发的计时器必须取消。
type Classification struct {
	Display  DisplayStatus
	Message  string
	Terminal bool
}

// Classify 把上游订单状态映射为展示状态。纯函数，不做任何 IO。
// attemptsUsed 是本次查询之前已消耗的轮询次数；当 attemptsUsed+1 达到
// maxAttempts 时，仍未收敛的订单以 pending 终态收束，停止轮询。
func Classify(status Status, paymentStatus string, attemptsUsed, maxAttempts int) Classification {
	switch status {
	case StatusCompleted:
		return Classification{
			Display:  DisplaySuccess,
			Message:  "payment confirmed, your order is complete",
			Terminal: true,
		}
	case StatusProcessing:
		// 支付已被接受、履约已经开始，对付款人而言就是成功；
		// 只有失败/取消类状态才需要提醒用户。
		return Classification{
			Display:  DisplaySuccess,
			Message:  "payment confirmed, your order is being delivered",
			Terminal: true,
		}
	case StatusPaymentFailed:
		return Classification{
			Display:  DisplayFailed,
			Message:  failMessage("payment was not successful, please try again", paymentStatus),
			Terminal: true,
		}
	case StatusCancelled:
		return Classification{
			Display:  DisplayFailed,
			Message:  failMessage("this order was cancelled", paymentStatus),
			Terminal: true,
		}
	case StatusExpired:
		return Classification{
			Display:  DisplayFailed,
			Message:  failMessage("this order expired before payment completed", paymentStatus),
			Terminal: true,
		}
	case StatusSupplierError:
		return Classification{
			Display:  DisplayFailed,
			Message:  failMessage("payment received but delivery failed, support has been notified", paymentStatus),
			Terminal: true,
		}
	default:
		// PENDING_PAYMENT 或 UNKNOWN：预算未尽则继续轮询
		if attemptsUsed+1 >= maxAttempts {
			return Classification{
				Display:  DisplayPending,
				Message:  "payment not confirmed yet, please check your dashboard later",
				Terminal: true,
			}
		}
		return Classification{
			Display:  DisplayLoading,
			Message:  "waiting for payment confirmation",
			Terminal: false,
		}
	}
}

func failMessage(base, paymentStatus string) string {
	if paymentStatus == "" {
		return base
	}
	return base + " (gateway: " + paymentStatus + ")"
}
