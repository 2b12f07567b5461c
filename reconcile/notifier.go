package reconcile

import (
	"log/slog"

	"smmshop-go/order"
)

// AlertClient 抽象告警发送；infrastructure/alert 里的 Manager 经适配实现。
type AlertClient interface {
	Send(typ, msg string)
}

type Notifier struct {
	alert AlertClient
}

func NewNotifier(alert AlertClient) *Notifier {
	return &Notifier{alert: alert}
}

// NotifyPaymentUnresolved 会话以 failed/unknown 收束时提醒运营侧：
// 用户看到了失败或无法确认的结果，可能需要人工跟进。
func (n *Notifier) NotifyPaymentUnresolved(ref string, display order.DisplayStatus, msg string) {
	line := "PaymentUnresolved ref=" + ref + " display=" + string(display)
	if msg != "" {
		line += " msg=" + msg
	}
	slog.Warn(line)
	if n.alert != nil {
		n.alert.Send("PaymentUnresolved", line)
	}
}
