package reconcile

import (
	"net/url"
)

// 支付网关跳回页面时携带的查询参数。
const (
	ParamMerchantReference = "OrderMerchantReference"
	ParamTrackingID        = "OrderTrackingId"
)

// ParseReturnQuery 从跳回 URL 的查询参数中提取会话输入。
// merchantReference 缺失不是错误：会话会以零次网络调用直接收敛为 failed，
// 这里只负责原样取值。trackingID 可选，仅用于日志。
func ParseReturnQuery(values url.Values) (merchantRef, trackingID string) {
	return values.Get(ParamMerchantReference), values.Get(ParamTrackingID)
}

// ParseReturnURL 解析完整跳回 URL；URL 本身非法时返回空值。
func ParseReturnURL(raw string) (merchantRef, trackingID string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	return ParseReturnQuery(u.Query())
}
