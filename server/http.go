package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"smmshop-go/infrastructure/logger"
	"smmshop-go/monitor"
	"smmshop-go/order"
)

// Handler 暴露订单状态查询与支付网关 IPN 两个端点。
// 鉴权是静态 bearer token：缺失或空凭证应答 401（而不是拒绝连接），
// 凭证非空但不在白名单内应答 403。Tokens 为空表示关闭鉴权（本地开发）。
type Handler struct {
	Store   *Store
	Tokens  []string
	Log     *logger.Logger
	Monitor *monitor.Monitor

	mu sync.RWMutex // 保护 Tokens 热更新
}

// SetTokens 原子替换鉴权白名单（配置热更新用）。
func (h *Handler) SetTokens(tokens []string) {
	h.mu.Lock()
	h.Tokens = tokens
	h.mu.Unlock()
}

// statusResponse 对外约定的应答体；paymentStatus 允许为 null。
type statusResponse struct {
	Status        string  `json:"status"`
	PaymentStatus *string `json:"paymentStatus"`
	OrderID       string  `json:"orderId"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// ipnRequest 支付网关回调体。这里只建模它的效果：一次订单状态更新。
type ipnRequest struct {
	MerchantReference string `json:"merchantReference"`
	TrackingID        string `json:"trackingId"`
	PaymentStatus     string `json:"paymentStatus"`
}

// Routes 注册所有端点。
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/status-by-ref/{ref}", h.handleStatusByRef)
	mux.HandleFunc("POST /payments/ipn", h.handleIPN)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) handleStatusByRef(w http.ResponseWriter, r *http.Request) {
	if code, ok := h.authorize(r); !ok {
		h.writeError(w, r, code, authMessage(code))
		return
	}

	ref := r.PathValue("ref")
	if ref == "" {
		h.writeError(w, r, http.StatusBadRequest, "merchant reference is required")
		return
	}

	o, err := h.Store.GetByReference(ref)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			h.writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	resp := statusResponse{
		Status:  string(o.Status),
		OrderID: o.ID,
	}
	if o.PaymentStatus != "" {
		ps := o.PaymentStatus
		resp.PaymentStatus = &ps
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) handleIPN(w http.ResponseWriter, r *http.Request) {
	var req ipnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid ipn payload")
		return
	}
	if req.MerchantReference == "" {
		h.writeError(w, r, http.StatusBadRequest, "merchantReference is required")
		return
	}

	st, ok := mapPaymentStatus(req.PaymentStatus)
	if !ok {
		h.writeError(w, r, http.StatusBadRequest, "unknown payment status")
		return
	}

	if err := h.Store.UpdateStatusByReference(req.MerchantReference, st, req.PaymentStatus); err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			h.writeError(w, r, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrStatusRegress):
			// 网关重复回调同一结果很常见，幂等吞掉；试图改写终态才算冲突
			h.writeError(w, r, http.StatusConflict, "order already finalized")
		default:
			h.writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if h.Monitor != nil {
		h.Monitor.RecordIPN(req.PaymentStatus)
	}
	if h.Log != nil {
		h.Log.LogPayment("ipn_applied", map[string]interface{}{
			"merchant_reference": req.MerchantReference,
			"tracking_id":        req.TrackingID,
			"payment_status":     req.PaymentStatus,
		})
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"message": "ok"})
}

// mapPaymentStatus 把网关的支付结果映射为订单状态。
// 支付成功推进到 PROCESSING（履约开始），不直接到 COMPLETED。
func mapPaymentStatus(paymentStatus string) (order.Status, bool) {
	switch strings.ToUpper(paymentStatus) {
	case "COMPLETED":
		return order.StatusProcessing, true
	case "FAILED", "INVALID":
		return order.StatusPaymentFailed, true
	case "REVERSED":
		return order.StatusCancelled, true
	case "EXPIRED":
		return order.StatusExpired, true
	default:
		return order.StatusUnknown, false
	}
}

// authorize 校验 bearer 凭证；返回 (失败状态码, 是否通过)。
func (h *Handler) authorize(r *http.Request) (int, bool) {
	h.mu.RLock()
	tokens := h.Tokens
	h.mu.RUnlock()
	if len(tokens) == 0 {
		return 0, true
	}
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return http.StatusUnauthorized, false
	}
	for _, t := range tokens {
		if token == t {
			return 0, true
		}
	}
	return http.StatusForbidden, false
}

func authMessage(code int) string {
	if code == http.StatusForbidden {
		return "access denied"
	}
	return "authentication required"
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
	h.record(r, code)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	h.writeJSON(w, r, code, errorResponse{Message: msg})
}

func (h *Handler) record(r *http.Request, code int) {
	if h.Monitor == nil {
		return
	}
	// 用路由模板而不是真实路径做标签，避免 ref 撑爆标签基数
	route := r.Pattern
	if route == "" {
		route = r.URL.Path
	}
	h.Monitor.RecordHTTPRequest(route, strconv.Itoa(code))
}
