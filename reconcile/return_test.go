package reconcile

import (
	"net/url"
	"testing"
)

func TestParseReturnQuery(t *testing.T) {
	v := url.Values{}
	v.Set("OrderMerchantReference", "SMM-123")
	v.Set("OrderTrackingId", "trk-9")

	ref, trk := ParseReturnQuery(v)
	if ref != "SMM-123" || trk != "trk-9" {
		t.Fatalf("got %q/%q", ref, trk)
	}

	// 缺失参数返回空串，交由会话判定
	ref, trk = ParseReturnQuery(url.Values{})
	if ref != "" || trk != "" {
		t.Fatalf("missing params should yield empty values, got %q/%q", ref, trk)
	}
}

func TestParseReturnURL(t *testing.T) {
	ref, trk := ParseReturnURL("https://shop.example/checkout/return?OrderTrackingId=t1&OrderMerchantReference=SMM-7")
	if ref != "SMM-7" || trk != "t1" {
		t.Fatalf("got %q/%q", ref, trk)
	}

	ref, trk = ParseReturnURL("://bad url")
	if ref != "" || trk != "" {
		t.Fatalf("invalid URL should yield empty values, got %q/%q", ref, trk)
	}
}
