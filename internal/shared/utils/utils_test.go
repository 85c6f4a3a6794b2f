package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestASCIIText(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Thanh toán đơn hàng ORD-20260504-AB12CD", 255, "Thanh toan don hang ORD-20260504-AB12CD"},
		{"Đặt   sách\t#1 & <b>", 255, "Dat sach 1 b"},
		{"Hoàn tiền", 5, "Hoan"},
		{"", 10, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ASCIIText(tt.in, tt.max), tt.in)
	}
}

func TestExtractClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"garbage header falls through", map[string]string{"X-Forwarded-For": "nope"}, "192.0.2.1:443", "192.0.2.1"},
		{"ipv6 remote", nil, "[2001:db8::1]:8080", "2001:db8::1"},
		{"unparseable remote", nil, "pipe", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Request.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ExtractClientIP(c))
		})
	}
}
