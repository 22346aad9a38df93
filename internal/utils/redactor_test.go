package utils

import (
	"net/http"
	"testing"
)

func TestHeaderRedactor_RedactHeaderValue(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"非敏感头部原样返回", "Accept-Language", "zh-CN", "zh-CN"},
		{"Cookie只保留名称", "Cookie", "a1=abc; web_session=xyz", "a1=***; web_session=***"},
		{"Bearer令牌", "Authorization", "Bearer abcdef", "Bearer ***"},
		{"长签名保留首尾", "X-Sign", "1234567890abcdef", "1234***cdef"},
		{"短密钥完全隐藏", "X-Token", "abc", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.RedactHeaderValue(tt.header, tt.value); got != tt.want {
				t.Errorf("RedactHeaderValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeaderRedactor_RedactToString(t *testing.T) {
	redactor := NewHeaderRedactor()

	headers := http.Header{}
	headers.Set("Cookie", "a1=abc")
	headers.Set("Accept-Language", "zh-CN")

	got := redactor.RedactToString(headers)
	want := "Accept-Language: zh-CN, Cookie: a1=***"
	if got != want {
		t.Errorf("RedactToString() = %q, want %q", got, want)
	}
}
