package models

import (
	"testing"
)

func TestCliHeaders_Parse(t *testing.T) {
	tests := []struct {
		name      string
		input     CliHeaders
		header    string
		wantValue string
		wantErr   bool
	}{
		{"nil数组", nil, "", "", false},
		{"名称前后空格", CliHeaders{"  Cookie  : a1=xxx"}, "Cookie", "a1=xxx", false},
		{"值前后空格", CliHeaders{"Accept-Language:  zh-CN  "}, "Accept-Language", "zh-CN", false},
		{"值中间的空格保留", CliHeaders{"X-Custom: value with spaces"}, "X-Custom", "value with spaces", false},
		{"值中包含冒号", CliHeaders{"Referer: https://www.xiaohongshu.com:443/explore"}, "Referer", "https://www.xiaohongshu.com:443/explore", false},
		{"值中包含等号和分号", CliHeaders{"Cookie: a1=1; web_session=2"}, "Cookie", "a1=1; web_session=2", false},
		{"只有冒号没有值", CliHeaders{"X-Empty:"}, "X-Empty", "", false},
		{"名称大小写规范化", CliHeaders{"accept-language: en"}, "Accept-Language", "en", false},
		{"后出现的同名头部覆盖", CliHeaders{"X-A: 1", "x-a: 2"}, "X-A", "2", false},
		{"缺少冒号", CliHeaders{"Cookie a1=xxx"}, "", "", true},
		{"缺少名称", CliHeaders{": value"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers, err := tt.input.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr || tt.header == "" {
				return
			}
			if got := headers.Get(tt.header); got != tt.wantValue {
				t.Errorf("%s = %q, 期望 %q", tt.header, got, tt.wantValue)
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := &ValidationError{Field: "name", HeaderName: "X Bad", Reason: "非法字符"}
	err := &ConfigError{FilePath: "configs/headers.yaml", Cause: cause}

	if err.Unwrap() != cause {
		t.Error("Unwrap() 应返回原始错误")
	}
	if err.Error() == "" {
		t.Error("Error() 不应为空")
	}
}
