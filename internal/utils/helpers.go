package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// LoadURLList 读取批量采集的URL列表
// 每行一个地址,"#" 之后为注释;无效地址跳过,重复地址只保留第一次出现
func LoadURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer f.Close()

	var urls []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := ParseTargetURL(line)
		if err != nil {
			Warnf("⚠️  第 %d 行地址无效,已跳过: %s (%v)", n, line, err)
			continue
		}
		key := u.String()
		if _, dup := seen[key]; dup {
			Debugf("第 %d 行地址重复: %s", n, key)
			continue
		}
		seen[key] = struct{}{}
		urls = append(urls, key)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("URL文件 %s 中没有可用的地址", path)
	}

	Infof("📄 已加载 %d 个采集地址", len(urls))
	return urls, nil
}

// ParseTargetURL 解析采集目标地址,只接受带主机名的 http/https 地址,去掉片段
func ParseTargetURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("URL格式无效: %w", err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return nil, fmt.Errorf("URL协议必须是http或https")
	case u.Host == "":
		return nil, fmt.Errorf("URL缺少主机名")
	}
	u.Fragment = ""
	return u, nil
}

// ValidateURL 检查地址能否作为采集目标
func ValidateURL(raw string) error {
	_, err := ParseTargetURL(raw)
	return err
}

// invalidFilenameChars 文件名中不允许出现的字符
var invalidFilenameChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFilename 替换文件名中的非法字符
func SanitizeFilename(name string) string {
	return invalidFilenameChars.Replace(strings.TrimSpace(name))
}
