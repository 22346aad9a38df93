package main

import (
	"fmt"

	"github.com/RecoveryAshes/XHSCollector/internal/core"
	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// ValidateFlags 验证合并命令行参数后的配置
func ValidateFlags(config *core.Config, urlFile string) error {
	if urlFile == "" {
		if err := utils.ValidateURL(config.Site.URL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	if err := config.Collect.Validate(); err != nil {
		return err
	}

	if _, err := models.ParseExportFormat(config.Export.Format); err != nil {
		return err
	}

	if config.Site.LoginWait < 0 || config.Site.LoginWait > 600 {
		return fmt.Errorf("登录等待时间必须在0-600秒之间,当前值: %d", config.Site.LoginWait)
	}

	return config.Validate()
}
