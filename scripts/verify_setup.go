package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/RecoveryAshes/XHSCollector/internal/core"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  XHSCollector 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	goVersion := runtime.Version()
	fmt.Printf("✅ Go版本: %s\n", goVersion)
	if !strings.HasPrefix(goVersion, "go1.23") && !strings.HasPrefix(goVersion, "go1.24") {
		fmt.Println("⚠️  警告: 建议使用Go 1.23+版本")
	}

	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 加载配置
	fmt.Println()
	fmt.Println("检查配置...")
	config, err := core.LoadConfig("")
	if err != nil {
		fmt.Printf("❌ 配置加载失败: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Printf("❌ 配置验证失败: %v\n", err)
		allOK = false
	} else {
		fmt.Println("✅ 配置验证通过")
	}

	// 检查浏览器
	fmt.Println()
	fmt.Println("检查浏览器...")
	switch {
	case config.Browser.Bin != "":
		if _, err := os.Stat(config.Browser.Bin); err != nil {
			fmt.Printf("❌ 配置的浏览器不存在: %s\n", config.Browser.Bin)
			allOK = false
		} else {
			fmt.Printf("✅ 使用配置的浏览器: %s\n", config.Browser.Bin)
		}
	default:
		if path, found := launcher.LookPath(); found {
			fmt.Printf("✅ 找到本机浏览器: %s\n", path)
		} else {
			fmt.Println("⚠️  未找到本机Chrome/Chromium - 首次运行时将自动下载")
		}
	}

	// 检查存储
	fmt.Println()
	fmt.Printf("检查存储 (%s)...\n", config.Storage.Driver)
	if config.Storage.Driver == "mongo" {
		if err := pingMongo(config.Storage.MongoURI); err != nil {
			fmt.Printf("❌ MongoDB不可用: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ MongoDB连接正常")
		}
	} else {
		fmt.Printf("✅ 使用本地文件: %s\n", config.Storage.Path)
	}

	// 检查项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/xhscollector",
		"internal/collector",
		"internal/core",
		"internal/export",
		"internal/server",
		"internal/storage",
		"configs",
	}

	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build -o xhscollector ./cmd/xhscollector' 构建项目")
		fmt.Println("  2. 运行 './xhscollector --validate-config' 检查请求头配置")
		fmt.Println("  3. 运行 './xhscollector --help' 查看帮助")
		os.Exit(0)
	} else {
		fmt.Println("❌ 环境验证失败,请解决上述问题。")
		os.Exit(1)
	}
}

// pingMongo 检查MongoDB是否可连接
func pingMongo(uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	return client.Ping(ctx, readpref.Primary())
}
