// =============================================================================
// SquidCore 主入口
// =============================================================================
// 机器人服务入口点，包含插件加载、健康检查、Prometheus 指标
//
// 使用方法:
//
//	squidcore serve                          # 启动服务
//	squidcore serve --manifest framework.yaml # 指定全局清单
//	squidcore version                        # 显示版本信息
//	squidcore health                         # 健康检查
//	squidcore plugins                        # 列出已发现的插件
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/squidlabs/squidcore/framework"
	"github.com/squidlabs/squidcore/plugins/all"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "plugins":
		runPlugins(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	manifestPath := fs.String("manifest", "framework.yaml", "Path to the global manifest")
	fs.Parse(args)

	fw, err := framework.New(context.Background(), *manifestPath, all.Registry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize framework: %v\n", err)
		os.Exit(1)
	}

	fw.Logger().Info("Starting SquidCore",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	if err := fw.Run(); err != nil {
		fw.Logger().Fatal("Framework exited with error", zap.Error(err))
	}

	fw.Logger().Info("SquidCore stopped")
}

// =============================================================================
// 🔌 plugins 命令
// =============================================================================

func runPlugins(args []string) {
	fs := flag.NewFlagSet("plugins", flag.ExitOnError)
	manifestPath := fs.String("manifest", "framework.yaml", "Path to the global manifest")
	fs.Parse(args)

	ctx := context.Background()
	fw, err := framework.New(ctx, *manifestPath, all.Registry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize framework: %v\n", err)
		os.Exit(1)
	}

	discovered, err := fw.Plugins().Discover(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Discovered %d plugin(s):\n", len(discovered))
	for _, rec := range discovered {
		fmt.Printf("  %-24s %s\n", rec.Name, rec.Description)
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:9100", "Ops endpoint address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("SquidCore %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`SquidCore - Bot Plugin Framework

Usage:
  squidcore <command> [options]

Commands:
  serve     Start the bot service
  plugins   List discovered plugins
  version   Show version information
  health    Check service health
  help      Show this help message

Options for 'serve' and 'plugins':
  --manifest <path>   Path to the global manifest (YAML)

Examples:
  squidcore serve
  squidcore serve --manifest /etc/squidcore/framework.yaml
  squidcore plugins
  squidcore health --addr http://localhost:9100
  squidcore version`)
}
