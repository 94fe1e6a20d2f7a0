package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/peer-hub/peer-hub/internal/config"
	"github.com/peer-hub/peer-hub/internal/logging"
	"github.com/peer-hub/peer-hub/internal/node"
	"github.com/peer-hub/peer-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	dumpConfig  bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	if opts.dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(stdErr, "导出配置失败: %v\n", err)
			return 1
		}
		_, _ = stdOut.Write(out)
		return 0
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["peers"] = config.PeerIDs(cfg.Peers)
		fields["save"] = cfg.Global.Save
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循“配置 → 拓扑 → 本地目录 → Fiber server”顺序，由 node 包统一组装。
	n, err := node.New(cfg, node.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化节点失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["peers"] = len(cfg.Peers)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["directory"] = cfg.Global.Directory
	fields["save"] = cfg.Global.Save
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Run(ctx); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("peer-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		dumpConfig bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.yml，可被 PEER_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&dumpConfig, "dump-config", false, "输出补全默认值后的配置（YAML）")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PEER_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.yml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		dumpConfig:  dumpConfig,
		showVersion: showVer,
	}, nil
}
