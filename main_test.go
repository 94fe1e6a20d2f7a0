package main

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/peer-hub/peer-hub/internal/config"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("PEER_HUB_CONFIG", "/tmp/env.yml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.yml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.yml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.yml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsDefaultPath(t *testing.T) {
	t.Setenv("PEER_HUB_CONFIG", "")

	opts, err := parseCLIFlags([]string{"-dump-config"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.yml" {
		t.Fatalf("默认配置路径应为 config.yml，得到 %s", opts.configPath)
	}
	if !opts.dumpConfig {
		t.Fatalf("-dump-config 未生效")
	}
}

func TestParseCLIFlagsUnknownFlag(t *testing.T) {
	if _, err := parseCLIFlags([]string{"-no-such-flag"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.yml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d, stderr=%s", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.yml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含失败原因，得到 %s", stdErrBuffer().String())
	}
}

func TestRunDumpConfigRoundTrip(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.yml"), dumpConfig: true})
	if code != 0 {
		t.Fatalf("dump-config 应成功退出，得到 %d", code)
	}

	var dumped config.Config
	if err := yaml.Unmarshal(stdOutBuffer().Bytes(), &dumped); err != nil {
		t.Fatalf("dump 输出不是合法 YAML: %v", err)
	}
	if len(dumped.Peers) != 2 || dumped.Peers[0].ID != "node-b" || dumped.Peers[1].ID != "node-c" {
		t.Fatalf("peer 顺序应保持不变: %+v", dumped.Peers)
	}
	if !strings.Contains(stdOutBuffer().String(), "default_ttl: 10m0s") {
		t.Fatalf("default_ttl 应以 duration 字符串输出: %s", stdOutBuffer().String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "peer-hub") {
		t.Fatalf("version 输出应包含 peer-hub 标识")
	}
}
