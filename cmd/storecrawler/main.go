package main

import (
	_ "embed"
)

// 内置默认配置,未指定 --config 且 XDG 配置目录中没有 config.yaml 时使用
//
//go:embed appconfig/appconfig.json
var appConfig []byte

func main() {
	Execute()
}
