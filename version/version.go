package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var VERSION string

func String() string {
	return strings.TrimSpace(VERSION)
}

func PrintVersion() {
	println("whoisthere", String())
	println("A passive per-conversation traffic observer written in Go.")
	println("https://github.com/whoisthere/whoisthere")
}
