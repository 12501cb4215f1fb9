package main

import (
	"github.com/tansive/restclient/internal/cli"
	"github.com/tansive/restclient/internal/common/logtrace"
)

func init() {
	logtrace.InitLogger(false)
}

func main() {
	cli.Execute()
}
