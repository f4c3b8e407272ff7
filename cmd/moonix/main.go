package main

import (
	"os"

	"github.com/tliron/commonlog"

	"github.com/Chubek/Moonix/pkg/cli"
)

func main() {
	commonlog.Configure(1, nil)
	os.Exit(cli.Entry(os.Args[1:]))
}
