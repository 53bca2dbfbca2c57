package main

import (
	"os"

	"github.com/onetaskassistant/onetask/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
