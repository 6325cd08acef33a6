package main

import (
	"github.com/lzjiangjeff/automated-trader/cli"
)

func main() {
	cli.Execute()
}
