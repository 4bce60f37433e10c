package main

import (
	"github.com/soomorita/macro-micro-linkage/internal/cli"
)

func main() {
	cli.Execute()
}
