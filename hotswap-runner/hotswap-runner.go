package main

import (
	"github.com/oshokin/hotswap/cmd/hotswap-runner/cmd"
)

func main() {
	cmd.Execute()
}
