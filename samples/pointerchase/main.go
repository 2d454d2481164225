package main

import (
	"flag"

	"github.com/AlfiRam/CXL-DMSim/samples/runner"
)

func main() {
	flag.Parse()

	runner := new(runner.Runner).ParseFlag().Init()
	runner.Run()
}
