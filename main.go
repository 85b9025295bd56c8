package main

import (
	"os"

	"github.com/chaos-io/removebg/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
