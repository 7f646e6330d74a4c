package main

import (
	"os"

	"github.com/rsi-robotics/rtcat-eval/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
