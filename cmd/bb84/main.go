package main

import (
	"os"

	"github.com/golang/glog"
	"github.com/jaskrrish/Go-BB84/cmd/bb84/commands"
)

func main() {
	err := commands.Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
