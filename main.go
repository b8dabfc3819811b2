package main

import (
	"os"

	"github.com/GoLTI-Tool/GoLTI-Tool/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
