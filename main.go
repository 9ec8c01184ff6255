package main

import (
	"log"

	"github.com/applypilot/applypilot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
