package main

import (
	"log"

	"github.com/compass-dev/career-compass/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
