package main

import (
	"github.com/sergev/geiger/adapter"

	// Counter drivers register themselves with the adapter registry
	_ "github.com/sergev/geiger/gmc"
)

func main() {
	adapter.Execute()
}
