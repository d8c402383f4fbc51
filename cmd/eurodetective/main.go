// Package main is the entry point of EuroDetective.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/eurodetective/cmd/eurodetective/app"
)

func main() {
	app.NewApp().Run()
}
