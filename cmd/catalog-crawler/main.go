// Package main is the entry point of the catalog crawler.
package main

import (
	"os"

	"github.com/Sternrassler/ozon-catalog-crawler/cmd/catalog-crawler/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
