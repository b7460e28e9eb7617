// Command catalogsync keeps a local copy of an online store's catalog in
// sync and serves it over HTTP.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
