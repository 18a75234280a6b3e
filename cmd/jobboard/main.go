// cmd/jobboard/main.go
package main

import (
	"context"
	"log"

	"github.com/dalemusser/jobboard/app"
	"github.com/dalemusser/jobboard/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
