package main

import (
	"context"

	"github.com/deicod/pizzeria/internal/cli"
)

func main() {
	cli.Execute(context.Background())
}
