package main

import (
	_ "github.com/joho/godotenv/autoload"

	"lexrag/internal/cli"
)

func main() {
	cli.Execute()
}
