package main

import "grill-backend/internal/cli"

func main() {
	cli.Execute()
}
