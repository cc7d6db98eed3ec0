package main

import "github.com/clinicops/receivables/internal/cli"

func main() {
	cli.Execute()
}
