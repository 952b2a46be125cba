package main

import "github.com/budgetopt/budgetopt/cmd"

func main() {
	cmd.Execute()
}
