package main

import "github.com/sesiku/ms-go-reconciliation/cmd"

func main() {
	cmd.Execute()
}
