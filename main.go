package main

import "github.com/dmingolla/cognit-optimizer/cmd"

func main() {
	cmd.Execute()
}
