package main

import "github.com/envelhq/envel/cmd"

func main() {
	cmd.Execute()
}
