package main

import "tickle-go/cmd"

func main() {
	cmd.Execute()
}
