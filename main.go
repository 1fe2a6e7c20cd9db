package main

import "github.com/moyu-x/fastclass/cmd"

func main() {
	cmd.Execute()
}
