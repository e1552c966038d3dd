package main

import "github.com/encodeous/dodag/cmd"

func main() {
	cmd.Execute()
}
