package main

import "github.com/encodeous/wireline/cmd"

func main() {
	cmd.Execute()
}
