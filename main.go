package main

import "github.com/iksnae/wize-panels/cmd"

func main() {
	cmd.Execute()
}
