package main

import "github.com/parthshah1/perpwizard/cmd"

func main() {
	cmd.Execute()
}
