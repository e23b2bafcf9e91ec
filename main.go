package main

import "inquest/cmd"

func main() {
	cmd.Execute()
}
