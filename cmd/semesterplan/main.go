package main

import "github.com/example/semesterplan/cmd"

func main() {
	cmd.Execute()
}
