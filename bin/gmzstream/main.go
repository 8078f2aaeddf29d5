package main

import "github.com/dylan/groovymister/cmd"

func main() {
	cmd.Execute()
}
