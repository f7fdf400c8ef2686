package main

import "github.com/chrisdamba/foodispatch/cmd"

func main() {
	cmd.Execute()
}
