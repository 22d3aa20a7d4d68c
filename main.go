package main

import "github.com/akyaiy/cortexlink/cmd"

func main() {
	cmd.Execute()
}
