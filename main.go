package main

import "syncstream.pro/cmd"

func main() {
	cmd.Execute()
}
