// main.go - Entry point of the mapillary command
package main

import "github.com/valpere/mapillary/cmd"

func main() {
	cmd.Execute()
}
