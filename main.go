// The main package for the crawld executable.
package main

import "github.com/seedline/crawld/cmd"

func main() {
	cmd.Execute()
}
